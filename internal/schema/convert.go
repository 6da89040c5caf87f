package schema

// convert.go converts untyped source values into column binding types.
//
// Source values arrive as strings (text and spreadsheet readers) or as
// driver values (relational readers). Lenient mode handles the messy reality
// of user-provided data:
//   - Multiple date formats (US, EU, ISO) and two-digit years
//   - Currency symbols, thousands separators and accounting negatives "(1.00)"
//   - Various boolean representations (yes/no, true/false, 1/0)
//   - Excel formula prefixes (="value")
//
// Strict mode (Column.Strict) only accepts the canonical textual forms.

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/gridimport/internal/importerr"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		time.RFC3339Nano, time.RFC3339,
		"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04",
		"1/2/2006 15:04:05", "1/2/2006 3:04:05 PM", "01/02/2006 15:04",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006", "02-Jan-2006",
		"20060102",
	}
)

var errNotNumeric = errors.New("invalid number format")

// OADate is a legacy numeric date: days since 1899-12-30, with the fraction
// holding the time of day. Spreadsheets store dates this way.
type OADate float64

var oaEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Time converts the serial date to a UTC time.
func (d OADate) Time() time.Time {
	days := math.Floor(float64(d))
	frac := float64(d) - days
	t := oaEpoch.AddDate(0, 0, int(days))
	return t.Add(time.Duration(math.Round(frac * 24 * float64(time.Hour))))
}

// String renders the serial number.
func (d OADate) String() string {
	return strconv.FormatFloat(float64(d), 'f', -1, 64)
}

// OADateFromTime converts t to a serial date, ignoring its location.
func OADateFromTime(t time.Time) OADate {
	u := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	return OADate(u.Sub(oaEpoch).Hours() / 24)
}

// IsNull reports whether raw is absent: nil, or text that is blank.
func IsNull(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []byte:
		return len(strings.TrimSpace(string(v))) == 0
	}
	return false
}

// Convert converts raw into a value of type t. Null handling is the caller's
// job; Convert is only called with non-null input.
//
// Unsupported kinds return *importerr.ColumnTypeError; any other error means
// the value could not be converted.
func Convert(raw any, t Type, parseFormat string, strict bool) (any, error) {
	if b, ok := raw.([]byte); ok && t.Kind != KindGUID {
		raw = string(b)
	}

	switch k := t.Kind; {
	case k.IsSigned():
		n, err := toInt64(raw, strict)
		if err != nil {
			return nil, err
		}
		return narrowSigned(n, k)
	case k.IsUnsigned():
		n, err := toUint64(raw, strict)
		if err != nil {
			return nil, err
		}
		return narrowUnsigned(n, k)
	case k == KindDecimal:
		return toDecimal(raw, strict)
	case k == KindFloat32:
		f, err := toFloat(raw, strict, 32)
		if err != nil {
			return nil, err
		}
		return float32(f), nil
	case k == KindFloat64:
		return toFloat(raw, strict, 64)
	case k == KindDateTime:
		return toTime(raw, parseFormat, strict)
	case k == KindOADate:
		return toOADate(raw, parseFormat, strict)
	case k == KindString:
		return Stringify(raw), nil
	case k == KindGUID:
		return toUUID(raw)
	case k == KindBool:
		return toBool(raw, strict)
	case k == KindAny:
		return raw, nil
	}
	return nil, &importerr.ColumnTypeError{TypeName: t.String(), Message: "unsupported binding type"}
}

// Stringify renders a resolved value as text for concatenation.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format("2006-01-02 15:04:05")
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, the Excel formula prefix (="...") and quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}

// CleanNumeric normalizes a lenient numeric string: currency symbols and
// thousands separators are removed and accounting negatives "(123.45)"
// become "-123.45". The result is validated against the numeric grammar.
func CleanNumeric(s string) (string, error) {
	s = CleanCell(s)

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return "", errNotNumeric
	}
	return s, nil
}

func numericText(s string, strict bool) (string, error) {
	if strict {
		s = strings.TrimSpace(s)
		if !numericRegex.MatchString(s) {
			return "", errNotNumeric
		}
		return s, nil
	}
	return CleanNumeric(s)
}

func toInt64(raw any, strict bool) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint, uint8, uint16, uint32, uint64:
		u, _ := toUint64(v, strict)
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", u)
		}
		return int64(u), nil
	case float32:
		return integralFloat(float64(v))
	case float64:
		return integralFloat(v)
	case decimal.Decimal:
		if !v.IsInteger() {
			return 0, fmt.Errorf("value %s is not an integer", v)
		}
		if !v.BigInt().IsInt64() {
			return 0, fmt.Errorf("value %s overflows int64", v)
		}
		return v.IntPart(), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		s, err := numericText(v, strict)
		if err != nil {
			return 0, err
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, errNotNumeric
		}
		return toInt64(d, strict)
	}
	return 0, fmt.Errorf("unsupported source type %T", raw)
}

func toUint64(raw any, strict bool) (uint64, error) {
	switch v := raw.(type) {
	case uint:
		return uint64(v), nil
	case uint8:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint32:
		return uint64(v), nil
	case uint64:
		return v, nil
	case string:
		s, err := numericText(v, strict)
		if err != nil {
			return 0, err
		}
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, errNotNumeric
		}
		return decimalToUint64(d)
	case decimal.Decimal:
		return decimalToUint64(v)
	default:
		n, err := toInt64(raw, strict)
		if err != nil {
			return 0, err
		}
		if n < 0 {
			return 0, fmt.Errorf("negative value %d for unsigned type", n)
		}
		return uint64(n), nil
	}
}

func decimalToUint64(d decimal.Decimal) (uint64, error) {
	if !d.IsInteger() {
		return 0, fmt.Errorf("value %s is not an integer", d)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative value %s for unsigned type", d)
	}
	b := d.BigInt()
	if !b.IsUint64() {
		return 0, fmt.Errorf("value %s overflows uint64", d)
	}
	return b.Uint64(), nil
}

func integralFloat(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("value %v is not an integer", f)
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("value %v overflows int64", f)
	}
	return int64(f), nil
}

func narrowSigned(n int64, k Kind) (any, error) {
	switch k {
	case KindInt8:
		if n < math.MinInt8 || n > math.MaxInt8 {
			return nil, fmt.Errorf("value %d overflows %s", n, k)
		}
		return int8(n), nil
	case KindInt16:
		if n < math.MinInt16 || n > math.MaxInt16 {
			return nil, fmt.Errorf("value %d overflows %s", n, k)
		}
		return int16(n), nil
	case KindInt32:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("value %d overflows %s", n, k)
		}
		return int32(n), nil
	}
	return n, nil
}

func narrowUnsigned(n uint64, k Kind) (any, error) {
	switch k {
	case KindUint8:
		if n > math.MaxUint8 {
			return nil, fmt.Errorf("value %d overflows %s", n, k)
		}
		return uint8(n), nil
	case KindUint16:
		if n > math.MaxUint16 {
			return nil, fmt.Errorf("value %d overflows %s", n, k)
		}
		return uint16(n), nil
	case KindUint32:
		if n > math.MaxUint32 {
			return nil, fmt.Errorf("value %d overflows %s", n, k)
		}
		return uint32(n), nil
	}
	return n, nil
}

func toDecimal(raw any, strict bool) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		s, err := numericText(v, strict)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := toInt64(raw, strict)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromInt(n), nil
	}
}

func toFloat(raw any, strict bool, bitSize int) (float64, error) {
	switch v := raw.(type) {
	case float32:
		return float64(v), nil
	case float64:
		if bitSize == 32 && math.Abs(v) > math.MaxFloat32 {
			return 0, fmt.Errorf("value %v overflows Single", v)
		}
		return v, nil
	case decimal.Decimal:
		f, _ := v.Float64()
		return f, nil
	case string:
		s, err := numericText(v, strict)
		if err != nil {
			return 0, err
		}
		return strconv.ParseFloat(s, bitSize)
	default:
		n, err := toInt64(raw, strict)
		if err != nil {
			return 0, err
		}
		return float64(n), nil
	}
}

// ParseDate parses s with the lenient date layouts.
// Two-digit years are adjusted with TwoDigitYearPivot.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

func toTime(raw any, parseFormat string, strict bool) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case OADate:
		return v.Time(), nil
	case float64:
		return OADate(v).Time(), nil
	case float32:
		return OADate(v).Time(), nil
	case string:
		s := CleanCell(v)
		if parseFormat != "" {
			return time.Parse(parseFormat, s)
		}
		if strict {
			return time.Parse(time.RFC3339, s)
		}
		if t, ok := ParseDate(s); ok {
			return t, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return OADate(f).Time(), nil
		}
		return time.Time{}, errors.New("invalid date format")
	default:
		n, err := toInt64(raw, true)
		if err != nil {
			return time.Time{}, fmt.Errorf("unsupported source type %T", raw)
		}
		return OADate(n).Time(), nil
	}
}

func toOADate(raw any, parseFormat string, strict bool) (OADate, error) {
	switch v := raw.(type) {
	case OADate:
		return v, nil
	case time.Time:
		return OADateFromTime(v), nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return OADate(f), nil
		}
		t, err := toTime(v, parseFormat, strict)
		if err != nil {
			return 0, err
		}
		return OADateFromTime(t), nil
	default:
		f, err := toFloat(raw, true, 64)
		if err != nil {
			return 0, err
		}
		return OADate(f), nil
	}
}

func toUUID(raw any) (uuid.UUID, error) {
	switch v := raw.(type) {
	case uuid.UUID:
		return v, nil
	case [16]byte:
		return uuid.UUID(v), nil
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	case string:
		return uuid.Parse(CleanCell(v))
	}
	return uuid.Nil, fmt.Errorf("unsupported source type %T", raw)
}

func toBool(raw any, strict bool) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		if strict {
			return strconv.ParseBool(strings.TrimSpace(v))
		}
		switch strings.ToLower(CleanCell(v)) {
		case "true", "t", "yes", "y", "1":
			return true, nil
		case "false", "f", "no", "n", "0":
			return false, nil
		}
		return false, errors.New("must be yes/no, true/false, or 1/0")
	default:
		n, err := toInt64(raw, true)
		if err != nil {
			return false, err
		}
		return n != 0, nil
	}
}
