package formatter

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/gridimport/internal/grid"
	"github.com/JonMunkholm/gridimport/internal/logging"
	"github.com/JonMunkholm/gridimport/internal/schema"
)

// FieldError records a value that could not be assigned to a struct field.
type FieldError struct {
	Row    int // 1-based
	Column string
	Field  string
	Err    error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("row %d: column %q -> field %s: %v", e.Row, e.Column, e.Field, e.Err)
}

func (e FieldError) Unwrap() error { return e.Err }

// EntityResult holds the projected items and the assignments that failed.
// An item is kept even when some of its fields failed.
type EntityResult[T any] struct {
	Items    []T
	Failures []FieldError
}

// Entity projects grid rows onto values of struct type T.
//
// A column binds to the exported field whose `grid:"name"` tag, or else whose
// name, matches the column's bind name case-insensitively. Columns without a
// field are skipped; appended helper columns are skipped silently.
type Entity[T any] struct {
	Logger *slog.Logger
}

type fieldBinding struct {
	col   int
	index []int
	name  string
}

// Import implements importer.Formatter.
func (e Entity[T]) Import(_ context.Context, g *grid.Grid) (EntityResult[T], error) {
	log := logging.OrDefault(e.Logger)

	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Struct {
		return EntityResult[T]{}, fmt.Errorf("entity type %s is not a struct", typ)
	}

	fields := structFields(typ)
	var bindings []fieldBinding
	for i, c := range g.Columns() {
		f, ok := fields[strings.ToLower(c.ParameterName())]
		if !ok {
			if !c.Appended {
				log.Warn("column has no matching field", "column", c.Name, "type", typ.String())
			}
			continue
		}
		bindings = append(bindings, fieldBinding{col: i, index: f.Index, name: f.Name})
	}

	res := EntityResult[T]{Items: make([]T, 0, g.RowCount())}
	for r, row := range g.Rows() {
		var item T
		v := reflect.ValueOf(&item).Elem()
		for _, b := range bindings {
			field, err := fieldByIndex(v, b.index)
			if err == nil {
				err = assign(field, row.Cells[b.col].Value)
			}
			if err != nil {
				fe := FieldError{Row: r + 1, Column: g.Column(b.col).Name, Field: b.name, Err: err}
				log.Warn("field assignment failed", "row", fe.Row, "column", fe.Column, "field", fe.Field, "error", err)
				res.Failures = append(res.Failures, fe)
			}
		}
		res.Items = append(res.Items, item)
	}
	return res, nil
}

// fieldByIndex is reflect.Value.FieldByIndex, allocating nil embedded
// pointers along the path.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, error) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}, fmt.Errorf("cannot allocate embedded %s", v.Type())
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, nil
}

// structFields indexes the settable fields of typ by lower-cased tag or name.
// Embedded structs are flattened.
func structFields(typ reflect.Type) map[string]reflect.StructField {
	out := make(map[string]reflect.StructField)
	for _, f := range reflect.VisibleFields(typ) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("grid"); ok {
			tag = strings.Split(tag, ",")[0]
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		key := strings.ToLower(name)
		if _, dup := out[key]; !dup {
			out[key] = f
		}
	}
	return out
}

var (
	timeType    = reflect.TypeFor[time.Time]()
	uuidType    = reflect.TypeFor[uuid.UUID]()
	decimalType = reflect.TypeFor[decimal.Decimal]()
	oaDateType  = reflect.TypeFor[schema.OADate]()
)

// assign stores val in dst. Nil zeroes dst; pointer fields are allocated;
// values are coerced to the field's kind with the grid converter so that
// narrowing overflows are reported instead of truncated.
func assign(dst reflect.Value, val any) error {
	if val == nil {
		dst.SetZero()
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), val); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	src := reflect.ValueOf(val)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}

	kind, ok := fieldKind(dst.Type())
	if !ok {
		if src.Type().ConvertibleTo(dst.Type()) && !isNumeric(src.Kind()) {
			dst.Set(src.Convert(dst.Type()))
			return nil
		}
		return fmt.Errorf("cannot assign %T to %s", val, dst.Type())
	}

	out, err := schema.Convert(val, schema.Type{Kind: kind}, "", false)
	if err != nil {
		return err
	}
	dst.Set(reflect.ValueOf(out).Convert(dst.Type()))
	return nil
}

// fieldKind maps a field type onto the converter kind producing it.
func fieldKind(t reflect.Type) (schema.Kind, bool) {
	switch t {
	case timeType:
		return schema.KindDateTime, true
	case uuidType:
		return schema.KindGUID, true
	case decimalType:
		return schema.KindDecimal, true
	case oaDateType:
		return schema.KindOADate, true
	}
	switch t.Kind() {
	case reflect.Int8:
		return schema.KindInt8, true
	case reflect.Int16:
		return schema.KindInt16, true
	case reflect.Int32:
		return schema.KindInt32, true
	case reflect.Int64, reflect.Int:
		return schema.KindInt64, true
	case reflect.Uint8:
		return schema.KindUint8, true
	case reflect.Uint16:
		return schema.KindUint16, true
	case reflect.Uint32:
		return schema.KindUint32, true
	case reflect.Uint64, reflect.Uint:
		return schema.KindUint64, true
	case reflect.Float32:
		return schema.KindFloat32, true
	case reflect.Float64:
		return schema.KindFloat64, true
	case reflect.String:
		return schema.KindString, true
	case reflect.Bool:
		return schema.KindBool, true
	}
	return schema.KindInvalid, false
}

func isNumeric(k reflect.Kind) bool {
	return (k >= reflect.Int && k <= reflect.Float64)
}
