package schema

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/gridimport/internal/importerr"
)

// Kind is the value category of a column type.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindDecimal
	KindFloat32
	KindFloat64
	KindDateTime
	KindString
	KindGUID
	KindOADate
	KindBool
	KindBinary
	KindAny
)

var kindNames = map[Kind]string{
	KindInt8:     "Int8",
	KindInt16:    "Int16",
	KindInt32:    "Int32",
	KindInt64:    "Int64",
	KindUint8:    "UInt8",
	KindUint16:   "UInt16",
	KindUint32:   "UInt32",
	KindUint64:   "UInt64",
	KindDecimal:  "Decimal",
	KindFloat32:  "Single",
	KindFloat64:  "Double",
	KindDateTime: "DateTime",
	KindString:   "String",
	KindGUID:     "Guid",
	KindOADate:   "OADate",
	KindBool:     "Boolean",
	KindBinary:   "Binary",
	KindAny:      "Object",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsSigned reports whether k is a signed integer kind.
func (k Kind) IsSigned() bool { return k >= KindInt8 && k <= KindInt64 }

// IsUnsigned reports whether k is an unsigned integer kind.
func (k Kind) IsUnsigned() bool { return k >= KindUint8 && k <= KindUint64 }

// IsInteger reports whether k is any integer kind.
func (k Kind) IsInteger() bool { return k.IsSigned() || k.IsUnsigned() }

// bits returns the width of an integer kind.
func (k Kind) bits() int {
	switch k {
	case KindInt8, KindUint8:
		return 8
	case KindInt16, KindUint16:
		return 16
	case KindInt32, KindUint32:
		return 32
	case KindInt64, KindUint64:
		return 64
	}
	return 0
}

// AssignableFrom reports whether every value of kind src fits in k without loss.
func (k Kind) AssignableFrom(src Kind) bool {
	if k == src || k == KindAny || k == KindString {
		return true
	}
	switch {
	case k.IsSigned() && src.IsSigned():
		return k.bits() >= src.bits()
	case k.IsUnsigned() && src.IsUnsigned():
		return k.bits() >= src.bits()
	case k.IsSigned() && src.IsUnsigned():
		return k.bits() > src.bits()
	case (k == KindDecimal || k == KindFloat64) && src.IsInteger():
		return true
	case k == KindFloat64 && src == KindFloat32:
		return true
	case k == KindDecimal && (src == KindFloat32 || src == KindFloat64):
		return true
	case k == KindDateTime && src == KindOADate, k == KindOADate && src == KindDateTime:
		return true
	}
	return false
}

// Type is a column type: a Kind plus the optional/nullable wrapper.
type Type struct {
	Kind     Kind
	Nullable bool
}

// IsZero reports whether the type is unset.
func (t Type) IsZero() bool { return t.Kind == KindInvalid }

func (t Type) String() string {
	if t.Nullable {
		return t.Kind.String() + "?"
	}
	return t.Kind.String()
}

// AssignableFrom reports whether values of src can be stored in t without loss.
func (t Type) AssignableFrom(src Type) bool {
	if src.Nullable && !t.Nullable {
		return false
	}
	return t.Kind.AssignableFrom(src.Kind)
}

// typeAliases maps lower-cased type names to kinds.
var typeAliases = map[string]Kind{
	// .NET style
	"sbyte": KindInt8, "int16": KindInt16, "int32": KindInt32, "int64": KindInt64,
	"byte": KindUint8, "uint16": KindUint16, "uint32": KindUint32, "uint64": KindUint64,
	"decimal": KindDecimal, "single": KindFloat32, "double": KindFloat64,
	"datetime": KindDateTime, "string": KindString, "guid": KindGUID,
	"oadate": KindOADate, "boolean": KindBool, "object": KindAny, "binary": KindBinary,

	// Go style
	"int8": KindInt8, "uint8": KindUint8, "float32": KindFloat32, "float64": KindFloat64,
	"time": KindDateTime, "time.time": KindDateTime, "uuid": KindGUID, "bool": KindBool,
	"any": KindAny, "[]byte": KindBinary, "bytes": KindBinary,

	// SQL style
	"tinyint": KindUint8, "smallint": KindInt16, "int": KindInt32, "integer": KindInt32,
	"bigint": KindInt64, "numeric": KindDecimal, "money": KindDecimal, "real": KindFloat32,
	"float": KindFloat64, "double precision": KindFloat64, "date": KindDateTime,
	"timestamp": KindDateTime, "timestamptz": KindDateTime, "datetime2": KindDateTime,
	"varchar": KindString, "nvarchar": KindString, "char": KindString, "text": KindString,
	"uniqueidentifier": KindGUID, "bit": KindBool, "varbinary": KindBinary, "blob": KindBinary,
	"bytea": KindBinary,
}

// ParseType resolves a type name. Nullable forms are "Int32?",
// "Nullable<Int32>" and "*int32".
func ParseType(name string) (Type, error) {
	n := strings.TrimSpace(name)
	var t Type

	switch {
	case strings.HasSuffix(n, "?"):
		t.Nullable = true
		n = strings.TrimSuffix(n, "?")
	case strings.HasPrefix(n, "*"):
		t.Nullable = true
		n = strings.TrimPrefix(n, "*")
	case len(n) > len("nullable<>") && strings.EqualFold(n[:len("nullable<")], "nullable<") && strings.HasSuffix(n, ">"):
		t.Nullable = true
		n = n[len("nullable<") : len(n)-1]
	}

	n = strings.ToLower(strings.TrimSpace(n))
	n = strings.TrimPrefix(n, "system.")
	if i := strings.IndexByte(n, '('); i > 0 {
		// varchar(50), numeric(10,2)
		n = strings.TrimSpace(n[:i])
	}

	k, ok := typeAliases[n]
	if !ok {
		return Type{}, &importerr.ColumnTypeError{TypeName: name, Message: "unknown type"}
	}
	t.Kind = k
	return t, nil
}

// MustParseType is ParseType for static declarations.
func MustParseType(name string) Type {
	t, err := ParseType(name)
	if err != nil {
		panic(err)
	}
	return t
}
