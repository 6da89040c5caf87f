package grid

import (
	"errors"

	"github.com/JonMunkholm/gridimport/internal/importerr"
	"github.com/JonMunkholm/gridimport/internal/schema"
)

// Column is a grid column: a schema declaration plus its place in the grid.
type Column struct {
	schema.Column

	// Appended is true for columns expanded from a parent's appended list.
	Appended bool
}

// NewColumn wraps a schema column.
func NewColumn(c schema.Column) *Column {
	return &Column{Column: c}
}

// RawColumn returns a loosely typed column for raw reader output.
func RawColumn(name string, kind schema.Kind) *Column {
	return &Column{Column: schema.Column{
		Name:      name,
		Type:      schema.Type{Kind: kind},
		Size:      schema.Unset,
		Position:  schema.Unset,
		AllowNull: true,
	}}
}

// Cell coerces raw into the column's binding type.
//
// A null raw value (nil or blank text) yields a null cell, or a
// NullColumnError when the column does not allow nulls and the binding type
// is not nullable. Unsupported binding types raise ColumnTypeError and
// conversion failures raise CastError.
func (c *Column) Cell(raw any) (Cell, error) {
	bt := c.BindingType()

	if schema.IsNull(raw) {
		// A nullable binding type accepts null even when AllowNull is false.
		if !c.AllowNull && !bt.Nullable {
			return Cell{}, &importerr.NullColumnError{Column: c.Name}
		}
		return Cell{}, nil
	}

	v, err := schema.Convert(raw, bt, c.ParseFormat, c.Strict)
	if err != nil {
		var te *importerr.ColumnTypeError
		if errors.As(err, &te) {
			te.Column = c.Name
			return Cell{}, te
		}
		return Cell{}, &importerr.CastError{
			Value:  raw,
			Column: c.Name,
			Target: bt.String(),
			Cause:  err,
		}
	}
	return Cell{Value: v}, nil
}
