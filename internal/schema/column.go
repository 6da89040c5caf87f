// Package schema describes the target columns of an import.
//
// A Column declares a name, a declared type, an optional binding type and
// the rules for resolving its value from a source row: a literal value, a
// direct lookup by name, a mapped lookup from another column of the same row,
// and a list of appended columns whose values are concatenated onto it.
//
// Columns are plain values. Build them with New (or MustNew for static tables)
// or parse a mapping document with ReadMappings:
//
//	cols := schema.Schema{
//	    schema.MustNew("Id", "Int32", schema.NotNull()),
//	    schema.MustNew("FullName", "String",
//	        schema.WithAppended(
//	            schema.MustNew("Sep", "String", schema.WithLiteral(" ")),
//	            schema.MustNew("LastName", "String"),
//	        )),
//	}
package schema

import (
	"strings"

	"github.com/JonMunkholm/gridimport/internal/importerr"
)

// Unset marks fixed-width geometry that was not declared.
const Unset = -1

// Column is the declaration of one target column.
//
// The zero Column does not allow nulls; New and ReadMappings default
// AllowNull to true.
type Column struct {
	Name          string
	Type          Type
	Binding       Type // zero means Type
	Size          int
	Position      int
	AllowNull     bool
	Strict        bool
	DisplayFormat string
	ParseFormat   string
	BindName      string
	Value         Value
	ColumnMap     string
	Appended      []Column
}

// BindingType returns the type values are coerced to.
func (c Column) BindingType() Type {
	if c.Binding.IsZero() {
		return c.Type
	}
	return c.Binding
}

// ParameterName returns the name used for entity members and query parameters.
func (c Column) ParameterName() string {
	if c.BindName != "" {
		return c.BindName
	}
	return c.Name
}

// HasGeometry reports whether fixed-width position and size are declared.
func (c Column) HasGeometry() bool {
	return c.Position >= 0 && c.Size > 0
}

// IsMapped reports whether the column itself declares ColumnMap.
func (c Column) IsMapped() bool { return c.ColumnMap != "" }

// HasMappedColumns reports whether the column or any appended descendant
// declares ColumnMap.
func (c Column) HasMappedColumns() bool {
	if c.ColumnMap != "" {
		return true
	}
	for _, a := range c.Appended {
		if a.HasMappedColumns() {
			return true
		}
	}
	return false
}

// Option adjusts a Column under construction.
type Option func(*Column) error

// New builds a column from a declared type name.
func New(name, typeName string, opts ...Option) (Column, error) {
	t, err := ParseType(typeName)
	if err != nil {
		return Column{}, withColumn(err, name)
	}
	c := Column{
		Name:      name,
		Type:      t,
		Size:      Unset,
		Position:  Unset,
		AllowNull: true,
	}
	for _, opt := range opts {
		if err := opt(&c); err != nil {
			return Column{}, withColumn(err, name)
		}
	}
	return c, nil
}

// MustNew is New for static declarations; it panics on error.
func MustNew(name, typeName string, opts ...Option) Column {
	c, err := New(name, typeName, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// WithBinding sets the binding type by name.
func WithBinding(typeName string) Option {
	return func(c *Column) error {
		t, err := ParseType(typeName)
		if err != nil {
			return err
		}
		c.Binding = t
		return nil
	}
}

// WithMap derives the column value from another column of the same row.
func WithMap(column string) Option {
	return func(c *Column) error {
		c.ColumnMap = column
		return nil
	}
}

// WithLiteral sets a constant value.
func WithLiteral(v any) Option {
	return func(c *Column) error {
		c.Value = Literal(v)
		return nil
	}
}

// WithComputed sets a per-row computed value.
func WithComputed(fn func() any) Option {
	return func(c *Column) error {
		c.Value = Computed(fn)
		return nil
	}
}

// WithAppended appends sub-columns whose values are concatenated onto this one.
func WithAppended(cols ...Column) Option {
	return func(c *Column) error {
		c.Appended = append(c.Appended, cols...)
		return nil
	}
}

// WithGeometry sets the fixed-width position (0-based) and size.
func WithGeometry(position, size int) Option {
	return func(c *Column) error {
		c.Position = position
		c.Size = size
		return nil
	}
}

// NotNull rejects null values.
func NotNull() Option {
	return func(c *Column) error {
		c.AllowNull = false
		return nil
	}
}

// StrictParsing disables lenient numeric and boolean cleanup.
func StrictParsing() Option {
	return func(c *Column) error {
		c.Strict = true
		return nil
	}
}

// WithFormat sets the display and parse formats.
func WithFormat(display, parse string) Option {
	return func(c *Column) error {
		c.DisplayFormat = display
		c.ParseFormat = parse
		return nil
	}
}

// WithBindName sets the member/parameter name.
func WithBindName(name string) Option {
	return func(c *Column) error {
		c.BindName = name
		return nil
	}
}

// Schema is an ordered list of declared columns.
type Schema []Column

// Expand returns the columns in declaration order with each column's
// appended columns expanded immediately after their parent (pre-order).
func (s Schema) Expand() []Column {
	var out []Column
	s.Walk(func(c Column, _ int) {
		out = append(out, c)
	})
	return out
}

// Walk visits every column in pre-order with its nesting depth
// (0 for declared columns, 1+ for appended ones).
func (s Schema) Walk(fn func(c Column, depth int)) {
	var walk func(cols []Column, depth int)
	walk = func(cols []Column, depth int) {
		for _, c := range cols {
			fn(c, depth)
			walk(c.Appended, depth+1)
		}
	}
	walk(s, 0)
}

// Find returns the first declared column named name (case-insensitive).
func (s Schema) Find(name string) (Column, bool) {
	for _, c := range s {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// Validate checks every column of the expanded tree for empty and
// duplicate names.
func (s Schema) Validate() error {
	seen := make(map[string]bool)
	var err error
	s.Walk(func(c Column, _ int) {
		if err != nil {
			return
		}
		if strings.TrimSpace(c.Name) == "" {
			err = &importerr.SchemaError{Message: "column name is required"}
			return
		}
		// Appended columns share the flattened grid, so names are unique
		// across the whole tree.
		key := strings.ToLower(c.Name)
		if seen[key] {
			err = &importerr.SchemaError{Column: c.Name, Message: "duplicate column name"}
			return
		}
		seen[key] = true
		if c.Type.IsZero() {
			err = &importerr.ColumnTypeError{Column: c.Name, Message: "column type is required"}
		}
	})
	return err
}

// withColumn fills in the column name of a type error.
func withColumn(err error, name string) error {
	if te, ok := err.(*importerr.ColumnTypeError); ok && te.Column == "" {
		te.Column = name
	}
	return err
}
