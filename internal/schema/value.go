package schema

// Value is the literal of a column: either a constant or a zero-argument
// computed value evaluated once per row. The zero Value is unset.
type Value struct {
	literal  any
	computed func() any
	set      bool
	source   string // text the value was declared with, for diagnostics
}

// Literal returns a constant Value.
func Literal(v any) Value {
	return Value{literal: v, set: true}
}

// Computed returns a Value produced by fn at resolution time.
func Computed(fn func() any) Value {
	return Value{computed: fn, set: fn != nil}
}

// IsSet reports whether the value overrides source lookup.
func (v Value) IsSet() bool { return v.set }

// IsComputed reports whether the value is evaluated per row.
func (v Value) IsComputed() bool { return v.computed != nil }

// Eval returns the literal, or invokes the computed function.
func (v Value) Eval() any {
	if v.computed != nil {
		return v.computed()
	}
	return v.literal
}

// Source returns the declared text of the value ("" for programmatic values).
func (v Value) Source() string { return v.source }

func (v Value) withSource(s string) Value {
	v.source = s
	return v
}
