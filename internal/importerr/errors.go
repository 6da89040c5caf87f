// Package importerr defines the error kinds raised by the import pipeline.
//
// Every error carries enough context (column, row, value, statement) for the
// caller to report the first fatal condition without re-running the import.
// Use errors.As to classify:
//
//	var abort *importerr.AbortError
//	if errors.As(err, &abort) {
//	    log.Error("import aborted", "row", abort.Row, "column", abort.Column)
//	}
package importerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the category of an import error.
type Kind string

const (
	KindSchema Kind = "schema"
	KindCast   Kind = "cast"
	KindNull   Kind = "null"
	KindAbort  Kind = "abort"
	KindConfig Kind = "config"
	KindRow    Kind = "row"
)

// SchemaError reports a problem with a column declaration.
type SchemaError struct {
	Column  string
	Message string
	Cause   error
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("schema error")
	if e.Column != "" {
		fmt.Fprintf(&b, " in column %q", e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *SchemaError) Unwrap() error { return e.Cause }

// ColumnTypeError is a SchemaError raised for unknown type names and for
// binding types the coercion engine cannot produce.
type ColumnTypeError struct {
	Column   string
	TypeName string
	Message  string
}

func (e *ColumnTypeError) Error() string {
	return fmt.Sprintf("column type error in column %q (type %q): %s", e.Column, e.TypeName, e.Message)
}

// Is reports ColumnTypeError as a schema error so that errors.Is(err, ErrSchema) holds.
func (e *ColumnTypeError) Is(target error) bool { return target == ErrSchema }

// ErrSchema matches every SchemaError and ColumnTypeError via errors.Is.
var ErrSchema = errors.New("schema error")

// Is lets errors.Is(err, ErrSchema) match a SchemaError.
func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// CastError reports a value that cannot be coerced to a column's binding type.
type CastError struct {
	Value  any
	Column string
	Target string
	Cause  error
}

func (e *CastError) Error() string {
	msg := fmt.Sprintf("cannot cast %s to %s for column %q", describe(e.Value), e.Target, e.Column)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CastError) Unwrap() error { return e.Cause }

// NullColumnError reports a null value for a column that does not allow nulls.
type NullColumnError struct {
	Column string
}

func (e *NullColumnError) Error() string {
	return fmt.Sprintf("null value in required field %q", e.Column)
}

// ConfigError wraps failures to parse a mapping or profile document.
type ConfigError struct {
	Source string
	Cause  error
}

func (e *ConfigError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("config error in %s: %v", e.Source, e.Cause)
	}
	return fmt.Sprintf("config error: %v", e.Cause)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// RowError carries the diagnostics of a failed database row write.
type RowError struct {
	Row       int // 1-based
	Statement string
	Params    []any
	Code      string // driver error code, when the driver exposes one
	Cause     error
}

func (e *RowError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "row %d failed", e.Row)
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	fmt.Fprintf(&b, ": %v; statement: %s; params: [", e.Cause, e.Statement)
	for i, p := range e.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(describe(p))
	}
	b.WriteString("]")
	return b.String()
}

func (e *RowError) Unwrap() error { return e.Cause }

// AbortError stops a whole Populate or Import call.
// Row is 1-based; zero means the failure is not tied to a row.
type AbortError struct {
	Phase  string
	Row    int
	Column string
	Reason string
	Cause  error
}

func (e *AbortError) Error() string {
	var b strings.Builder
	b.WriteString("import aborted")
	if e.Phase != "" {
		fmt.Fprintf(&b, " during %s", e.Phase)
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, " at row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, ", column %q", e.Column)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *AbortError) Unwrap() error { return e.Cause }

// Abort builds an AbortError, returning err unchanged when it already is one.
func Abort(phase string, row int, column string, err error) error {
	var existing *AbortError
	if errors.As(err, &existing) {
		return err
	}
	return &AbortError{Phase: phase, Row: row, Column: column, Cause: err}
}

// Abortf builds an AbortError with a formatted reason and no cause.
func Abortf(phase string, format string, args ...any) *AbortError {
	return &AbortError{Phase: phase, Reason: fmt.Sprintf(format, args...)}
}

// KindOf classifies err, returning "" for errors outside this package.
func KindOf(err error) Kind {
	var (
		abort  *AbortError
		row    *RowError
		cast   *CastError
		null   *NullColumnError
		ctype  *ColumnTypeError
		schema *SchemaError
		config *ConfigError
	)
	switch {
	case errors.As(err, &abort):
		return KindAbort
	case errors.As(err, &row):
		return KindRow
	case errors.As(err, &cast):
		return KindCast
	case errors.As(err, &null):
		return KindNull
	case errors.As(err, &ctype), errors.As(err, &schema):
		return KindSchema
	case errors.As(err, &config):
		return KindConfig
	default:
		return ""
	}
}

func describe(v any) string {
	switch t := v.(type) {
	case nil:
		return "<null>"
	case string:
		return fmt.Sprintf("%q", t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
