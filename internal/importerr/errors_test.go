package importerr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("x"), ""},
		{"schema", &SchemaError{Message: "dup"}, KindSchema},
		{"column type", &ColumnTypeError{Column: "A", TypeName: "Widget"}, KindSchema},
		{"cast", &CastError{Value: "x", Column: "A", Target: "Int32"}, KindCast},
		{"null", &NullColumnError{Column: "A"}, KindNull},
		{"config", &ConfigError{Cause: errors.New("bad")}, KindConfig},
		{"row", &RowError{Row: 1, Cause: errors.New("dup")}, KindRow},
		{"abort wins", Abort("filling pass 1", 2, "A", &CastError{Column: "A"}), KindAbort},
		{"wrapped", fmt.Errorf("run: %w", &NullColumnError{Column: "A"}), KindNull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrSchema(t *testing.T) {
	if !errors.Is(&ColumnTypeError{Column: "A"}, ErrSchema) {
		t.Error("ColumnTypeError should match ErrSchema")
	}
	if !errors.Is(fmt.Errorf("load: %w", &SchemaError{Message: "dup"}), ErrSchema) {
		t.Error("wrapped SchemaError should match ErrSchema")
	}
	if errors.Is(&CastError{}, ErrSchema) {
		t.Error("CastError should not match ErrSchema")
	}
}

func TestAbort(t *testing.T) {
	cause := &CastError{Value: "abc", Column: "Qty", Target: "Int32"}
	err := Abort("filling pass 1", 3, "Qty", cause)

	var abort *AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("Abort() = %T, want *AbortError", err)
	}
	if abort.Row != 3 || abort.Column != "Qty" {
		t.Errorf("AbortError = %+v", abort)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should unwrap")
	}

	want := `import aborted during filling pass 1 at row 3, column "Qty": cannot cast "abc" to Int32 for column "Qty"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	if again := Abort("committing", 9, "", err); again != err {
		t.Error("Abort should not rewrap an AbortError")
	}
}

func TestAbort_Context(t *testing.T) {
	err := Abort("filling pass 2", 100, "", context.Canceled)
	if !errors.Is(err, context.Canceled) {
		t.Error("context error should unwrap")
	}
}

func TestRowError(t *testing.T) {
	err := &RowError{
		Row:       3,
		Statement: "INSERT INTO people (id, name) VALUES ($1, $2)",
		Params:    []any{int64(3), "bad", nil},
		Code:      "23514",
		Cause:     errors.New("check constraint"),
	}
	msg := err.Error()
	for _, want := range []string{"row 3 failed", "[23514]", "VALUES ($1, $2)", `3, "bad", <null>`} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Source: "people.yaml", Cause: errors.New("yaml: line 2")}
	if err.Error() != "config error in people.yaml: yaml: line 2" {
		t.Errorf("Error() = %q", err.Error())
	}
	if (&ConfigError{Cause: errors.New("x")}).Error() != "config error: x" {
		t.Error("unexpected message without source")
	}
}
