package schema

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Now is the clock used by the dynamic tokens; tests replace it.
var Now = time.Now

// dynamicTokens are the reserved literal values evaluated once per row.
var dynamicTokens = map[string]func() any{
	"now":    func() any { return Now() },
	"utcnow": func() any { return Now().UTC() },
	"today": func() any {
		t := Now()
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	},
	"newid": func() any { return uuid.New() },
}

// EvalToken resolves a reserved dynamic token. Tokens are written "@now",
// "now()" or "{now}" (case-insensitive).
func EvalToken(s string) (func() any, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(name, "@"):
		name = name[1:]
	case strings.HasSuffix(name, "()"):
		name = strings.TrimSuffix(name, "()")
	case strings.HasPrefix(name, "{") && strings.HasSuffix(name, "}"):
		name = name[1 : len(name)-1]
	default:
		return nil, false
	}
	fn, ok := dynamicTokens[strings.TrimSpace(name)]
	return fn, ok
}

// ResolveValue turns the declared text of a literal into a Value: a reserved
// token becomes a Computed value, anything else must parse as a literal of t.
func ResolveValue(text string, t Type, parseFormat string) (Value, error) {
	if fn, ok := EvalToken(text); ok {
		return Computed(fn).withSource(text), nil
	}
	if t.Kind == KindString || t.Kind == KindAny {
		return Literal(text).withSource(text), nil
	}
	v, err := Convert(text, t, parseFormat, false)
	if err != nil {
		return Value{}, err
	}
	return Literal(v).withSource(text), nil
}
