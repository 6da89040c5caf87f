package importer

import (
	"strings"

	"github.com/JonMunkholm/gridimport/internal/grid"
	"github.com/JonMunkholm/gridimport/internal/schema"
)

// pass selects how mapped columns resolve.
type pass int

const (
	pass1 pass = 1
	pass2 pass = 2
)

// rowEnv is what a column expression sees while one row is filled.
type rowEnv struct {
	pass   pass
	raw    *grid.Row
	rawG   *grid.Grid
	target *grid.Row
	tgtG   *grid.Grid
}

// expr resolves one column value for a row.
type expr interface {
	eval(env *rowEnv) any
}

// literalExpr yields the column's literal, invoking computed values per row.
type literalExpr struct{ v schema.Value }

func (e literalExpr) eval(*rowEnv) any { return e.v.Eval() }

// directExpr reads a raw column by index; -1 means the source lacks it.
type directExpr struct{ idx int }

func (e directExpr) eval(env *rowEnv) any {
	if e.idx < 0 || e.idx >= len(env.raw.Cells) {
		return nil
	}
	return normalize(env.raw.Cells[e.idx].Value)
}

// mappedExpr reads another column of the same row. It is null in the first
// pass; in the second it prefers the materialized target value and falls
// back to the raw row.
type mappedExpr struct{ name string }

func (e mappedExpr) eval(env *rowEnv) any {
	if env.pass == pass1 {
		return nil
	}
	if i := env.tgtG.ColumnIndex(e.name); i >= 0 {
		if v := env.target.Cells[i].Value; v != nil {
			return v
		}
	}
	if i := env.rawG.ColumnIndex(e.name); i >= 0 {
		return normalize(env.raw.Cells[i].Value)
	}
	return nil
}

// concatExpr appends the string forms of its parts to the head value.
// Null parts contribute nothing; an empty result is null.
type concatExpr struct {
	head  expr
	parts []expr
}

func (e concatExpr) eval(env *rowEnv) any {
	var b strings.Builder
	b.WriteString(schema.Stringify(e.head.eval(env)))
	for _, p := range e.parts {
		b.WriteString(schema.Stringify(p.eval(env)))
	}
	if b.Len() == 0 {
		return nil
	}
	return b.String()
}

// compile builds the expression for c against the raw grid's columns.
func compile(c schema.Column, raw *grid.Grid) expr {
	var head expr
	switch {
	case c.Value.IsSet():
		head = literalExpr{v: c.Value}
	case c.IsMapped():
		head = mappedExpr{name: c.ColumnMap}
	default:
		head = directExpr{idx: raw.ColumnIndex(c.Name)}
	}

	if len(c.Appended) == 0 {
		return head
	}
	parts := make([]expr, len(c.Appended))
	for i, a := range c.Appended {
		parts[i] = compile(a, raw)
	}
	return concatExpr{head: head, parts: parts}
}

// normalize trims raw text and turns blank text into null.
func normalize(v any) any {
	switch t := v.(type) {
	case string:
		t = strings.TrimSpace(t)
		if t == "" {
			return nil
		}
		return t
	case []byte:
		return normalize(string(t))
	}
	return v
}
