// Package grid provides the in-memory typed table the pipeline fills.
//
// A Grid owns its columns and rows. Every row holds exactly one cell per
// column and a cell's column is its index: cell i of a row belongs to column i.
// Cells carry no back-references; navigation goes through the grid with
// Position values.
//
// Grids are not safe for concurrent mutation.
package grid

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/gridimport/internal/schema"
)

// Cell holds a coerced value and an optional per-cell format.
type Cell struct {
	Value        any
	FormatString string
}

// IsNull reports whether the cell has no value.
func (c Cell) IsNull() bool { return c.Value == nil }

// Row is an ordered list of cells, one per grid column.
type Row struct {
	Cells []Cell
}

// Position addresses a cell by row and column index.
type Position struct {
	Row int
	Col int
}

// Grid is a rectangular table of typed columns and ordered rows.
type Grid struct {
	columns []*Column
	rows    []*Row
}

// New creates an empty grid with the given columns.
func New(cols ...*Column) *Grid {
	return &Grid{columns: cols}
}

// FromSchema creates an empty grid whose columns are the expanded schema:
// declared columns in order, each followed by its appended columns.
func FromSchema(s schema.Schema) *Grid {
	g := &Grid{}
	s.Walk(func(c schema.Column, depth int) {
		g.columns = append(g.columns, &Column{Column: c, Appended: depth > 0})
	})
	return g
}

// Columns returns the grid columns in order.
func (g *Grid) Columns() []*Column { return g.columns }

// Rows returns the grid rows in order.
func (g *Grid) Rows() []*Row { return g.rows }

// ColumnCount returns the number of columns.
func (g *Grid) ColumnCount() int { return len(g.columns) }

// RowCount returns the number of rows.
func (g *Grid) RowCount() int { return len(g.rows) }

// Column returns the column at index i.
func (g *Grid) Column(i int) *Column { return g.columns[i] }

// Row returns the row at index i.
func (g *Grid) Row(i int) *Row { return g.rows[i] }

// ColumnIndex returns the index of the first column named name
// (case-insensitive), or -1.
func (g *Grid) ColumnIndex(name string) int {
	for i, c := range g.columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// FindColumns returns the indexes of every column named name (case-insensitive).
func (g *Grid) FindColumns(name string) []int {
	var idx []int
	for i, c := range g.columns {
		if strings.EqualFold(c.Name, name) {
			idx = append(idx, i)
		}
	}
	return idx
}

// AddColumn appends a column and a null cell to every existing row.
func (g *Grid) AddColumn(c *Column) {
	g.columns = append(g.columns, c)
	for _, r := range g.rows {
		r.Cells = append(r.Cells, Cell{})
	}
}

// RemoveColumn removes the column at index i and the matching cell of every row.
func (g *Grid) RemoveColumn(i int) {
	g.columns = append(g.columns[:i], g.columns[i+1:]...)
	for _, r := range g.rows {
		r.Cells = append(r.Cells[:i], r.Cells[i+1:]...)
	}
}

// NewRow allocates a full-width row of null cells without adding it.
func (g *Grid) NewRow() *Row {
	return &Row{Cells: make([]Cell, len(g.columns))}
}

// AddRow appends a row. The row must have one cell per column.
func (g *Grid) AddRow(r *Row) error {
	if len(r.Cells) != len(g.columns) {
		return fmt.Errorf("row has %d cells, grid has %d columns", len(r.Cells), len(g.columns))
	}
	g.rows = append(g.rows, r)
	return nil
}

// AppendRaw adds a row of uncoerced values, padding or truncating to the
// column count. Readers use it to build raw grids.
func (g *Grid) AppendRaw(values []any) *Row {
	r := g.NewRow()
	for i := 0; i < len(values) && i < len(r.Cells); i++ {
		r.Cells[i].Value = values[i]
	}
	g.rows = append(g.rows, r)
	return r
}

// SetRows replaces all rows. Every row must have one cell per column.
func (g *Grid) SetRows(rows []*Row) error {
	for i, r := range rows {
		if len(r.Cells) != len(g.columns) {
			return fmt.Errorf("row %d has %d cells, grid has %d columns", i+1, len(r.Cells), len(g.columns))
		}
	}
	g.rows = rows
	return nil
}

// ResetRows removes all rows.
func (g *Grid) ResetRows() { g.rows = nil }

// RemoveRow removes the row at index i.
func (g *Grid) RemoveRow(i int) {
	g.rows = append(g.rows[:i], g.rows[i+1:]...)
}

// At returns the cell at p, or nil when p is out of range.
func (g *Grid) At(p Position) *Cell {
	if !g.valid(p) {
		return nil
	}
	return &g.rows[p.Row].Cells[p.Col]
}

// Value returns the value of the named column in row r, and whether the
// column exists.
func (g *Grid) Value(r *Row, column string) (any, bool) {
	i := g.ColumnIndex(column)
	if i < 0 || i >= len(r.Cells) {
		return nil, false
	}
	return r.Cells[i].Value, true
}

func (g *Grid) valid(p Position) bool {
	return p.Row >= 0 && p.Row < len(g.rows) && p.Col >= 0 && p.Col < len(g.columns)
}

func (g *Grid) move(p Position, dr, dc int) (Position, bool) {
	next := Position{Row: p.Row + dr, Col: p.Col + dc}
	if !g.valid(next) {
		return p, false
	}
	return next, true
}

// Up returns the position above p.
func (g *Grid) Up(p Position) (Position, bool) { return g.move(p, -1, 0) }

// Down returns the position below p.
func (g *Grid) Down(p Position) (Position, bool) { return g.move(p, 1, 0) }

// Left returns the position left of p.
func (g *Grid) Left(p Position) (Position, bool) { return g.move(p, 0, -1) }

// Right returns the position right of p.
func (g *Grid) Right(p Position) (Position, bool) { return g.move(p, 0, 1) }

// Format renders the cell at p using its column's display format.
func (g *Grid) Format(p Position) string {
	c := g.At(p)
	if c == nil {
		return ""
	}
	return c.Format(g.columns[p.Col])
}

// Records returns every row as a map of column name to formatted value.
// Appended helper columns are included.
func (g *Grid) Records() []map[string]string {
	out := make([]map[string]string, 0, len(g.rows))
	for _, r := range g.rows {
		rec := make(map[string]string, len(g.columns))
		for i, c := range g.columns {
			rec[c.Name] = r.Cells[i].Format(c)
		}
		out = append(out, rec)
	}
	return out
}

// Header returns the column names in order.
func (g *Grid) Header() []string {
	h := make([]string, len(g.columns))
	for i, c := range g.columns {
		h[i] = c.Name
	}
	return h
}
