package grid

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gridimport/internal/importerr"
	"github.com/JonMunkholm/gridimport/internal/schema"
)

// ----------------------------------------------------------------------------
// Cell Coercion Tests
// ----------------------------------------------------------------------------

func TestColumn_Cell_RoundTrip(t *testing.T) {
	col := NewColumn(schema.MustNew("Qty", "Int32"))

	cell, err := col.Cell("42")
	require.NoError(t, err)
	assert.Equal(t, int32(42), cell.Value)
	assert.Equal(t, "42", cell.Format(col))
}

func TestColumn_Cell_Null(t *testing.T) {
	tests := []struct {
		name    string
		col     schema.Column
		raw     any
		wantErr bool
	}{
		{"nullable column", schema.MustNew("A", "Int32"), nil, false},
		{"blank text", schema.MustNew("A", "Int32"), "   ", false},
		{"not null rejects nil", schema.MustNew("A", "Int32", schema.NotNull()), nil, true},
		{"not null rejects blank", schema.MustNew("A", "String", schema.NotNull()), "", true},
		{"nullable binding wins", schema.MustNew("A", "Int32", schema.NotNull(), schema.WithBinding("Int32?")), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cell, err := NewColumn(tt.col).Cell(tt.raw)
			if tt.wantErr {
				var ne *importerr.NullColumnError
				require.ErrorAs(t, err, &ne)
				assert.Equal(t, "A", ne.Column)
				return
			}
			require.NoError(t, err)
			assert.True(t, cell.IsNull())
		})
	}
}

func TestColumn_Cell_CastError(t *testing.T) {
	col := NewColumn(schema.MustNew("Qty", "Int32"))

	_, err := col.Cell("twelve")

	var ce *importerr.CastError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Qty", ce.Column)
	assert.Equal(t, "twelve", ce.Value)
	assert.Equal(t, "Int32", ce.Target)
}

func TestColumn_Cell_UnsupportedBinding(t *testing.T) {
	col := NewColumn(schema.MustNew("Blob", "Binary"))

	_, err := col.Cell("00ff")

	var te *importerr.ColumnTypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "Blob", te.Column)
	assert.True(t, errors.Is(err, importerr.ErrSchema))
}

func TestColumn_Cell_UsesBindingType(t *testing.T) {
	col := NewColumn(schema.MustNew("Id", "Int32", schema.WithBinding("Int64")))

	cell, err := col.Cell("7")
	require.NoError(t, err)
	assert.Equal(t, int64(7), cell.Value)
}

// ----------------------------------------------------------------------------
// Grid Shape Tests
// ----------------------------------------------------------------------------

func TestFromSchema_MarksAppended(t *testing.T) {
	s := schema.Schema{
		schema.MustNew("First", "String", schema.WithAppended(
			schema.MustNew("Sep", "String", schema.WithLiteral(" ")),
			schema.MustNew("Last", "String"),
		)),
		schema.MustNew("Age", "Int32"),
	}

	g := FromSchema(s)

	assert.Equal(t, []string{"First", "Sep", "Last", "Age"}, g.Header())
	appended := make([]bool, g.ColumnCount())
	for i, c := range g.Columns() {
		appended[i] = c.Appended
	}
	assert.Equal(t, []bool{false, true, true, false}, appended)
}

func TestGrid_RowWidthInvariant(t *testing.T) {
	g := New(RawColumn("a", schema.KindAny), RawColumn("b", schema.KindAny))
	g.AppendRaw([]any{"1", "2", "overflow"})
	g.AppendRaw([]any{"3"})

	for _, r := range g.Rows() {
		assert.Len(t, r.Cells, 2)
	}

	g.AddColumn(RawColumn("c", schema.KindAny))
	for _, r := range g.Rows() {
		assert.Len(t, r.Cells, 3)
		assert.True(t, r.Cells[2].IsNull())
	}

	g.RemoveColumn(0)
	assert.Equal(t, []string{"b", "c"}, g.Header())
	assert.Equal(t, "2", g.Row(0).Cells[0].Value)

	err := g.AddRow(&Row{Cells: make([]Cell, 1)})
	assert.Error(t, err)
	assert.NoError(t, g.AddRow(g.NewRow()))
	assert.Equal(t, 3, g.RowCount())
}

func TestGrid_ColumnLookup(t *testing.T) {
	g := New(RawColumn("Name", schema.KindAny), RawColumn("name", schema.KindAny), RawColumn("Age", schema.KindAny))

	assert.Equal(t, 0, g.ColumnIndex("NAME"))
	assert.Equal(t, []int{0, 1}, g.FindColumns("name"))
	assert.Equal(t, -1, g.ColumnIndex("missing"))
	assert.Empty(t, g.FindColumns("missing"))
}

func TestGrid_Navigation(t *testing.T) {
	g := New(RawColumn("a", schema.KindAny), RawColumn("b", schema.KindAny))
	g.AppendRaw([]any{"r0c0", "r0c1"})
	g.AppendRaw([]any{"r1c0", "r1c1"})

	origin := Position{}

	_, ok := g.Up(origin)
	assert.False(t, ok)
	_, ok = g.Left(origin)
	assert.False(t, ok)

	p, ok := g.Right(origin)
	require.True(t, ok)
	assert.Equal(t, "r0c1", g.At(p).Value)

	p, ok = g.Down(p)
	require.True(t, ok)
	assert.Equal(t, "r1c1", g.At(p).Value)

	_, ok = g.Down(p)
	assert.False(t, ok)
	_, ok = g.Right(p)
	assert.False(t, ok)

	p, ok = g.Left(p)
	require.True(t, ok)
	p, ok = g.Up(p)
	require.True(t, ok)
	assert.Equal(t, origin, p)

	assert.Nil(t, g.At(Position{Row: 5}))
}

// ----------------------------------------------------------------------------
// Format Tests
// ----------------------------------------------------------------------------

func TestCell_Format(t *testing.T) {
	when := time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC)
	dated := NewColumn(schema.MustNew("When", "DateTime", schema.WithFormat("2006-01-02", "")))
	padded := NewColumn(schema.MustNew("Id", "Int32", schema.WithFormat("%05d", "")))
	plain := NewColumn(schema.MustNew("Note", "String"))

	tests := []struct {
		name string
		cell Cell
		col  *Column
		want string
	}{
		{"null", Cell{}, padded, ""},
		{"column layout", Cell{Value: when}, dated, "2024-01-15"},
		{"cell format wins", Cell{Value: when, FormatString: "15:04"}, dated, "08:30"},
		{"column verb", Cell{Value: int32(42)}, padded, "00042"},
		{"default", Cell{Value: "hi"}, plain, "hi"},
		{"oadate layout", Cell{Value: schema.OADate(45306)}, dated, "2024-01-15"},
		{"nil column", Cell{Value: int32(1)}, nil, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cell.Format(tt.col))
		})
	}
}

func TestGrid_Records(t *testing.T) {
	g := FromSchema(schema.Schema{
		schema.MustNew("Id", "Int32"),
		schema.MustNew("Name", "String"),
	})
	r := g.NewRow()
	r.Cells[0] = Cell{Value: int32(1)}
	r.Cells[1] = Cell{Value: "Ada"}
	require.NoError(t, g.AddRow(r))

	assert.Equal(t, []map[string]string{{"Id": "1", "Name": "Ada"}}, g.Records())
	assert.Equal(t, "Ada", g.Format(Position{Row: 0, Col: 1}))
}
