package reader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gridimport/internal/grid"
	"github.com/JonMunkholm/gridimport/internal/importerr"
	"github.com/JonMunkholm/gridimport/internal/schema"
)

func cellValues(g *grid.Grid) [][]any {
	out := make([][]any, 0, g.RowCount())
	for _, r := range g.Rows() {
		vals := make([]any, len(r.Cells))
		for i, c := range r.Cells {
			vals[i] = c.Value
		}
		out = append(out, vals)
	}
	return out
}

func TestDelimited_ReadRawData(t *testing.T) {
	src := "Id,Name,Amount\n1,Ada,\"$1,200.00\"\n\n2,Grace\n=\"003\",Linus,5\n"
	d := &Delimited{Source: strings.NewReader(src)}

	raw, err := d.ReadRawData(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Id", "Name", "Amount"}, raw.Header())
	assert.Equal(t, [][]any{
		{"1", "Ada", "$1,200.00"},
		{"2", "Grace", nil},
		{`="003"`, "Linus", "5"},
	}, cellValues(raw))
}

func TestDelimited_KeepsCellText(t *testing.T) {
	src := "Name,Formula,Note\n  Jones' ,=SUM(A1),'quoted'\n"
	d := &Delimited{Source: strings.NewReader(src)}

	raw, err := d.ReadRawData(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"Jones'", "=SUM(A1)", "'quoted'"}}, cellValues(raw))
}

func TestDelimited_FileWithOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.tsv")
	content := "# exported 2024-01-15\nid\tname\n7\tAda\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	d := &Delimited{Path: path, Delimiter: '\t', Comment: '#'}
	raw, err := d.ReadRawData(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name"}, raw.Header())
	assert.Equal(t, [][]any{{"7", "Ada"}}, cellValues(raw))
}

func TestDelimited_NoHeader(t *testing.T) {
	d := &Delimited{Source: strings.NewReader("a,b\nc,d,e\n"), NoHeader: true}

	raw, err := d.ReadRawData(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Column1", "Column2", "Column3"}, raw.Header())
	assert.Equal(t, 2, raw.RowCount())
	assert.Nil(t, raw.Row(0).Cells[2].Value)
}

func TestDelimited_HeaderSearch(t *testing.T) {
	src := "Report,Q1\nGenerated,today\nName,Id,Extra\nAda,1,x\n"
	cols := []schema.Column{
		schema.MustNew("Id", "Int32"),
		schema.MustNew("Name", "String"),
		schema.MustNew("Loaded", "DateTime", schema.WithLiteral("2024-01-15")),
	}

	d := &Delimited{Source: strings.NewReader(src), HeaderSearchRows: 5}
	raw, err := d.ReadRawData(context.Background(), cols)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Id", "Extra"}, raw.Header())
	assert.Equal(t, 1, raw.RowCount())

	d = &Delimited{Source: strings.NewReader(src), HeaderSearchRows: 2}
	_, err = d.ReadRawData(context.Background(), cols)
	var abort *importerr.AbortError
	require.ErrorAs(t, err, &abort)
	assert.Contains(t, abort.Reason, "header not found")
}

func TestDelimited_FilterColumns(t *testing.T) {
	src := "Id,Name,Notes,Alias\n1,Ada,long text,Countess\n"
	cols := []schema.Column{
		schema.MustNew("Id", "Int32"),
		schema.MustNew("Nick", "String", schema.WithMap("Alias")),
	}

	d := &Delimited{Source: strings.NewReader(src), FilterColumns: true}
	raw, err := d.ReadRawData(context.Background(), cols)
	require.NoError(t, err)

	assert.Equal(t, []string{"Id", "Alias"}, raw.Header())
	assert.Equal(t, [][]any{{"1", "Countess"}}, cellValues(raw))
}

func TestDelimited_NoSource(t *testing.T) {
	_, err := (&Delimited{}).ReadRawData(context.Background(), nil)

	var abort *importerr.AbortError
	assert.ErrorAs(t, err, &abort)
}

func TestDelimited_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := "a\n" + strings.Repeat("1\n", ContextCheckInterval*2)
	_, err := (&Delimited{Source: strings.NewReader(src)}).ReadRawData(ctx, nil)

	assert.ErrorIs(t, err, context.Canceled)
}
