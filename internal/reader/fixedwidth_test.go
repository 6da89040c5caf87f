package reader

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gridimport/internal/importerr"
	"github.com/JonMunkholm/gridimport/internal/schema"
)

var fixedCols = []schema.Column{
	schema.MustNew("Id", "Int32", schema.WithGeometry(0, 4)),
	schema.MustNew("Name", "String", schema.WithGeometry(4, 8)),
	schema.MustNew("Batch", "String", schema.WithLiteral("b1")),
}

func TestFixedWidth_ReadRawData(t *testing.T) {
	src := "HEADER LINE\n0001Ada     \n\n0002Grace   \r\n"
	f := &FixedWidth{Source: strings.NewReader(src), SkipLines: 1}

	raw, err := f.ReadRawData(context.Background(), fixedCols)
	require.NoError(t, err)

	assert.Equal(t, []string{"Id", "Name"}, raw.Header())
	assert.Equal(t, [][]any{{"0001", "Ada"}, {"0002", "Grace"}}, cellValues(raw))

	got, err := f.ProcessHeaders(fixedCols, raw)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestFixedWidth_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		cols    []schema.Column
		wantRow int
	}{
		{name: "empty source", src: "\n\n", cols: fixedCols},
		{name: "line too short", src: "0001Ada     \n0002Bo\n", cols: fixedCols, wantRow: 2},
		{name: "no positional columns", src: "abc\n", cols: []schema.Column{schema.MustNew("A", "String")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &FixedWidth{Source: strings.NewReader(tt.src)}

			_, err := f.ReadRawData(context.Background(), tt.cols)

			var abort *importerr.AbortError
			require.ErrorAs(t, err, &abort)
			assert.Equal(t, tt.wantRow, abort.Row)
		})
	}
}

func TestFixedWidth_CountsCharacters(t *testing.T) {
	cols := []schema.Column{
		schema.MustNew("City", "String", schema.WithGeometry(0, 6)),
		schema.MustNew("Code", "String", schema.WithGeometry(6, 2)),
	}
	f := &FixedWidth{Source: strings.NewReader("Zürich01\n")}

	raw, err := f.ReadRawData(context.Background(), cols)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"Zürich", "01"}}, cellValues(raw))
}
