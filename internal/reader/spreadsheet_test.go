package reader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/gridimport/internal/importerr"
)

func writeWorkbook(t *testing.T, sheet string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}

	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestSpreadsheet_ReadRawData(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]any{
		{"Id", "Name"},
		{1, "Ada"},
		{2, "Grace"},
		{3, "Linus"},
	})

	s := &Spreadsheet{Path: path}
	raw, err := s.ReadRawData(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Id", "Name"}, raw.Header())
	assert.Equal(t, [][]any{{"1", "Ada"}, {"2", "Grace"}, {"3", "Linus"}}, cellValues(raw))
}

func TestSpreadsheet_KeepsCellText(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]any{
		{"Name", "Note"},
		{" Jones' ", "'quoted'"},
	})

	raw, err := (&Spreadsheet{Path: path}).ReadRawData(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"Jones'", "'quoted'"}}, cellValues(raw))
}

func TestSpreadsheet_RowLimit(t *testing.T) {
	path := writeWorkbook(t, "Data", [][]any{
		{"N"}, {"a"}, {"b"}, {"c"}, {"d"},
	})

	tests := []struct {
		limit int
		want  int
	}{
		{0, 4},
		{2, 2},
		{10, 4},
		{-1, 3},
		{-4, 0},
		{-9, 0},
	}

	for _, tt := range tests {
		s := &Spreadsheet{Path: path, Sheet: "Data", RowLimit: tt.limit}
		raw, err := s.ReadRawData(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, tt.want, raw.RowCount(), "limit %d", tt.limit)
	}
}

func TestSpreadsheet_UnknownSheet(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]any{{"A"}, {"1"}})

	_, err := (&Spreadsheet{Path: path, Sheet: "Nope"}).ReadRawData(context.Background(), nil)

	var abort *importerr.AbortError
	assert.ErrorAs(t, err, &abort)
}

func TestLimitRows(t *testing.T) {
	rows := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{1, 2}, LimitRows(rows, 2))
	assert.Equal(t, []int{1, 2, 3}, LimitRows(rows, -2))
	assert.Equal(t, rows, LimitRows(rows, 0))
	assert.Empty(t, LimitRows(rows, -7))
}
