package reader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/gridimport/internal/grid"
	"github.com/JonMunkholm/gridimport/internal/importerr"
	"github.com/JonMunkholm/gridimport/internal/schema"
)

// Spreadsheet reads one sheet of an .xlsx workbook. The first row holds the
// headers; cell values are read as displayed text.
type Spreadsheet struct {
	// Path is read when Source is nil.
	Path string

	// Source, when set, is read instead of Path.
	Source io.Reader

	// Sheet names the worksheet. Defaults to the first sheet.
	Sheet string

	// Password opens an encrypted workbook.
	Password string

	// RowLimit bounds the data rows read: N > 0 reads the first N rows,
	// N < 0 reads all but the last |N| rows, zero reads every row.
	RowLimit int

	Logger *slog.Logger
}

func (s *Spreadsheet) open() (*excelize.File, error) {
	opts := excelize.Options{Password: s.Password}
	if s.Source != nil {
		return excelize.OpenReader(s.Source, opts)
	}
	if s.Path == "" {
		return nil, fmt.Errorf("no source: set Path or Source")
	}
	return excelize.OpenFile(s.Path, opts)
}

// ReadRawData implements Reader.
func (s *Spreadsheet) ReadRawData(ctx context.Context, _ []schema.Column) (*grid.Grid, error) {
	f, err := s.open()
	if err != nil {
		return nil, &importerr.AbortError{Phase: phaseRead, Reason: "open workbook", Cause: err}
	}
	defer func() {
		_ = f.Close()
	}()

	sheet := s.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, importerr.Abortf(phaseRead, "workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &importerr.AbortError{Phase: phaseRead, Reason: fmt.Sprintf("read sheet %q", sheet), Cause: err}
	}
	if len(rows) == 0 {
		return nil, importerr.Abortf(phaseRead, "sheet %q has no header row", sheet)
	}

	raw := grid.New()
	for i, h := range rows[0] {
		raw.AddColumn(grid.RawColumn(headerName(h, i), schema.KindString))
	}

	values := make([]any, raw.ColumnCount())
	for n, rec := range LimitRows(rows[1:], s.RowLimit) {
		if err := checkContext(ctx, n+1); err != nil {
			return nil, importerr.Abort(phaseRead, n+1, "", err)
		}
		if isEmptyRow(rec) {
			continue
		}
		for i := range values {
			values[i] = nil
			if i < len(rec) {
				values[i] = strings.TrimSpace(rec[i])
			}
		}
		raw.AppendRaw(values)
	}
	return raw, nil
}

// ProcessHeaders implements Reader with the tabular policy.
func (s *Spreadsheet) ProcessHeaders(cols []schema.Column, raw *grid.Grid) ([]schema.Column, error) {
	return ReconcileHeaders(s.Logger, cols, raw)
}

// LimitRows applies a row limit: the first n rows for n > 0, all but the
// last |n| rows for n < 0, every row for zero.
func LimitRows[T any](rows []T, n int) []T {
	switch {
	case n > 0:
		return rows[:min(n, len(rows))]
	case n < 0:
		return rows[:max(0, len(rows)+n)]
	}
	return rows
}
