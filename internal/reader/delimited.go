package reader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/gridimport/internal/grid"
	"github.com/JonMunkholm/gridimport/internal/importerr"
	"github.com/JonMunkholm/gridimport/internal/schema"
)

// Delimited reads delimiter-separated text. Quotes are parsed leniently and
// rows may have differing field counts; short rows are padded with nulls.
type Delimited struct {
	// Path is read when Source is nil.
	Path string

	// Source, when set, is read instead of Path. It is not closed.
	Source io.Reader

	// Encoding names the source character set ("windows-1252",
	// "iso-8859-1", "utf-16le", ...). Empty means UTF-8.
	Encoding string

	// Delimiter separates fields. Defaults to ','.
	Delimiter rune

	// Comment starts a comment line when non-zero.
	Comment rune

	// NoHeader treats every row as data and names columns Column1..N.
	NoHeader bool

	// HeaderSearchRows scans up to this many leading rows for the header:
	// the first row naming every directly resolved schema column. Zero
	// takes the first non-empty row.
	HeaderSearchRows int

	// FilterColumns drops source columns the schema never refers to.
	FilterColumns bool

	Logger *slog.Logger
}

// ReadRawData implements Reader.
func (d *Delimited) ReadRawData(ctx context.Context, cols []schema.Column) (*grid.Grid, error) {
	src, closeFn, err := openText(d.Path, d.Source, d.Encoding)
	if err != nil {
		return nil, &importerr.AbortError{Phase: phaseRead, Cause: err}
	}
	defer closeFn()

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	if d.Delimiter != 0 {
		r.Comma = d.Delimiter
	}
	r.Comment = d.Comment

	var records [][]string
	for n := 1; ; n++ {
		if err := checkContext(ctx, n); err != nil {
			return nil, importerr.Abort(phaseRead, 0, "", err)
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, importerr.Abort(phaseRead, n, "", fmt.Errorf("parse %s: %w", sourceName(d.Path, d.Source), err))
		}
		if isEmptyRow(rec) {
			continue
		}
		records = append(records, rec)
	}

	var header []string
	if d.NoHeader {
		header = numberedHeader(records)
	} else {
		idx, err := d.findHeader(records, cols)
		if err != nil {
			return nil, err
		}
		header = records[idx]
		records = records[idx+1:]
	}

	keep := d.keepColumns(header, cols)
	raw := grid.New()
	for i, name := range header {
		if keep[i] {
			raw.AddColumn(grid.RawColumn(headerName(name, i), schema.KindString))
		}
	}

	values := make([]any, 0, raw.ColumnCount())
	for _, rec := range records {
		values = values[:0]
		for i := range header {
			if !keep[i] {
				continue
			}
			if i < len(rec) {
				values = append(values, strings.TrimSpace(rec[i]))
			} else {
				values = append(values, nil)
			}
		}
		raw.AppendRaw(values)
	}
	return raw, nil
}

// ProcessHeaders implements Reader with the tabular policy.
func (d *Delimited) ProcessHeaders(cols []schema.Column, raw *grid.Grid) ([]schema.Column, error) {
	return ReconcileHeaders(d.Logger, cols, raw)
}

func (d *Delimited) findHeader(records [][]string, cols []schema.Column) (int, error) {
	if len(records) == 0 {
		return 0, importerr.Abortf(phaseRead, "source %s has no header row", sourceName(d.Path, d.Source))
	}
	if d.HeaderSearchRows <= 0 {
		return 0, nil
	}

	required := lookupNames(cols)
	if len(required) == 0 {
		return 0, nil
	}

	limit := min(d.HeaderSearchRows, len(records))
	for i := 0; i < limit; i++ {
		if containsHeaders(records[i], required) {
			return i, nil
		}
	}
	return 0, importerr.Abortf(phaseRead, "header not found in first %d rows (expected: %v)", limit, required)
}

func (d *Delimited) keepColumns(header []string, cols []schema.Column) []bool {
	keep := make([]bool, len(header))
	referenced := referencedNames(cols)
	for i, h := range header {
		keep[i] = !d.FilterColumns || len(referenced) == 0 || referenced[strings.ToLower(schema.CleanCell(h))]
	}
	return keep
}

// lookupNames returns the names of expanded columns resolved by direct lookup.
func lookupNames(cols []schema.Column) []string {
	var names []string
	for _, c := range schema.Schema(cols).Expand() {
		if !c.Value.IsSet() && !c.IsMapped() && len(c.Appended) == 0 {
			names = append(names, c.Name)
		}
	}
	return names
}

// referencedNames returns every source name the schema may read: direct
// lookups and mapped targets.
func referencedNames(cols []schema.Column) map[string]bool {
	names := make(map[string]bool)
	for _, c := range schema.Schema(cols).Expand() {
		if c.IsMapped() {
			names[strings.ToLower(c.ColumnMap)] = true
		} else if !c.Value.IsSet() {
			names[strings.ToLower(c.Name)] = true
		}
	}
	return names
}

func containsHeaders(row, required []string) bool {
	have := make(map[string]bool, len(row))
	for _, h := range row {
		have[strings.ToLower(schema.CleanCell(h))] = true
	}
	for _, name := range required {
		if !have[strings.ToLower(name)] {
			return false
		}
	}
	return true
}

func numberedHeader(records [][]string) []string {
	width := 0
	for _, rec := range records {
		width = max(width, len(rec))
	}
	header := make([]string, width)
	for i := range header {
		header[i] = fmt.Sprintf("Column%d", i+1)
	}
	return header
}

func headerName(h string, i int) string {
	if name := schema.CleanCell(h); name != "" {
		return name
	}
	return fmt.Sprintf("Column%d", i+1)
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func sourceName(path string, src io.Reader) string {
	if src != nil || path == "" {
		return "<stream>"
	}
	return path
}
