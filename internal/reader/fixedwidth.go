package reader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/gridimport/internal/grid"
	"github.com/JonMunkholm/gridimport/internal/importerr"
	"github.com/JonMunkholm/gridimport/internal/schema"
)

// maxLineSize bounds a single fixed-width record.
const maxLineSize = 1 << 20

// FixedWidth reads records whose fields sit at fixed character positions.
// Fields are sliced by each schema column's Position and Size (0-based,
// counted in characters) and trimmed of surrounding spaces.
type FixedWidth struct {
	// Path is read when Source is nil.
	Path string

	// Source, when set, is read instead of Path. It is not closed.
	Source io.Reader

	// Encoding names the source character set ("windows-1252",
	// "iso-8859-1", "utf-16le", ...). Empty means UTF-8.
	Encoding string

	// SkipLines skips leading lines such as banners or headers.
	SkipLines int

	Logger *slog.Logger
}

// ReadRawData implements Reader. Blank lines are skipped; a line too short
// for a declared field aborts the read.
func (f *FixedWidth) ReadRawData(ctx context.Context, cols []schema.Column) (*grid.Grid, error) {
	var fields []schema.Column
	for _, c := range schema.Schema(cols).Expand() {
		if c.HasGeometry() {
			fields = append(fields, c)
		}
	}
	if len(fields) == 0 {
		return nil, importerr.Abortf(phaseRead, "no column declares a position and size")
	}

	src, closeFn, err := openText(f.Path, f.Source, f.Encoding)
	if err != nil {
		return nil, &importerr.AbortError{Phase: phaseRead, Cause: err}
	}
	defer closeFn()

	raw := grid.New()
	for _, c := range fields {
		raw.AddColumn(grid.RawColumn(c.Name, schema.KindString))
	}

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	values := make([]any, len(fields))
	for line := 1; sc.Scan(); line++ {
		if err := checkContext(ctx, line); err != nil {
			return nil, importerr.Abort(phaseRead, line, "", err)
		}
		if line <= f.SkipLines {
			continue
		}
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		runes := []rune(text)
		for i, c := range fields {
			end := c.Position + c.Size
			if end > len(runes) {
				return nil, &importerr.AbortError{
					Phase:  phaseRead,
					Row:    line,
					Column: c.Name,
					Reason: fmt.Sprintf("field [%d:%d] exceeds line length %d", c.Position, end, len(runes)),
				}
			}
			values[i] = strings.TrimSpace(string(runes[c.Position:end]))
		}
		raw.AppendRaw(values)
	}
	if err := sc.Err(); err != nil {
		return nil, importerr.Abort(phaseRead, 0, "", fmt.Errorf("read %s: %w", sourceName(f.Path, f.Source), err))
	}

	if raw.RowCount() == 0 {
		return nil, importerr.Abortf(phaseRead, "source %s is empty", sourceName(f.Path, f.Source))
	}
	return raw, nil
}

// ProcessHeaders implements Reader. Positional columns are accepted as
// declared; the rest follow the tabular policy.
func (f *FixedWidth) ProcessHeaders(cols []schema.Column, raw *grid.Grid) ([]schema.Column, error) {
	return reconcile(f.Logger, cols, raw, true)
}
