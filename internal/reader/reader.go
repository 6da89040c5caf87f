// Package reader pulls raw rows from physical sources into loosely typed
// grids and reconciles the discovered columns against a target schema.
//
// Four readers are provided:
//
//   - Delimited: CSV and other delimiter-separated text
//   - FixedWidth: position/size driven text records
//   - Query: a relational query or table
//   - Spreadsheet: one sheet of an .xlsx workbook
//
// A raw grid mirrors the source: its columns are named as found and its cells
// hold uncoerced values. Coercion into schema types is the importer's job.
package reader

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/gridimport/internal/grid"
	"github.com/JonMunkholm/gridimport/internal/schema"
)

// Reader acquires raw data and reconciles it against a schema.
type Reader interface {
	// ReadRawData reads the whole source into a raw grid. cols is the target
	// schema; readers may use it to locate headers or filter columns.
	ReadRawData(ctx context.Context, cols []schema.Column) (*grid.Grid, error)

	// ProcessHeaders checks cols against the raw grid's columns and returns
	// the reconciled schema. It fails when a required column cannot be
	// resolved.
	ProcessHeaders(cols []schema.Column, raw *grid.Grid) ([]schema.Column, error)
}

// phaseRead names the reader stage in abort errors.
const phaseRead = "reading raw data"

// openText opens a text source: src when set (left open), else the file at path.
// Gzip-compressed input is unwrapped, text in encoding (an HTML/WHATWG label
// such as "windows-1252"; empty means UTF-8) is converted to UTF-8, and the
// result has its BOM stripped and invalid UTF-8 sanitized.
func openText(path string, src io.Reader, encoding string) (io.Reader, func() error, error) {
	closeFile := func() error { return nil }
	if src == nil {
		if path == "" {
			return nil, nil, fmt.Errorf("no source: set Path or Source")
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open source: %w", err)
		}
		src, closeFile = f, f.Close
	}

	r, closeDecoded, err := decodeSource(src, encoding)
	if err != nil {
		closeFile()
		return nil, nil, err
	}
	return cleanSource(r), func() error {
		closeDecoded()
		return closeFile()
	}, nil
}

// ContextCheckInterval is how many rows are read between context checks.
var ContextCheckInterval = 100

func checkContext(ctx context.Context, row int) error {
	if row%ContextCheckInterval != 0 {
		return nil
	}
	return ctx.Err()
}
