// Package importer runs the schema-driven import: it reads a raw grid
// through a reader, reconciles its headers against the schema, and fills a
// schema-shaped grid in two passes.
//
// Pass 1 resolves every column from literals and direct source lookups.
// Pass 2 revisits the columns that depend on other columns of the same row
// (ColumnMap, directly or through an appended column) and overwrites them
// now that the row is materialized.
//
// Any failure aborts the whole import and leaves the target grid without
// rows; an empty target also gains no columns.
package importer

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/gridimport/internal/grid"
	"github.com/JonMunkholm/gridimport/internal/importerr"
	"github.com/JonMunkholm/gridimport/internal/logging"
	"github.com/JonMunkholm/gridimport/internal/reader"
	"github.com/JonMunkholm/gridimport/internal/schema"
)

// ContextCheckInterval is how often (in rows) Populate checks for cancellation.
var ContextCheckInterval = 100

// Importer binds a reader to a schema. An Importer runs once: after Done or
// Failed it refuses to run again.
type Importer struct {
	reader reader.Reader
	schema schema.Schema
	log    *slog.Logger
	phase  atomic.Int32
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(imp *Importer) {
		imp.log = l
	}
}

// New creates an importer for cols read through r.
func New(r reader.Reader, cols schema.Schema, opts ...Option) *Importer {
	imp := &Importer{reader: r, schema: cols}
	for _, opt := range opts {
		opt(imp)
	}
	imp.log = logging.OrDefault(imp.log)
	return imp
}

// Phase returns the current phase.
func (imp *Importer) Phase() Phase {
	return Phase(imp.phase.Load())
}

// Schema returns the declared schema.
func (imp *Importer) Schema() schema.Schema { return imp.schema }

func (imp *Importer) enter(p Phase) {
	imp.phase.Store(int32(p))
	logging.Trace(imp.log, "import phase", "phase", p.String())
}

// fail moves to Failed and returns err as an AbortError tagged with the
// phase it happened in.
func (imp *Importer) fail(row int, column string, err error) error {
	phase := imp.Phase()
	imp.phase.Store(int32(Failed))

	err = importerr.Abort(phase.String(), row, column, err)
	logging.Critical(imp.log, "import aborted", "phase", phase.String(), "error", err)
	return err
}

// Populate fills target from the reader. A target without columns adopts
// the reconciled schema on success; otherwise its columns are filled as
// declared.
func (imp *Importer) Populate(ctx context.Context, target *grid.Grid) error {
	if p := imp.Phase(); p.Terminal() {
		return importerr.Abortf(p.String(), "importer already ran")
	}
	if !imp.phase.CompareAndSwap(int32(Idle), int32(ReadingRaw)) {
		return importerr.Abortf(imp.Phase().String(), "import already in progress")
	}
	start := time.Now()

	raw, err := imp.reader.ReadRawData(ctx, imp.schema)
	if err != nil {
		return imp.fail(0, "", err)
	}
	if raw.RowCount() == 0 {
		return imp.fail(0, "", errors.New("source has no data rows"))
	}
	imp.log.Info("raw data read", "rows", raw.RowCount(), "columns", raw.ColumnCount())

	imp.enter(ReconcilingHeaders)
	cols, err := imp.reader.ProcessHeaders(imp.schema, raw)
	if err != nil {
		return imp.fail(0, "", err)
	}
	// An empty target adopts the reconciled columns only once the fill
	// succeeds.
	work := target
	if work.ColumnCount() == 0 {
		work = grid.FromSchema(cols)
	}
	target.ResetRows()

	exprs := make([]expr, work.ColumnCount())
	deferred := make([]bool, work.ColumnCount())
	for i, c := range work.Columns() {
		exprs[i] = compile(c.Column, raw)
		deferred[i] = c.HasMappedColumns()
	}

	imp.enter(FillingPass1)
	rows := make([]*grid.Row, 0, raw.RowCount())
	for i, rawRow := range raw.Rows() {
		if err := checkContext(ctx, i); err != nil {
			return imp.fail(i+1, "", err)
		}
		row := work.NewRow()
		env := &rowEnv{pass: pass1, raw: rawRow, rawG: raw, target: row, tgtG: work}
		for j, col := range work.Columns() {
			if deferred[j] {
				continue
			}
			cell, err := col.Cell(exprs[j].eval(env))
			if err != nil {
				return imp.fail(i+1, col.Name, err)
			}
			row.Cells[j] = cell
		}
		logging.Trace(imp.log, "row filled", "pass", 1, "row", i+1)
		rows = append(rows, row)
	}

	imp.enter(FillingPass2)
	if hasAny(deferred) {
		for i, row := range rows {
			if err := checkContext(ctx, i); err != nil {
				return imp.fail(i+1, "", err)
			}
			env := &rowEnv{pass: pass2, raw: raw.Row(i), rawG: raw, target: row, tgtG: work}
			for j, col := range work.Columns() {
				if !deferred[j] {
					continue
				}
				cell, err := col.Cell(exprs[j].eval(env))
				if err != nil {
					return imp.fail(i+1, col.Name, err)
				}
				row.Cells[j] = cell
			}
			logging.Trace(imp.log, "row filled", "pass", 2, "row", i+1)
		}
	}

	if work != target {
		for _, c := range work.Columns() {
			target.AddColumn(c)
		}
	}
	if err := target.SetRows(rows); err != nil {
		return imp.fail(0, "", err)
	}
	imp.enter(Done)
	imp.log.Info("import populated",
		"rows", len(rows),
		"columns", target.ColumnCount(),
		"duration", time.Since(start),
	)
	return nil
}

func checkContext(ctx context.Context, row int) error {
	if row%ContextCheckInterval != 0 {
		return nil
	}
	return ctx.Err()
}

func hasAny(flags []bool) bool {
	for _, f := range flags {
		if f {
			return true
		}
	}
	return false
}

// Formatter turns a populated grid into a sink-specific result.
type Formatter[R any] interface {
	Import(ctx context.Context, g *grid.Grid) (R, error)
}

// Import populates a fresh grid through imp and hands it to f.
func Import[R any](ctx context.Context, imp *Importer, f Formatter[R]) (R, error) {
	g := grid.New()
	if err := imp.Populate(ctx, g); err != nil {
		var zero R
		return zero, err
	}
	return f.Import(ctx, g)
}
