package formatter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/gridimport/internal/database"
	"github.com/JonMunkholm/gridimport/internal/grid"
	"github.com/JonMunkholm/gridimport/internal/importerr"
	"github.com/JonMunkholm/gridimport/internal/logging"
	"github.com/JonMunkholm/gridimport/internal/schema"
)

// ProgressInterval is how many rows are inserted between progress callbacks.
var ProgressInterval = 100

const (
	phasePrepare = "preparing insert"
	phaseEvent   = "running event"
	phaseInsert  = "inserting rows"
	phaseCommit  = "committing"
)

// Conner hands out a dedicated connection. *sql.DB satisfies it.
type Conner interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// Database inserts every grid row into a table inside one transaction:
// optional truncate, PreEvent, one insert per row, PostEvent, commit.
// Any failure rolls the whole import back.
//
// Without Query, rows go to Table through an insert over the declared
// (non-appended) columns named by their bind names. With Query, @Name
// parameters are bound from the columns with that bind name.
type Database struct {
	DB      Conner
	Dialect database.Dialect

	Table string
	Query string

	// AlwaysTruncate empties Table before inserting.
	AlwaysTruncate bool

	// PreEvent and PostEvent are SQL run in the transaction before the
	// first and after the last insert.
	PreEvent  string
	PostEvent string

	// OnProgress, when set, is called every ProgressInterval rows and once
	// at the end.
	OnProgress func(inserted, total int)

	Logger *slog.Logger
}

// Result summarizes a committed database import.
type Result struct {
	Inserted  int64         `json:"inserted"`
	Truncated bool          `json:"truncated"`
	Duration  time.Duration `json:"duration"`
}

// Import implements importer.Formatter.
func (d *Database) Import(ctx context.Context, g *grid.Grid) (Result, error) {
	log := logging.OrDefault(d.Logger).With("table", d.Table)
	start := time.Now()

	stmtSQL, params, err := d.statement(g)
	if err != nil {
		return Result{}, &importerr.AbortError{Phase: phasePrepare, Cause: err}
	}

	conn, err := d.DB.Conn(ctx)
	if err != nil {
		return Result{}, &importerr.AbortError{Phase: phasePrepare, Reason: "acquire connection", Cause: err}
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, &importerr.AbortError{Phase: phasePrepare, Reason: "begin transaction", Cause: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var res Result
	if d.AlwaysTruncate {
		if _, err := tx.ExecContext(ctx, d.Dialect.TruncateSQL(d.Table)); err != nil {
			return Result{}, &importerr.AbortError{Phase: phasePrepare, Reason: "truncate " + d.Table, Cause: d.enrich(err)}
		}
		res.Truncated = true
		log.Info("table truncated")
	}

	if err := d.runEvent(ctx, tx, "pre-event", d.PreEvent); err != nil {
		return Result{}, err
	}

	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return Result{}, &importerr.AbortError{Phase: phasePrepare, Reason: "prepare insert", Cause: d.enrich(err)}
	}
	defer stmt.Close()

	total := g.RowCount()
	args := make([]any, len(params))
	for i, row := range g.Rows() {
		if i%ProgressInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, importerr.Abort(phaseInsert, i+1, "", err)
			}
			if d.OnProgress != nil && i > 0 {
				d.OnProgress(i, total)
			}
		}

		for j, col := range params {
			args[j] = bindValue(row.Cells[col].Value)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			rowErr := &importerr.RowError{
				Row:       i + 1,
				Statement: stmtSQL,
				Params:    append([]any(nil), args...),
				Code:      database.ErrorCode(err),
				Cause:     d.enrich(err),
			}
			logging.Critical(log, "row insert failed", "row", i+1, "code", rowErr.Code, "error", err)
			return Result{}, &importerr.AbortError{Phase: phaseInsert, Row: i + 1, Cause: rowErr}
		}
		res.Inserted++
	}

	if err := d.runEvent(ctx, tx, "post-event", d.PostEvent); err != nil {
		return Result{}, err
	}

	if err := tx.Commit(); err != nil {
		return Result{}, &importerr.AbortError{Phase: phaseCommit, Cause: d.enrich(err)}
	}
	if d.OnProgress != nil {
		d.OnProgress(int(res.Inserted), total)
	}

	res.Duration = time.Since(start)
	log.Info("rows committed", "inserted", res.Inserted, "truncated", res.Truncated, "duration", res.Duration)
	return res, nil
}

// statement returns the insert SQL and, per placeholder, the grid column
// index bound to it.
func (d *Database) statement(g *grid.Grid) (string, []int, error) {
	if d.AlwaysTruncate && d.Table == "" {
		return "", nil, fmt.Errorf("truncate requires a table")
	}

	if d.Query != "" {
		q, names := d.Dialect.RewriteNamed(d.Query)
		params := make([]int, len(names))
		for i, name := range names {
			col := bindColumn(g, name)
			if col < 0 {
				return "", nil, fmt.Errorf("parameter @%s has no matching column", name)
			}
			params[i] = col
		}
		return q, params, nil
	}

	if d.Table == "" {
		return "", nil, fmt.Errorf("no table or query configured")
	}
	var (
		names  []string
		params []int
	)
	for i, c := range g.Columns() {
		if c.Appended {
			continue
		}
		names = append(names, c.ParameterName())
		params = append(params, i)
	}
	if len(names) == 0 {
		return "", nil, fmt.Errorf("grid has no columns to insert")
	}
	return d.Dialect.InsertSQL(d.Table, names), params, nil
}

func (d *Database) runEvent(ctx context.Context, tx *sql.Tx, name, query string) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return &importerr.AbortError{Phase: phaseEvent, Reason: name + " failed", Cause: d.enrich(err)}
	}
	logging.OrDefault(d.Logger).Info("event executed", "event", name)
	return nil
}

// enrich appends the driver's detail text to err when it has any.
func (d *Database) enrich(err error) error {
	if detail := database.ErrorDetail(err); detail != "" && !strings.Contains(err.Error(), detail) {
		return fmt.Errorf("%w (%s)", err, detail)
	}
	return err
}

// bindColumn finds the column bound to a query parameter by bind name.
func bindColumn(g *grid.Grid, name string) int {
	for i, c := range g.Columns() {
		if strings.EqualFold(c.ParameterName(), name) {
			return i
		}
	}
	return -1
}

// bindValue converts cell values drivers do not accept natively.
func bindValue(v any) any {
	if d, ok := v.(schema.OADate); ok {
		return d.Time()
	}
	return v
}
