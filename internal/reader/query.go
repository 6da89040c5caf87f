package reader

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/gridimport/internal/database"
	"github.com/JonMunkholm/gridimport/internal/grid"
	"github.com/JonMunkholm/gridimport/internal/importerr"
	"github.com/JonMunkholm/gridimport/internal/schema"
)

// Querier runs a query. *sql.DB, *sql.Conn and *sql.Tx satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Query reads the result set of a SQL query, or every row of a table.
// Column names and kinds come from the result set metadata.
type Query struct {
	DB      Querier
	Dialect database.Dialect

	// Query is run when set; otherwise every row of Table is read.
	Query string
	Table string
	Args  []any

	Logger *slog.Logger
}

func (q *Query) statement() (string, error) {
	switch {
	case q.Query != "":
		return q.Query, nil
	case q.Table != "":
		return q.Dialect.SelectAllSQL(q.Table), nil
	}
	return "", fmt.Errorf("no query or table configured")
}

// ReadRawData implements Reader.
func (q *Query) ReadRawData(ctx context.Context, _ []schema.Column) (*grid.Grid, error) {
	stmt, err := q.statement()
	if err != nil {
		return nil, &importerr.AbortError{Phase: phaseRead, Cause: err}
	}

	rows, err := q.DB.QueryContext(ctx, stmt, q.Args...)
	if err != nil {
		return nil, &importerr.AbortError{Phase: phaseRead, Reason: "query failed", Cause: err}
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, &importerr.AbortError{Phase: phaseRead, Cause: err}
	}

	raw := grid.New()
	for _, ct := range types {
		raw.AddColumn(grid.RawColumn(ct.Name(), columnKind(ct)))
	}

	values := make([]any, len(types))
	ptrs := make([]any, len(types))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for n := 1; rows.Next(); n++ {
		if err := checkContext(ctx, n); err != nil {
			return nil, importerr.Abort(phaseRead, n, "", err)
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, importerr.Abort(phaseRead, n, "", fmt.Errorf("scan: %w", err))
		}
		row := raw.AppendRaw(values)
		for i, c := range row.Cells {
			if b, ok := c.Value.([]byte); ok {
				row.Cells[i].Value = string(b)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &importerr.AbortError{Phase: phaseRead, Cause: err}
	}
	return raw, nil
}

// ProcessHeaders implements Reader with the tabular policy.
func (q *Query) ProcessHeaders(cols []schema.Column, raw *grid.Grid) ([]schema.Column, error) {
	return ReconcileHeaders(q.Logger, cols, raw)
}

// columnKind maps the driver's type name to a kind, falling back to Any.
func columnKind(ct *sql.ColumnType) schema.Kind {
	t, err := schema.ParseType(ct.DatabaseTypeName())
	if err != nil {
		return schema.KindAny
	}
	return t.Kind
}
