// Package database opens relational connections for the query reader and the
// database sink, and holds the per-dialect SQL rules they share.
//
// Postgres connections go through a pgx pool exposed as *sql.DB; MySQL and
// SQLite use their database/sql drivers directly.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder, quoting and truncate syntax.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

// ParseDialect accepts dialect and driver names ("postgres", "pgx", "mysql",
// "sqlite", "sqlite3").
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", name)
}

// Options tune the connection pool.
type Options struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DB is an open connection pool and the dialect spoken over it.
type DB struct {
	*sql.DB
	Dialect Dialect

	pool *pgxpool.Pool
}

// Wrap pairs an already open *sql.DB with its dialect.
func Wrap(db *sql.DB, d Dialect) *DB {
	return &DB{DB: db, Dialect: d}
}

// Close closes the database and, for Postgres, the underlying pgx pool.
func (db *DB) Close() error {
	err := db.DB.Close()
	if db.pool != nil {
		db.pool.Close()
	}
	return err
}

// Open connects to dsn with the named driver and verifies the connection.
func Open(ctx context.Context, driver, dsn string, opts Options) (*DB, error) {
	d, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}

	db := &DB{Dialect: d}
	switch d {
	case Postgres:
		db.pool, err = openPool(ctx, dsn, opts)
		if err == nil {
			db.DB = stdlib.OpenDBFromPool(db.pool)
		}
	case MySQL:
		db.DB, err = sql.Open("mysql", dsn)
	case SQLite:
		db.DB, err = sql.Open("sqlite", dsn)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d, err)
	}

	if d != Postgres {
		if opts.MaxConns > 0 {
			db.SetMaxOpenConns(opts.MaxConns)
		}
		if opts.MinConns > 0 {
			db.SetMaxIdleConns(opts.MinConns)
		}
		db.SetConnMaxLifetime(opts.MaxConnLifetime)
		db.SetConnMaxIdleTime(opts.MaxConnIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d, err)
	}
	return db, nil
}

func openPool(ctx context.Context, dsn string, opts Options) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		cfg.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Placeholder returns the bind parameter marker for the 1-based position n.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Quote quotes an identifier, keeping schema qualification ("s.t").
func (d Dialect) Quote(ident string) string {
	q := `"`
	if d == MySQL {
		q = "`"
	}
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		p = strings.Trim(p, "\"`[]")
		parts[i] = q + strings.ReplaceAll(p, q, q+q) + q
	}
	return strings.Join(parts, ".")
}

// TruncateSQL returns the statement that empties table inside a transaction.
// SQLite has no TRUNCATE and MySQL's commits implicitly, so both delete.
func (d Dialect) TruncateSQL(table string) string {
	if d == Postgres {
		return "TRUNCATE TABLE " + d.Quote(table)
	}
	return "DELETE FROM " + d.Quote(table)
}

// SelectAllSQL returns the statement reading every row of table.
func (d Dialect) SelectAllSQL(table string) string {
	return "SELECT * FROM " + d.Quote(table)
}

// InsertSQL builds a single-row insert over columns.
func (d Dialect) InsertSQL(table string, columns []string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.Quote(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.Quote(c))
	}
	b.WriteString(") VALUES (")
	for i := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.Placeholder(i + 1))
	}
	b.WriteString(")")
	return b.String()
}

// RewriteNamed replaces @Name parameters in query with dialect placeholders
// and returns the parameter names in bind order. A name used twice is bound
// twice. Text inside single-quoted literals and "@@" system variables are
// left alone.
func (d Dialect) RewriteNamed(query string) (string, []string) {
	var (
		b      strings.Builder
		names  []string
		quoted bool
	)
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			quoted = !quoted
			b.WriteByte(ch)
		case ch == '@' && !quoted && i+1 < len(query) && query[i+1] == '@':
			b.WriteString("@@")
			i++
		case ch == '@' && !quoted && i+1 < len(query) && isIdentStart(query[i+1]):
			j := i + 1
			for j < len(query) && isIdentPart(query[j]) {
				j++
			}
			names = append(names, query[i+1:j])
			b.WriteString(d.Placeholder(len(names)))
			i = j - 1
		default:
			b.WriteByte(ch)
		}
	}
	return b.String(), names
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// ErrorCode extracts the driver error code: the SQLSTATE for Postgres, the
// error number for MySQL. It returns "" for other errors.
func ErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return strconv.Itoa(int(myErr.Number))
	}
	return ""
}

// ErrorDetail returns the driver's detail text for err, if any.
func ErrorDetail(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		parts := []string{pgErr.Message}
		if pgErr.Detail != "" {
			parts = append(parts, pgErr.Detail)
		}
		if pgErr.ConstraintName != "" {
			parts = append(parts, "constraint "+pgErr.ConstraintName)
		}
		return strings.Join(parts, "; ")
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Message
	}
	return ""
}
