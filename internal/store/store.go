// internal/store/store.go
// Package store holds the hand-written SQL query layer. Queries binds to
// either a *sql.DB or a *sql.Tx so callers can run any query inside a
// transaction; conditional updates report whether they applied via their
// boolean return instead of an error (compare-and-swap at the storage
// layer).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a row the caller named does not exist.
var ErrNotFound = errors.New("not found")

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// timeLayout is the SQLite timestamp format used for all stored times.
const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		// go-sqlite3 converts TIMESTAMP-declared columns to time.Time on
		// read, and database/sql re-encodes that as RFC 3339 when scanned
		// into a string.
		rt, rfcErr := time.Parse(time.RFC3339Nano, raw)
		if rfcErr != nil {
			return time.Time{}, fmt.Errorf("parse stored time %q: %w", raw, err)
		}
		t = rt
	}
	return t.UTC(), nil
}

func parseNullTime(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid {
		return nil, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
