// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/ollamatrace/pkg/storage"
	"github.com/papercomputeco/ollamatrace/pkg/tracked"
)

const schema = `
CREATE TABLE IF NOT EXISTS tracked_calls (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	project     TEXT NOT NULL DEFAULT '',
	trace_id    TEXT NOT NULL DEFAULT '',
	span_id     TEXT NOT NULL DEFAULT '',
	input       TEXT NOT NULL DEFAULT '',
	output      TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	ended_at    INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL,
	metadata    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_tracked_calls_started_at ON tracked_calls (started_at);
`

const selectColumns = `id, name, project, trace_id, span_id, input, output, error, started_at, ended_at, duration_ns, metadata`

// Driver implements storage.Driver using SQLite.
type Driver struct {
	db *sql.DB

	// SQLite allows a single writer; serialize Put to avoid SQLITE_BUSY.
	writeMu sync.Mutex
}

// NewDriver creates a new SQLite-backed driver.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite path cannot be empty")
	}

	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating sqlite directory %q: %w", dir, err)
			}
		}
	}

	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// Put stores a call, replacing any existing call with the same ID.
func (d *Driver) Put(ctx context.Context, call *tracked.Call) error {
	row, err := storage.NewRow(call)
	if err != nil {
		return err
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	_, err = d.db.ExecContext(ctx, `
INSERT OR REPLACE INTO tracked_calls (`+selectColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Name, row.Project, row.TraceID, row.SpanID,
		row.Input, row.Output, row.Error,
		row.StartedAt, row.EndedAt, row.DurationNs, row.Metadata,
	)
	if err != nil {
		return fmt.Errorf("inserting call %s: %w", row.ID, err)
	}

	return nil
}

// Get retrieves a call by its ID.
func (d *Driver) Get(ctx context.Context, id string) (*tracked.Call, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM tracked_calls WHERE id = ?`, id)

	call, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("querying call %s: %w", id, err)
	}

	return call, nil
}

// List returns all calls, oldest first.
func (d *Driver) List(ctx context.Context) ([]*tracked.Call, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM tracked_calls ORDER BY started_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing calls: %w", err)
	}
	defer rows.Close()

	var calls []*tracked.Call
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning call: %w", err)
		}
		calls = append(calls, call)
	}

	return calls, rows.Err()
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCall(s scanner) (*tracked.Call, error) {
	var row storage.Row
	if err := s.Scan(
		&row.ID, &row.Name, &row.Project, &row.TraceID, &row.SpanID,
		&row.Input, &row.Output, &row.Error,
		&row.StartedAt, &row.EndedAt, &row.DurationNs, &row.Metadata,
	); err != nil {
		return nil, err
	}

	return row.Call()
}

var _ storage.Driver = (*Driver)(nil)
