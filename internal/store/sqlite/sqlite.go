// Package sqlite implements store.Store on an embedded SQLite database.
//
// Foreign keys are enabled on every connection. A refresh transaction
// relaxes them with PRAGMA defer_foreign_keys, which SQLite resets at the
// end of every transaction, and verifies them again with
// PRAGMA foreign_key_check before commit.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/sdemirror/internal/store"
)

// Store is a SQLite-backed mirror.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database file at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for tests and diagnostics.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Migrate creates any missing table.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Version(ctx context.Context) (store.Version, error) {
	var token, date string
	err := s.db.QueryRowContext(ctx, `SELECT value, date FROM sde_hash WHERE id = 1`).Scan(&token, &date)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Version{}, nil
	}
	if err != nil {
		return store.Version{}, fmt.Errorf("read version: %w", err)
	}
	return store.Version{Token: token, Date: parseTime(date)}, nil
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (s *Store) RecordRun(ctx context.Context, run store.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sde_refresh_log
		    (run_id, started_at, finished_at, token, forced, status, rows_loaded, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		run.Token,
		run.Forced,
		string(run.Status),
		run.RowsLoaded,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Store) Runs(ctx context.Context, limit int) ([]store.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, finished_at, token, forced, status, rows_loaded, error
		FROM sde_refresh_log
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		var (
			r                 store.Run
			started, finished string
			status            string
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Token, &r.Forced, &status, &r.RowsLoaded, &r.Error); err != nil {
			return nil, err
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		r.Status = store.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) Counts(ctx context.Context) ([]store.TableCount, error) {
	counts := make([]store.TableCount, 0, len(store.Catalog))
	for _, t := range store.Catalog {
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.Name).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", t.Name, err)
		}
		counts = append(counts, store.TableCount{Table: t.Name, Label: t.Label, Rows: n})
	}
	return counts, nil
}

func (s *Store) Rows(ctx context.Context, t store.Table, limit, offset int) ([][]any, error) {
	if _, ok := store.Lookup(t.Name); !ok {
		return nil, store.ErrUnknownTable
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT ? OFFSET ?",
		strings.Join(t.ColumnNames(), ", "), t.Name, t.PrimaryKey())
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.Name, err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		cells := make([]any, len(t.Columns))
		ptrs := make([]any, len(cells))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

func (s *Store) Each(ctx context.Context, t store.Table, fn func(row []any) error) error {
	if _, ok := store.Lookup(t.Name); !ok {
		return store.ErrUnknownTable
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(t.ColumnNames(), ", "), t.Name, t.PrimaryKey())
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("scan %s: %w", t.Name, err)
	}
	defer rows.Close()

	cells := make([]any, len(t.Columns))
	ptrs := make([]any, len(cells))
	for i := range cells {
		ptrs[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		if err := fn(cells); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
