// Package postgres implements store.Store on PostgreSQL through pgx.
//
// Mirror foreign keys are declared DEFERRABLE so a refresh transaction can
// postpone them with SET CONSTRAINTS ALL DEFERRED and verify them all at
// once with SET CONSTRAINTS ALL IMMEDIATE. Rows are bulk loaded with COPY.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/sdemirror/internal/store"
)

// Options configures the connection pool.
type Options struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store is a PostgreSQL-backed mirror.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Open connects and pings the database.
func Open(ctx context.Context, opts Options) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool exposes the connection pool.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Migrate creates any missing table in one transaction.
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migrate: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range schemaStatements() {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) Version(ctx context.Context) (store.Version, error) {
	var v store.Version
	err := s.pool.QueryRow(ctx, `SELECT value, date FROM sde_hash WHERE id = 1`).Scan(&v.Token, &v.Date)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Version{}, nil
	}
	if err != nil {
		return store.Version{}, fmt.Errorf("read version: %w", err)
	}
	v.Date = v.Date.UTC()
	return v, nil
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (s *Store) RecordRun(ctx context.Context, run store.Run) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sde_refresh_log
		    (run_id, started_at, finished_at, token, forced, status, rows_loaded, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.StartedAt, run.FinishedAt, run.Token, run.Forced,
		string(run.Status), run.RowsLoaded, run.Error,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Store) Runs(ctx context.Context, limit int) ([]store.Run, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, started_at, finished_at, token, forced, status, rows_loaded, error
		FROM sde_refresh_log
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Run, error) {
		var (
			r      store.Run
			status string
		)
		err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Token, &r.Forced, &status, &r.RowsLoaded, &r.Error)
		r.Status = store.RunStatus(status)
		r.StartedAt = r.StartedAt.UTC()
		r.FinishedAt = r.FinishedAt.UTC()
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *Store) Counts(ctx context.Context) ([]store.TableCount, error) {
	counts := make([]store.TableCount, 0, len(store.Catalog))
	for _, t := range store.Catalog {
		var n int64
		if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+quoteIdentifier(t.Name)).Scan(&n); err != nil {
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

	cols := make([]string, len(t.Columns))
	for i, c := range t.ColumnNames() {
		cols[i] = quoteIdentifier(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT $1 OFFSET $2",
		strings.Join(cols, ", "), quoteIdentifier(t.Name), quoteIdentifier(t.PrimaryKey()))

	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.Name, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([]any, error) {
		return row.Values()
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.Name, err)
	}
	return out, nil
}

func (s *Store) Each(ctx context.Context, t store.Table, fn func(row []any) error) error {
	if _, ok := store.Lookup(t.Name); !ok {
		return store.ErrUnknownTable
	}

	cols := make([]string, len(t.Columns))
	for i, c := range t.ColumnNames() {
		cols[i] = quoteIdentifier(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(cols, ", "), quoteIdentifier(t.Name), quoteIdentifier(t.PrimaryKey()))

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("scan %s: %w", t.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return fmt.Errorf("scan %s: %w", t.Name, err)
		}
		if err := fn(values); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", t.Name, err)
	}
	return nil
}
