package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/sdemirror/internal/store"
)

// foreignKeyViolation is the SQLSTATE of a failed foreign key check.
const foreignKeyViolation = "23503"

// Tx is a refresh transaction.
type Tx struct {
	tx pgx.Tx
}

var _ store.Tx = (*Tx)(nil)

func (t *Tx) DeferConstraints(ctx context.Context) error {
	_, err := t.tx.Exec(ctx, "SET CONSTRAINTS ALL DEFERRED")
	return err
}

// RestoreConstraints switches constraints back to immediate, which checks
// every reference made while they were deferred.
func (t *Tx) RestoreConstraints(ctx context.Context) error {
	_, err := t.tx.Exec(ctx, "SET CONSTRAINTS ALL IMMEDIATE")
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("%w: %s: %s", store.ErrDanglingReference, pgErr.TableName, pgErr.Detail)
	}
	return err
}

// Replace deletes every row of table then COPYs rows in. DELETE is used
// rather than TRUNCATE, which refuses tables referenced by foreign keys.
func (t *Tx) Replace(ctx context.Context, table store.Table, rows [][]any) (int64, error) {
	if _, err := t.tx.Exec(ctx, "DELETE FROM "+quoteIdentifier(table.Name)); err != nil {
		return 0, fmt.Errorf("clear %s: %w", table.Name, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{table.Name},
		table.ColumnNames(),
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table.Name, err)
	}
	return n, nil
}

func (t *Tx) SetVersion(ctx context.Context, v store.Version) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO sde_hash (id, value, date) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value, date = EXCLUDED.date`,
		v.Token, v.Date,
	)
	if err != nil {
		return fmt.Errorf("set version: %w", err)
	}
	return nil
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback is a no-op once the transaction is closed.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
