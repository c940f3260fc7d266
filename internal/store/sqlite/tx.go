package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/sdemirror/internal/store"
)

// Tx is a refresh transaction.
type Tx struct {
	tx *sql.Tx
}

var _ store.Tx = (*Tx)(nil)

func (t *Tx) DeferConstraints(ctx context.Context) error {
	_, err := t.tx.ExecContext(ctx, "PRAGMA defer_foreign_keys = ON")
	return err
}

// RestoreConstraints lists every dangling reference, then switches foreign
// keys back to immediate.
func (t *Tx) RestoreConstraints(ctx context.Context) error {
	rows, err := t.tx.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}

	var dangling []string
	for rows.Next() {
		var (
			table, parent string
			rowid, fkid   sql.NullInt64
		)
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			rows.Close()
			return err
		}
		dangling = append(dangling, fmt.Sprintf("%s rowid %d -> %s", table, rowid.Int64, parent))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if len(dangling) > 0 {
		const shown = 5
		more := ""
		if len(dangling) > shown {
			more = fmt.Sprintf(" (and %d more)", len(dangling)-shown)
			dangling = dangling[:shown]
		}
		return fmt.Errorf("%w: %s%s", store.ErrDanglingReference, strings.Join(dangling, "; "), more)
	}

	_, err = t.tx.ExecContext(ctx, "PRAGMA defer_foreign_keys = OFF")
	return err
}

// Replace deletes every row of table and inserts rows through one prepared
// statement.
func (t *Tx) Replace(ctx context.Context, table store.Table, rows [][]any) (int64, error) {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM "+table.Name); err != nil {
		return 0, fmt.Errorf("clear %s: %w", table.Name, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	cols := table.ColumnNames()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := t.tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table.Name, strings.Join(cols, ", "), placeholders,
	))
	if err != nil {
		return 0, fmt.Errorf("prepare insert for %s: %w", table.Name, err)
	}
	defer stmt.Close()

	var n int64
	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return n, fmt.Errorf("insert %s record %d: %w", table.Name, i+1, err)
		}
		n++
	}
	return n, nil
}

func (t *Tx) SetVersion(ctx context.Context, v store.Version) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sde_hash (id, value, date) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET value = excluded.value, date = excluded.date`,
		v.Token, formatTime(v.Date),
	)
	if err != nil {
		return fmt.Errorf("set version: %w", err)
	}
	return nil
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit()
}

func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
