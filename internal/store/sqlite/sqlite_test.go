package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sdemirror/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "sde.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestMigrateIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))

	counts, err := s.Counts(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, len(store.Catalog))
	for i, c := range counts {
		assert.Equal(t, store.Catalog[i].Name, c.Table)
		assert.Zero(t, c.Rows)
	}
}

func TestVersionDefaultsEmpty(t *testing.T) {
	s := openTestStore(t)

	v, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", v.Token)
	assert.True(t, v.Date.IsZero())
}

func TestReplaceAndSetVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	n, err := tx.Replace(ctx, store.Categories, [][]any{{int64(1), "Ship"}, {int64(2), "Module"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, tx.SetVersion(ctx, store.Version{Token: "abc", Date: at}))
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx), "rollback after commit is a no-op")

	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", v.Token)
	assert.True(t, at.Equal(v.Date))

	// A second replace leaves no rows behind.
	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Replace(ctx, store.Categories, [][]any{{int64(3), "Drone"}})
	require.NoError(t, err)
	require.NoError(t, tx.SetVersion(ctx, store.Version{Token: "def", Date: at.Add(time.Hour)}))
	require.NoError(t, tx.Commit(ctx))

	rows, err := s.Rows(ctx, store.Categories, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(3), "Drone"}}, rows)

	v, err = s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "def", v.Token)
}

func TestRollbackKeepsPreviousRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Replace(ctx, store.Categories, [][]any{{int64(1), "Ship"}})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Replace(ctx, store.Categories, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	rows, err := s.Rows(ctx, store.Categories, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), "Ship"}}, rows)
}

func TestForeignKeysImmediateByDefault(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	_, err = tx.Replace(ctx, store.Groups, [][]any{{int64(10), "Frigate", int64(99)}})
	require.Error(t, err)
}

func TestDeferredConstraints(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	require.NoError(t, tx.DeferConstraints(ctx))

	// Children first: allowed while deferred.
	_, err = tx.Replace(ctx, store.Groups, [][]any{{int64(10), "Frigate", int64(1)}})
	require.NoError(t, err)
	_, err = tx.Replace(ctx, store.Categories, [][]any{{int64(1), "Ship"}})
	require.NoError(t, err)

	require.NoError(t, tx.RestoreConstraints(ctx))
	require.NoError(t, tx.Commit(ctx))

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[0].Rows)
	assert.Equal(t, int64(1), counts[1].Rows)
}

func TestRestoreConstraintsReportsDangling(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	require.NoError(t, tx.DeferConstraints(ctx))
	_, err = tx.Replace(ctx, store.Groups, [][]any{{int64(10), "Frigate", int64(42)}})
	require.NoError(t, err)

	err = tx.RestoreConstraints(ctx)
	require.ErrorIs(t, err, store.ErrDanglingReference)
	assert.Contains(t, err.Error(), "sde_group")
}

func TestRowsPagination(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Replace(ctx, store.MarketGroups, [][]any{
		{int64(3), "Ships", nil},
		{int64(1), "Root", nil},
		{int64(2), "Child", int64(1)},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	page, err := s.Rows(ctx, store.MarketGroups, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), "Root", nil}, {int64(2), "Child", int64(1)}}, page)

	page, err = s.Rows(ctx, store.MarketGroups, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(3), "Ships", nil}}, page)

	_, err = s.Rows(ctx, store.Table{Name: "sde_hash"}, 10, 0)
	require.ErrorIs(t, err, store.ErrUnknownTable)
}

func TestEachReadsOneSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	replace := func(rows [][]any) {
		t.Helper()
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)
		_, err = tx.Replace(ctx, store.Categories, rows)
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))
	}
	replace([][]any{{int64(1), "Ship"}, {int64(2), "Module"}, {int64(3), "Charge"}})

	var seen [][]any
	err := s.Each(ctx, store.Categories, func(row []any) error {
		if len(seen) == 0 {
			// A refresh commits while the scan is under way.
			replace([][]any{{int64(10), "Drone"}})
		}
		seen = append(seen, append([]any(nil), row...))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), "Ship"}, {int64(2), "Module"}, {int64(3), "Charge"}}, seen)

	seen = nil
	require.NoError(t, s.Each(ctx, store.Categories, func(row []any) error {
		seen = append(seen, append([]any(nil), row...))
		return nil
	}))
	assert.Equal(t, [][]any{{int64(10), "Drone"}}, seen)

	stop := errors.New("stop")
	calls := 0
	err = s.Each(ctx, store.Categories, func(row []any) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)

	err = s.Each(ctx, store.Table{Name: "sde_hash"}, func([]any) error { return nil })
	require.ErrorIs(t, err, store.ErrUnknownTable)
}

func TestRecordRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordRun(ctx, store.Run{
		ID: "run-1", StartedAt: base, FinishedAt: base.Add(time.Second),
		Token: "abc", Status: store.RunUpdated, RowsLoaded: 10,
	}))
	require.NoError(t, s.RecordRun(ctx, store.Run{
		ID: "run-2", StartedAt: base.Add(time.Minute), FinishedAt: base.Add(time.Minute + 500*time.Millisecond),
		Token: "def", Forced: true, Status: store.RunFailed, Error: "fetch failed",
	}))

	runs, err := s.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "run-2", runs[0].ID)
	assert.True(t, runs[0].Forced)
	assert.Equal(t, store.RunFailed, runs[0].Status)
	assert.Equal(t, "fetch failed", runs[0].Error)
	assert.True(t, base.Add(time.Minute+500*time.Millisecond).Equal(runs[0].FinishedAt))

	assert.Equal(t, "run-1", runs[1].ID)
	assert.False(t, runs[1].Forced)
	assert.Equal(t, int64(10), runs[1].RowsLoaded)

	runs, err = s.Runs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestCreateTableSQL(t *testing.T) {
	ddl := createTableSQL(store.Types)

	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS sde_type")
	assert.Contains(t, ddl, "id INTEGER PRIMARY KEY NOT NULL")
	assert.Contains(t, ddl, "volume REAL NOT NULL")
	assert.Contains(t, ddl, "FOREIGN KEY (group_id) REFERENCES sde_group(id)")
	assert.Contains(t, ddl, "FOREIGN KEY (market_group_id) REFERENCES sde_marketgroup(id)")

	ddl = createTableSQL(store.MarketGroups)
	assert.Contains(t, ddl, "parent_id INTEGER,")
}
