// Package store defines the persistence contract of the SDE mirror: the
// table catalog, the Store and Tx interfaces, and the version and run log
// records. Concrete engines live in the postgres and sqlite subpackages.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownTable is returned when a table name is not in the catalog.
var ErrUnknownTable = errors.New("unknown table")

// Version is the last applied upstream dataset token.
// A zero Version (empty Token) means no refresh has ever succeeded.
type Version struct {
	Token string
	Date  time.Time
}

// RunStatus is the outcome of a refresh attempt.
type RunStatus string

const (
	RunCurrent RunStatus = "current"
	RunUpdated RunStatus = "updated"
	RunFailed  RunStatus = "failed"
)

// Run is one entry of the refresh log.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Token      string
	Forced     bool
	Status     RunStatus
	RowsLoaded int64
	Error      string
}

// TableCount is the number of rows held by one mirror table.
type TableCount struct {
	Table string
	Label string
	Rows  int64
}

// Store is a relational engine holding the mirror.
type Store interface {
	// Migrate creates any missing tables. It is idempotent.
	Migrate(ctx context.Context) error

	// Version returns the stored token, or a zero Version on first run.
	Version(ctx context.Context) (Version, error)

	// Begin opens the unit of work a refresh runs in.
	Begin(ctx context.Context) (Tx, error)

	// RecordRun appends an entry to the refresh log outside any refresh
	// transaction, so failed runs are recorded too.
	RecordRun(ctx context.Context, run Run) error

	// Runs returns the most recent refresh log entries, newest first.
	Runs(ctx context.Context, limit int) ([]Run, error)

	// Counts returns the row count of every catalog table, in catalog order.
	Counts(ctx context.Context) ([]TableCount, error)

	// Rows returns a page of a table ordered by primary key.
	Rows(ctx context.Context, table Table, limit, offset int) ([][]any, error)

	// Each calls fn for every row of a table in primary key order. All rows
	// come from a single read, so a refresh committing meanwhile is either
	// wholly visible or not at all. row is reused between calls. An error
	// from fn stops the scan.
	Each(ctx context.Context, table Table, fn func(row []any) error) error

	Close() error
}

// Tx is a refresh transaction.
//
// Relaxed referential checks are transaction scoped: Commit and Rollback both
// end them, so enforcement is restored however the transaction finishes.
type Tx interface {
	// DeferConstraints postpones foreign key verification so rows may
	// reference peers that are not yet (re)inserted.
	DeferConstraints(ctx context.Context) error

	// RestoreConstraints re-enables immediate foreign key verification and
	// checks every reference made while deferred. A dangling reference is
	// reported as an error wrapping ErrDanglingReference.
	RestoreConstraints(ctx context.Context) error

	// Replace deletes every row of table then inserts rows, whose cells are
	// ordered like table.Columns. It returns the number of inserted rows.
	Replace(ctx context.Context, table Table, rows [][]any) (int64, error)

	// SetVersion stores the singleton version token.
	SetVersion(ctx context.Context, v Version) error

	Commit(ctx context.Context) error

	// Rollback aborts the transaction. It is a no-op after Commit.
	Rollback(ctx context.Context) error
}

// ErrDanglingReference is wrapped by RestoreConstraints when rows reference
// ids that do not exist.
var ErrDanglingReference = errors.New("dangling foreign key reference")
