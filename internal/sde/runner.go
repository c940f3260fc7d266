package sde

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/sdemirror/internal/logging"
	"github.com/JonMunkholm/sdemirror/internal/store"
)

// CommitHook runs inside the refresh transaction after every pipeline
// succeeded and referential checks were restored, just before commit.
type CommitHook func(ctx context.Context, tx store.Tx) error

// Runner executes a fixed, ordered list of pipelines as one unit of work.
type Runner struct {
	store     store.Store
	pipelines []*Pipeline
}

// NewRunner returns a runner over pipelines, which run in the given order.
func NewRunner(s store.Store, pipelines ...*Pipeline) *Runner {
	return &Runner{store: s, pipelines: pipelines}
}

// Pipelines returns the pipelines in execution order.
func (r *Runner) Pipelines() []*Pipeline {
	return r.pipelines
}

// Run replaces every mirror table inside a single transaction with
// referential checks deferred. Either every table is replaced and hook has
// run, or the transaction is rolled back and nothing changes.
func (r *Runner) Run(ctx context.Context, hook CommitHook) ([]Stats, error) {
	logger := logging.FromContext(ctx)

	tx, err := r.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin refresh: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.DeferConstraints(ctx); err != nil {
		return nil, fmt.Errorf("defer constraints: %w", err)
	}

	stats := make([]Stats, 0, len(r.pipelines))
	for _, p := range r.pipelines {
		s, err := p.Run(ctx, tx)
		if err != nil {
			logger.Error("pipeline failed, rolling back", "pipeline", p.Name, "error", err)
			return stats, err
		}
		stats = append(stats, s)
	}

	if err := tx.RestoreConstraints(ctx); err != nil {
		var integrityErr *IntegrityError
		if errors.As(err, &integrityErr) {
			return stats, err
		}
		return stats, &IntegrityError{Err: err}
	}

	if hook != nil {
		if err := hook(ctx, tx); err != nil {
			return stats, fmt.Errorf("commit hook: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return stats, &IntegrityError{Err: fmt.Errorf("commit: %w", err)}
	}
	return stats, nil
}

// TotalLoaded sums the rows loaded across stats.
func TotalLoaded(stats []Stats) int64 {
	var n int64
	for _, s := range stats {
		n += s.Loaded
	}
	return n
}
