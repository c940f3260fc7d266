package sde

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sdemirror/internal/logging"
	"github.com/JonMunkholm/sdemirror/internal/store"
)

// Status is the outcome of a successful Update.
type Status string

const (
	StatusCurrent Status = "current"
	StatusUpdated Status = "updated"
)

// Result describes a completed Update.
type Result struct {
	Status Status
	RunID  string
	Token  string
	Stats  []Stats
}

// Message returns the line printed for r by the update command.
func (r Result) Message() string {
	if r.Status == StatusCurrent {
		return "Static data is current"
	}
	return "Static data updated"
}

// Updater gates the runner behind the version check and records the new
// token once the refresh succeeded.
type Updater struct {
	store   store.Store
	check   VersionCheck
	runner  *Runner
	timeout time.Duration
	guard   *refreshGuard
	now     func() time.Time
}

// UpdaterConfig configures NewUpdater.
type UpdaterConfig struct {
	TokenURL string
	Sources  Sources
	Timeout  time.Duration // bounds a whole refresh, 0 for none
}

// NewUpdater wires the version check and the default pipelines over f.
func NewUpdater(s store.Store, f Fetcher, cfg UpdaterConfig) *Updater {
	return &Updater{
		store:   s,
		check:   VersionCheck{URL: cfg.TokenURL, Fetcher: f},
		runner:  NewRunner(s, Pipelines(cfg.Sources, f)...),
		timeout: cfg.Timeout,
		guard:   newRefreshGuard(),
		now:     time.Now,
	}
}

// Update refreshes the mirror when the remote token differs from the stored
// one, or unconditionally when force is set. It returns ErrRefreshRunning
// while another Update on u is in progress.
func (u *Updater) Update(ctx context.Context, force bool) (Result, error) {
	if !u.guard.TryAcquire() {
		return Result{}, ErrRefreshRunning
	}
	defer u.guard.Release()

	local, err := u.store.Version(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read local version: %w", err)
	}

	remote, err := u.check.FetchRemoteToken(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch remote token: %w", err)
	}

	if IsCurrent(local.Token, remote) && !force {
		logging.FromContext(ctx).Info("static data is current", "token", remote)
		return Result{Status: StatusCurrent, Token: remote}, nil
	}

	runID := uuid.NewString()
	ctx = logging.WithRun(ctx, runID)
	logger := logging.FromContext(ctx)
	logger.Info("refresh started", "local_token", local.Token, "remote_token", remote, "forced", force)

	run := store.Run{
		ID:        runID,
		StartedAt: u.now().UTC(),
		Token:     remote,
		Forced:    force,
	}

	stats, err := u.refresh(ctx, remote)

	run.FinishedAt = u.now().UTC()
	run.RowsLoaded = TotalLoaded(stats)
	if err != nil {
		run.Status = store.RunFailed
		run.Error = err.Error()
	} else {
		run.Status = store.RunUpdated
	}

	// The log is written with a fresh deadline so a refresh that timed out
	// is still recorded.
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if logErr := u.store.RecordRun(logCtx, run); logErr != nil {
		logger.Warn("failed to record refresh run", "error", logErr)
	}

	if err != nil {
		logger.Error("refresh failed", "error", err, "duration_ms", run.FinishedAt.Sub(run.StartedAt).Milliseconds())
		return Result{RunID: runID, Token: local.Token, Stats: stats}, err
	}

	logger.Info("refresh complete",
		"token", remote,
		"rows", run.RowsLoaded,
		"duration_ms", run.FinishedAt.Sub(run.StartedAt).Milliseconds(),
	)
	return Result{Status: StatusUpdated, RunID: runID, Token: remote, Stats: stats}, nil
}

// Running reports whether an Update is in progress.
func (u *Updater) Running() bool {
	return u.guard.Running()
}

// Wait blocks until the in-progress Update, if any, returns or ctx is done.
func (u *Updater) Wait(ctx context.Context) error {
	return u.guard.WaitForDrain(ctx)
}

func (u *Updater) refresh(ctx context.Context, token string) ([]Stats, error) {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	return u.runner.Run(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.SetVersion(ctx, store.Version{Token: token, Date: u.now().UTC()})
	})
}
