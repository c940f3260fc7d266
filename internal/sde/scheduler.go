package sde

// scheduler.go runs the update periodically for long-lived processes.
//
// A failed cycle is logged and retried on the next tick; it never stops the
// scheduler. A tick that finds another refresh in progress is skipped.

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Schedule runs Update immediately, then every interval, until ctx is
// cancelled. It blocks.
func (u *Updater) Schedule(ctx context.Context, interval time.Duration) {
	slog.Info("refresh scheduler started", "interval", interval.String())

	u.runScheduled(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("refresh scheduler stopped")
			return
		case <-ticker.C:
			u.runScheduled(ctx)
		}
	}
}

func (u *Updater) runScheduled(ctx context.Context) {
	start := time.Now()
	res, err := u.Update(ctx, false)
	if errors.Is(err, ErrRefreshRunning) {
		slog.Info("scheduled refresh skipped", "reason", err.Error())
		return
	}
	if err != nil {
		slog.Error("scheduled refresh failed",
			"error", err,
			"code", MapError(err).Code,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}
	slog.Debug("scheduled refresh finished", "status", string(res.Status))
}
