package sde

// guard.go serialises refreshes within one process.
//
// The guard is a one-slot semaphore held for a whole Update. A caller that
// finds the slot taken fails with ErrRefreshRunning instead of queueing.
// Shutdown paths use WaitForDrain to let an in-flight refresh finish.

import (
	"context"
	"errors"
	"time"
)

// ErrRefreshRunning is returned by Update while another Update holds the
// refresh slot.
var ErrRefreshRunning = errors.New("a refresh is already running")

type refreshGuard struct {
	slot chan struct{}
}

func newRefreshGuard() *refreshGuard {
	return &refreshGuard{slot: make(chan struct{}, 1)}
}

// TryAcquire takes the slot without blocking.
func (g *refreshGuard) TryAcquire() bool {
	select {
	case g.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the slot. Must be called exactly once per successful TryAcquire.
func (g *refreshGuard) Release() {
	<-g.slot
}

func (g *refreshGuard) Running() bool {
	return len(g.slot) > 0
}

// WaitForDrain blocks until no refresh holds the slot or ctx is done.
func (g *refreshGuard) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !g.Running() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
