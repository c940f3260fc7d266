package sde

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRefreshGuard_TryAcquireRelease(t *testing.T) {
	g := newRefreshGuard()

	if g.Running() {
		t.Fatal("new guard reports running")
	}
	if !g.TryAcquire() {
		t.Fatal("first TryAcquire failed")
	}
	if !g.Running() {
		t.Error("Running = false while slot held")
	}
	if g.TryAcquire() {
		t.Error("second TryAcquire succeeded while slot held")
	}

	g.Release()

	if g.Running() {
		t.Error("Running = true after Release")
	}
	if !g.TryAcquire() {
		t.Error("TryAcquire failed after Release")
	}
}

func TestRefreshGuard_WaitForDrain(t *testing.T) {
	g := newRefreshGuard()

	// Idle guard returns immediately
	if err := g.WaitForDrain(context.Background()); err != nil {
		t.Fatalf("WaitForDrain on idle guard: %v", err)
	}

	g.TryAcquire()
	go func() {
		time.Sleep(50 * time.Millisecond)
		g.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain = %v, want nil", err)
	}
}

func TestRefreshGuard_WaitForDrainTimeout(t *testing.T) {
	g := newRefreshGuard()
	g.TryAcquire()
	defer g.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := g.WaitForDrain(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForDrain = %v, want context.DeadlineExceeded", err)
	}
}
