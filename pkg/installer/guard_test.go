package installer

import (
	"sync"
	"testing"
)

func TestRunGuardSingleFlight(t *testing.T) {
	g := NewRunGuard()

	ok, _ := g.Acquire("run-1")
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}
	if !g.Running() {
		t.Error("expected guard to report running")
	}

	ok, active := g.Acquire("run-2")
	if ok {
		t.Fatal("expected second acquire to fail")
	}
	if active != "run-1" {
		t.Errorf("expected active correlation ID run-1, got %q", active)
	}

	g.Release()
	if g.Running() {
		t.Error("expected guard to be idle after release")
	}

	ok, _ = g.Acquire("run-2")
	if !ok {
		t.Error("expected acquire to succeed after release")
	}
}

func TestRunGuardConcurrentAcquire(t *testing.T) {
	g := NewRunGuard()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := g.Acquire("run"); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winner, got %d", wins)
	}
}

func TestRunGuardCancelFlag(t *testing.T) {
	g := NewRunGuard()

	if g.RequestCancel() {
		t.Error("expected cancel to fail while idle")
	}

	g.Acquire("run-1")
	if g.CancelRequested() {
		t.Error("expected no pending cancel on a fresh run")
	}
	if !g.RequestCancel() {
		t.Error("expected cancel to succeed while running")
	}
	if !g.CancelRequested() {
		t.Error("expected cancel flag to be visible")
	}

	// A new run must not inherit the previous run's cancel flag.
	g.Release()
	g.Acquire("run-2")
	if g.CancelRequested() {
		t.Error("expected cancel flag cleared for the next run")
	}
}

func TestRunGuardReleaseIdempotent(t *testing.T) {
	g := NewRunGuard()
	g.Acquire("run-1")
	g.Release()
	g.Release()
	if g.Running() {
		t.Error("expected guard idle after double release")
	}
}
