package installer

import (
	"sync"
	"sync/atomic"
)

// runState is the guard's lifecycle position.
type runState int32

const (
	stateIdle runState = iota
	stateRunning
)

// RunGuard enforces the single-flight contract: at most one install runs
// at a time, and a cancel request raised while running is visible to the
// executor at every step boundary.
type RunGuard struct {
	state         atomic.Int32
	cancelled     atomic.Bool
	mu            sync.Mutex
	correlationID string
}

// NewRunGuard returns an idle guard.
func NewRunGuard() *RunGuard {
	return &RunGuard{}
}

// Acquire transitions Idle to Running and records the run's correlation
// ID. It fails without blocking when a run is already active, returning
// the active run's correlation ID.
func (g *RunGuard) Acquire(correlationID string) (bool, string) {
	if !g.state.CompareAndSwap(int32(stateIdle), int32(stateRunning)) {
		g.mu.Lock()
		active := g.correlationID
		g.mu.Unlock()
		return false, active
	}
	g.cancelled.Store(false)
	g.mu.Lock()
	g.correlationID = correlationID
	g.mu.Unlock()
	return true, ""
}

// Release returns the guard to Idle. Safe to call more than once.
func (g *RunGuard) Release() {
	g.mu.Lock()
	g.correlationID = ""
	g.mu.Unlock()
	g.state.Store(int32(stateIdle))
}

// RequestCancel flags the active run for cooperative cancellation. It
// reports false when no run is active.
func (g *RunGuard) RequestCancel() bool {
	if runState(g.state.Load()) != stateRunning {
		return false
	}
	g.cancelled.Store(true)
	return true
}

// CancelRequested reports whether a cancel has been raised for the
// active run. The executor polls this at step boundaries.
func (g *RunGuard) CancelRequested() bool {
	return g.cancelled.Load()
}

// Running reports whether a run is active.
func (g *RunGuard) Running() bool {
	return runState(g.state.Load()) == stateRunning
}

// ActiveCorrelationID returns the running install's correlation ID, or
// empty when idle.
func (g *RunGuard) ActiveCorrelationID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.correlationID
}
