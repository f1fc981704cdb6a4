// Package opstate holds the process-wide operation state machine.
//
// Only one merge or bulk removal runs at a time. A caller claims the gate with
// TryBegin (Idle -> Updating) and releases it with Complete (Updating ->
// Completed -> Idle after the grace delay) or Abort (Updating -> Idle).
// Requests that find the gate in any state other than Idle are rejected; there
// is no queueing.
package opstate

import (
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned when an operation is requested while another one holds the gate.
var ErrBusy = errors.New("operation in progress")

// State is the current operation state.
type State int

const (
	Idle State = iota
	Updating
	Completed
)

// String returns the lowercase state name used in logs and over the wire.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Updating:
		return "updating"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// DefaultGrace is how long the gate stays in Completed before returning to Idle.
const DefaultGrace = 600 * time.Millisecond

// Gate serializes operations.
//
// Thread-safety: all methods are safe for concurrent use. Change listeners are
// invoked outside the internal lock, in the goroutine that caused the change.
type Gate struct {
	mu        sync.Mutex
	state     State
	grace     time.Duration
	timer     *time.Timer
	epoch     uint64
	listeners []func(State)
}

// New creates an Idle gate. A grace of zero (or less) makes Complete return the
// gate to Idle immediately.
func New(grace time.Duration) *Gate {
	return &Gate{grace: grace}
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// IsIdle reports whether a new operation could start now.
func (g *Gate) IsIdle() bool {
	return g.State() == Idle
}

// OnChange registers fn to be called after every state transition.
func (g *Gate) OnChange(fn func(State)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

// TryBegin moves the gate from Idle to Updating. It returns false, leaving the
// state untouched, if the gate is not Idle.
func (g *Gate) TryBegin() bool {
	g.mu.Lock()
	if g.state != Idle {
		g.mu.Unlock()
		return false
	}
	g.state = Updating
	g.epoch++
	listeners := g.snapshotListeners()
	g.mu.Unlock()

	notify(listeners, Updating)
	return true
}

// Begin is TryBegin returning ErrBusy instead of false.
func (g *Gate) Begin() error {
	if !g.TryBegin() {
		return ErrBusy
	}
	return nil
}

// Complete ends a successful operation. The gate passes through Completed and
// reverts to Idle after the grace delay.
func (g *Gate) Complete() {
	g.mu.Lock()
	if g.state != Updating {
		g.mu.Unlock()
		return
	}

	if g.grace <= 0 {
		g.state = Idle
		listeners := g.snapshotListeners()
		g.mu.Unlock()
		notify(listeners, Completed)
		notify(listeners, Idle)
		return
	}

	g.state = Completed
	epoch := g.epoch
	g.timer = time.AfterFunc(g.grace, func() { g.revert(epoch) })
	listeners := g.snapshotListeners()
	g.mu.Unlock()

	notify(listeners, Completed)
}

// Abort ends a failed operation and returns the gate straight to Idle.
func (g *Gate) Abort() {
	g.mu.Lock()
	if g.state != Updating {
		g.mu.Unlock()
		return
	}
	g.state = Idle
	listeners := g.snapshotListeners()
	g.mu.Unlock()

	notify(listeners, Idle)
}

// Close stops a pending grace timer and forces a Completed gate back to Idle.
func (g *Gate) Close() {
	g.mu.Lock()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	reverted := g.state == Completed
	if reverted {
		g.state = Idle
	}
	listeners := g.snapshotListeners()
	g.mu.Unlock()

	if reverted {
		notify(listeners, Idle)
	}
}

// revert runs on the grace timer. A stale timer (from an earlier operation)
// leaves the state alone.
func (g *Gate) revert(epoch uint64) {
	g.mu.Lock()
	if g.state != Completed || g.epoch != epoch {
		g.mu.Unlock()
		return
	}
	g.state = Idle
	g.timer = nil
	listeners := g.snapshotListeners()
	g.mu.Unlock()

	notify(listeners, Idle)
}

func (g *Gate) snapshotListeners() []func(State) {
	if len(g.listeners) == 0 {
		return nil
	}
	out := make([]func(State), len(g.listeners))
	copy(out, g.listeners)
	return out
}

func notify(listeners []func(State), s State) {
	for _, fn := range listeners {
		fn(s)
	}
}
