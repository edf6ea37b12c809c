// Package position implements §4.2's Position Model: the single current
// Position of a replay session, and the breakpoint table the Stepping
// Engine's Continue resolution matches against.
package position

import (
	"github.com/codetracer/replay-core/corekit"
	"github.com/codetracer/replay-core/internal/xatomic"
)

// Model owns the session's current Position exclusively (§3 Ownership). It
// is safe for concurrent read access from every component; only the
// Dispatcher is expected to call Set, after a Stepping Engine operation
// completes and lands on a new Position.
type Model struct {
	current *xatomic.Box[corekit.Position]
}

// New returns a Model with no current Position set (Current().Zero() is
// true until the first jump of the session).
func New() *Model {
	return &Model{current: xatomic.NewBox(corekit.Position{})}
}

// Current returns the Position observed at the moment of the call. Read
// queries (§4.3 flow, §4.5 value, §4.6 event log) snapshot this once at the
// start of their work and are expected to complete deterministically
// against that snapshot even if a concurrent mutating request later moves
// it (§4.8 scheduling model).
func (m *Model) Current() corekit.Position {
	return m.current.Get()
}

// Set replaces the current Position. Only the Dispatcher calls this,
// and only after a Stepping Engine operation has committed atomically at
// its final step (§4.2 cancellation: "operations are either applied
// atomically at their final step or not at all").
func (m *Model) Set(p corekit.Position) {
	m.current.Set(p)
}

// SetIfUnchanged replaces the current Position only if it still equals
// expected, returning false if something else moved it in the meantime.
// Used by the Dispatcher to detect a race between a just-cancelled
// operation's rollback and a fresh request landing first.
func (m *Model) SetIfUnchanged(expected, next corekit.Position) bool {
	prev := m.current.Swap(next)
	if prev != expected {
		m.current.Set(prev)
		return false
	}
	return true
}
