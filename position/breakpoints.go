package position

import (
	"sync"

	"github.com/codetracer/replay-core/corekit"
)

// Breakpoint is a `{path, line, enabled}` tuple (§4.2). Disabled entries are
// ignored by Continue resolution but preserved across resets, so toggling a
// breakpoint off and back on doesn't lose it.
type Breakpoint struct {
	Loc     corekit.SourceLoc
	Enabled bool
}

// Breakpoints is the table the Stepping Engine's Continue resolution
// matches candidate steps against, by `{path, line}` equality.
type Breakpoints struct {
	mtx   sync.RWMutex
	table map[corekit.SourceLoc]bool
}

// NewBreakpoints returns an empty breakpoint table.
func NewBreakpoints() *Breakpoints {
	return &Breakpoints{table: make(map[corekit.SourceLoc]bool)}
}

// Set adds or updates the breakpoint at loc.
func (b *Breakpoints) Set(loc corekit.SourceLoc, enabled bool) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.table[loc] = enabled
}

// Remove deletes the breakpoint at loc entirely (distinct from disabling
// it: a removed breakpoint does not reappear across a reset).
func (b *Breakpoints) Remove(loc corekit.SourceLoc) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	delete(b.table, loc)
}

// Matches reports whether loc carries an enabled breakpoint.
func (b *Breakpoints) Matches(loc corekit.SourceLoc) bool {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	return b.table[loc]
}

// All returns every breakpoint currently set, enabled or not.
func (b *Breakpoints) All() []Breakpoint {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	out := make([]Breakpoint, 0, len(b.table))
	for loc, enabled := range b.table {
		out = append(out, Breakpoint{Loc: loc, Enabled: enabled})
	}
	return out
}

// ReplaceAll atomically replaces every breakpoint at path with bps, leaving
// other paths untouched; used by the DAP bridge's
// setBreakpoints call which always supplies the complete set for a path.
func (b *Breakpoints) ReplaceAll(path string, bps []Breakpoint) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	for loc := range b.table {
		if loc.Path == path {
			delete(b.table, loc)
		}
	}
	for _, bp := range bps {
		b.table[bp.Loc] = bp.Enabled
	}
}
