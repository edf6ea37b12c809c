// Package tracepoint implements §4.7's Tracepoint Runtime: user-defined
// synthetic log expressions evaluated across the recording in sessions,
// streamed back as they're produced.
package tracepoint

import (
	"strconv"

	"github.com/codetracer/replay-core/corekit"
	"github.com/codetracer/replay-core/internal/ringbuf"
)

// recentStopCapacity bounds how many Stops per tracepoint RecentStops keeps
// on hand, independent of Results' full unbounded history — a long session
// over a large recording can produce far more Stops than any UI view needs
// to render at once.
const recentStopCapacity = 200

// TracepointID identifies one tracepoint within a Session.
type TracepointID uint64

// SessionID identifies one tracepoint session; a new session invalidates
// every result cached against an older one.
type SessionID uint64

// Tracepoint is one user-defined synthetic log point (§3 Tracepoint
// Session: "tracepoints[{id, location, expression, enabled}]").
type Tracepoint struct {
	ID         TracepointID
	Location   corekit.SourceLoc
	Expression string
	Enabled    bool
}

// Stop is one recorded evaluation of a tracepoint's expression (§4.7
// execution model).
type Stop struct {
	Tick         corekit.Tick
	Path         string
	Line         int
	Iteration    int
	ResultIndex  int
	Locals       map[string]corekit.Value
	Description  string
	FunctionName string
}

// Session is one tracepoint session's state: its tracepoints and the
// accumulated results per tracepoint. Mutating a session (adding, removing,
// enabling/disabling a tracepoint) bumps Generation, invalidating any
// cached TraceUpdate the Dispatcher is holding (§3: "Generations invalidate
// cached results after any mutation").
type Session struct {
	ID          SessionID
	Tracepoints []Tracepoint
	Results     map[TracepointID][]Stop
	TotalCount  int
	Generation  int

	recent *ringbuf.RingBuffers[Stop]
}

// NewSession returns an empty session with the given id.
func NewSession(id SessionID) *Session {
	return &Session{
		ID:      id,
		Results: make(map[TracepointID][]Stop),
		recent:  ringbuf.NewRingBuffers[Stop](recentStopCapacity),
	}
}

// SetTracepoints replaces the session's tracepoint set and bumps
// Generation, discarding any previously accumulated results — a session
// mutation means every prior Stop was computed against a now-stale
// configuration.
func (s *Session) SetTracepoints(tps []Tracepoint) {
	s.Tracepoints = tps
	s.Results = make(map[TracepointID][]Stop)
	s.TotalCount = 0
	s.Generation++
	s.recent = ringbuf.NewRingBuffers[Stop](recentStopCapacity)
}

// recordStop appends stop to both the tracepoint's full history and its
// bounded recent-stop ring, keeping RecentStops cheap to read even after a
// session has accumulated far more Stops than any live view needs.
func (s *Session) recordStop(id TracepointID, stop Stop) {
	s.Results[id] = append(s.Results[id], stop)
	s.recent.GetOrCreate(strconv.FormatUint(uint64(id), 10)).Add(stop)
}

// RecentStops returns up to recentStopCapacity of tracepoint id's most
// recently recorded Stops, newest first — the bounded view a live UI panel
// reads instead of the full (and, over a long session, much larger) history
// in Results.
func (s *Session) RecentStops(id TracepointID) []Stop {
	var out []Stop
	s.recent.GetOrCreate(strconv.FormatUint(uint64(id), 10)).Walk(func(stop Stop) error {
		out = append(out, stop)
		return nil
	})
	return out
}
