package eventlog

import (
	"github.com/codetracer/replay-core/corekit"
	"github.com/codetracer/replay-core/tracestore"
)

// eventIter is the lazy iterator shape *tracestore.EventIter implements.
type eventIter interface {
	Next() bool
	Event() corekit.Event
}

// eventSource is the subset of *tracestore.Store the Event Log reads from.
type eventSource interface {
	EventsInRange(low, high corekit.Tick, mask tracestore.EventFilterMask) *tracestore.EventIter
}

var _ eventSource = (*tracestore.Store)(nil)

// Log is the Event Log component (§4.6), binding UpdateTable to a live
// Trace Store.
type Log struct {
	store eventSource
}

// New returns a Log reading from store.
func New(store eventSource) *Log {
	return &Log{store: store}
}

// Update materialises every event in [low, high] matching mask, then
// renders one page per req (§4.6 contract, `selectedKinds` applied via
// mask before ordering/search/pagination).
func (l *Log) Update(low, high corekit.Tick, mask tracestore.EventFilterMask, req TableRequest) (TableData, error) {
	iter := eventIter(l.store.EventsInRange(low, high, mask))
	var rows []corekit.Event
	for iter.Next() {
		rows = append(rows, iter.Event())
	}
	return UpdateTable(rows, req)
}
