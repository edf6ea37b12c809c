package eventlog

import "github.com/codetracer/replay-core/corekit"

// filterRows returns the subset of rows matching m.
func filterRows(rows []corekit.Event, m matcher) []corekit.Event {
	var out []corekit.Event
	for _, e := range rows {
		if m(e) {
			out = append(out, e)
		}
	}
	return out
}

// matcher reports whether an Event satisfies a search predicate.
type matcher func(corekit.Event) bool
