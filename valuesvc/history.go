package valuesvc

import (
	"sort"

	"github.com/codetracer/replay-core/corekit"
)

// historyStore is the subset of *tracestore.Store valueHistory needs.
type historyStore interface {
	StepsInFunction(key corekit.CallKey) ([]corekit.Step, error)
	Snapshot(id uint64) (before, after map[string]corekit.Value, err error)
}

// HistoryEntry is one observation in a value's history (§4.5 `valueHistory`
// result shape).
type HistoryEntry struct {
	Tick        corekit.Tick
	Location    corekit.SourceLoc
	Value       corekit.Value
	Description string
}

// History builds the sequence of distinct observed values of expr within
// the function instance key, ordered by tick, in direction isForward (true
// = ascending). Consecutive equal values (by TestEq) are folded into one
// entry — §4.5 "the sequence of distinct observed values".
func History(store historyStore, key corekit.CallKey, expr string, isForward bool) ([]HistoryEntry, error) {
	steps, err := store.StepsInFunction(key)
	if err != nil {
		return nil, err
	}

	sorted := append([]corekit.Step(nil), steps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Tick < sorted[j].Tick })
	if !isForward {
		for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
			sorted[i], sorted[j] = sorted[j], sorted[i]
		}
	}

	var out []HistoryEntry
	var have bool
	var last corekit.Value

	for _, step := range sorted {
		before, after, err := store.Snapshot(step.SnapshotID)
		if err != nil {
			return nil, err
		}
		v, ok := after[expr]
		if !ok {
			v, ok = before[expr]
		}
		if !ok {
			continue
		}
		if have && TestEq(v, last) {
			continue
		}
		out = append(out, HistoryEntry{Tick: step.Tick, Location: step.Loc, Value: v})
		last, have = v, true
	}
	return out, nil
}
