package tracestore

import (
	"fmt"

	"github.com/codetracer/replay-core/corekit"
)

// snapshot is the before/after value map attached to a step, keyed by
// expression text (§4.3: "attach beforeValues/afterValues materialised from
// the value snapshot of the step, keyed by expression text").
type snapshot struct {
	Before map[string]corekit.Value `json:"before,omitempty"`
	After  map[string]corekit.Value `json:"after,omitempty"`
}

// valueAt resolves the value of expr at the given step, reading the step's
// snapshot id from steps.bin and looking up the corresponding entry in the
// value-snapshot arena. It returns ValueNonExpanded rather than an error
// when the expression is simply absent from the snapshot — the Flow
// Reconstructor documents unavailable expressions as omitted, not replaced
// with an error placeholder (§4.3 step 4), so the Value Service surfaces
// that same "not captured here" state rather than failing the whole query.
func (s *Store) valueAt(stepIndex uint64, expr string) (corekit.Value, error) {
	snapID, err := s.snapshotFor(stepIndex)
	if err != nil {
		return corekit.Value{}, fmt.Errorf("tracestore: locate snapshot for step %d: %w", stepIndex, err)
	}
	if snapID == 0 {
		return corekit.Value{Variant: corekit.ValueNonExpanded}, nil
	}
	snap, ok := s.snapshots[snapID]
	if !ok {
		return corekit.Value{}, corekit.NewError(corekit.KindArtifactCorrupt, "tracestore.valueAt",
			fmt.Sprintf("snapshot %d referenced by step %d is missing", snapID, stepIndex), nil)
	}
	if v, ok := snap.After[expr]; ok {
		return v, nil
	}
	if v, ok := snap.Before[expr]; ok {
		return v, nil
	}
	return corekit.Value{Variant: corekit.ValueNonExpanded}, nil
}

// SnapshotAt returns the full before/after value maps attached to the step
// at stepIndex, for components (the Flow Reconstructor) that need every
// captured expression rather than one specific one.
func (s *Store) SnapshotAt(stepIndex uint64) (before, after map[string]corekit.Value, err error) {
	snapID, err := s.snapshotFor(stepIndex)
	if err != nil {
		return nil, nil, fmt.Errorf("tracestore: locate snapshot for step %d: %w", stepIndex, err)
	}
	return s.Snapshot(snapID)
}

// Snapshot returns the before/after value maps directly by snapshot id, for
// callers (the Flow Reconstructor) that already hold a Step and its
// SnapshotID rather than a dense step index.
func (s *Store) Snapshot(id uint64) (before, after map[string]corekit.Value, err error) {
	if id == 0 {
		return nil, nil, nil
	}
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, nil, corekit.NewError(corekit.KindArtifactCorrupt, "tracestore.Snapshot",
			fmt.Sprintf("snapshot %d is missing", id), nil)
	}
	return snap.Before, snap.After, nil
}

func (s *Store) typeByKey(key string) (corekit.Type, error) {
	t, ok := s.types[key]
	if !ok {
		return corekit.Type{}, corekit.NewError(corekit.KindNotInRecording, "tracestore.typeByKey",
			fmt.Sprintf("type %q not recorded", key), nil)
	}
	return t, nil
}
