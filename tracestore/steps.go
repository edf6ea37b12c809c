package tracestore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/codetracer/replay-core/corekit"
	"github.com/codetracer/replay-core/internal/poolstats"
)

// stepBufPool reuses the fixed-size decode buffer every step lookup needs,
// so scanning a large recording (stepsInFunction, the tick binary searches)
// doesn't allocate one stepRecordSize slice per record. Reuse is tracked in
// poolstats.StepRecordCounters.
var stepBufPool = sync.Pool{
	New: func() any {
		poolstats.StepRecordCounters.Alloc.Add(1)
		buf := make([]byte, stepRecordSize)
		return &buf
	},
}

func getStepBuf() []byte {
	poolstats.StepRecordCounters.Get.Add(1)
	return *stepBufPool.Get().(*[]byte)
}

func putStepBuf(buf []byte) {
	poolstats.StepRecordCounters.Put.Add(1)
	stepBufPool.Put(&buf)
}

// stepRecordSize is the fixed stride of one entry in steps.bin: tick(8) +
// kind(1) + depth(4) + pathID(4) + line(4) + callKey as a raw ULID(16) +
// funcKey(8) + snapshotID(8).
const stepRecordSize = 8 + 1 + 4 + 4 + 4 + 16 + 8 + 8

func decodeStepRecord(buf []byte, syms *symbolTable) (corekit.Step, uint64, error) {
	if len(buf) < stepRecordSize {
		return corekit.Step{}, 0, fmt.Errorf("tracestore: step record truncated")
	}
	tick := int64(byteOrder.Uint64(buf[0:8]))
	kind := corekit.StepKind(buf[8])
	depth := int32(byteOrder.Uint32(buf[9:13]))
	pathID := byteOrder.Uint32(buf[13:17])
	line := int32(byteOrder.Uint32(buf[17:21]))

	var raw ulid.ULID
	copy(raw[:], buf[21:37])
	callKey := corekit.CallKey(raw.String())

	funcID := symbolID(byteOrder.Uint64(buf[37:45]))
	snapshotID := byteOrder.Uint64(buf[45:53])

	var funcKey corekit.FunctionKey
	if sym, ok := syms.byID[funcID]; ok {
		funcKey = sym.Key
	}

	return corekit.Step{
		Tick:       corekit.Tick(tick),
		Kind:       kind,
		Loc:        corekit.SourceLoc{Path: syms.pathByID(pathID), Line: int(line)},
		Depth:      int(depth),
		Key:        callKey,
		FuncKey:    funcKey,
		SnapshotID: snapshotID,
	}, snapshotID, nil
}

// stepByTick performs a binary search over the tick-sorted step stream.
// Steps are sorted primarily by tick (§3 invariant 1), so the search needs
// no auxiliary index.
func (s *Store) stepByTick(tick corekit.Tick) (corekit.Step, error) {
	n := int(s.steps.header.RecordCount)
	buf := getStepBuf()
	defer putStepBuf(buf)

	idx := sort.Search(n, func(i int) bool {
		if err := s.steps.recordAt(uint64(i), buf); err != nil {
			return false
		}
		return int64(byteOrder.Uint64(buf[0:8])) >= int64(tick)
	})
	if idx >= n {
		return corekit.Step{}, corekit.NewError(corekit.KindNotInRecording, "tracestore.stepByTick",
			fmt.Sprintf("tick %d beyond recording", tick), nil)
	}
	if err := s.steps.recordAt(uint64(idx), buf); err != nil {
		return corekit.Step{}, fmt.Errorf("tracestore: read step %d: %w", idx, err)
	}
	step, _, err := decodeStepRecord(buf, s.symbols)
	if err != nil {
		return corekit.Step{}, fmt.Errorf("tracestore: decode step %d: %w", idx, err)
	}
	if step.Tick != tick {
		return corekit.Step{}, corekit.NewError(corekit.KindNotInRecording, "tracestore.stepByTick",
			fmt.Sprintf("tick %d not recorded", tick), nil)
	}
	return step, nil
}

// stepsInFunction returns every step belonging to the given call key, in
// recorded (tick) order. It scans the full step stream: steps.bin is sorted
// primarily by tick and only secondarily by function instance (§4.1), so a
// single call's steps are not contiguous and a scan is unavoidable without a
// secondary index, which the artifact format does not carry.
func (s *Store) stepsInFunction(key corekit.CallKey) ([]corekit.Step, error) {
	n := int(s.steps.header.RecordCount)
	buf := getStepBuf()
	defer putStepBuf(buf)
	var out []corekit.Step
	for i := 0; i < n; i++ {
		if err := s.steps.recordAt(uint64(i), buf); err != nil {
			return nil, fmt.Errorf("tracestore: read step %d: %w", i, err)
		}
		step, _, err := decodeStepRecord(buf, s.symbols)
		if err != nil {
			return nil, fmt.Errorf("tracestore: decode step %d: %w", i, err)
		}
		if step.Key == key {
			out = append(out, step)
		}
	}
	if len(out) == 0 {
		return nil, corekit.NewError(corekit.KindNotInRecording, "tracestore.stepsInFunction",
			fmt.Sprintf("no steps for call key %q", key), nil)
	}
	return out, nil
}

// snapshotFor returns the value-snapshot id attached to the step at index i,
// used by valueAt to locate the step's before/after value map in values.bin.
func (s *Store) snapshotFor(i uint64) (uint64, error) {
	buf := getStepBuf()
	defer putStepBuf(buf)
	if err := s.steps.recordAt(i, buf); err != nil {
		return 0, err
	}
	return byteOrder.Uint64(buf[45:53]), nil
}

// StepCount returns the total number of steps in the recording, the upper
// bound for StepAt's index argument.
func (s *Store) StepCount() uint64 { return s.steps.header.RecordCount }

// StepAt returns the step at the given dense index into the tick-ordered
// stream, the index space the Stepping Engine walks in (§4.2 resolution
// rules operate step-by-step over the global sequence, not per-function).
func (s *Store) StepAt(index uint64) (corekit.Step, error) {
	if index >= s.steps.header.RecordCount {
		return corekit.Step{}, corekit.NewError(corekit.KindNotInRecording, "tracestore.StepAt",
			fmt.Sprintf("step index %d beyond recording", index), nil)
	}
	buf := getStepBuf()
	defer putStepBuf(buf)
	if err := s.steps.recordAt(index, buf); err != nil {
		return corekit.Step{}, fmt.Errorf("tracestore: read step %d: %w", index, err)
	}
	step, _, err := decodeStepRecord(buf, s.symbols)
	if err != nil {
		return corekit.Step{}, fmt.Errorf("tracestore: decode step %d: %w", index, err)
	}
	return step, nil
}

// FirstStepAtOrAfter returns the index of the first step whose tick is >=
// tick, or ok=false if tick is beyond the recording's last step. Used for
// jump-to-event resolution (§3 invariant 5: "lands on a step whose tick is
// >= event.tick").
func (s *Store) FirstStepAtOrAfter(tick corekit.Tick) (index uint64, ok bool) {
	n := int(s.steps.header.RecordCount)
	buf := getStepBuf()
	defer putStepBuf(buf)
	i := sort.Search(n, func(i int) bool {
		if err := s.steps.recordAt(uint64(i), buf); err != nil {
			return false
		}
		return int64(byteOrder.Uint64(buf[0:8])) >= int64(tick)
	})
	if i >= n {
		return 0, false
	}
	return uint64(i), true
}

// StepIndexAtTick returns the dense index of the step recorded at tick, or
// ok=false if no step was recorded at exactly that tick.
func (s *Store) StepIndexAtTick(tick corekit.Tick) (index uint64, ok bool) {
	n := int(s.steps.header.RecordCount)
	buf := getStepBuf()
	defer putStepBuf(buf)
	i := sort.Search(n, func(i int) bool {
		if err := s.steps.recordAt(uint64(i), buf); err != nil {
			return false
		}
		return int64(byteOrder.Uint64(buf[0:8])) >= int64(tick)
	})
	if i >= n {
		return 0, false
	}
	if err := s.steps.recordAt(uint64(i), buf); err != nil {
		return 0, false
	}
	if int64(byteOrder.Uint64(buf[0:8])) != int64(tick) {
		return 0, false
	}
	return uint64(i), true
}
