package stepping

import (
	"context"
	"sort"

	"github.com/codetracer/replay-core/corekit"
)

// ResolveJump resolves a direct jump target (§4.2) into a Position,
// independent of the step/direction machinery in engine.go.
func (e *Engine) ResolveJump(ctx context.Context, cur corekit.Position, j Jump) (corekit.Position, error) {
	if err := ctx.Err(); err != nil {
		return cur, corekit.NewError(corekit.KindCancelled, "stepping.ResolveJump", "superseded", err)
	}

	switch j.Kind {
	case JumpToTick:
		return e.jumpToTick(j.Tick)
	case JumpToEvent:
		return e.jumpToEvent(j.EventID)
	case JumpToSourceLine:
		return e.jumpToSourceLine(cur, j.SourceLoc, j.Behaviour)
	case JumpToCallStackIndex:
		return e.jumpToCallStackIndex(cur, j.CallStackIndex)
	case JumpToLocalStep:
		return e.jumpToLocalStep(cur, j.LocalStep)
	default:
		return cur, corekit.NewError(corekit.KindUnexpected, "stepping.ResolveJump", "unknown jump kind", nil)
	}
}

func (e *Engine) jumpToTick(tick corekit.Tick) (corekit.Position, error) {
	idx, ok := e.store.StepIndexAtTick(tick)
	if !ok {
		return corekit.Position{}, corekit.NewError(corekit.KindNotInRecording, "stepping.jumpToTick",
			"tick not recorded", nil)
	}
	s, err := e.store.StepAt(idx)
	if err != nil {
		return corekit.Position{}, err
	}
	return positionFromStep(s), nil
}

// jumpToEvent lands on a step whose tick is >= event.tick (§3 invariant 5).
func (e *Engine) jumpToEvent(id corekit.EventID) (corekit.Position, error) {
	ev, err := e.store.EventByID(id)
	if err != nil {
		return corekit.Position{}, err
	}
	idx, ok := e.store.FirstStepAtOrAfter(ev.Tick)
	if !ok {
		return corekit.Position{}, corekit.NewError(corekit.KindNotInRecording, "stepping.jumpToEvent",
			"no step at or after event tick", nil)
	}
	s, err := e.store.StepAt(idx)
	if err != nil {
		return corekit.Position{}, err
	}
	return positionFromStep(s), nil
}

// jumpToSourceLine implements the "Smart jump to line" rule: nearest step
// matching loc in source-line order (here, tick order — the closest
// observation of that line to the current tick), ties preferring forward.
func (e *Engine) jumpToSourceLine(cur corekit.Position, loc corekit.SourceLoc, behaviour JumpBehaviour) (corekit.Position, error) {
	idx, ok := e.store.StepIndexAtTick(cur.Tick)
	if !ok {
		idx = 0
	}

	var best corekit.Step
	var bestDist uint64
	found := false

	consider := func(s corekit.Step) {
		if s.Loc != loc {
			return
		}
		var dist uint64
		if int64(s.Tick) >= int64(cur.Tick) {
			dist = uint64(int64(s.Tick) - int64(cur.Tick))
		} else {
			dist = uint64(int64(cur.Tick) - int64(s.Tick))
		}
		if !found || dist < bestDist || (dist == bestDist && s.Tick >= cur.Tick && best.Tick < cur.Tick) {
			best, bestDist, found = s, dist, true
		}
	}

	n := e.store.StepCount()
	switch behaviour {
	case JumpForward:
		for i := idx; i < n; i++ {
			if s, err := e.store.StepAt(i); err == nil {
				consider(s)
			}
		}
	case JumpBackward:
		for i := int64(idx); i >= 0; i-- {
			if s, err := e.store.StepAt(uint64(i)); err == nil {
				consider(s)
			}
		}
	default: // Smart
		for i := uint64(0); i < n; i++ {
			if s, err := e.store.StepAt(i); err == nil {
				consider(s)
			}
		}
	}

	if !found {
		return corekit.Position{}, corekit.NewError(corekit.KindLocation, "stepping.jumpToSourceLine",
			"no step observed at that location", nil)
	}
	return positionFromStep(best), nil
}

// jumpToCallStackIndex walks the call chain from cur up to the frame at
// index (0 = current frame, 1 = caller, ...) and lands on the step in that
// frame where it called the frame below it (for index 0, the current tick).
func (e *Engine) jumpToCallStackIndex(cur corekit.Position, index int) (corekit.Position, error) {
	key := cur.Key
	tick := cur.Tick
	for i := 0; i < index; i++ {
		fi, err := e.store.FunctionByKey(key)
		if err != nil {
			return corekit.Position{}, err
		}
		if fi.IsRoot() {
			return corekit.Position{}, corekit.NewError(corekit.KindNotInRecording, "stepping.jumpToCallStackIndex",
				"call stack index beyond the root frame", nil)
		}
		tick = fi.CallTick
		key = fi.ParentKey
	}
	idx, ok := e.store.StepIndexAtTick(tick)
	if !ok {
		idx = 0
	}
	s, err := e.store.StepAt(idx)
	if err != nil {
		return corekit.Position{}, err
	}
	return positionFromStep(s), nil
}

// jumpToLocalStep positions within a specific iteration of the loop at
// FirstLoopLine, in the function instance active at cur. Iteration counting
// mirrors the Flow Reconstructor's rule (§4.3 step 3): contiguous from 1,
// incremented on each visit to FirstLoopLine.
func (e *Engine) jumpToLocalStep(cur corekit.Position, lj LocalStepJump) (corekit.Position, error) {
	steps, err := e.store.StepsInFunction(cur.Key)
	if err != nil {
		return corekit.Position{}, err
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Tick < steps[j].Tick })

	iteration := 0
	for _, s := range steps {
		if s.Loc.Path == lj.Path && s.Loc.Line == lj.FirstLoopLine {
			iteration++
		}
		if iteration == lj.Iteration && s.Loc.Path == lj.Path && s.Loc.Line == lj.Line {
			return positionFromStep(s), nil
		}
	}
	return corekit.Position{}, corekit.NewError(corekit.KindNotInRecording, "stepping.jumpToLocalStep",
		"no step matches that iteration", nil)
}
