package stepping

import (
	"context"

	"github.com/codetracer/replay-core/corekit"
	"github.com/codetracer/replay-core/position"
	"github.com/codetracer/replay-core/tracestore"
)

// stepSource is the subset of *tracestore.Store the engine needs; narrowed
// to an interface so tests can supply a fixture without a real artifact on
// disk.
type stepSource interface {
	StepAt(index uint64) (corekit.Step, error)
	StepCount() uint64
	StepIndexAtTick(tick corekit.Tick) (uint64, bool)
	FirstStepAtOrAfter(tick corekit.Tick) (uint64, bool)
	StepsInFunction(key corekit.CallKey) ([]corekit.Step, error)
	FunctionByKey(key corekit.CallKey) (corekit.FunctionInstance, error)
	EventByID(id corekit.EventID) (corekit.Event, error)
}

var _ stepSource = (*tracestore.Store)(nil)

// Engine resolves step and jump requests against a Store and a breakpoint
// table. It holds no mutable state of its own — callers (the Dispatcher)
// own the current Position and commit the result of a successful Resolve.
type Engine struct {
	store stepSource
	bps   *position.Breakpoints
}

// New returns an Engine over store, matching Continue against bps.
func New(store stepSource, bps *position.Breakpoints) *Engine {
	return &Engine{store: store, bps: bps}
}

func positionFromStep(step corekit.Step) corekit.Position {
	return corekit.Position{
		Tick:         step.Tick,
		Loc:          step.Loc,
		FunctionName: string(step.FuncKey),
		Depth:        step.Depth,
		Key:          step.Key,
	}
}

// Resolve advances from cur according to req, checking ctx for cancellation
// at each step boundary (§5 suspension points). On cancellation it returns
// corekit.Cancelled and cur unchanged, never a partially-advanced Position
// (§4.2 cancellation contract).
func (e *Engine) Resolve(ctx context.Context, cur corekit.Position, req Request) (corekit.Position, error) {
	next := cur
	for i := 0; i < req.repeat(); i++ {
		if err := ctx.Err(); err != nil {
			return cur, corekit.NewError(corekit.KindCancelled, "stepping.Resolve", "superseded before completion", err)
		}
		n, err := e.resolveOne(ctx, next, req)
		if err != nil {
			return cur, err
		}
		next = n
	}
	return next, nil
}

func (e *Engine) resolveOne(ctx context.Context, cur corekit.Position, req Request) (corekit.Position, error) {
	switch req.Op {
	case OpNext, OpCoNext:
		return e.next(ctx, cur, req)
	case OpStepInstruction, OpNextInstruction:
		return e.instruction(ctx, cur, req)
	case OpStepIn, OpCoStepIn:
		return e.stepIn(ctx, cur, req)
	case OpStepOut:
		return e.stepOut(ctx, cur, req)
	case OpContinue:
		return e.cont(ctx, cur, req)
	default:
		return cur, corekit.NewError(corekit.KindUnexpected, "stepping.Resolve", "unknown op", nil)
	}
}

// next implements §4.2 "Next": the next step whose frameDepth <= current
// depth, forward or reverse.
func (e *Engine) next(ctx context.Context, cur corekit.Position, req Request) (corekit.Position, error) {
	idx, ok := e.store.StepIndexAtTick(cur.Tick)
	if !ok {
		return cur, corekit.NewError(corekit.KindNotInRecording, "stepping.Next", "current position not recorded", nil)
	}

	step := func(i uint64) (corekit.Step, bool) {
		s, err := e.store.StepAt(i)
		return s, err == nil
	}

	if req.Direction == Forward {
		for i := idx + 1; i < e.store.StepCount(); i++ {
			if err := ctx.Err(); err != nil {
				return cur, corekit.NewError(corekit.KindCancelled, "stepping.Next", "superseded", err)
			}
			s, ok := step(i)
			if !ok {
				continue
			}
			if s.Depth <= cur.Depth {
				return positionFromStep(s), nil
			}
		}
		return cur, corekit.NewError(corekit.KindNotInRecording, "stepping.Next", "no step after current position", nil)
	}

	for i := idx; i > 0; i-- {
		if err := ctx.Err(); err != nil {
			return cur, corekit.NewError(corekit.KindCancelled, "stepping.Next", "superseded", err)
		}
		s, ok := step(i - 1)
		if !ok {
			continue
		}
		if s.Depth <= cur.Depth {
			return positionFromStep(s), nil
		}
	}
	return cur, corekit.NewError(corekit.KindNotInRecording, "stepping.Next", "no step before current position", nil)
}

// instruction moves to the literal next/previous step with no depth filter
// (StepInstruction/NextInstruction).
func (e *Engine) instruction(ctx context.Context, cur corekit.Position, req Request) (corekit.Position, error) {
	idx, ok := e.store.StepIndexAtTick(cur.Tick)
	if !ok {
		return cur, corekit.NewError(corekit.KindNotInRecording, "stepping.Instruction", "current position not recorded", nil)
	}
	if req.Direction == Forward {
		if idx+1 >= e.store.StepCount() {
			return cur, corekit.NewError(corekit.KindNotInRecording, "stepping.Instruction", "at final step", nil)
		}
		s, err := e.store.StepAt(idx + 1)
		if err != nil {
			return cur, err
		}
		return positionFromStep(s), nil
	}
	if idx == 0 {
		return cur, corekit.NewError(corekit.KindNotInRecording, "stepping.Instruction", "at first step", nil)
	}
	s, err := e.store.StepAt(idx - 1)
	if err != nil {
		return cur, err
	}
	return positionFromStep(s), nil
}

// stepIn implements §4.2 "StepIn": forward, the next Call step whose
// parentCallKey is the current call, landing on its first Line step;
// reverse, the caller's step immediately preceding that Call.
func (e *Engine) stepIn(ctx context.Context, cur corekit.Position, req Request) (corekit.Position, error) {
	idx, ok := e.store.StepIndexAtTick(cur.Tick)
	if !ok {
		return cur, corekit.NewError(corekit.KindNotInRecording, "stepping.StepIn", "current position not recorded", nil)
	}

	if req.Direction == Forward {
		for i := idx; i < e.store.StepCount(); i++ {
			if err := ctx.Err(); err != nil {
				return cur, corekit.NewError(corekit.KindCancelled, "stepping.StepIn", "superseded", err)
			}
			s, err := e.store.StepAt(i)
			if err != nil {
				continue
			}
			if s.Kind != corekit.StepCall {
				continue
			}
			child, err := childOfCall(e.store, i, s)
			if err != nil || child.ParentKey != cur.Key {
				continue
			}
			// Land on the child's first Line step.
			steps, err := e.store.StepsInFunction(child.Key)
			if err != nil {
				return cur, err
			}
			for _, cs := range steps {
				if cs.Kind == corekit.StepLine {
					return positionFromStep(cs), nil
				}
			}
			return positionFromStep(s), nil
		}
		return cur, corekit.NewError(corekit.KindNotInRecording, "stepping.StepIn", "no call from current position", nil)
	}

	// Reverse: land on the caller's step immediately preceding the Call
	// that opened the current function instance.
	fi, err := e.store.FunctionByKey(cur.Key)
	if err != nil {
		return cur, err
	}
	idxAtCall, ok := e.store.StepIndexAtTick(fi.CallTick)
	if !ok || idxAtCall == 0 {
		return cur, corekit.NewError(corekit.KindNotInRecording, "stepping.StepIn", "no step before call", nil)
	}
	s, err := e.store.StepAt(idxAtCall - 1)
	if err != nil {
		return cur, err
	}
	return positionFromStep(s), nil
}

// childOfCall resolves which function instance a Call step opened, by
// matching call ticks — the step right after the call (at callIdx+1)
// belongs to the child, and the call step's tick equals the child's
// CallTick.
func childOfCall(store stepSource, callIdx uint64, callStep corekit.Step) (corekit.FunctionInstance, error) {
	if next, err := store.StepAt(callIdx + 1); err == nil {
		fi, err := store.FunctionByKey(next.Key)
		if err == nil && fi.CallTick == callStep.Tick {
			return fi, nil
		}
	}
	return corekit.FunctionInstance{}, corekit.NewError(corekit.KindNotInRecording, "stepping.childOfCall", "no instance for call step", nil)
}

// stepOut implements §4.2 "StepOut": forward, the Return step of the
// current function instance; reverse, the Call step that opened it.
func (e *Engine) stepOut(ctx context.Context, cur corekit.Position, req Request) (corekit.Position, error) {
	fi, err := e.store.FunctionByKey(cur.Key)
	if err != nil {
		return cur, err
	}
	if fi.IsRoot() && req.Direction == Forward {
		return cur, corekit.NewError(corekit.KindNotInRecording, "stepping.StepOut", "cannot step out of the root frame", nil)
	}

	if req.Direction == Forward {
		if !fi.ReturnTick.Valid() {
			return cur, corekit.NewError(corekit.KindNotInRecording, "stepping.StepOut", "function never returns in this recording", nil)
		}
		idx, ok := e.store.StepIndexAtTick(fi.ReturnTick)
		if !ok {
			return cur, corekit.NewError(corekit.KindNotInRecording, "stepping.StepOut", "return step missing", nil)
		}
		s, err := e.store.StepAt(idx)
		if err != nil {
			return cur, err
		}
		return positionFromStep(s), nil
	}

	idx, ok := e.store.StepIndexAtTick(fi.CallTick)
	if !ok {
		return cur, corekit.NewError(corekit.KindNotInRecording, "stepping.StepOut", "call step missing", nil)
	}
	s, err := e.store.StepAt(idx)
	if err != nil {
		return cur, err
	}
	return positionFromStep(s), nil
}

// cont implements §4.2 "Continue": advance until a breakpoint location
// matches or the recording ends. Reaching the end without a match is not
// an error — Continue lands on the last (or first, reverse) step.
func (e *Engine) cont(ctx context.Context, cur corekit.Position, req Request) (corekit.Position, error) {
	idx, ok := e.store.StepIndexAtTick(cur.Tick)
	if !ok {
		return cur, corekit.NewError(corekit.KindNotInRecording, "stepping.Continue", "current position not recorded", nil)
	}

	last := positionFromStep(mustStep(e.store, idx))

	if req.Direction == Forward {
		for i := idx + 1; i < e.store.StepCount(); i++ {
			if err := ctx.Err(); err != nil {
				return cur, corekit.NewError(corekit.KindCancelled, "stepping.Continue", "superseded", err)
			}
			s, err := e.store.StepAt(i)
			if err != nil {
				continue
			}
			last = positionFromStep(s)
			if e.bps.Matches(s.Loc) {
				return last, nil
			}
		}
		return last, nil
	}

	for i := idx; i > 0; i-- {
		if err := ctx.Err(); err != nil {
			return cur, corekit.NewError(corekit.KindCancelled, "stepping.Continue", "superseded", err)
		}
		s, err := e.store.StepAt(i - 1)
		if err != nil {
			continue
		}
		last = positionFromStep(s)
		if e.bps.Matches(s.Loc) {
			return last, nil
		}
	}
	return last, nil
}

func mustStep(store stepSource, idx uint64) corekit.Step {
	s, _ := store.StepAt(idx)
	return s
}
