package flow

import (
	"context"
	"sort"

	"github.com/codetracer/replay-core/corekit"
)

// stepSource is the subset of *tracestore.Store the reconstructor needs.
type stepSource interface {
	StepsInFunction(key corekit.CallKey) ([]corekit.Step, error)
	FunctionByKey(key corekit.CallKey) (corekit.FunctionInstance, error)
	Snapshot(id uint64) (before, after map[string]corekit.Value, err error)
	EventsAtTick(tick corekit.Tick) []corekit.Event
}

// ShapeProvider resolves the static loop/branch shape for a function, so
// the reconstructor doesn't re-derive it from source on every call.
type ShapeProvider interface {
	Shape(key corekit.FunctionKey) (FunctionShape, error)
}

// StepInfo is one reconstructed step entry (§4.3 `steps` field).
type StepInfo struct {
	Position      corekit.SourceLoc
	Tick          corekit.Tick
	Iteration     int
	StepCount     int
	BeforeValues  map[string]corekit.Value
	AfterValues   map[string]corekit.Value
	// ExprOrder lists the expressions whose value changed between
	// BeforeValues and AfterValues, in a stable (alphabetical) order, for
	// the UI to highlight in the order it renders them. There is no
	// recorded evaluation order to replay, only the before/after
	// snapshots, so this is a derived ordering rather than the source
	// language's actual evaluation sequence.
	ExprOrder []string
	// Events is every event recorded at this step's tick (§4.3 `events`).
	Events []corekit.Event
}

// LoopInfo is one reconstructed loop (§4.3 `loops` field).
type LoopInfo struct {
	HeaderLine        int
	BodyStart, BodyEnd int
	Iterations        int
	TickPerIteration  map[int]corekit.Tick
	Internal          []LoopInfo
}

// ViewUpdate is §4.3's `FlowViewUpdate`.
type ViewUpdate struct {
	Key                corekit.CallKey
	Status             Status
	Error              bool
	ErrorMessage       string
	PositionStepCounts map[corekit.SourceLoc][]int
	Steps              []StepInfo
	Loops              []LoopInfo
	BranchesTaken      map[corekit.SourceLoc]map[string]BranchState
	LoopIterationSteps map[corekit.SourceLoc]map[int]int
	RelevantPositions  []corekit.SourceLoc
	// CommentLines lists the comment-only source lines within the
	// function's range, so the UI can skip them when laying out flow
	// columns (§4.3 `commentLines`).
	CommentLines []int
}

// errorUpdate builds a ViewUpdate carrying only an error, per §4.3 failure
// semantics: "no partial data".
func errorUpdate(key corekit.CallKey, msg string) *ViewUpdate {
	return &ViewUpdate{Key: key, Status: Finished, Error: true, ErrorMessage: msg}
}

// Reconstructor builds FlowViewUpdates for one function instance at a time.
type Reconstructor struct {
	store  stepSource
	shapes ShapeProvider
}

// New returns a Reconstructor reading from store and resolving loop shapes
// through shapes.
func New(store stepSource, shapes ShapeProvider) *Reconstructor {
	return &Reconstructor{store: store, shapes: shapes}
}

// Reconstruct builds the FlowViewUpdate for the function instance key. It
// never returns a Go error for a data problem — per §4.3 it reports failure
// inline in the returned update — but does return one for context
// cancellation, since that's a control-flow signal the Dispatcher must see.
func (r *Reconstructor) Reconstruct(ctx context.Context, key corekit.CallKey) (*ViewUpdate, error) {
	steps, err := r.store.StepsInFunction(key)
	if err != nil {
		return errorUpdate(key, err.Error()), nil
	}
	fi, err := r.store.FunctionByKey(key)
	if err != nil {
		return errorUpdate(key, err.Error()), nil
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].Tick < steps[j].Tick })

	shape, err := r.shapes.Shape(fi.FuncKey)
	if err != nil {
		shape = FunctionShape{}
	}

	update := &ViewUpdate{
		Key:                key,
		Status:             Loading,
		PositionStepCounts: make(map[corekit.SourceLoc][]int),
		BranchesTaken:      make(map[corekit.SourceLoc]map[string]BranchState),
		LoopIterationSteps: make(map[corekit.SourceLoc]map[int]int),
		CommentLines:       shape.CommentLines,
	}

	iterationOf := make(map[int]int) // header line -> current iteration index

	for idx, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, corekit.NewError(corekit.KindCancelled, "flow.Reconstruct", "superseded", err)
		}

		loopShape, inLoop := shape.loopFor(step.Loc.Line)
		iteration := 0
		if inLoop {
			if step.Loc.Line == loopShape.HeaderLine {
				iterationOf[loopShape.HeaderLine]++
			}
			iteration = iterationOf[loopShape.HeaderLine]
			if iteration == 0 {
				// First body line observed before its header was
				// ever visited (e.g. a do-while shape) still
				// belongs to iteration 1.
				iterationOf[loopShape.HeaderLine] = 1
				iteration = 1
			}
		}

		info := StepInfo{
			Position:  step.Loc,
			Tick:      step.Tick,
			Iteration: iteration,
			StepCount: idx,
		}
		if before, after, err := r.store.Snapshot(step.SnapshotID); err == nil {
			info.BeforeValues, info.AfterValues = before, after
			info.ExprOrder = changedExprOrder(before, after)
		}
		info.Events = r.store.EventsAtTick(step.Tick)

		update.Steps = append(update.Steps, info)
		update.PositionStepCounts[step.Loc] = append(update.PositionStepCounts[step.Loc], idx)

		if inLoop {
			if update.LoopIterationSteps[step.Loc] == nil {
				update.LoopIterationSteps[step.Loc] = make(map[int]int)
			}
			update.LoopIterationSteps[step.Loc][iteration]++
		}

		r.tagBranches(update, shape, step, idx == len(steps)-1)
	}

	for loc := range update.PositionStepCounts {
		update.RelevantPositions = append(update.RelevantPositions, loc)
	}
	sort.Slice(update.RelevantPositions, func(i, j int) bool {
		a, b := update.RelevantPositions[i], update.RelevantPositions[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Line < b.Line
	})

	update.Loops = buildLoopInfos(shape.Loops, steps, iterationOf)
	update.Status = Finished
	return update, nil
}

// tagBranches records each short-circuit group's outcome at step.Loc. A
// boundary reached (step's line at or past it) is Taken. One the step
// sequence simply never gets to is NotTaken, unless it's the instance's
// last recorded step: falling short of the boundary there means execution
// ended (an early return, a panic, the recording itself stopping) before
// the short circuit could be evaluated at all, which §4.3 step 5 calls
// Unknown rather than NotTaken.
func (r *Reconstructor) tagBranches(update *ViewUpdate, shape FunctionShape, step corekit.Step, isLastStep bool) {
	for _, sc := range shape.ShortCircuits {
		state := NotTaken
		switch {
		case step.Loc.Line >= sc.Boundary:
			state = Taken
		case isLastStep:
			state = Unknown
		}
		if update.BranchesTaken[step.Loc] == nil {
			update.BranchesTaken[step.Loc] = make(map[string]BranchState)
		}
		if existing, ok := update.BranchesTaken[step.Loc][sc.Slot]; !ok || existing == NotTaken {
			update.BranchesTaken[step.Loc][sc.Slot] = state
		}
	}
}

// changedExprOrder returns the expressions present in after whose value
// differs from (or is absent from) before, alphabetically. There's no
// recorded evaluation order to reproduce, only the two snapshots, so this is
// the best derivable ordering rather than a replay of the source language's
// actual sequence.
func changedExprOrder(before, after map[string]corekit.Value) []string {
	var names []string
	for name, av := range after {
		if bv, ok := before[name]; !ok || !sameScalarValue(bv, av) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// sameScalarValue compares two Values on their scalar payload fields.
// Container values (with Children) are always reported as changed: cheaply
// diffing a value tree isn't worth it just to order a highlight list.
func sameScalarValue(a, b corekit.Value) bool {
	if a.Variant != b.Variant || len(a.Children) > 0 || len(b.Children) > 0 {
		return false
	}
	return a.Int == b.Int && a.Float == b.Float && a.Bool == b.Bool &&
		a.Char == b.Char && a.Str == b.Str && a.Addr == b.Addr
}

func buildLoopInfos(shapes []LoopShape, steps []corekit.Step, iterationOf map[int]int) []LoopInfo {
	out := make([]LoopInfo, 0, len(shapes))
	for _, ls := range shapes {
		li := LoopInfo{
			HeaderLine:       ls.HeaderLine,
			BodyStart:        ls.BodyStart,
			BodyEnd:          ls.BodyEnd,
			Iterations:       iterationOf[ls.HeaderLine],
			TickPerIteration: make(map[int]corekit.Tick),
			Internal:         buildLoopInfos(ls.Nested, steps, iterationOf),
		}
		iter := 0
		for _, s := range steps {
			if s.Loc.Line == ls.HeaderLine {
				iter++
				li.TickPerIteration[iter] = s.Tick
			}
		}
		out = append(out, li)
	}
	return out
}
