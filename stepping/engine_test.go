package stepping_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codetracer/replay-core/corekit"
	"github.com/codetracer/replay-core/position"
	"github.com/codetracer/replay-core/stepping"
)

// fakeStore is an in-memory stepSource used so engine tests don't need a
// real mmap'd artifact on disk.
type fakeStore struct {
	steps     []corekit.Step
	functions map[corekit.CallKey]corekit.FunctionInstance
	events    map[corekit.EventID]corekit.Event
}

func (f *fakeStore) StepAt(i uint64) (corekit.Step, error) {
	if i >= uint64(len(f.steps)) {
		return corekit.Step{}, corekit.NewError(corekit.KindNotInRecording, "fake", "oob", nil)
	}
	return f.steps[i], nil
}

func (f *fakeStore) StepCount() uint64 { return uint64(len(f.steps)) }

func (f *fakeStore) StepIndexAtTick(tick corekit.Tick) (uint64, bool) {
	for i, s := range f.steps {
		if s.Tick == tick {
			return uint64(i), true
		}
	}
	return 0, false
}

func (f *fakeStore) FirstStepAtOrAfter(tick corekit.Tick) (uint64, bool) {
	for i, s := range f.steps {
		if s.Tick >= tick {
			return uint64(i), true
		}
	}
	return 0, false
}

func (f *fakeStore) StepsInFunction(key corekit.CallKey) ([]corekit.Step, error) {
	var out []corekit.Step
	for _, s := range f.steps {
		if s.Key == key {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) FunctionByKey(key corekit.CallKey) (corekit.FunctionInstance, error) {
	fi, ok := f.functions[key]
	if !ok {
		return corekit.FunctionInstance{}, corekit.NewError(corekit.KindNotInRecording, "fake", "no fn", nil)
	}
	return fi, nil
}

func (f *fakeStore) EventByID(id corekit.EventID) (corekit.Event, error) {
	ev, ok := f.events[id]
	if !ok {
		return corekit.Event{}, corekit.NewError(corekit.KindNotInRecording, "fake", "no event", nil)
	}
	return ev, nil
}

// newFixture builds:
//
//	tick 0: main, line 1, depth 0
//	tick 1: main, call, depth 0    -> opens "child" at tick 1
//	tick 2: child, line 1, depth 1
//	tick 3: child, return, depth 1
//	tick 4: main, line 2, depth 0
func newFixture() *fakeStore {
	steps := []corekit.Step{
		{Tick: 0, Kind: corekit.StepLine, Loc: corekit.SourceLoc{Path: "a.rb", Line: 1}, Depth: 0, Key: "main"},
		{Tick: 1, Kind: corekit.StepCall, Loc: corekit.SourceLoc{Path: "a.rb", Line: 2}, Depth: 0, Key: "main"},
		{Tick: 2, Kind: corekit.StepLine, Loc: corekit.SourceLoc{Path: "a.rb", Line: 5}, Depth: 1, Key: "child"},
		{Tick: 3, Kind: corekit.StepReturn, Loc: corekit.SourceLoc{Path: "a.rb", Line: 6}, Depth: 1, Key: "child"},
		{Tick: 4, Kind: corekit.StepLine, Loc: corekit.SourceLoc{Path: "a.rb", Line: 3}, Depth: 0, Key: "main"},
	}
	functions := map[corekit.CallKey]corekit.FunctionInstance{
		"main":  {Key: "main", ParentKey: corekit.ZeroCallKey, CallTick: corekit.NoTick, ReturnTick: corekit.NoTick},
		"child": {Key: "child", ParentKey: "main", CallTick: 1, ReturnTick: 3},
	}
	events := map[corekit.EventID]corekit.Event{
		1: {ID: 1, Tick: 2},
	}
	return &fakeStore{steps: steps, functions: functions, events: events}
}

func TestNextAdvancesAtSameOrLowerDepth(t *testing.T) {
	f := newFixture()
	eng := stepping.New(f, position.NewBreakpoints())
	cur := corekit.Position{Tick: 0, Depth: 0, Key: "main"}

	next, err := eng.Resolve(context.Background(), cur, stepping.Request{Op: stepping.OpNext})
	require.NoError(t, err)
	// tick 1 (call, depth 0) qualifies before tick 2 (depth 1).
	require.Equal(t, corekit.Tick(1), next.Tick)
}

func TestNextReverseMirrorsForward(t *testing.T) {
	f := newFixture()
	eng := stepping.New(f, position.NewBreakpoints())
	cur := corekit.Position{Tick: 4, Depth: 0, Key: "main"}

	back, err := eng.Resolve(context.Background(), cur, stepping.Request{Op: stepping.OpNext, Direction: stepping.Reverse})
	require.NoError(t, err)
	require.Equal(t, corekit.Tick(1), back.Tick)
}

func TestStepInLandsOnChildFirstLine(t *testing.T) {
	f := newFixture()
	eng := stepping.New(f, position.NewBreakpoints())
	cur := corekit.Position{Tick: 1, Depth: 0, Key: "main"}

	next, err := eng.Resolve(context.Background(), cur, stepping.Request{Op: stepping.OpStepIn})
	require.NoError(t, err)
	require.Equal(t, corekit.Tick(2), next.Tick)
	require.Equal(t, corekit.CallKey("child"), next.Key)
}

func TestStepInReverseLandsBeforeCall(t *testing.T) {
	f := newFixture()
	eng := stepping.New(f, position.NewBreakpoints())
	cur := corekit.Position{Tick: 2, Depth: 1, Key: "child"}

	prev, err := eng.Resolve(context.Background(), cur, stepping.Request{Op: stepping.OpStepIn, Direction: stepping.Reverse})
	require.NoError(t, err)
	require.Equal(t, corekit.Tick(0), prev.Tick)
}

func TestStepOutLandsOnReturn(t *testing.T) {
	f := newFixture()
	eng := stepping.New(f, position.NewBreakpoints())
	cur := corekit.Position{Tick: 2, Depth: 1, Key: "child"}

	next, err := eng.Resolve(context.Background(), cur, stepping.Request{Op: stepping.OpStepOut})
	require.NoError(t, err)
	require.Equal(t, corekit.Tick(3), next.Tick)
}

func TestStepOutAtRootFails(t *testing.T) {
	f := newFixture()
	eng := stepping.New(f, position.NewBreakpoints())
	cur := corekit.Position{Tick: 0, Depth: 0, Key: "main"}

	_, err := eng.Resolve(context.Background(), cur, stepping.Request{Op: stepping.OpStepOut})
	require.Error(t, err)
	var ce *corekit.Error
	require.ErrorAs(t, err, &ce)
	require.Equal(t, corekit.KindNotInRecording, ce.Kind)
}

func TestContinueStopsAtBreakpoint(t *testing.T) {
	f := newFixture()
	bps := position.NewBreakpoints()
	bps.Set(corekit.SourceLoc{Path: "a.rb", Line: 3}, true)
	eng := stepping.New(f, bps)
	cur := corekit.Position{Tick: 0, Depth: 0, Key: "main"}

	next, err := eng.Resolve(context.Background(), cur, stepping.Request{Op: stepping.OpContinue})
	require.NoError(t, err)
	require.Equal(t, corekit.Tick(4), next.Tick)
}

func TestContinueReachesEndWithoutBreakpoint(t *testing.T) {
	f := newFixture()
	eng := stepping.New(f, position.NewBreakpoints())
	cur := corekit.Position{Tick: 0, Depth: 0, Key: "main"}

	next, err := eng.Resolve(context.Background(), cur, stepping.Request{Op: stepping.OpContinue})
	require.NoError(t, err)
	require.Equal(t, corekit.Tick(4), next.Tick)
}

func TestResolveCancelledLeavesPositionUnchanged(t *testing.T) {
	f := newFixture()
	eng := stepping.New(f, position.NewBreakpoints())
	cur := corekit.Position{Tick: 0, Depth: 0, Key: "main"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := eng.Resolve(ctx, cur, stepping.Request{Op: stepping.OpNext})
	require.Error(t, err)
	require.Equal(t, cur, got)
	var ce *corekit.Error
	require.ErrorAs(t, err, &ce)
	require.Equal(t, corekit.KindCancelled, ce.Kind)
}

func TestJumpToTick(t *testing.T) {
	f := newFixture()
	eng := stepping.New(f, position.NewBreakpoints())

	pos, err := eng.ResolveJump(context.Background(), corekit.Position{}, stepping.Jump{Kind: stepping.JumpToTick, Tick: 2})
	require.NoError(t, err)
	require.Equal(t, corekit.Tick(2), pos.Tick)
}

func TestJumpToEventLandsAtOrAfterEventTick(t *testing.T) {
	f := newFixture()
	eng := stepping.New(f, position.NewBreakpoints())

	pos, err := eng.ResolveJump(context.Background(), corekit.Position{}, stepping.Jump{Kind: stepping.JumpToEvent, EventID: 1})
	require.NoError(t, err)
	require.Equal(t, corekit.Tick(2), pos.Tick)
}

func TestJumpToCallStackIndex(t *testing.T) {
	f := newFixture()
	eng := stepping.New(f, position.NewBreakpoints())
	cur := corekit.Position{Tick: 2, Depth: 1, Key: "child"}

	pos, err := eng.ResolveJump(context.Background(), cur, stepping.Jump{Kind: stepping.JumpToCallStackIndex, CallStackIndex: 1})
	require.NoError(t, err)
	require.Equal(t, corekit.Tick(1), pos.Tick)
}

func TestJumpToTickNotRecordedFails(t *testing.T) {
	f := newFixture()
	eng := stepping.New(f, position.NewBreakpoints())

	_, err := eng.ResolveJump(context.Background(), corekit.Position{}, stepping.Jump{Kind: stepping.JumpToTick, Tick: 99})
	require.Error(t, err)
	var ce *corekit.Error
	require.ErrorAs(t, err, &ce)
	require.Equal(t, corekit.KindNotInRecording, ce.Kind)
}
