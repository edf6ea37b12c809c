package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codetracer/replay-core/corekit"
	"github.com/codetracer/replay-core/position"
	"github.com/codetracer/replay-core/stepping"
)

// fakeStore implements the same method set stepping.Engine needs from
// *tracestore.Store, structurally, without importing tracestore.
type fakeStore struct {
	steps []corekit.Step
}

func (f *fakeStore) StepAt(index uint64) (corekit.Step, error) {
	if index >= uint64(len(f.steps)) {
		return corekit.Step{}, corekit.NewError(corekit.KindNotInRecording, "x", "oob", nil)
	}
	return f.steps[index], nil
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
func (f *fakeStore) StepsInFunction(key corekit.CallKey) ([]corekit.Step, error) { return nil, nil }
func (f *fakeStore) FunctionByKey(key corekit.CallKey) (corekit.FunctionInstance, error) {
	return corekit.FunctionInstance{}, nil
}
func (f *fakeStore) EventByID(id corekit.EventID) (corekit.Event, error) { return corekit.Event{}, nil }

func newDispatcher() (*Dispatcher, *position.Model) {
	store := &fakeStore{steps: []corekit.Step{
		{Tick: 1, Loc: corekit.SourceLoc{Path: "a.go", Line: 1}, Depth: 0},
		{Tick: 2, Loc: corekit.SourceLoc{Path: "a.go", Line: 2}, Depth: 0},
		{Tick: 3, Loc: corekit.SourceLoc{Path: "a.go", Line: 3}, Depth: 0},
	}}
	engine := stepping.New(store, position.NewBreakpoints())
	pos := position.New()
	pos.Set(corekit.Position{Tick: 1, Loc: corekit.SourceLoc{Path: "a.go", Line: 1}})
	reg := newTestRegistry()
	return New(pos, engine, NewStatusBroker(), NewMetricsWith(reg), nil), pos
}

func TestStepCommitsPositionOnSuccess(t *testing.T) {
	d, pos := newDispatcher()

	res := <-d.Step(context.Background(), stepping.Request{Op: stepping.OpNext, Direction: stepping.Forward})
	require.NoError(t, res.Err)
	require.False(t, res.Superseded)
	require.Equal(t, corekit.Tick(2), pos.Current().Tick)
	require.Equal(t, corekit.Tick(2), res.Position.Tick)
}

func TestRunSupersessionCancelsInFlightAndWaitsAck(t *testing.T) {
	d, _ := newDispatcher()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	firstDone := make(chan struct{})

	firstResult := d.Run(context.Background(), CategoryHistory, "slow", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		close(firstDone)
		return corekit.NewError(corekit.KindCancelled, "test", "cancelled", ctx.Err())
	})

	<-started

	secondResult := d.Run(context.Background(), CategoryHistory, "fast", func(ctx context.Context) error {
		// By the time this runs, the first operation must already have
		// acknowledged cancellation (§4.8 Supersession).
		select {
		case <-firstDone:
		default:
			t.Error("second operation started before first acknowledged cancellation")
		}
		return nil
	})

	r1 := <-firstResult
	require.Error(t, r1.Err)
	require.True(t, corekit.Cancelled.Is(r1.Err))

	r2 := <-secondResult
	require.NoError(t, r2.Err)
	require.False(t, r2.Superseded)

	select {
	case <-cancelled:
	default:
		t.Fatal("expected first operation's context to have been cancelled")
	}
}

func TestRunStampsDistinctOpIDs(t *testing.T) {
	d, _ := newDispatcher()

	r1 := <-d.Run(context.Background(), CategoryTrace, "one", func(ctx context.Context) error { return nil })
	r2 := <-d.Run(context.Background(), CategoryTrace, "two", func(ctx context.Context) error { return nil })

	require.NotEmpty(t, r1.OpID)
	require.NotEmpty(t, r2.OpID)
	require.NotEqual(t, r1.OpID, r2.OpID)
}

func TestPublishesStatusOnStartAndFinish(t *testing.T) {
	d, _ := newDispatcher()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan StatusUpdate, 8)
	go d.status.Subscribe(ctx, ch)

	// Give Subscribe a moment to register before the operation runs.
	time.Sleep(10 * time.Millisecond)

	<-d.Run(context.Background(), CategoryTrace, "work", func(ctx context.Context) error { return nil })

	var updates []StatusUpdate
	deadline := time.After(time.Second)
	for len(updates) < 2 {
		select {
		case u := <-ch:
			updates = append(updates, u)
		case <-deadline:
			t.Fatal("timed out waiting for status updates")
		}
	}

	require.False(t, updates[0].Finished)
	require.True(t, updates[0].TraceBusy)
	require.True(t, updates[1].Finished)
	require.False(t, updates[1].TraceBusy)
}

func TestOperationCountIncrementsPerSubmission(t *testing.T) {
	d, _ := newDispatcher()

	<-d.Run(context.Background(), CategoryHistory, "a", func(ctx context.Context) error { return nil })
	<-d.Run(context.Background(), CategoryHistory, "b", func(ctx context.Context) error { return nil })

	require.EqualValues(t, 2, d.opCount)
}

func TestCategoryStringNamesEveryValue(t *testing.T) {
	require.Equal(t, "stable", CategoryStable.String())
	require.Equal(t, "history", CategoryHistory.String())
	require.Equal(t, "trace", CategoryTrace.String())
}
