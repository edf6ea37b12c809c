package tracepoint

import (
	"context"
	"fmt"

	"github.com/codetracer/replay-core/corekit"
	"github.com/codetracer/replay-core/valuesvc"
)

// stepSource is the subset of *tracestore.Store the runtime needs. Unlike
// the Flow Reconstructor (scoped to one function instance), the runtime
// walks the entire recording: a tracepoint fires wherever its location is
// reached, in any call.
type stepSource interface {
	StepCount() uint64
	StepAt(index uint64) (corekit.Step, error)
	FunctionByKey(key corekit.CallKey) (corekit.FunctionInstance, error)
	Snapshot(id uint64) (before, after map[string]corekit.Value, err error)
}

// TraceUpdate is one batch notification the runtime publishes after
// yielding (§4.7: "runTracepoints({session, stopAfter}) → streaming
// TraceUpdate{...}").
type TraceUpdate struct {
	UpdateID         uint64
	FirstUpdate      bool
	SessionID        SessionID
	TracepointErrors []string
	Count            int
	TotalCount       int
	RefreshEventLog  bool
}

// TracepointResults is the per-tracepoint payload accompanying a
// TraceUpdate (§4.7).
type TracepointResults struct {
	SessionID        SessionID
	TracepointID     TracepointID
	TracepointValues []Stop
	LastInSession    bool
	FirstUpdate      bool
}

// Runtime executes tracepoint sessions against a Trace Store (§4.7).
type Runtime struct {
	store stepSource
}

// New returns a Runtime reading from store.
func New(store stepSource) *Runtime {
	return &Runtime{store: store}
}

// Run iterates the whole recording once, evaluating every enabled
// tracepoint in sess at every step whose location matches, yielding control
// to onUpdate after each stopAfter stops across all tracepoints combined
// (§4.7 "yields control after each stopAfter stops"). onUpdate returning a
// non-nil error, or ctx being cancelled, halts iteration at the next step
// boundary and returns that error.
func (r *Runtime) Run(ctx context.Context, sess *Session, stopAfter int, onUpdate func(TraceUpdate, []TracepointResults) error) error {
	if stopAfter <= 0 {
		stopAfter = 1
	}

	locations := make(map[corekit.SourceLoc][]*Tracepoint)
	for i := range sess.Tracepoints {
		tp := &sess.Tracepoints[i]
		if !tp.Enabled {
			continue
		}
		locations[tp.Location] = append(locations[tp.Location], tp)
	}

	iterationOf := make(map[TracepointID]map[corekit.CallKey]int)
	var errs []string
	sinceYield := 0
	updateID := uint64(0)
	first := true
	batch := make(map[TracepointID][]Stop)

	n := r.store.StepCount()
	for i := uint64(0); i < n; i++ {
		if err := ctx.Err(); err != nil {
			return corekit.NewError(corekit.KindCancelled, "tracepoint.Run", "session cancelled", err)
		}

		step, err := r.store.StepAt(i)
		if err != nil {
			return err
		}
		tps, ok := locations[step.Loc]
		if !ok {
			continue
		}

		for _, tp := range tps {
			stop, err := r.evaluate(tp, step, iterationOf)
			if err != nil {
				errs = append(errs, fmt.Sprintf("tracepoint %d: %s", tp.ID, err))
				continue
			}
			stop.ResultIndex = len(sess.Results[tp.ID])
			sess.recordStop(tp.ID, stop)
			batch[tp.ID] = append(batch[tp.ID], stop)
			sess.TotalCount++
			sinceYield++
		}

		if sinceYield >= stopAfter {
			updateID++
			if err := r.flush(sess, &batch, &errs, updateID, first, false, onUpdate); err != nil {
				return err
			}
			first = false
			sinceYield = 0
		}
	}

	updateID++
	return r.flush(sess, &batch, &errs, updateID, first, true, onUpdate)
}

func (r *Runtime) evaluate(tp *Tracepoint, step corekit.Step, iterationOf map[TracepointID]map[corekit.CallKey]int) (Stop, error) {
	root, exprSteps, err := valuesvc.ParseExpr(tp.Expression)
	if err != nil {
		return Stop{}, err
	}

	before, after, err := r.store.Snapshot(step.SnapshotID)
	if err != nil {
		return Stop{}, err
	}
	rootValue, ok := after[root]
	if !ok {
		rootValue, ok = before[root]
	}
	if !ok {
		rootValue = corekit.Value{Variant: corekit.ValueNonExpanded}
	}
	result := valuesvc.Navigate(rootValue, exprSteps)

	if iterationOf[tp.ID] == nil {
		iterationOf[tp.ID] = make(map[corekit.CallKey]int)
	}
	iterationOf[tp.ID][step.Key]++

	fi, _ := r.store.FunctionByKey(step.Key)

	return Stop{
		Tick:         step.Tick,
		Path:         step.Loc.Path,
		Line:         step.Loc.Line,
		Iteration:    iterationOf[tp.ID][step.Key],
		Locals:       after,
		Description:  describeValue(result),
		FunctionName: fi.FunctionName,
	}, nil
}

func describeValue(v corekit.Value) string {
	switch v.Variant {
	case corekit.ValueError:
		return "<error: " + v.ErrorMessage + ">"
	case corekit.ValueString, corekit.ValueCString, corekit.ValueRaw:
		return v.Str
	default:
		return v.Variant.String()
	}
}

func (r *Runtime) flush(sess *Session, batch *map[TracepointID][]Stop, errs *[]string, updateID uint64, first, last bool, onUpdate func(TraceUpdate, []TracepointResults) error) error {
	var results []TracepointResults
	for id, stops := range *batch {
		results = append(results, TracepointResults{
			SessionID:        sess.ID,
			TracepointID:     id,
			TracepointValues: stops,
			LastInSession:    last,
			FirstUpdate:      first,
		})
	}
	update := TraceUpdate{
		UpdateID:         updateID,
		FirstUpdate:      first,
		SessionID:        sess.ID,
		TracepointErrors: append([]string(nil), *errs...),
		Count:            len(results),
		TotalCount:       sess.TotalCount,
		RefreshEventLog:  false,
	}
	*batch = make(map[TracepointID][]Stop)
	return onUpdate(update, results)
}
