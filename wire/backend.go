package wire

import (
	"context"

	"github.com/codetracer/replay-core/corekit"
	"github.com/codetracer/replay-core/dispatch"
	"github.com/codetracer/replay-core/position"
	"github.com/codetracer/replay-core/stepping"
)

// storeStepLookup is the narrow slice of *tracestore.Store the DAP bridge's
// stack/source/locals lookups need, distinct from the Stepping Engine's own
// store interface since the bridge never advances a step itself — it only
// reads around whatever Position the Dispatcher already committed.
type storeStepLookup interface {
	FunctionByKey(key corekit.CallKey) (corekit.FunctionInstance, error)
	SourceFor(path string) (string, []int, error)
	StepIndexAtTick(tick corekit.Tick) (uint64, bool)
	SnapshotAt(stepIndex uint64) (before, after map[string]corekit.Value, err error)
}

// CoreBackend adapts a Dispatcher and a Trace Store into the dapBackend the
// Bridge drives. It is the one place in wire that holds both a mutating
// handle (Dispatcher) and a read-only handle (the store) together.
type CoreBackend struct {
	dispatcher *dispatch.Dispatcher
	store      storeStepLookup
	bps        *position.Breakpoints
}

// NewCoreBackend returns a CoreBackend wiring dispatcher, store, and bps
// together for the DAP bridge.
func NewCoreBackend(dispatcher *dispatch.Dispatcher, store storeStepLookup, bps *position.Breakpoints) *CoreBackend {
	return &CoreBackend{dispatcher: dispatcher, store: store, bps: bps}
}

func (b *CoreBackend) Step(ctx context.Context, req stepping.Request) <-chan dispatch.Result {
	return b.dispatcher.Step(ctx, req)
}

func (b *CoreBackend) Jump(ctx context.Context, j stepping.Jump) <-chan dispatch.Result {
	return b.dispatcher.Jump(ctx, j)
}

func (b *CoreBackend) Snapshot() corekit.Position {
	return b.dispatcher.Snapshot()
}

func (b *CoreBackend) Breakpoints() *position.Breakpoints {
	return b.bps
}

func (b *CoreBackend) FunctionByKey(key corekit.CallKey) (corekit.FunctionInstance, error) {
	return b.store.FunctionByKey(key)
}

// Locals returns the value snapshot recorded after the step at pos.Tick, or
// nil if pos doesn't land on a recorded step.
func (b *CoreBackend) Locals(pos corekit.Position) map[string]corekit.Value {
	idx, ok := b.store.StepIndexAtTick(pos.Tick)
	if !ok {
		return nil
	}
	_, after, err := b.store.SnapshotAt(idx)
	if err != nil {
		return nil
	}
	return after
}

// Source returns path's full recorded source text (§6: "source returns the
// recording's source snapshot for a path").
func (b *CoreBackend) Source(path string) (string, error) {
	text, _, err := b.store.SourceFor(path)
	return text, err
}
