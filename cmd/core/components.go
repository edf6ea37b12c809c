package main

import (
	"context"
	"sync"

	"github.com/codetracer/replay-core/calltree"
	"github.com/codetracer/replay-core/corekit"
	"github.com/codetracer/replay-core/dispatch"
	"github.com/codetracer/replay-core/eventlog"
	"github.com/codetracer/replay-core/flow"
	"github.com/codetracer/replay-core/tracepoint"
	"github.com/codetracer/replay-core/tracestore"
	"github.com/codetracer/replay-core/wire"
)

// errGateDisabled reports a request against a component the live Config has
// gated off (§6 "Configuration").
type errGateDisabled string

func (e errGateDisabled) Error() string { return string(e) + " is disabled by configuration" }

// components bundles every per-recording engine alongside the Dispatcher, so
// serveControlConn has one handle to reach all of §4's read-mostly
// components instead of a growing parameter list. Its own mutex guards the
// stateful engines (Call-Tree expand/collapse, tracepoint sessions, the
// live Config) against concurrent connections; the Dispatcher already
// serializes every mutating Stepping Engine request on its own.
type components struct {
	store      *tracestore.Store
	dispatcher *dispatch.Dispatcher

	mu       sync.Mutex
	cfg      wire.Config
	calltree *calltree.Engine
	flow     *flow.Reconstructor
	events   *eventlog.Log
	runtime  *tracepoint.Runtime
	sessions map[tracepoint.SessionID]*tracepoint.Session
	tpBroker *tracepoint.Broker
}

// newComponents constructs every engine §4.3/§4.4/§4.6/§4.7 needs directly
// from store, at the default Config (§6: "every gate enabled... before any
// configuration message arrives").
func newComponents(store *tracestore.Store, dispatcher *dispatch.Dispatcher) *components {
	cfg := wire.DefaultConfig()
	c := &components{
		store:      store,
		dispatcher: dispatcher,
		cfg:        cfg,
		events:     eventlog.New(store),
		runtime:    tracepoint.New(store),
		sessions:   make(map[tracepoint.SessionID]*tracepoint.Session),
		tpBroker:   tracepoint.NewBroker(),
	}
	c.flow = flow.New(store, flow.NewSourceShapeProvider(store, store))
	c.calltree = calltree.New(store, calltreeMode(cfg), nil)
	return c
}

func calltreeMode(cfg wire.Config) calltree.Mode {
	enabled, callArgs := cfg.CallTreeMode()
	switch {
	case !enabled:
		return calltree.NoInstrumentation
	case callArgs:
		return calltree.FullRecord
	default:
		return calltree.CallKeyOnly
	}
}

// applyConfig replaces the live Config and, where the change is observable
// immediately rather than just at the next request, reconfigures the
// already-built engines (the Call-Tree Engine's Mode) in place.
func (c *components) applyConfig(cfg wire.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.calltree.SetMode(calltreeMode(cfg))
}

func (c *components) config() wire.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

func (c *components) session(id tracepoint.SessionID) *tracepoint.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[id]
	if !ok {
		sess = tracepoint.NewSession(id)
		c.sessions[id] = sess
	}
	return sess
}

// flowRequest/flowResult: §4.3.
type flowRequest struct {
	Key corekit.CallKey `json:"key"`
}

// flowResult is flow.ViewUpdate with its corekit.SourceLoc-keyed maps
// flattened to ordered slices: a map keyed by a struct has no stable JSON
// encoding (corekit.SourceLoc implements no MarshalText), so the wire shape
// carries {position, ...} entries instead, matching the precedent
// wireResultBody already sets for adapting a domain type to the wire.
type flowResult struct {
	Key                corekit.CallKey          `json:"key"`
	Status             string                   `json:"status"`
	Error              bool                     `json:"error"`
	ErrorMessage       string                   `json:"errorMessage,omitempty"`
	PositionStepCounts []flowPositionStepCounts `json:"positionStepCounts"`
	Steps              []flow.StepInfo          `json:"steps"`
	Loops              []flow.LoopInfo          `json:"loops"`
	BranchesTaken      []flowBranchesTaken      `json:"branchesTaken"`
	LoopIterationSteps []flowLoopIterationSteps `json:"loopIterationSteps"`
	RelevantPositions  []corekit.SourceLoc      `json:"relevantPositions"`
	CommentLines       []int                    `json:"commentLines"`
}

type flowPositionStepCounts struct {
	Position corekit.SourceLoc `json:"position"`
	Counts   []int             `json:"counts"`
}

type flowBranchesTaken struct {
	Position corekit.SourceLoc           `json:"position"`
	Slots    map[string]flow.BranchState `json:"slots"`
}

type flowLoopIterationSteps struct {
	Position corekit.SourceLoc `json:"position"`
	Counts   map[int]int       `json:"counts"`
}

func toFlowResult(u *flow.ViewUpdate) flowResult {
	r := flowResult{
		Key:               u.Key,
		Status:            u.Status.String(),
		Error:             u.Error,
		ErrorMessage:      u.ErrorMessage,
		Steps:             u.Steps,
		Loops:             u.Loops,
		RelevantPositions: u.RelevantPositions,
		CommentLines:      u.CommentLines,
	}
	for pos, counts := range u.PositionStepCounts {
		r.PositionStepCounts = append(r.PositionStepCounts, flowPositionStepCounts{Position: pos, Counts: counts})
	}
	for pos, slots := range u.BranchesTaken {
		r.BranchesTaken = append(r.BranchesTaken, flowBranchesTaken{Position: pos, Slots: slots})
	}
	for pos, counts := range u.LoopIterationSteps {
		r.LoopIterationSteps = append(r.LoopIterationSteps, flowLoopIterationSteps{Position: pos, Counts: counts})
	}
	return r
}

// handleFlow reconstructs the flow view for one function instance (§4.3).
// Flow reconstruction only reads the store, but can walk a large instance,
// so it still runs under the Dispatcher's CategoryHistory for supersession
// and busy-status visibility rather than directly on the connection
// goroutine.
func (c *components) handleFlow(ctx context.Context, req flowRequest) (flowResult, error) {
	if !c.config().FlowEnabled {
		return flowResult{}, errGateDisabled("flow")
	}
	var update *flow.ViewUpdate
	res := <-c.dispatcher.Run(ctx, dispatch.CategoryHistory, "flow.reconstruct", func(opCtx context.Context) error {
		u, err := c.flow.Reconstruct(opCtx, req.Key)
		update = u
		return err
	})
	if res.Err != nil {
		return flowResult{}, res.Err
	}
	return toFlowResult(update), nil
}

// calltreeLoadRequest/calltreeLoadResult: §4.4.
type calltreeLoadRequest struct {
	Root               corekit.CallKey `json:"root"`
	StartCallLineIndex int             `json:"startCallLineIndex"`
	Depth              int             `json:"depth"`
	Height             int             `json:"height"`
	OptimizeCollapse   bool            `json:"optimizeCollapse"`
}

func (c *components) handleCallTreeLoad(ctx context.Context, req calltreeLoadRequest) (calltree.CallArgsUpdateResults, error) {
	var out calltree.CallArgsUpdateResults
	if !c.config().CalltraceEnabled {
		return out, errGateDisabled("calltrace")
	}
	res := <-c.dispatcher.Run(ctx, dispatch.CategoryHistory, "calltree.load", func(context.Context) error {
		var err error
		c.mu.Lock()
		out, err = c.calltree.LoadCallTrace(req.Root, req.StartCallLineIndex, req.Depth, req.Height, req.OptimizeCollapse)
		c.mu.Unlock()
		return err
	})
	return out, res.Err
}

type calltreeKeyRequest struct {
	Key corekit.CallKey `json:"key"`
}

func (c *components) handleCallTreeExpand(req calltreeKeyRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calltree.ExpandChildren(req.Key)
}

func (c *components) handleCallTreeCollapse(req calltreeKeyRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calltree.CollapseChildren(req.Key)
}

type calltreeFindRequest struct {
	Root      corekit.CallKey `json:"root"`
	SearchArg string          `json:"searchArg"`
}

type calltreeFindResult struct {
	Key   corekit.CallKey `json:"key"`
	Found bool            `json:"found"`
}

func (c *components) handleCallTreeFind(req calltreeFindRequest) calltreeFindResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, ok := c.calltree.FindCall(req.Root, req.SearchArg)
	return calltreeFindResult{Key: key, Found: ok}
}

// eventsRequest/eventsResult: §4.6. The Event Log reads directly against
// the Trace Store rather than through the Dispatcher: a table page is
// always a bounded, cheap query (§4.1's stride/pagination shape), unlike a
// Flow reconstruction or Call-Tree walk.
type eventsRequest struct {
	Low           corekit.Tick          `json:"low"`
	High          corekit.Tick          `json:"high"`
	SelectedKinds []corekit.EventKind   `json:"selectedKinds"`
	Table         eventlog.TableRequest `json:"table"`
}

func (c *components) handleEvents(req eventsRequest) (eventlog.TableData, error) {
	if !c.config().EventsEnabled {
		return eventlog.TableData{}, errGateDisabled("events")
	}
	mask := tracestore.NewEventFilterMask(req.SelectedKinds...)
	return c.events.Update(req.Low, req.High, mask, req.Table)
}

// tracepointConfigureRequest replaces a session's tracepoint set (§3
// Tracepoint Session, §4.7).
type tracepointConfigureRequest struct {
	Session     tracepoint.SessionID    `json:"session"`
	Tracepoints []tracepoint.Tracepoint `json:"tracepoints"`
}

func (c *components) handleTracepointConfigure(req tracepointConfigureRequest) error {
	if !c.config().TraceEnabled {
		return errGateDisabled("trace")
	}
	c.session(req.Session).SetTracepoints(req.Tracepoints)
	return nil
}

// tracepointRunRequest/tracepointRunResult: §4.7. The runtime walks the
// whole recording, publishing every TraceUpdate/TracepointResults batch to
// the session's Broker as it goes (the live feed a debug HTTP SSE
// subscriber, or a future streaming transport, reads from) and returning
// only the final summary over the request/response control socket, since
// that protocol is one reply per request rather than a push stream.
type tracepointRunRequest struct {
	Session   tracepoint.SessionID `json:"session"`
	StopAfter int                  `json:"stopAfter"`
}

type tracepointRunResult struct {
	TotalCount int      `json:"totalCount"`
	Errors     []string `json:"errors,omitempty"`
}

func (c *components) handleTracepointRun(ctx context.Context, req tracepointRunRequest) (tracepointRunResult, error) {
	if !c.config().TraceEnabled {
		return tracepointRunResult{}, errGateDisabled("trace")
	}
	sess := c.session(req.Session)
	var last tracepoint.TraceUpdate
	res := <-c.dispatcher.Run(ctx, dispatch.CategoryTrace, "tracepoint.run", func(opCtx context.Context) error {
		return c.runtime.Run(opCtx, sess, req.StopAfter, func(u tracepoint.TraceUpdate, results []tracepoint.TracepointResults) error {
			last = u
			c.tpBroker.Publish(tracepoint.Update{TraceUpdate: u, Results: results})
			return nil
		})
	})
	if res.Err != nil {
		return tracepointRunResult{}, res.Err
	}
	return tracepointRunResult{TotalCount: sess.TotalCount, Errors: last.TracepointErrors}, nil
}

// handleConfig applies a parsed wire.Config (§6 "Configuration").
func (c *components) handleConfig(payload []byte) (wire.Config, error) {
	cfg, err := wire.ParseConfig(payload)
	if err != nil {
		return wire.Config{}, err
	}
	c.applyConfig(cfg)
	return cfg, nil
}
