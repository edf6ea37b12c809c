// Package dispatch implements §4.8's Dispatcher: the single-threaded
// cooperative scheduler every mutating request goes through. Pure read-style
// queries (§4.5 value, §4.6 event log) don't move position.Model at all —
// they snapshot position.Model.Current() and run directly against the Trace
// Store, by design (§4.8: "may observe the Position at the start of their
// work and are expected to complete deterministically against that
// snapshot"). Flow reconstruction and Call-Tree loads are also read-only
// with respect to Position, but walk enough of the recording to want a busy
// indicator and cancellation on supersession, so they still go through Run
// under CategoryHistory.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/codetracer/replay-core/corekit"
	"github.com/codetracer/replay-core/internal/humanize"
	"github.com/codetracer/replay-core/position"
	"github.com/codetracer/replay-core/stepping"
)

// OpID identifies one mutating request, stamped on it and echoed on every
// update produced while it runs, so the UI can discard results superseded by
// a later request (§4.8 "stamps each mutating request with an opId").
type OpID string

// Category groups mutating requests for status reporting. At most one
// request of any category is ever in flight at once — the scheduler is
// single-threaded across all of them — but the UI wants to know which kind
// of work is running.
type Category uint8

const (
	// CategoryStable covers Stepping Engine step/jump requests, which
	// move the session's one current Position.
	CategoryStable Category = iota
	// CategoryHistory covers Flow Reconstructor and Call-Tree Engine
	// loads, which don't move the Position but can run long enough to
	// want their own busy indicator.
	CategoryHistory
	// CategoryTrace covers Tracepoint Runtime sessions.
	CategoryTrace
)

func (c Category) String() string {
	switch c {
	case CategoryStable:
		return "stable"
	case CategoryHistory:
		return "history"
	case CategoryTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// Result is what a submitted Step/Jump resolves to.
type Result struct {
	OpID       OpID
	Position   corekit.Position
	Err        error
	Superseded bool
}

// inFlight tracks the one currently-running mutating operation, so a new
// submission can cancel it and wait for the cancellation acknowledgement
// before starting (§4.8 Supersession).
type inFlight struct {
	opID   OpID
	cancel context.CancelFunc
	done   chan struct{}
}

// Dispatcher serializes every mutating request against position.Model's
// single current Position (§3 Ownership). Submitting a request while one is
// in flight cancels the in-flight one at its next yield point and begins
// the new one only once that cancellation is acknowledged (its goroutine has
// actually returned) — never two mutating operations running concurrently,
// even across categories.
type Dispatcher struct {
	pos    *position.Model
	engine *stepping.Engine

	mu       sync.Mutex
	current  *inFlight
	lastOp   string
	opCount  uint64
	entropy  entropySource

	status  *StatusBroker
	metrics *Metrics
	log     *logrus.Logger
}

// entropySource is the io.Reader ulid.Monotonic needs, narrowed to just the
// method the Dispatcher actually calls.
type entropySource interface {
	Read(p []byte) (int, error)
}

// New returns a Dispatcher scheduling against pos and engine, publishing
// status through status and recording metrics through m. log may be nil, in
// which case a disabled logger is used.
func New(pos *position.Model, engine *stepping.Engine, status *StatusBroker, m *Metrics, log *logrus.Logger) *Dispatcher {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	if status == nil {
		status = NewStatusBroker()
	}
	if m == nil {
		m = NewMetrics()
	}
	return &Dispatcher{
		pos:     pos,
		engine:  engine,
		status:  status,
		metrics: m,
		log:     log,
		entropy: ulid.Monotonic(newSeededReader(), 0),
	}
}

// Step submits a Stepping Engine request. The returned channel receives
// exactly one Result and is then closed.
func (d *Dispatcher) Step(ctx context.Context, req stepping.Request) <-chan Result {
	cur := d.pos.Current()
	return d.submit(ctx, CategoryStable, "step", true, cur, func(opCtx context.Context) (corekit.Position, error) {
		return d.engine.Resolve(opCtx, cur, req)
	})
}

// Jump submits a Stepping Engine jump request.
func (d *Dispatcher) Jump(ctx context.Context, j stepping.Jump) <-chan Result {
	cur := d.pos.Current()
	return d.submit(ctx, CategoryStable, "jump", true, cur, func(opCtx context.Context) (corekit.Position, error) {
		return d.engine.ResolveJump(opCtx, cur, j)
	})
}

// Run submits an arbitrary long-running mutating operation (a Flow
// reconstruction, a Call-Tree load, a Tracepoint Runtime pass) under
// category, without touching position.Model. fn's
// returned error becomes Result.Err; Result.Position is always the zero
// Position for these, since they don't move it.
func (d *Dispatcher) Run(ctx context.Context, category Category, label string, fn func(ctx context.Context) error) <-chan Result {
	return d.submit(ctx, category, label, false, corekit.Position{}, func(opCtx context.Context) (corekit.Position, error) {
		return corekit.Position{}, fn(opCtx)
	})
}

// submit runs op on its own goroutine under the single-flight discipline
// (§4.8). When movesPosition is true and op succeeds uncancelled, the result
// is committed to position.Model only if the Position is still base — the
// same value observed when op started — via SetIfUnchanged, guarding
// against a race between a just-cancelled operation's rollback and a fresh
// request already having landed a different Position first. Non-moving
// categories (Run) pass movesPosition=false and never touch position.Model.
func (d *Dispatcher) submit(parent context.Context, category Category, label string, movesPosition bool, base corekit.Position, op func(ctx context.Context) (corekit.Position, error)) <-chan Result {
	d.mu.Lock()
	prev := d.current
	opID := OpID(ulid.MustNew(ulid.Now(), d.entropy).String())
	d.opCount++
	d.lastOp = label
	opCtx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	d.current = &inFlight{opID: opID, cancel: cancel, done: done}
	d.mu.Unlock()

	d.publishStatus(category, label, false)

	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	out := make(chan Result, 1)
	go func() {
		defer close(done)
		start := time.Now()
		pos, err := op(opCtx)

		d.mu.Lock()
		superseded := d.current == nil || d.current.opID != opID
		if !superseded {
			d.current = nil
		}
		d.mu.Unlock()

		if !superseded && err == nil && movesPosition {
			if !d.pos.SetIfUnchanged(base, pos) {
				d.log.WithFields(logrus.Fields{"op": label, "opId": opID}).
					Warn("position changed concurrently; dropping stale commit")
			}
		}

		elapsed := time.Since(start)
		d.metrics.observe(category, label, err, elapsed)
		fields := logrus.Fields{"op": label, "opId": opID, "category": category.String(), "elapsed": humanize.Duration(elapsed)}
		if err != nil {
			d.log.WithFields(fields).Warn(err)
		} else {
			d.log.WithFields(fields).Debug("completed")
		}

		d.publishStatus(category, label, true)
		out <- Result{OpID: opID, Position: pos, Err: err, Superseded: superseded}
		close(out)
	}()
	return out
}

// Snapshot returns the Position a read-style query should use, captured at
// the moment of the call (§4.8).
func (d *Dispatcher) Snapshot() corekit.Position {
	return d.pos.Current()
}

func (d *Dispatcher) publishStatus(category Category, label string, finished bool) {
	d.mu.Lock()
	count := d.opCount
	last := d.lastOp
	d.mu.Unlock()

	isBusy := !finished
	u := StatusUpdate{
		CurrentOperation: label,
		Finished:         finished,
		LastAction:       last,
		OperationCount:   count,
	}
	if isBusy {
		switch category {
		case CategoryStable:
			u.StableBusy = true
		case CategoryHistory:
			u.HistoryBusy = true
		case CategoryTrace:
			u.TraceBusy = true
		}
	}
	d.metrics.setBusy(category, isBusy)
	d.status.Publish(u)
}
