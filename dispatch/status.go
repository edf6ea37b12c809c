package dispatch

import (
	"context"

	"github.com/codetracer/replay-core/internal/pubsub"
)

// StatusUpdate is the Dispatcher's own streaming notification (§4.8
// "After every state change the Dispatcher emits a StatusUpdate"). One is
// published when a mutating request starts and another when it finishes (or
// is superseded), so the UI can drive a busy spinner per category.
type StatusUpdate struct {
	CurrentOperation string
	StableBusy       bool
	HistoryBusy      bool
	TraceBusy        bool
	Finished         bool
	LastAction       string
	OperationCount   uint64
}

// StatusBroker fans out StatusUpdates to every connected wire client,
// reusing the same generic pub/sub primitive the Tracepoint Runtime's update
// stream is built on (internal/pubsub).
type StatusBroker struct {
	inner *pubsub.Broker[StatusUpdate]
}

// NewStatusBroker returns an empty StatusBroker.
func NewStatusBroker() *StatusBroker {
	return &StatusBroker{inner: pubsub.NewBroker[StatusUpdate](nil)}
}

// Publish fans out u to every subscriber.
func (b *StatusBroker) Publish(u StatusUpdate) {
	b.inner.Publish(u)
}

// Subscribe streams every StatusUpdate into ch until ctx is cancelled. There
// is no per-session filtering — status is process-wide, unlike Tracepoint
// updates which are scoped to one session.
func (b *StatusBroker) Subscribe(ctx context.Context, ch chan<- StatusUpdate) (pubsub.Stats, error) {
	return b.inner.Subscribe(ctx, func(StatusUpdate) bool { return true }, ch)
}
