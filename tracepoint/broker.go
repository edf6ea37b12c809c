package tracepoint

import (
	"context"

	"github.com/codetracer/replay-core/internal/pubsub"
)

// Update bundles one TraceUpdate with its per-tracepoint results, the unit
// the broker streams to subscribers (the Dispatcher's wire-facing push
// channel, §4.7/§6).
type Update struct {
	TraceUpdate TraceUpdate
	Results     []TracepointResults
}

// Broker fans out a running session's updates to any number of
// subscribers, reusing the generic pub/sub primitive the Dispatcher's own
// status stream is built on.
type Broker struct {
	inner *pubsub.Broker[Update]
}

// NewBroker returns a Broker with no transform — updates are published
// exactly as produced.
func NewBroker() *Broker {
	return &Broker{inner: pubsub.NewBroker[Update](nil)}
}

// Publish fans out update to every subscriber whose session matches.
func (b *Broker) Publish(update Update) {
	b.inner.Publish(update)
}

// Subscribe streams every update for the given session into ch until ctx is
// cancelled, per the runtime's generation/session scoping (§4.7, §3:
// "Generations invalidate cached results after any mutation").
func (b *Broker) Subscribe(ctx context.Context, session SessionID, ch chan<- Update) (pubsub.Stats, error) {
	return b.inner.Subscribe(ctx, func(u Update) bool { return u.TraceUpdate.SessionID == session }, ch)
}
