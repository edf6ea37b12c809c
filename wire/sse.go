package wire

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bernerdschaefer/eventsource"

	"github.com/codetracer/replay-core/dispatch"
)

// SSEHandler mirrors the Dispatcher's StatusUpdate stream as Server-Sent
// Events, an optional secondary debug transport alongside the primary
// length-prefixed JSON socket protocol: primary transport plus an SSE
// debug mirror.
type SSEHandler struct {
	status *dispatch.StatusBroker
}

// NewSSEHandler returns an http.Handler streaming status from broker.
func NewSSEHandler(broker *dispatch.StatusBroker) *SSEHandler {
	return &SSEHandler{status: broker}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	eventsource.Handler(func(lastID string, enc *eventsource.Encoder, stop <-chan bool) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		ch := make(chan dispatch.StatusUpdate, 16)
		go func() {
			h.status.Subscribe(ctx, ch)
		}()

		for {
			select {
			case <-stop:
				return
			case u, ok := <-ch:
				if !ok {
					return
				}
				data, err := json.Marshal(u)
				if err != nil {
					continue
				}
				if err := enc.Encode(eventsource.Event{Type: "status", Data: data}); err != nil {
					return
				}
			}
		}
	}).ServeHTTP(w, r)
}
