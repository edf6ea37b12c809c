package wire

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/bernerdschaefer/eventsource"

	"github.com/codetracer/replay-core/tracepoint"
)

// TracepointSSEHandler mirrors one tracepoint session's Update stream as
// Server-Sent Events, the live feed §4.7 batches into while the control
// socket only answers with a final run summary (its request/response shape
// has no room for a push stream mid-request).
type TracepointSSEHandler struct {
	broker *tracepoint.Broker
}

// NewTracepointSSEHandler returns an http.Handler streaming broker's updates
// for the session named by the "session" query parameter.
func NewTracepointSSEHandler(broker *tracepoint.Broker) *TracepointSSEHandler {
	return &TracepointSSEHandler{broker: broker}
}

func (h *TracepointSSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.URL.Query().Get("session"), 10, 64)
	if err != nil {
		http.Error(w, "missing or malformed session query parameter", http.StatusBadRequest)
		return
	}
	session := tracepoint.SessionID(id)

	eventsource.Handler(func(lastID string, enc *eventsource.Encoder, stop <-chan bool) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		ch := make(chan tracepoint.Update, 16)
		go func() {
			h.broker.Subscribe(ctx, session, ch)
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
				if err := enc.Encode(eventsource.Event{Type: "tracepoint", Data: data}); err != nil {
					return
				}
			}
		}
	}).ServeHTTP(w, r)
}
