package main

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/codetracer/replay-core/dispatch"
	"github.com/codetracer/replay-core/stepping"
	"github.com/codetracer/replay-core/wire"
)

// serveControlConn answers one connection on ct_socket/ct_client_socket/
// ct_ipc/codetracer_plugin_socket: length-prefixed JSON requests dispatched
// onto d/comps and answered with a "result"-kind reply carrying whatever
// that request kind produces (§6 wire encoding).
func serveControlConn(ctx context.Context, conn net.Conn, d *dispatch.Dispatcher, comps *components, log *logrus.Logger) {
	defer conn.Close()
	r := wire.NewReader(conn)
	w := wire.NewWriter(conn)

	for {
		msg, err := r.ReadMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.WithError(err).Debug("control connection read failed")
			}
			return
		}

		body, err := handleControlMessage(ctx, d, comps, msg)
		if err != nil {
			writeControlError(w, msg.ID, err, log)
			continue
		}

		reply, err := wire.EncodeRequest(msg.ID, "result", body)
		if err != nil {
			log.WithError(err).Warn("encoding control result")
			continue
		}
		if err := w.WriteMessage(reply); err != nil {
			log.WithError(err).Debug("control connection write failed")
			return
		}
	}
}

// handleControlMessage decodes and routes one request to the component it
// names. Step and Jump go through the Dispatcher directly, since their
// result is already dispatch.Result; every other kind is adapted to a
// wire-safe body by its own handler in components.go.
func handleControlMessage(ctx context.Context, d *dispatch.Dispatcher, comps *components, msg wire.Message) (any, error) {
	switch msg.Kind {
	case "step":
		var req stepping.Request
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		return wireResult(<-d.Step(ctx, req)), nil
	case "jump":
		var j stepping.Jump
		if err := msg.Decode(&j); err != nil {
			return nil, err
		}
		return wireResult(<-d.Jump(ctx, j)), nil
	case "flow":
		var req flowRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		return comps.handleFlow(ctx, req)
	case "calltree.load":
		var req calltreeLoadRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		return comps.handleCallTreeLoad(ctx, req)
	case "calltree.expand":
		var req calltreeKeyRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		comps.handleCallTreeExpand(req)
		return struct{}{}, nil
	case "calltree.collapse":
		var req calltreeKeyRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		comps.handleCallTreeCollapse(req)
		return struct{}{}, nil
	case "calltree.find":
		var req calltreeFindRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		return comps.handleCallTreeFind(req), nil
	case "events":
		var req eventsRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		return comps.handleEvents(req)
	case "tracepoint.configure":
		var req tracepointConfigureRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		if err := comps.handleTracepointConfigure(req); err != nil {
			return nil, err
		}
		return struct{}{}, nil
	case "tracepoint.run":
		var req tracepointRunRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		return comps.handleTracepointRun(ctx, req)
	case "config":
		return comps.handleConfig(msg.Payload)
	default:
		return nil, errUnknownKind(msg.Kind)
	}
}

// wireResultBody is dispatch.Result with its error flattened to a string,
// since error doesn't have a stable JSON shape of its own.
type wireResultBody struct {
	OpID       dispatch.OpID   `json:"opId"`
	Position   interface{}     `json:"position"`
	Error      string          `json:"error,omitempty"`
	Superseded bool            `json:"superseded"`
}

func wireResult(r dispatch.Result) wireResultBody {
	body := wireResultBody{OpID: r.OpID, Position: r.Position, Superseded: r.Superseded}
	if r.Err != nil {
		body.Error = r.Err.Error()
	}
	return body
}

// serveDAPConn answers one connection on ct_dap_socket: the same
// length-prefixed JSON framing, carrying a wire.DAPRequest/DAPResponse pair
// as the payload instead of the control protocol's step/jump envelope.
func serveDAPConn(ctx context.Context, conn net.Conn, bridge *wire.Bridge, log *logrus.Logger) {
	defer conn.Close()
	r := wire.NewReader(conn)
	w := wire.NewWriter(conn)

	for {
		msg, err := r.ReadMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.WithError(err).Debug("dap connection read failed")
			}
			return
		}

		var req wire.DAPRequest
		if err := msg.Decode(&req); err != nil {
			log.WithError(err).Warn("malformed dap request")
			continue
		}

		resp := bridge.Handle(ctx, req)
		reply, err := wire.EncodeRequest(msg.ID, "dap", resp)
		if err != nil {
			log.WithError(err).Warn("encoding dap response")
			continue
		}
		if err := w.WriteMessage(reply); err != nil {
			log.WithError(err).Debug("dap connection write failed")
			return
		}
	}
}

func writeControlError(w *wire.Writer, id string, cause error, log *logrus.Logger) {
	reply, err := wire.EncodeRequest(id, "error", wireResult(dispatch.Result{Err: cause}))
	if err != nil {
		log.WithError(err).Warn("encoding control error")
		return
	}
	if err := w.WriteMessage(reply); err != nil {
		log.WithError(err).Debug("control connection write failed")
	}
}

type unknownKindError string

func (e unknownKindError) Error() string { return "unknown request kind " + string(e) }

func errUnknownKind(kind string) error { return unknownKindError(kind) }
