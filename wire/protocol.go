// Package wire implements §6's external interfaces: the length-prefixed
// JSON socket protocol, the five well-known local socket paths, a DAP
// subset bridge, the enumerated configuration surface, and an optional SSE
// mirror of the streaming update channels.
package wire

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/codetracer/replay-core/corekit"
)

// maxMessageBytes bounds a single frame's payload, so a corrupt or hostile
// length prefix can't make the core allocate unbounded memory.
const maxMessageBytes = 64 << 20

// Message is the envelope every socket frame carries (§6 "Wire encoding").
// Requests and their responses carry ID; streaming updates omit it and
// carry OpID/UpdateID instead.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Kind    string          `json:"kind"`
	OpID    string          `json:"opId,omitempty"`
	UpdateID uint64         `json:"updateId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IsStreaming reports whether m is a streaming update rather than a
// request/response (§6: "streaming updates omit id and carry kind + opId +
// updateId").
func (m Message) IsStreaming() bool { return m.ID == "" }

// EncodeRequest builds a request Message with payload marshalled from v.
func EncodeRequest(id, kind string, v any) (Message, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Message{}, corekit.NewError(corekit.KindUnexpected, "wire.EncodeRequest", "marshal payload", err)
	}
	return Message{ID: id, Kind: kind, Payload: payload}, nil
}

// EncodeUpdate builds a streaming update Message, carrying opId/updateId
// instead of a request id.
func EncodeUpdate(kind, opID string, updateID uint64, v any) (Message, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Message{}, corekit.NewError(corekit.KindUnexpected, "wire.EncodeUpdate", "marshal payload", err)
	}
	return Message{Kind: kind, OpID: opID, UpdateID: updateID, Payload: payload}, nil
}

// Decode unmarshals m.Payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return corekit.NewError(corekit.KindConfig, "wire.Decode", "unmarshal payload", err)
	}
	return nil
}

// Writer frames Messages onto an underlying io.Writer as
// big-endian-uint32-length-prefixed JSON, one frame per Write call. Safe
// for use by a single goroutine; callers wanting concurrent writers must
// serialize their own calls (matching the Dispatcher's own single-writer
// discipline per connection).
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteMessage frames and flushes m.
func (wr *Writer) WriteMessage(m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return corekit.NewError(corekit.KindUnexpected, "wire.WriteMessage", "marshal message", err)
	}
	if len(body) > maxMessageBytes {
		return corekit.NewError(corekit.KindConfig, "wire.WriteMessage", "message exceeds max size", nil)
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(body)))
	if _, err := wr.w.Write(lenPrefix[:]); err != nil {
		return err
	}
	if _, err := wr.w.Write(body); err != nil {
		return err
	}
	return wr.w.Flush()
}

// Reader de-frames Messages from an underlying io.Reader.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadMessage blocks for the next complete frame and unmarshals it. It
// returns io.EOF (unwrapped) when the peer closed the connection cleanly
// between frames.
func (rd *Reader) ReadMessage() (Message, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(rd.r, lenPrefix[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Message{}, corekit.NewError(corekit.KindConfig, "wire.ReadMessage", "truncated length prefix", err)
		}
		return Message{}, err
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n > maxMessageBytes {
		return Message{}, corekit.NewError(corekit.KindConfig, "wire.ReadMessage", fmt.Sprintf("frame of %d bytes exceeds max", n), nil)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(rd.r, body); err != nil {
		return Message{}, corekit.NewError(corekit.KindConfig, "wire.ReadMessage", "truncated frame body", err)
	}
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, corekit.NewError(corekit.KindConfig, "wire.ReadMessage", "malformed message JSON", err)
	}
	return m, nil
}
