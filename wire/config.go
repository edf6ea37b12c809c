package wire

import (
	"encoding/json"

	"github.com/codetracer/replay-core/corekit"
)

func configError(msg string, cause error) *corekit.Error {
	return corekit.NewError(corekit.KindConfig, "wire.ParseConfig", msg, cause)
}

// FlowUI is advisory only (§6: "advisory for the UI; the core ignores the
// value") but is still validated on the way in, so a typo surfaces as
// ErrorConfig immediately rather than silently doing nothing forever.
type FlowUI string

const (
	FlowUIParallel  FlowUI = "parallel"
	FlowUIInline    FlowUI = "inline"
	FlowUIMultiline FlowUI = "multiline"
)

func (f FlowUI) valid() bool {
	switch f {
	case FlowUIParallel, FlowUIInline, FlowUIMultiline, "":
		return true
	default:
		return false
	}
}

// Config is the core's enumerated configuration surface (§6
// "Configuration"). Every field gates or downgrades a specific component;
// fields are documented with the exact effect each one has.
type Config struct {
	// CalltraceEnabled disables the Call-Tree Engine (§4.4) entirely
	// when false.
	CalltraceEnabled bool `json:"calltrace.enabled"`
	// CalltraceCallArgs downgrades the Call-Tree Engine's mode to
	// CallKeyOnly when false, regardless of what the caller otherwise
	// requested.
	CalltraceCallArgs bool `json:"calltrace.callArgs"`
	// FlowEnabled disables the Flow Reconstructor (§4.3).
	FlowEnabled bool `json:"flow.enabled"`
	// FlowUI is advisory only; the core ignores the value.
	FlowUI FlowUI `json:"flow.ui"`
	// EventsEnabled gates the Event Log (§4.6).
	EventsEnabled bool `json:"events.enabled"`
	// TraceEnabled gates the Tracepoint Runtime (§4.7).
	TraceEnabled bool `json:"trace.enabled"`
	// HistoryEnabled gates the Value Service's History operation (§4.5).
	HistoryEnabled bool `json:"history.enabled"`
	// ReplEnabled gates REPL expression evaluation.
	ReplEnabled bool `json:"repl.enabled"`
	// Telemetry, when false, suppresses outgoing diagnostic envelopes
	// only; it has no other effect on the core.
	Telemetry bool `json:"telemetry"`
}

// DefaultConfig returns every gate enabled and flow.ui unset, the core's
// out-of-the-box behaviour before any configuration message arrives.
func DefaultConfig() Config {
	return Config{
		CalltraceEnabled:  true,
		CalltraceCallArgs: true,
		FlowEnabled:       true,
		EventsEnabled:     true,
		TraceEnabled:      true,
		HistoryEnabled:    true,
		ReplEnabled:       true,
		Telemetry:         true,
	}
}

// ParseConfig decodes a config payload on top of DefaultConfig, so a
// partial update (only the keys the UI actually changed) doesn't reset
// untouched options to their zero value.
func ParseConfig(payload []byte) (Config, error) {
	cfg := DefaultConfig()
	if len(payload) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return Config{}, configError("malformed config payload", err)
	}
	if !cfg.FlowUI.valid() {
		return Config{}, configError("unknown flow.ui value", nil)
	}
	return cfg, nil
}

// CallTreeMode reports the effective Call-Tree Engine mode this Config
// implies, for wiring straight into calltree.New: disabled entirely,
// call-key-only, or full recording.
func (c Config) CallTreeMode() (enabled, callArgs bool) {
	return c.CalltraceEnabled, c.CalltraceEnabled && c.CalltraceCallArgs
}
