package corekit

import "fmt"

// Kind enumerates the error taxonomy every component reports through (§7).
// Transport layers (wire, dap) map a Kind to a wire-level error code;
// nothing below the Dispatcher is allowed to panic for a condition covered
// here.
type Kind uint8

const (
	// KindArtifactCorrupt means the Trace Store found the recording on
	// disk unreadable or internally inconsistent (bad header, truncated
	// section, checksum mismatch).
	KindArtifactCorrupt Kind = iota
	// KindNotInRecording means a requested tick, location, or call key
	// does not exist in this recording.
	KindNotInRecording
	// KindCancelled means an in-flight operation was superseded or the
	// caller's context was cancelled before it completed.
	KindCancelled
	// KindConfig means a configuration value (flag, env var, config
	// file) was invalid.
	KindConfig
	// KindLocation means a requested source location could not be
	// resolved (unknown file, line out of range).
	KindLocation
	// KindTracepoint means a tracepoint's expression or program text
	// failed to parse or evaluate.
	KindTracepoint
	// KindUnexpected is the catch-all for conditions the rest of the
	// taxonomy doesn't name; it should be rare enough to page someone.
	KindUnexpected
)

// String names the Kind for log fields and wire error codes.
func (k Kind) String() string {
	switch k {
	case KindArtifactCorrupt:
		return "artifact_corrupt"
	case KindNotInRecording:
		return "not_in_recording"
	case KindCancelled:
		return "cancelled"
	case KindConfig:
		return "config"
	case KindLocation:
		return "location"
	case KindTracepoint:
		return "tracepoint"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Error is the typed error every component returns for a condition covered
// by the §7 taxonomy. Wrap a lower-level error in Cause so %w unwrapping and
// errors.Is/As keep working across component boundaries.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target shares e's Kind, so errors.Is(err,
// corekit.ArtifactCorrupt) style sentinel checks work without callers
// constructing a matching *Error by hand.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Kind == e.Kind
}

// NewError builds an *Error for op, wrapping cause (which may be nil).
func NewError(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

// Sentinel values for errors.Is comparisons; each carries only a Kind so
// errors.Is matches on Kind via (*Error).Is above regardless of Op/Message.
var (
	ArtifactCorrupt = &Error{Kind: KindArtifactCorrupt}
	NotInRecording  = &Error{Kind: KindNotInRecording}
	Cancelled       = &Error{Kind: KindCancelled}
	ErrorConfig     = &Error{Kind: KindConfig}
	ErrorLocation   = &Error{Kind: KindLocation}
	ErrorTracepoint = &Error{Kind: KindTracepoint}
	ErrorUnexpected = &Error{Kind: KindUnexpected}
)
