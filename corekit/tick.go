package corekit

// Tick is the fundamental time coordinate of a recording: monotonic,
// strictly non-decreasing along the recorded timeline, and produced
// exclusively by the recorder. The core never invents new ticks (§3).
type Tick int64

// NoTick is the not-a-tick sentinel (-1; tick 0 is itself a valid tick),
// used where a Tick field is optional (for example a Function Instance that
// has not yet returned).
const NoTick Tick = -1

// Valid reports whether t was actually recorded, as opposed to being the
// NoTick sentinel.
func (t Tick) Valid() bool { return t >= 0 }

// Less orders two ticks. Ties are impossible within a single function
// instance (§3 invariant 1) but can occur across instances, in which case
// callers fall back to a stable secondary index (see EventID, CallKey).
func (t Tick) Less(other Tick) bool { return t < other }

// EventID is a dense, stable identifier assigned by the recorder to each
// Event, used to break ties when two events share a Tick.
type EventID uint64

// CallKey uniquely identifies one Function Instance (one invocation of a
// function) within a recording. It is opaque to the UI and to every
// component except the Trace Store, which is the only place new ones are
// minted — from data already present in the recording, never fabricated for
// a gap (§3 invariant 4).
type CallKey string

// ZeroCallKey is the not-a-call-key value, used as the ParentKey of the
// recording's root function instance.
const ZeroCallKey CallKey = ""

// FunctionKey identifies a function's static identity in the symbol table
// (path, name, line range) — shared by every instance (every CallKey) of
// that function, as opposed to one particular invocation.
type FunctionKey string
