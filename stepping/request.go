// Package stepping implements §4.2's Stepping Engine: it resolves abstract
// step and jump requests into a new Position, honouring breakpoints and the
// cancellation contract every mutating operation must respect (§4.8).
package stepping

import "github.com/codetracer/replay-core/corekit"

// Op enumerates the step operations the engine accepts (§4.2). The Co
// variants cross asynchronous boundaries by treating them as regular calls
// — they resolve identically to StepIn/Next here, since the recording has
// already flattened async continuations into ordinary Call/Return steps.
type Op uint8

const (
	OpStepIn Op = iota
	OpStepOut
	OpNext
	OpContinue
	OpStepInstruction
	OpNextInstruction
	OpCoStepIn
	OpCoNext
)

// Direction is forward or reverse replay.
type Direction uint8

const (
	Forward Direction = iota
	Reverse
)

// Request is one abstract step operation.
type Request struct {
	Op          Op
	Direction   Direction
	RepeatCount int
	// SkipNoSource carries the client's skip-no-source policy. Engine.Resolve
	// does not read it: no step is skipped for having no source text.
	SkipNoSource bool
	// SkipInternal carries the client's skip-internal-frames policy.
	// Engine.Resolve does not read it: steps of uninstrumented functions
	// are not skipped.
	SkipInternal bool
}

// repeat returns max(1, r.RepeatCount), since a zero-value Request should
// still take exactly one step.
func (r Request) repeat() int {
	if r.RepeatCount <= 0 {
		return 1
	}
	return r.RepeatCount
}

// JumpBehaviour controls SourceLine jump tie-breaking (§4.2 "Smart jump to
// line").
type JumpBehaviour uint8

const (
	Smart JumpBehaviour = iota
	JumpForward
	JumpBackward
)

// Jump is one of the jump target kinds §4.2 accepts. Exactly one of the
// fields is meaningful, selected by Kind.
type Jump struct {
	Kind JumpKind

	Tick    corekit.Tick
	EventID corekit.EventID

	SourceLoc corekit.SourceLoc
	Behaviour JumpBehaviour

	CallStackIndex int

	LocalStep LocalStepJump
}

// JumpKind discriminates Jump.
type JumpKind uint8

const (
	JumpToTick JumpKind = iota
	JumpToEvent
	JumpToSourceLine
	JumpToCallStackIndex
	JumpToLocalStep
)

// LocalStepJump positions within a specific iteration of a loop (§4.2).
type LocalStepJump struct {
	Path          string
	Line          int
	Iteration     int
	FirstLoopLine int
}
