package tracestore

import "github.com/codetracer/replay-core/corekit"

// symbolID is the dense integer identity a recording assigns each static
// function, stored directly in fixed-width step records so stepByTick never
// needs a string comparison.
type symbolID uint64

// symbol is the on-disk shape of the symbol table (§4.1: "functionKey →
// {path, name, line range, instrumentation flags}"), loaded whole into
// memory at Open time — the table is small relative to the step stream and
// every lookup is by dense id, so there is no random-access benefit to
// mmap'ing it the way steps.bin is.
type symbol struct {
	ID        symbolID `json:"id"`
	Key       corekit.FunctionKey `json:"key"`
	Path      string   `json:"path"`
	Name      string   `json:"name"`
	StartLine int      `json:"startLine"`
	EndLine   int       `json:"endLine"`
	// Instrumented reports whether the recorder emitted Call/Return/Line
	// steps for this function, as opposed to a stdlib/runtime stub it
	// only observed the boundary of.
	Instrumented bool `json:"instrumented"`
}

// symbolTable is the decoded contents of symbols.bin.
type symbolTable struct {
	byID   map[symbolID]symbol
	byKey  map[corekit.FunctionKey]symbolID
	paths  []string // pathID -> path, referenced by step records
}

func (t *symbolTable) pathByID(id uint32) string {
	if int(id) >= len(t.paths) {
		return ""
	}
	return t.paths[id]
}
