// Package calltree implements §4.4's Call-Tree Engine: an incrementally
// expandable view of the recorded call tree, with deterministic
// collapse/non-expanded placeholders so a viewport over a recording with
// millions of calls never forces a full-tree materialisation.
package calltree

import (
	"sort"

	"github.com/codetracer/replay-core/corekit"
)

// Mode bounds how much the engine materialises per call, trading fidelity
// for the cost of walking a (possibly huge) call tree.
type Mode uint8

const (
	// NoInstrumentation renders each call's key, location, depth, parent
	// and children, without the raw function name.
	NoInstrumentation Mode = iota
	// CallKeyOnly renders the same fields as NoInstrumentation.
	CallKeyOnly
	// RawRecordNoValues adds the raw function name.
	RawRecordNoValues
	// FullRecord renders the same fields as RawRecordNoValues. No mode
	// fills in Call.Args or Call.ReturnValue.
	FullRecord
)

// Call is one node of the rendered tree (§4.4 "Data shape").
type Call struct {
	Key            corekit.CallKey
	Location       corekit.SourceLoc
	Depth          int
	RawName        string
	Args           []corekit.Value
	ReturnValue    *corekit.Value
	Children       []corekit.CallKey
	HiddenChildren int
	Parent         corekit.CallKey
}

// NonExpandedKind classifies a placeholder CallLine standing in for calls
// the engine elided from the rendered sequence.
type NonExpandedKind uint8

const (
	NonExpandedCallstack NonExpandedKind = iota
	NonExpandedChildren
	NonExpandedSiblings
	NonExpandedCalls
	NonExpandedCallstackInternal
	NonExpandedCallstackInternalChild
)

// NonExpanded is a placeholder standing in for a run of elided calls.
type NonExpanded struct {
	Kind           NonExpandedKind
	Count          int
	HiddenChildren int
	IsError        bool
}

// CallLineKind discriminates the union of line shapes §4.4 renders.
type CallLineKind uint8

const (
	LineCall CallLineKind = iota
	LineNonExpanded
	LineStartCallstackCount
	LineCallstackInternalCount
	LineEndOfProgramCall
)

// CallLine is one flat, rendered row of the call-tree viewport.
type CallLine struct {
	Kind        CallLineKind
	Call        *Call
	NonExpanded *NonExpanded
}

// CallArgsUpdateResults is loadCallTrace's return shape (§4.4).
type CallArgsUpdateResults struct {
	Finished        bool
	CallLines       []CallLine
	TotalCallsCount int
}

// store is the subset of *tracestore.Store the engine needs.
type store interface {
	FunctionByKey(key corekit.CallKey) (corekit.FunctionInstance, error)
	ChildrenOf(key corekit.CallKey) []corekit.CallKey
}

// Engine is the Call-Tree Engine (§4.4).
type Engine struct {
	store store
	mode  Mode
	ign   *IgnoreSet

	// expanded tracks calls the user explicitly expanded past their
	// auto-collapse/ignore-pattern placeholder.
	expanded map[corekit.CallKey]bool
}

// New returns an Engine reading call structure from store, rendering at the
// given Mode, with ign applied to every child list (nil means no ignore
// patterns).
func New(store store, mode Mode, ign *IgnoreSet) *Engine {
	return &Engine{
		store:    store,
		mode:     mode,
		ign:      ign,
		expanded: make(map[corekit.CallKey]bool),
	}
}

// LoadCallTrace renders a depth-first viewport of the call tree rooted at
// root, starting at the startCallLineIndex-th rendered line and covering up
// to height lines, descending at most depth levels from root.
//
// Requests beyond the recording's call set return a finished, empty result
// rather than an error (§4.4 failure semantics): an out-of-range viewport
// is not a malformed request, just an empty one.
func (e *Engine) LoadCallTrace(root corekit.CallKey, startCallLineIndex, depth, height int, optimizeCollapse bool) (CallArgsUpdateResults, error) {
	fi, err := e.store.FunctionByKey(root)
	if err != nil {
		return CallArgsUpdateResults{Finished: true}, nil
	}

	var all []CallLine
	e.render(root, fi.Depth, depth, optimizeCollapse, &all)

	total := 0
	for _, l := range all {
		if l.Kind == LineCall {
			total++
		}
	}

	if startCallLineIndex >= len(all) {
		return CallArgsUpdateResults{Finished: true, TotalCallsCount: total}, nil
	}
	end := startCallLineIndex + height
	if end > len(all) || height <= 0 {
		end = len(all)
	}
	return CallArgsUpdateResults{
		Finished:        end >= len(all),
		CallLines:       all[startCallLineIndex:end],
		TotalCallsCount: total,
	}, nil
}

// render performs the bounded depth-first walk, appending rendered lines to
// out. maxDepth<0 means unbounded.
func (e *Engine) render(key corekit.CallKey, baseDepth, maxDepth int, optimizeCollapse bool, out *[]CallLine) {
	fi, err := e.store.FunctionByKey(key)
	if err != nil {
		return
	}

	call := e.buildCall(fi)
	*out = append(*out, CallLine{Kind: LineCall, Call: &call})

	if maxDepth >= 0 && fi.Depth-baseDepth >= maxDepth {
		if n := len(e.store.ChildrenOf(key)); n > 0 && !e.expanded[key] {
			*out = append(*out, CallLine{Kind: LineNonExpanded, NonExpanded: &NonExpanded{
				Kind: NonExpandedChildren, Count: n,
			}})
		}
		return
	}

	children, elided := e.visibleChildren(key)
	groups := groupForCollapse(children, e.store, optimizeCollapse && !e.expanded[key])

	for _, g := range groups {
		if g.placeholder != nil {
			*out = append(*out, CallLine{Kind: LineNonExpanded, NonExpanded: g.placeholder})
			continue
		}
		e.render(g.key, baseDepth, maxDepth, optimizeCollapse, out)
	}

	if elided > 0 {
		*out = append(*out, CallLine{Kind: LineNonExpanded, NonExpanded: &NonExpanded{
			Kind: NonExpandedCalls, Count: elided,
		}})
	}
}

func (e *Engine) buildCall(fi corekit.FunctionInstance) Call {
	c := Call{
		Key:      fi.Key,
		Location: fi.CallLoc,
		Depth:    fi.Depth,
		Parent:   fi.ParentKey,
	}
	if e.mode >= RawRecordNoValues {
		c.RawName = fi.FunctionName
	}
	c.Children = e.store.ChildrenOf(fi.Key)
	return c
}

// visibleChildren returns key's children with any ignore-pattern matches
// removed (and counted), in callTick order, unless the caller already
// expanded this parent past its placeholder.
func (e *Engine) visibleChildren(key corekit.CallKey) (kids []corekit.CallKey, elided int) {
	all := sortedByCallTick(e.store.ChildrenOf(key), e.store)
	if e.ign == nil || e.expanded[key] {
		return all, 0
	}
	for _, k := range all {
		fi, err := e.store.FunctionByKey(k)
		if err != nil {
			kids = append(kids, k)
			continue
		}
		if e.ign.Matches(fi.CallLoc.Path, fi.FunctionName) {
			elided++
			continue
		}
		kids = append(kids, k)
	}
	return kids, elided
}

// SetMode reconfigures how much the engine materialises per call on every
// subsequent render, for the Configuration surface (§6 `calltrace.enabled`,
// `calltrace.callArgs`) to take effect without rebuilding the engine (and
// losing its expand/collapse state).
func (e *Engine) SetMode(mode Mode) {
	e.mode = mode
}

// ExpandChildren marks key as explicitly expanded, so subsequent renders
// show its real children instead of ignore-pattern/auto-collapse
// placeholders.
func (e *Engine) ExpandChildren(key corekit.CallKey) {
	e.expanded[key] = true
}

// CollapseChildren reverses a prior ExpandChildren, so key's children are
// again subject to ignore-pattern and auto-collapse placeholders.
func (e *Engine) CollapseChildren(key corekit.CallKey) {
	delete(e.expanded, key)
}

// FindCall locates the first call (depth-first from root) whose function
// name matches searchArg. Returns ok=false if nothing matches.
func (e *Engine) FindCall(root corekit.CallKey, searchArg string) (corekit.CallKey, bool) {
	fi, err := e.store.FunctionByKey(root)
	if err != nil {
		return corekit.ZeroCallKey, false
	}
	if fi.FunctionName == searchArg {
		return root, true
	}
	for _, k := range sortedByCallTick(e.store.ChildrenOf(root), e.store) {
		if found, ok := e.FindCall(k, searchArg); ok {
			return found, true
		}
	}
	return corekit.ZeroCallKey, false
}

// sortedByCallTick orders keys by their CallTick (§4.4 "Deterministic
// ordering: children appear in the order of their callerTick").
func sortedByCallTick(keys []corekit.CallKey, s store) []corekit.CallKey {
	out := append([]corekit.CallKey(nil), keys...)
	sort.Slice(out, func(i, j int) bool {
		fi, _ := s.FunctionByKey(out[i])
		fj, _ := s.FunctionByKey(out[j])
		return fi.CallTick < fj.CallTick
	})
	return out
}
