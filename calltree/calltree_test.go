package calltree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codetracer/replay-core/corekit"
)

type fakeStore struct {
	functions map[corekit.CallKey]corekit.FunctionInstance
	children  map[corekit.CallKey][]corekit.CallKey
}

func (f *fakeStore) FunctionByKey(key corekit.CallKey) (corekit.FunctionInstance, error) {
	fi, ok := f.functions[key]
	if !ok {
		return corekit.FunctionInstance{}, corekit.NewError(corekit.KindNotInRecording, "x", "missing", nil)
	}
	return fi, nil
}

func (f *fakeStore) ChildrenOf(key corekit.CallKey) []corekit.CallKey {
	return f.children[key]
}

func build() *fakeStore {
	root := corekit.CallKey("root")
	a := corekit.CallKey("a")
	b := corekit.CallKey("b")
	c := corekit.CallKey("c")

	fs := &fakeStore{
		functions: map[corekit.CallKey]corekit.FunctionInstance{
			root: {Key: root, FunctionName: "main", Depth: 0, CallTick: 0},
			a:    {Key: a, ParentKey: root, FuncKey: "pkg.helper", FunctionName: "helper", Depth: 1, CallTick: 1, CallLoc: corekit.SourceLoc{Path: "vendor/lib.go", Line: 1}},
			b:    {Key: b, ParentKey: root, FuncKey: "pkg.helper", FunctionName: "helper", Depth: 1, CallTick: 2, CallLoc: corekit.SourceLoc{Path: "vendor/lib.go", Line: 1}},
			c:    {Key: c, ParentKey: root, FuncKey: "pkg.work", FunctionName: "work", Depth: 1, CallTick: 3, CallLoc: corekit.SourceLoc{Path: "main.go", Line: 10}},
		},
		children: map[corekit.CallKey][]corekit.CallKey{
			root: {a, b, c},
		},
	}
	return fs
}

func TestLoadCallTraceFlattensDepthFirst(t *testing.T) {
	fs := build()
	e := New(fs, FullRecord, nil)

	result, err := e.LoadCallTrace("root", 0, -1, 0, false)
	require.NoError(t, err)
	require.True(t, result.Finished)
	require.Len(t, result.CallLines, 4)
	require.Equal(t, corekit.CallKey("root"), result.CallLines[0].Call.Key)
	require.Equal(t, corekit.CallKey("a"), result.CallLines[1].Call.Key)
	require.Equal(t, corekit.CallKey("b"), result.CallLines[2].Call.Key)
	require.Equal(t, corekit.CallKey("c"), result.CallLines[3].Call.Key)
}

func TestLoadCallTraceRespectsHeightAndOffset(t *testing.T) {
	fs := build()
	e := New(fs, FullRecord, nil)

	result, err := e.LoadCallTrace("root", 1, -1, 2, false)
	require.NoError(t, err)
	require.False(t, result.Finished)
	require.Len(t, result.CallLines, 2)
	require.Equal(t, corekit.CallKey("a"), result.CallLines[0].Call.Key)
	require.Equal(t, corekit.CallKey("b"), result.CallLines[1].Call.Key)
}

func TestLoadCallTraceBeyondRecordingReturnsEmptyFinished(t *testing.T) {
	fs := build()
	e := New(fs, FullRecord, nil)

	result, err := e.LoadCallTrace("root", 100, -1, 10, false)
	require.NoError(t, err)
	require.True(t, result.Finished)
	require.Empty(t, result.CallLines)
}

func TestLoadCallTraceUnknownRootReturnsEmptyFinished(t *testing.T) {
	fs := build()
	e := New(fs, FullRecord, nil)

	result, err := e.LoadCallTrace("nope", 0, -1, 10, false)
	require.NoError(t, err)
	require.True(t, result.Finished)
	require.Equal(t, 0, result.TotalCallsCount)
}

func TestAutoCollapseFoldsAdjacentSameFunctionKeySiblings(t *testing.T) {
	fs := build()
	e := New(fs, FullRecord, nil)

	result, err := e.LoadCallTrace("root", 0, -1, 0, true)
	require.NoError(t, err)
	require.Len(t, result.CallLines, 3) // root, [a,b] folded, c
	require.Equal(t, LineNonExpanded, result.CallLines[1].Kind)
	require.Equal(t, NonExpandedSiblings, result.CallLines[1].NonExpanded.Kind)
	require.Equal(t, 2, result.CallLines[1].NonExpanded.Count)
	require.Equal(t, corekit.CallKey("c"), result.CallLines[2].Call.Key)
}

func TestIgnorePatternsElideMatchingCalls(t *testing.T) {
	fs := build()
	ign, err := ParseIgnorePatterns("vendor/**:")
	require.NoError(t, err)
	e := New(fs, FullRecord, ign)

	result, loadErr := e.LoadCallTrace("root", 0, -1, 0, false)
	require.NoError(t, loadErr)
	require.Len(t, result.CallLines, 3) // root, c, trailing elided-calls placeholder
	require.Equal(t, corekit.CallKey("c"), result.CallLines[1].Call.Key)
	last := result.CallLines[len(result.CallLines)-1]
	require.Equal(t, LineNonExpanded, last.Kind)
	require.Equal(t, NonExpandedCalls, last.NonExpanded.Kind)
	require.Equal(t, 2, last.NonExpanded.Count)
}

func TestExpandChildrenBypassesIgnorePatterns(t *testing.T) {
	fs := build()
	ign, err := ParseIgnorePatterns("vendor/**:")
	require.NoError(t, err)
	e := New(fs, FullRecord, ign)
	e.ExpandChildren("root")

	result, loadErr := e.LoadCallTrace("root", 0, -1, 0, false)
	require.NoError(t, loadErr)
	require.Len(t, result.CallLines, 4)
}

func TestParseIgnorePatternsInvalidGlobFailsConfig(t *testing.T) {
	_, err := ParseIgnorePatterns("[invalid")
	require.Error(t, err)
	require.True(t, corekit.ErrorConfig.Is(err))
}

func TestFindCallLocatesByFunctionName(t *testing.T) {
	fs := build()
	e := New(fs, FullRecord, nil)

	key, ok := e.FindCall("root", "work")
	require.True(t, ok)
	require.Equal(t, corekit.CallKey("c"), key)

	_, ok = e.FindCall("root", "nonexistent")
	require.False(t, ok)
}

func TestDepthLimitEmitsChildrenPlaceholder(t *testing.T) {
	fs := build()
	e := New(fs, FullRecord, nil)

	result, err := e.LoadCallTrace("root", 0, 0, 0, false)
	require.NoError(t, err)
	require.Len(t, result.CallLines, 2)
	require.Equal(t, LineCall, result.CallLines[0].Kind)
	require.Equal(t, LineNonExpanded, result.CallLines[1].Kind)
	require.Equal(t, NonExpandedChildren, result.CallLines[1].NonExpanded.Kind)
	require.Equal(t, 3, result.CallLines[1].NonExpanded.Count)
}
