package wire

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codetracer/replay-core/corekit"
	"github.com/codetracer/replay-core/dispatch"
	"github.com/codetracer/replay-core/position"
	"github.com/codetracer/replay-core/stepping"
)

type fakeBackend struct {
	bps       *position.Breakpoints
	pos       corekit.Position
	functions map[corekit.CallKey]corekit.FunctionInstance
	locals    map[string]corekit.Value
	source    string
	stepErr   error
	lastOp    stepping.Op
	lastDir   stepping.Direction
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		bps: position.NewBreakpoints(),
		pos: corekit.Position{Tick: 5, Loc: corekit.SourceLoc{Path: "main.go", Line: 10}, Key: "callB"},
		functions: map[corekit.CallKey]corekit.FunctionInstance{
			"callB": {Key: "callB", ParentKey: "callA", FunctionName: "inner", CallLoc: corekit.SourceLoc{Path: "main.go", Line: 4}},
			"callA": {Key: "callA", ParentKey: corekit.ZeroCallKey, FunctionName: "main"},
		},
		locals: map[string]corekit.Value{
			"x": {Kind: corekit.Type{Name: "int"}, Variant: corekit.ValueInt, Int: 42},
		},
		source: "fmt.Println(x)",
	}
}

func (f *fakeBackend) Step(ctx context.Context, req stepping.Request) <-chan dispatch.Result {
	f.lastOp, f.lastDir = req.Op, req.Direction
	ch := make(chan dispatch.Result, 1)
	ch <- dispatch.Result{Err: f.stepErr}
	close(ch)
	return ch
}

func (f *fakeBackend) Jump(ctx context.Context, j stepping.Jump) <-chan dispatch.Result {
	ch := make(chan dispatch.Result, 1)
	ch <- dispatch.Result{}
	close(ch)
	return ch
}

func (f *fakeBackend) Snapshot() corekit.Position { return f.pos }
func (f *fakeBackend) Breakpoints() *position.Breakpoints { return f.bps }
func (f *fakeBackend) FunctionByKey(key corekit.CallKey) (corekit.FunctionInstance, error) {
	fi, ok := f.functions[key]
	if !ok {
		return corekit.FunctionInstance{}, corekit.NewError(corekit.KindNotInRecording, "x", "no such call", nil)
	}
	return fi, nil
}
func (f *fakeBackend) Locals(pos corekit.Position) map[string]corekit.Value { return f.locals }
func (f *fakeBackend) Source(path string) (string, error)                  { return f.source, nil }

func TestInitializeReportsStepBackSupport(t *testing.T) {
	b := NewBridge(newFakeBackend())
	resp := b.Handle(context.Background(), DAPRequest{Seq: 1, Command: "initialize"})
	require.True(t, resp.Success)
	body, ok := resp.Body.(initializeBody)
	require.True(t, ok)
	require.True(t, body.SupportsStepBack)
}

func TestSetBreakpointsRegistersEveryLine(t *testing.T) {
	fb := newFakeBackend()
	b := NewBridge(fb)
	args, _ := json.Marshal(setBreakpointsArgs{
		Source:      dapSource{Path: "main.go"},
		Breakpoints: []dapBreakpoint{{Line: 3}, {Line: 7}},
	})
	resp := b.Handle(context.Background(), DAPRequest{Seq: 2, Command: "setBreakpoints", Arguments: args})
	require.True(t, resp.Success)
	body := resp.Body.(setBreakpointsBody)
	require.Len(t, body.Breakpoints, 2)
	require.True(t, fb.bps.Matches(corekit.SourceLoc{Path: "main.go", Line: 3}))
	require.True(t, fb.bps.Matches(corekit.SourceLoc{Path: "main.go", Line: 7}))
}

func TestStackTraceWalksParentChainToRoot(t *testing.T) {
	b := NewBridge(newFakeBackend())
	resp := b.Handle(context.Background(), DAPRequest{Seq: 3, Command: "stackTrace"})
	require.True(t, resp.Success)
	body := resp.Body.(stackFrameBody)
	require.Equal(t, 2, body.TotalFrames)
	require.Equal(t, "inner", body.StackFrames[0].Name)
	require.Equal(t, "main", body.StackFrames[1].Name)
	require.Equal(t, 10, body.StackFrames[0].Line)
	require.Equal(t, 4, body.StackFrames[1].Line)
}

func TestVariablesListsLocalsSorted(t *testing.T) {
	fb := newFakeBackend()
	fb.locals["a"] = corekit.Value{Variant: corekit.ValueBool, Bool: true}
	b := NewBridge(fb)
	args, _ := json.Marshal(variablesArgs{VariablesReference: localsScopeRef})
	resp := b.Handle(context.Background(), DAPRequest{Seq: 4, Command: "variables", Arguments: args})
	require.True(t, resp.Success)
	body := resp.Body.(variablesBody)
	require.Len(t, body.Variables, 2)
	require.Equal(t, "a", body.Variables[0].Name)
	require.Equal(t, "true", body.Variables[0].Value)
	require.Equal(t, "x", body.Variables[1].Name)
	require.Equal(t, "42", body.Variables[1].Value)
}

func TestStepBackResolvesReverseNext(t *testing.T) {
	fb := newFakeBackend()
	b := NewBridge(fb)
	resp := b.Handle(context.Background(), DAPRequest{Seq: 5, Command: "stepBack"})
	require.True(t, resp.Success)
	require.Equal(t, stepping.OpNext, fb.lastOp)
	require.Equal(t, stepping.Reverse, fb.lastDir)
}

func TestStepFailureSurfacesAsUnsuccessfulResponse(t *testing.T) {
	fb := newFakeBackend()
	fb.stepErr = corekit.NewError(corekit.KindNotInRecording, "x", "at end", nil)
	b := NewBridge(fb)
	resp := b.Handle(context.Background(), DAPRequest{Seq: 6, Command: "next"})
	require.False(t, resp.Success)
	require.NotEmpty(t, resp.Message)
}

func TestSourceReturnsBackendFile(t *testing.T) {
	b := NewBridge(newFakeBackend())
	args, _ := json.Marshal(sourceArgs{Source: dapSource{Path: "main.go"}, Line: 10})
	resp := b.Handle(context.Background(), DAPRequest{Seq: 7, Command: "source", Arguments: args})
	require.True(t, resp.Success)
	require.Equal(t, sourceBody{Content: "fmt.Println(x)"}, resp.Body)
}

func TestUnsupportedCommandFailsConfig(t *testing.T) {
	b := NewBridge(newFakeBackend())
	resp := b.Handle(context.Background(), DAPRequest{Seq: 8, Command: "evaluate"})
	require.False(t, resp.Success)
}
