package wire

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/codetracer/replay-core/corekit"
	"github.com/codetracer/replay-core/dispatch"
	"github.com/codetracer/replay-core/position"
	"github.com/codetracer/replay-core/stepping"
)

// theThread is the one DAP "thread" the core ever reports: a recording has
// no concurrent threads in the replay sense, just one flattened stream of
// Steps (§3).
const theThread = 1

// dapBackend is the slice of the core's components the DAP bridge drives.
// It depends on the concrete dispatch/position/stepping packages directly
// (rather than a package-local narrow interface) because wire sits at the
// top of the dependency graph — it is the thing that wires everything else
// together, not a component other packages depend on.
type dapBackend interface {
	Step(ctx context.Context, req stepping.Request) <-chan dispatch.Result
	Jump(ctx context.Context, j stepping.Jump) <-chan dispatch.Result
	Snapshot() corekit.Position
	Breakpoints() *position.Breakpoints
	FunctionByKey(key corekit.CallKey) (corekit.FunctionInstance, error)
	Locals(pos corekit.Position) map[string]corekit.Value
	Source(path string) (string, error)
}

// DAPRequest is the subset of the DAP request envelope the bridge reads.
type DAPRequest struct {
	Seq       int             `json:"seq"`
	Type      string          `json:"type"`
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// DAPResponse is the subset of the DAP response envelope the bridge writes.
type DAPResponse struct {
	Seq        int    `json:"seq"`
	Type       string `json:"type"`
	RequestSeq int    `json:"request_seq"`
	Success    bool   `json:"success"`
	Command    string `json:"command"`
	Message    string `json:"message,omitempty"`
	Body       any    `json:"body,omitempty"`
}

// Bridge answers the DAP subset listed in §6 against a dapBackend.
type Bridge struct {
	backend dapBackend
	seq     int
}

// NewBridge returns a Bridge driving backend.
func NewBridge(backend dapBackend) *Bridge {
	return &Bridge{backend: backend}
}

// Handle dispatches one DAPRequest to its handler and stamps the response
// envelope (§6 DAP surface).
func (b *Bridge) Handle(ctx context.Context, req DAPRequest) DAPResponse {
	b.seq++
	resp := DAPResponse{Seq: b.seq, Type: "response", RequestSeq: req.Seq, Command: req.Command}

	body, err := b.dispatchCommand(ctx, req)
	if err != nil {
		resp.Success = false
		resp.Message = err.Error()
		return resp
	}
	resp.Success = true
	resp.Body = body
	return resp
}

func (b *Bridge) dispatchCommand(ctx context.Context, req DAPRequest) (any, error) {
	switch req.Command {
	case "initialize":
		return initializeBody{
			SupportsConfigurationDoneRequest: true,
			SupportsStepBack:                 true,
			SupportsSetVariable:              false,
		}, nil
	case "setBreakpoints":
		return b.setBreakpoints(req.Arguments)
	case "threads":
		return threadsBody{Threads: []dapThread{{ID: theThread, Name: "recording"}}}, nil
	case "stackTrace":
		return b.stackTrace()
	case "scopes":
		return b.scopes(req.Arguments)
	case "variables":
		return b.variables(req.Arguments)
	case "stepIn":
		return b.step(ctx, stepping.OpStepIn, stepping.Forward)
	case "stepOut":
		return b.step(ctx, stepping.OpStepOut, stepping.Forward)
	case "next":
		return b.step(ctx, stepping.OpNext, stepping.Forward)
	case "continue":
		return b.step(ctx, stepping.OpContinue, stepping.Forward)
	case "stepBack":
		return b.step(ctx, stepping.OpNext, stepping.Reverse)
	case "reverseContinue":
		return b.step(ctx, stepping.OpContinue, stepping.Reverse)
	case "source":
		return b.source(req.Arguments)
	default:
		return nil, corekit.NewError(corekit.KindConfig, "wire.Bridge", "unsupported DAP command "+req.Command, nil)
	}
}

type initializeBody struct {
	SupportsConfigurationDoneRequest bool `json:"supportsConfigurationDoneRequest"`
	SupportsStepBack                 bool `json:"supportsStepBack"`
	SupportsSetVariable               bool `json:"supportsSetVariable"`
}

type dapThread struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type threadsBody struct {
	Threads []dapThread `json:"threads"`
}

type setBreakpointsArgs struct {
	Source      dapSource        `json:"source"`
	Breakpoints []dapBreakpoint  `json:"breakpoints"`
}

type dapSource struct {
	Path string `json:"path"`
}

type dapBreakpoint struct {
	Line int `json:"line"`
}

type setBreakpointsBody struct {
	Breakpoints []dapBreakpointResult `json:"breakpoints"`
}

type dapBreakpointResult struct {
	Verified bool `json:"verified"`
	Line     int  `json:"line"`
}

func (b *Bridge) setBreakpoints(raw json.RawMessage) (any, error) {
	var args setBreakpointsArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, corekit.NewError(corekit.KindConfig, "wire.setBreakpoints", "malformed arguments", err)
	}
	bps := make([]position.Breakpoint, 0, len(args.Breakpoints))
	results := make([]dapBreakpointResult, 0, len(args.Breakpoints))
	for _, bp := range args.Breakpoints {
		loc := corekit.SourceLoc{Path: args.Source.Path, Line: bp.Line}
		bps = append(bps, position.Breakpoint{Loc: loc, Enabled: true})
		results = append(results, dapBreakpointResult{Verified: true, Line: bp.Line})
	}
	b.backend.Breakpoints().ReplaceAll(args.Source.Path, bps)
	return setBreakpointsBody{Breakpoints: results}, nil
}

type stackFrameBody struct {
	StackFrames []dapStackFrame `json:"stackFrames"`
	TotalFrames int             `json:"totalFrames"`
}

type dapStackFrame struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Line   int    `json:"line"`
	Source dapSource `json:"source"`
}

// stackTrace walks the ParentKey chain of Function Instances from the
// current position's call outward to the root, the one piece of call-stack
// context DAP needs that doesn't require the full Call-Tree Engine.
func (b *Bridge) stackTrace() (any, error) {
	pos := b.backend.Snapshot()
	var frames []dapStackFrame

	key := pos.Key
	line := pos.Loc.Line
	path := pos.Loc.Path
	depth := 0
	for key != corekit.ZeroCallKey && depth < 1<<16 {
		fi, err := b.backend.FunctionByKey(key)
		if err != nil {
			return nil, err
		}
		frames = append(frames, dapStackFrame{
			ID:     depth,
			Name:   fi.FunctionName,
			Line:   line,
			Source: dapSource{Path: path},
		})
		if fi.IsRoot() {
			break
		}
		line = fi.CallLoc.Line
		path = fi.CallLoc.Path
		key = fi.ParentKey
		depth++
	}
	return stackFrameBody{StackFrames: frames, TotalFrames: len(frames)}, nil
}

type scopesArgs struct {
	FrameID int `json:"frameId"`
}

type dapScope struct {
	Name               string `json:"name"`
	VariablesReference int    `json:"variablesReference"`
}

type scopesBody struct {
	Scopes []dapScope `json:"scopes"`
}

// localsScopeRef is the one variablesReference the bridge ever hands out:
// "Locals" at the current position. DAP lets a scope reference be any
// integer the adapter chooses to recognise later; since the core only ever
// exposes one frame's locals at a time (the live Position, §3), a single
// constant is enough.
const localsScopeRef = 1

func (b *Bridge) scopes(raw json.RawMessage) (any, error) {
	var args scopesArgs
	_ = json.Unmarshal(raw, &args)
	return scopesBody{Scopes: []dapScope{{Name: "Locals", VariablesReference: localsScopeRef}}}, nil
}

type variablesArgs struct {
	VariablesReference int `json:"variablesReference"`
}

type dapVariable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

type variablesBody struct {
	Variables []dapVariable `json:"variables"`
}

func (b *Bridge) variables(raw json.RawMessage) (any, error) {
	var args variablesArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, corekit.NewError(corekit.KindConfig, "wire.variables", "malformed arguments", err)
	}
	if args.VariablesReference != localsScopeRef {
		return variablesBody{}, nil
	}
	locals := b.backend.Locals(b.backend.Snapshot())
	names := make([]string, 0, len(locals))
	for name := range locals {
		names = append(names, name)
	}
	sort.Strings(names)

	vars := make([]dapVariable, 0, len(names))
	for _, name := range names {
		v := locals[name]
		vars = append(vars, dapVariable{Name: name, Value: describeDAPValue(v), Type: v.Kind.Name})
	}
	return variablesBody{Variables: vars}, nil
}

func describeDAPValue(v corekit.Value) string {
	switch v.Variant {
	case corekit.ValueString, corekit.ValueCString:
		return v.Str
	case corekit.ValueInt:
		return itoaDAP(v.Int)
	case corekit.ValueBool:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		return v.Variant.String()
	}
}

func itoaDAP(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (b *Bridge) step(ctx context.Context, op stepping.Op, dir stepping.Direction) (any, error) {
	res := <-b.backend.Step(ctx, stepping.Request{Op: op, Direction: dir})
	if res.Err != nil {
		return nil, res.Err
	}
	return struct{}{}, nil
}

type sourceArgs struct {
	Source dapSource `json:"source"`
	Line   int       `json:"line"`
}

type sourceBody struct {
	Content string `json:"content"`
}

// source answers a DAP source request with the path's whole recorded text
// (§6). DAP carries Line for source references keyed by frame, but the
// core's source snapshot is per-path, not per-line.
func (b *Bridge) source(raw json.RawMessage) (any, error) {
	var args sourceArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, corekit.NewError(corekit.KindConfig, "wire.source", "malformed arguments", err)
	}
	text, err := b.backend.Source(args.Source.Path)
	if err != nil {
		return nil, err
	}
	return sourceBody{Content: text}, nil
}
