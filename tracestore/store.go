package tracestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/codetracer/replay-core/corekit"
	"github.com/codetracer/replay-core/valuesvc"
)

// Store is the replay core's sole owner of the recorded artifact's mapped
// buffers (§3 Ownership). Every other component holds only a back-reference
// to a Store and never mutates what it returns.
type Store struct {
	dir string

	steps  *section
	symbols *symbolTable
	events  []eventRow
	types   map[string]corekit.Type
	snapshots map[uint64]snapshot
	functions map[corekit.CallKey]corekit.FunctionInstance
	children  map[corekit.CallKey][]corekit.CallKey

	source *sourceIndex
}

// Open maps and validates the artifact directory, failing with
// ArtifactCorrupt on any structural problem (§4.1 failure semantics): the
// store refuses to start rather than serve a partially-readable recording.
func Open(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, corekit.NewError(corekit.KindArtifactCorrupt, "tracestore.Open",
			fmt.Sprintf("trace dir %q is not a directory", dir), err)
	}

	stepsSec, err := openSection(dir, "steps.bin")
	if err != nil {
		return nil, corekit.NewError(corekit.KindArtifactCorrupt, "tracestore.Open", "opening steps.bin", err)
	}
	if stepsSec == nil {
		return nil, corekit.NewError(corekit.KindArtifactCorrupt, "tracestore.Open", "steps.bin missing", nil)
	}

	syms, err := loadSymbols(dir)
	if err != nil {
		stepsSec.Close()
		return nil, err
	}

	events, err := loadEvents(dir)
	if err != nil {
		stepsSec.Close()
		return nil, err
	}

	types, err := loadTypes(dir)
	if err != nil {
		stepsSec.Close()
		return nil, err
	}

	snaps, err := loadSnapshots(dir)
	if err != nil {
		stepsSec.Close()
		return nil, err
	}

	functions, children, err := loadFunctions(dir)
	if err != nil {
		stepsSec.Close()
		return nil, err
	}

	return &Store{
		dir:       dir,
		steps:     stepsSec,
		symbols:   syms,
		events:    events,
		types:     types,
		snapshots: snaps,
		functions: functions,
		children:  children,
		source:    newSourceIndex(filepath.Join(dir, "source")),
	}, nil
}

// Close releases the memory-mapped section files. Safe to call once, after
// which the Store must not be used.
func (s *Store) Close() error {
	return s.steps.Close()
}

// StepByTick resolves the step recorded exactly at tick.
func (s *Store) StepByTick(tick corekit.Tick) (corekit.Step, error) { return s.stepByTick(tick) }

// StepsInFunction returns every step belonging to the given call key, tick-ordered.
func (s *Store) StepsInFunction(key corekit.CallKey) ([]corekit.Step, error) {
	return s.stepsInFunction(key)
}

// EventsInRange returns a lazy sequence of events whose tick falls in
// [low, high] (high.Valid()==false means unbounded) and whose kind matches
// mask.
func (s *Store) EventsInRange(low, high corekit.Tick, mask EventFilterMask) *EventIter {
	return s.eventsInRange(low, high, mask)
}

// EventsAtTick returns every event recorded at exactly tick, in recording
// order, used by the Flow Reconstructor to attach the events a step
// produced (§4.3 `events`).
func (s *Store) EventsAtTick(tick corekit.Tick) []corekit.Event {
	iter := s.eventsInRange(tick, tick, 0)
	var out []corekit.Event
	for iter.Next() {
		out = append(out, iter.Event())
	}
	return out
}

// FunctionByKey resolves the Function Instance identified by key.
func (s *Store) FunctionByKey(key corekit.CallKey) (corekit.FunctionInstance, error) {
	fi, ok := s.functions[key]
	if !ok {
		return corekit.FunctionInstance{}, corekit.NewError(corekit.KindNotInRecording, "tracestore.FunctionByKey",
			fmt.Sprintf("call key %q not recorded", key), nil)
	}
	return fi, nil
}

// ChildrenOf returns the call keys of every direct child call of key,
// ordered by callerTick (§4.4: "children appear in the order of their
// callerTick; ties are impossible by §3(1)").
func (s *Store) ChildrenOf(key corekit.CallKey) []corekit.CallKey {
	kids := s.children[key]
	out := make([]corekit.CallKey, len(kids))
	copy(out, kids)
	sort.Slice(out, func(i, j int) bool {
		return s.functions[out[i]].CallTick < s.functions[out[j]].CallTick
	})
	return out
}

// SymbolRange resolves the source path and line range of the static function
// identified by key, for the Flow Reconstructor's default shape provider.
func (s *Store) SymbolRange(key corekit.FunctionKey) (path string, startLine, endLine int, ok bool) {
	id, ok := s.symbols.byKey[key]
	if !ok {
		return "", 0, 0, false
	}
	sym := s.symbols.byID[id]
	return sym.Path, sym.StartLine, sym.EndLine, true
}

// TypeByKey resolves the Type descriptor with the given structural key.
func (s *Store) TypeByKey(key string) (corekit.Type, error) { return s.typeByKey(key) }

// ValueAt resolves expr's value at the step identified by stepIndex (the
// step's position in the tick-ordered stream, as returned alongside results
// from StepsInFunction or a Flow reconstruction).
func (s *Store) ValueAt(stepIndex uint64, expr string) (corekit.Value, error) {
	return s.valueAt(stepIndex, expr)
}

// SourceFor returns the full text and line index of path.
func (s *Store) SourceFor(path string) (string, []int, error) { return s.sourceFor(path) }

// LineText returns one source line, trimmed of its newline.
func (s *Store) LineText(path string, line int) (string, error) { return s.lineText(path, line) }

func loadSymbols(dir string) (*symbolTable, error) {
	var doc struct {
		Paths   []string `json:"paths"`
		Symbols []symbol `json:"symbols"`
	}
	if err := readJSON(dir, "symbols.bin", &doc); err != nil {
		return nil, err
	}
	t := &symbolTable{
		byID:  make(map[symbolID]symbol, len(doc.Symbols)),
		byKey: make(map[corekit.FunctionKey]symbolID, len(doc.Symbols)),
		paths: doc.Paths,
	}
	for _, sym := range doc.Symbols {
		t.byID[sym.ID] = sym
		t.byKey[sym.Key] = sym.ID
	}
	return t, nil
}

func loadEvents(dir string) ([]eventRow, error) {
	var rows []eventRow
	if err := readJSON(dir, "events.bin", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func loadTypes(dir string) (map[string]corekit.Type, error) {
	types := make(map[string]corekit.Type)
	if err := readJSON(dir, "types.bin", &types); err != nil {
		return nil, err
	}
	return types, nil
}

func loadSnapshots(dir string) (map[uint64]snapshot, error) {
	snaps := make(map[uint64]snapshot)
	if err := readJSON(dir, "values.bin", &snaps); err != nil {
		return nil, err
	}
	for _, snap := range snaps {
		normalizePointers(snap.Before)
		normalizePointers(snap.After)
	}
	return snaps, nil
}

// normalizePointers decodes every recorded Pointer's raw address text in
// place, via valuesvc's decode/fallback rule (§4.5, §9): values.bin carries
// whatever Addr/AddressDecodable/Str the tracer wrote, but the rule for
// turning raw address text into a decoded Addr (or a preserved verbatim
// fallback) belongs to valuesvc, not the artifact format.
func normalizePointers(values map[string]corekit.Value) {
	for name, v := range values {
		values[name] = normalizePointerValue(v)
	}
}

func normalizePointerValue(v corekit.Value) corekit.Value {
	for i := range v.Children {
		v.Children[i] = normalizePointerValue(v.Children[i])
	}
	if v.Variant != corekit.ValuePointer {
		return v
	}
	var deref *corekit.Value
	if len(v.Children) > 0 {
		deref = &v.Children[0]
	}
	rebuilt := valuesvc.BuildPointer(v.Str, deref)
	rebuilt.Kind = v.Kind
	rebuilt.Str, _, _ = valuesvc.FormatPointer(v.Str)
	return rebuilt
}

func loadFunctions(dir string) (map[corekit.CallKey]corekit.FunctionInstance, map[corekit.CallKey][]corekit.CallKey, error) {
	var rows []corekit.FunctionInstance
	if err := readJSON(dir, "functions.bin", &rows); err != nil {
		return nil, nil, err
	}
	byKey := make(map[corekit.CallKey]corekit.FunctionInstance, len(rows))
	children := make(map[corekit.CallKey][]corekit.CallKey)
	for _, fi := range rows {
		byKey[fi.Key] = fi
		children[fi.ParentKey] = append(children[fi.ParentKey], fi.Key)
	}
	return byKey, children, nil
}

// readJSON decodes a JSON-framed section whose header is the common
// {magic,version,...} prefix followed directly by the JSON document, into
// v. Returns ArtifactCorrupt if the file exists but fails to parse, and
// leaves v untouched (empty) if the file is absent — not every recording
// carries every optional section (e.g. a recording with no custom types).
func readJSON(dir, name string, v any) error {
	path := filepath.Join(dir, name)
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return corekit.NewError(corekit.KindArtifactCorrupt, "tracestore.Open", fmt.Sprintf("reading %s", name), err)
	}
	if len(b) < headerSize {
		return corekit.NewError(corekit.KindArtifactCorrupt, "tracestore.Open", fmt.Sprintf("%s: truncated header", name), nil)
	}
	if _, err := decodeHeader(b[:headerSize]); err != nil {
		return corekit.NewError(corekit.KindArtifactCorrupt, "tracestore.Open", fmt.Sprintf("%s: bad header", name), err)
	}
	if err := json.Unmarshal(b[headerSize:], v); err != nil {
		return corekit.NewError(corekit.KindArtifactCorrupt, "tracestore.Open", fmt.Sprintf("%s: malformed body", name), err)
	}
	return nil
}
