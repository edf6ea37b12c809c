package valuesvc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codetracer/replay-core/corekit"
)

func TestParseExprIdentifierOnly(t *testing.T) {
	root, steps, err := ParseExpr("x")
	require.NoError(t, err)
	require.Equal(t, "x", root)
	require.Empty(t, steps)
}

func TestParseExprFieldIndexDerefVariant(t *testing.T) {
	root, steps, err := ParseExpr("*x.a[2]#Some")
	require.NoError(t, err)
	require.Equal(t, "x", root)
	require.Len(t, steps, 4)
	require.Equal(t, stepDeref, steps[0].kind)
	require.Equal(t, stepField, steps[1].kind)
	require.Equal(t, "a", steps[1].field)
	require.Equal(t, stepIndex, steps[2].kind)
	require.Equal(t, stepVariant, steps[3].kind)
}

func TestParseExprRejectsArithmetic(t *testing.T) {
	_, _, err := ParseExpr("x + 1")
	require.Error(t, err)
	require.True(t, corekit.ErrorConfig.Is(err))
}

func TestParseExprRejectsEmpty(t *testing.T) {
	_, _, err := ParseExpr("   ")
	require.Error(t, err)
}

func TestNavigateFieldAccess(t *testing.T) {
	v := corekit.Value{
		Variant: corekit.ValueInstance,
		Kind:    corekit.Type{Fields: []corekit.Field{{Name: "a"}, {Name: "b"}}},
		Children: []corekit.Value{
			{Variant: corekit.ValueInt, Int: 1},
			{Variant: corekit.ValueInt, Int: 2},
		},
	}
	_, steps, err := ParseExpr("x.b")
	require.NoError(t, err)
	result := Navigate(v, steps)
	require.Equal(t, int64(2), result.Int)
}

func TestNavigateMissingFieldIsValueError(t *testing.T) {
	v := corekit.Value{Variant: corekit.ValueInstance}
	_, steps, _ := ParseExpr("x.missing")
	result := Navigate(v, steps)
	require.Equal(t, corekit.ValueError, result.Variant)
}

func TestNavigateIndexOutOfRange(t *testing.T) {
	v := corekit.Value{Variant: corekit.ValueArray, Children: []corekit.Value{{Variant: corekit.ValueInt, Int: 1}}}
	_, steps, _ := ParseExpr("x[5]")
	result := Navigate(v, steps)
	require.Equal(t, corekit.ValueError, result.Variant)
}

type fakeValueStore struct {
	values map[string]corekit.Value
}

func (f *fakeValueStore) ValueAt(stepIndex uint64, expr string) (corekit.Value, error) {
	v, ok := f.values[expr]
	if !ok {
		return corekit.Value{Variant: corekit.ValueNonExpanded}, nil
	}
	return v, nil
}

func (f *fakeValueStore) TypeByKey(key string) (corekit.Type, error) { return corekit.Type{}, nil }

func TestServiceResolveNavigatesRecordedValue(t *testing.T) {
	store := &fakeValueStore{values: map[string]corekit.Value{
		"x": {
			Variant: corekit.ValueInstance,
			Kind:    corekit.Type{Fields: []corekit.Field{{Name: "a"}}},
			Children: []corekit.Value{{Variant: corekit.ValueInt, Int: 42}},
		},
	}}
	svc := New(store)

	v, err := svc.Resolve(0, "x.a")
	require.NoError(t, err)
	require.Equal(t, int64(42), v.Int)
}

func TestExpandValuePaginates(t *testing.T) {
	children := make([]corekit.Value, 10)
	for i := range children {
		children[i] = corekit.Value{Variant: corekit.ValueInt, Int: int64(i)}
	}
	store := &fakeValueStore{values: map[string]corekit.Value{
		"xs": {Variant: corekit.ValueArray, Children: children},
	}}
	svc := New(store)

	v, err := svc.ExpandValue(0, "xs", ExpandOptions{StartIndex: 2, Count: 3})
	require.NoError(t, err)
	require.Len(t, v.Children, 3)
	require.Equal(t, int64(2), v.Children[0].Int)
	require.True(t, v.Truncated)
	require.Equal(t, 10, v.Total)
}

func TestExpandValueFullWindowNotTruncated(t *testing.T) {
	store := &fakeValueStore{values: map[string]corekit.Value{
		"xs": {Variant: corekit.ValueArray, Children: []corekit.Value{{Variant: corekit.ValueInt, Int: 1}}},
	}}
	svc := New(store)

	v, err := svc.ExpandValue(0, "xs", ExpandOptions{})
	require.NoError(t, err)
	require.False(t, v.Truncated)
}

func TestTestEqStructural(t *testing.T) {
	a := corekit.Value{Variant: corekit.ValueInt, Int: 1}
	b := corekit.Value{Variant: corekit.ValueInt, Int: 1}
	c := corekit.Value{Variant: corekit.ValueInt, Int: 2}
	require.True(t, TestEq(a, b))
	require.False(t, TestEq(a, c))
}

func TestTestEqRecursionAlwaysEqual(t *testing.T) {
	a := corekit.Value{Variant: corekit.ValueRecursion, RecursionOf: 1}
	b := corekit.Value{Variant: corekit.ValueRecursion, RecursionOf: 2}
	require.True(t, TestEq(a, b))
}

func TestFormatPointerDecodesHex(t *testing.T) {
	text, addr, ok := FormatPointer("0x1A")
	require.True(t, ok)
	require.Equal(t, "0x1a", text)
	require.Equal(t, corekit.Address(0x1A), addr)
}

func TestFormatPointerPreservesUndecodableText(t *testing.T) {
	text, _, ok := FormatPointer("<optimized out>")
	require.False(t, ok)
	require.Equal(t, "<optimized out>", text)
}

type fakeHistoryStore struct {
	steps     []corekit.Step
	snapshots map[uint64]struct{ before, after map[string]corekit.Value }
}

func (f *fakeHistoryStore) StepsInFunction(key corekit.CallKey) ([]corekit.Step, error) {
	return f.steps, nil
}

func (f *fakeHistoryStore) Snapshot(id uint64) (before, after map[string]corekit.Value, err error) {
	s, ok := f.snapshots[id]
	if !ok {
		return nil, nil, nil
	}
	return s.before, s.after, nil
}

func TestHistoryDedupesConsecutiveEqualValues(t *testing.T) {
	store := &fakeHistoryStore{
		steps: []corekit.Step{
			{Tick: 1, SnapshotID: 1},
			{Tick: 2, SnapshotID: 2},
			{Tick: 3, SnapshotID: 3},
		},
		snapshots: map[uint64]struct{ before, after map[string]corekit.Value }{
			1: {after: map[string]corekit.Value{"x": {Variant: corekit.ValueInt, Int: 1}}},
			2: {after: map[string]corekit.Value{"x": {Variant: corekit.ValueInt, Int: 1}}},
			3: {after: map[string]corekit.Value{"x": {Variant: corekit.ValueInt, Int: 2}}},
		},
	}

	entries, err := History(store, "key", "x", true)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(1), entries[0].Value.Int)
	require.Equal(t, int64(2), entries[1].Value.Int)
}

func TestHistoryReverseOrdersDescending(t *testing.T) {
	store := &fakeHistoryStore{
		steps: []corekit.Step{
			{Tick: 1, SnapshotID: 1},
			{Tick: 2, SnapshotID: 2},
		},
		snapshots: map[uint64]struct{ before, after map[string]corekit.Value }{
			1: {after: map[string]corekit.Value{"x": {Variant: corekit.ValueInt, Int: 1}}},
			2: {after: map[string]corekit.Value{"x": {Variant: corekit.ValueInt, Int: 2}}},
		},
	}

	entries, err := History(store, "key", "x", false)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, corekit.Tick(2), entries[0].Tick)
	require.Equal(t, corekit.Tick(1), entries[1].Tick)
}
