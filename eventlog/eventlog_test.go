package eventlog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codetracer/replay-core/corekit"
)

func rows() []corekit.Event {
	return []corekit.Event{
		{ID: 3, Tick: 30, Kind: corekit.EventWrite, Content: "wrote config", Loc: corekit.SourceLoc{Path: "a.go"}},
		{ID: 1, Tick: 10, Kind: corekit.EventRead, Content: "read input", Loc: corekit.SourceLoc{Path: "b.go"}},
		{ID: 2, Tick: 20, Kind: corekit.EventOpen, Content: "opened socket", Loc: corekit.SourceLoc{Path: "c.go"}},
	}
}

func TestUpdateTableOrdersByTickAscendingByDefault(t *testing.T) {
	data, err := UpdateTable(rows(), TableRequest{Draw: 7})
	require.NoError(t, err)
	require.Equal(t, 7, data.Draw)
	require.Equal(t, 3, data.RecordsTotal)
	require.Equal(t, 3, data.RecordsFiltered)
	require.Equal(t, corekit.Tick(10), data.Data[0].Tick)
	require.Equal(t, corekit.Tick(30), data.Data[2].Tick)
}

func TestUpdateTableDescendingOrder(t *testing.T) {
	data, err := UpdateTable(rows(), TableRequest{Order: []Order{{Dir: "desc"}}})
	require.NoError(t, err)
	require.Equal(t, corekit.Tick(30), data.Data[0].Tick)
}

func TestUpdateTablePagination(t *testing.T) {
	data, err := UpdateTable(rows(), TableRequest{Start: 1, Length: 1})
	require.NoError(t, err)
	require.Len(t, data.Data, 1)
	require.Equal(t, 3, data.RecordsTotal)
	require.Equal(t, corekit.Tick(20), data.Data[0].Tick)
}

func TestUpdateTableSubstringSearch(t *testing.T) {
	data, err := UpdateTable(rows(), TableRequest{Search: Search{Value: "socket"}})
	require.NoError(t, err)
	require.Equal(t, 3, data.RecordsTotal)
	require.Equal(t, 1, data.RecordsFiltered)
	require.Equal(t, corekit.Tick(20), data.Data[0].Tick)
}

func TestUpdateTableRegexSearch(t *testing.T) {
	data, err := UpdateTable(rows(), TableRequest{Search: Search{Value: "^read|^wrote", Regex: true}})
	require.NoError(t, err)
	require.Equal(t, 2, data.RecordsFiltered)
}

func TestUpdateTableInvalidRegexFailsConfig(t *testing.T) {
	_, err := UpdateTable(rows(), TableRequest{Search: Search{Value: "[invalid", Regex: true}})
	require.Error(t, err)
	require.True(t, corekit.ErrorConfig.Is(err))
}
