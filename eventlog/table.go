// Package eventlog implements §4.6's Event Log: a DataTables-style
// ordered, filterable, paginated view over the recorded Event stream.
package eventlog

import (
	"sort"

	"github.com/codetracer/replay-core/corekit"
)

// Column describes one DataTables-style column request.
type Column struct {
	Data       string
	Name       string
	Orderable  bool
	Searchable bool
	Search     Search
}

// Search is one column or global search predicate.
type Search struct {
	Value string
	Regex bool
}

// Order is one DataTables-style sort directive: Column indexes into the
// request's Columns, Dir is "asc" or "desc".
type Order struct {
	Column int
	Dir    string
}

// TableRequest is updateTable's input (§4.6).
type TableRequest struct {
	Columns []Column
	Order   []Order
	Draw    int
	Start   int
	Length  int
	Search  Search
}

// Row is one rendered Event Log row.
type Row struct {
	EventID  corekit.EventID
	Tick     corekit.Tick
	Kind     corekit.EventKind
	Location corekit.SourceLoc
	Content  string
}

// TableData is updateTable's output (§4.6).
type TableData struct {
	Draw            int
	RecordsTotal    int
	RecordsFiltered int
	Data            []Row
}

// UpdateTable renders one page of the event log (§4.6 contract). rows must
// already be restricted to selectedKinds by the caller (see Log.Update,
// which applies an EventFilterMask before calling this) — UpdateTable
// itself only orders, searches, and paginates.
func UpdateTable(rows []corekit.Event, req TableRequest) (TableData, error) {
	total := len(rows)

	filtered := rows
	if req.Search.Value != "" {
		matcher, err := newMatcher(req.Search)
		if err != nil {
			return TableData{}, err
		}
		filtered = filterRows(rows, matcher)
	}

	sortRows(filtered, req.Order)

	start := req.Start
	if start < 0 {
		start = 0
	}
	if start > len(filtered) {
		start = len(filtered)
	}
	end := len(filtered)
	if req.Length > 0 && start+req.Length < end {
		end = start + req.Length
	}

	page := make([]Row, 0, end-start)
	for _, e := range filtered[start:end] {
		page = append(page, Row{EventID: e.ID, Tick: e.Tick, Kind: e.Kind, Location: e.Loc, Content: e.Content})
	}

	return TableData{
		Draw:            req.Draw,
		RecordsTotal:    total,
		RecordsFiltered: len(filtered),
		Data:            page,
	}, nil
}

// sortRows orders rows per req.Order, breaking ties on ascending tick
// (§4.6 invariant: "ties break on ascending tick"). The recorded Event
// shape has exactly one orderable field (tick), so every Order entry
// sorts on it in the requested direction; a later Order entry only
// matters as a tie-breaker, which tick ordering already is.
func sortRows(rows []corekit.Event, order []Order) {
	desc := len(order) > 0 && order[0].Dir == "desc"
	sort.SliceStable(rows, func(i, j int) bool {
		if desc {
			return rows[i].Tick > rows[j].Tick
		}
		return rows[i].Tick < rows[j].Tick
	})
}
