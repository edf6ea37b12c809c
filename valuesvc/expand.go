package valuesvc

import "github.com/codetracer/replay-core/corekit"

// ExpandOptions controls pagination of a container Value's children (§4.5
// "Sequences and tables are paginated").
type ExpandOptions struct {
	StartIndex  int
	Count       int
	IsLoadMore  bool
}

// store is the subset of *tracestore.Store the service needs.
type store interface {
	ValueAt(stepIndex uint64, expr string) (corekit.Value, error)
	TypeByKey(key string) (corekit.Type, error)
}

// Service is the Value Service (§4.5).
type Service struct {
	store store
}

// New returns a Service reading recorded values from store.
func New(store store) *Service {
	return &Service{store: store}
}

// Resolve parses and navigates expr against the value recorded at
// stepIndex, returning ErrorConfig for a malformed expression and a
// ValueError leaf (not a Go error) for an expression that is well-formed
// but has no referent in the recorded tree at this tick.
func (s *Service) Resolve(stepIndex uint64, expr string) (corekit.Value, error) {
	root, steps, err := ParseExpr(expr)
	if err != nil {
		return corekit.Value{}, err
	}
	v, err := s.store.ValueAt(stepIndex, root)
	if err != nil {
		return corekit.Value{}, err
	}
	return Navigate(v, steps), nil
}

// ExpandValue returns the subtree at subPath (navigated from the value
// recorded at stepIndex), with its children paginated according to opts —
// §4.5's `expandValue(subPath, tick, {startIndex, count, isLoadMore})`.
func (s *Service) ExpandValue(stepIndex uint64, subPath string, opts ExpandOptions) (corekit.Value, error) {
	v, err := s.Resolve(stepIndex, subPath)
	if err != nil {
		return corekit.Value{}, err
	}
	if !v.IsContainer() {
		return v, nil
	}
	return paginate(v, opts), nil
}

// paginate slices v's children to the requested window, setting Truncated
// when the window doesn't cover the full child set.
func paginate(v corekit.Value, opts ExpandOptions) corekit.Value {
	total := len(v.Children)
	if total == 0 {
		v.Total = 0
		return v
	}

	start := opts.StartIndex
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	count := opts.Count
	if count <= 0 || start+count > total {
		count = total - start
	}
	end := start + count

	// The caller (not this call) is responsible for concatenating
	// windows across successive isLoadMore requests; this returns only
	// the newly-requested slice, with Total reflecting the full count.
	v.Children = v.Children[start:end]
	v.Total = total
	v.Truncated = end < total
	return v
}
