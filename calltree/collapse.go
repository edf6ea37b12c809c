package calltree

import "github.com/codetracer/replay-core/corekit"

// group is one entry of a render pass after auto-collapse folding: either a
// single call to recurse into, or a placeholder standing in for a run of
// folded siblings.
type group struct {
	key         corekit.CallKey
	placeholder *NonExpanded
}

// groupForCollapse folds adjacent siblings sharing the same static function
// key into a single NonExpandedSiblings placeholder (§4.4 "Auto-collapsing:
// siblings that share the same function key and are adjacent are folded
// ... when optimizeCollapse holds"). Runs of length 1 are never folded —
// there is nothing to collapse.
func groupForCollapse(keys []corekit.CallKey, s store, optimizeCollapse bool) []group {
	if !optimizeCollapse || len(keys) == 0 {
		out := make([]group, len(keys))
		for i, k := range keys {
			out[i] = group{key: k}
		}
		return out
	}

	var out []group
	i := 0
	for i < len(keys) {
		fi, err := s.FunctionByKey(keys[i])
		if err != nil {
			out = append(out, group{key: keys[i]})
			i++
			continue
		}
		j := i + 1
		for j < len(keys) {
			fj, err := s.FunctionByKey(keys[j])
			if err != nil || fj.FuncKey != fi.FuncKey {
				break
			}
			j++
		}
		run := j - i
		if run == 1 {
			out = append(out, group{key: keys[i]})
		} else {
			out = append(out, group{placeholder: &NonExpanded{Kind: NonExpandedSiblings, Count: run}})
		}
		i = j
	}
	return out
}
