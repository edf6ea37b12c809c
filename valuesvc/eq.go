package valuesvc

import "github.com/codetracer/replay-core/corekit"

// TestEq is the structural Value equality §8 requires for value history
// deduplication: two values are equal if their Variant, scalar payload, and
// (recursively) Children match. Recursion leaves compare equal to any other
// Recursion leaf regardless of RecursionOf — a cycle is a cycle, and value
// history only needs to know "did the shape change", not "does it point at
// the exact same node".
func TestEq(a, b corekit.Value) bool {
	if a.Variant != b.Variant {
		return false
	}
	switch a.Variant {
	case corekit.ValueInt, corekit.ValueEnum:
		return a.Int == b.Int
	case corekit.ValueFloat:
		return a.Float == b.Float
	case corekit.ValueBool:
		return a.Bool == b.Bool
	case corekit.ValueChar:
		return a.Char == b.Char
	case corekit.ValueString, corekit.ValueCString, corekit.ValueRaw, corekit.ValueFunctionRef:
		return a.Str == b.Str
	case corekit.ValuePointer, corekit.ValueRef:
		if a.Addr != b.Addr {
			return false
		}
	case corekit.ValueVariant:
		if a.VariantLabel != b.VariantLabel {
			return false
		}
	case corekit.ValueRecursion:
		return true
	case corekit.ValueError:
		return a.ErrorMessage == b.ErrorMessage
	case corekit.ValueNone, corekit.ValueNonExpanded:
		return true
	}

	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !TestEq(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}
