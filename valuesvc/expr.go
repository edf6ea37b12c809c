// Package valuesvc implements §4.5's Value Service: resolving the narrow
// expression surface the replay core supports (identifiers, field access,
// indexing, dereference, variant-tag selection) against the Trace Store's
// recorded Value trees, plus pagination and value history over time.
package valuesvc

import (
	"strconv"
	"strings"

	"github.com/codetracer/replay-core/corekit"
)

// stepKind discriminates one segment of a parsed expression path.
type stepKind uint8

const (
	stepField stepKind = iota
	stepIndex
	stepDeref
	stepVariant
)

type exprStep struct {
	kind  stepKind
	field string
	index int
}

// ParseExpr parses the narrow expression surface §4.5 allows: an
// identifier, followed by any run of `.field`, `[N]`, `*` (prefix
// dereference applies to the whole expression so far), and `#tag` (variant
// selection). Anything else — arithmetic, calls, arbitrary language syntax
// — fails with ErrorConfig: the core does not evaluate expressions, it
// only navigates recorded value trees.
func ParseExpr(expr string) (root string, steps []exprStep, err error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", nil, corekit.NewError(corekit.KindConfig, "valuesvc.ParseExpr", "empty expression", nil)
	}

	derefs := 0
	for strings.HasPrefix(expr, "*") {
		derefs++
		expr = expr[1:]
	}

	i := 0
	for i < len(expr) && (isIdentRune(rune(expr[i]))) {
		i++
	}
	if i == 0 {
		return "", nil, corekit.NewError(corekit.KindConfig, "valuesvc.ParseExpr", "expected identifier in "+expr, nil)
	}
	root = expr[:i]
	rest := expr[i:]

	for d := 0; d < derefs; d++ {
		steps = append(steps, exprStep{kind: stepDeref})
	}

	for len(rest) > 0 {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			j := 0
			for j < len(rest) && isIdentRune(rune(rest[j])) {
				j++
			}
			if j == 0 {
				return "", nil, corekit.NewError(corekit.KindConfig, "valuesvc.ParseExpr", "expected field name after '.'", nil)
			}
			steps = append(steps, exprStep{kind: stepField, field: rest[:j]})
			rest = rest[j:]
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return "", nil, corekit.NewError(corekit.KindConfig, "valuesvc.ParseExpr", "unterminated '[' in index", nil)
			}
			n, convErr := strconv.Atoi(rest[1:end])
			if convErr != nil {
				return "", nil, corekit.NewError(corekit.KindConfig, "valuesvc.ParseExpr", "index must be a literal integer", convErr)
			}
			steps = append(steps, exprStep{kind: stepIndex, index: n})
			rest = rest[end+1:]
		case '#':
			rest = rest[1:]
			j := 0
			for j < len(rest) && isIdentRune(rune(rest[j])) {
				j++
			}
			if j == 0 {
				return "", nil, corekit.NewError(corekit.KindConfig, "valuesvc.ParseExpr", "expected tag name after '#'", nil)
			}
			steps = append(steps, exprStep{kind: stepVariant, field: rest[:j]})
			rest = rest[j:]
		default:
			return "", nil, corekit.NewError(corekit.KindConfig, "valuesvc.ParseExpr", "unsupported expression syntax at "+rest, nil)
		}
	}
	return root, steps, nil
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// Navigate applies steps to root, returning the resolved sub-value. An
// index or field that doesn't exist resolves to a ValueError leaf rather
// than a Go error — the expression was well-formed, the recorded value
// tree simply has no such member at this tick.
func Navigate(root corekit.Value, steps []exprStep) corekit.Value {
	cur := root
	for _, st := range steps {
		switch st.kind {
		case stepField:
			cur = fieldOf(cur, st.field)
		case stepIndex:
			cur = indexOf(cur, st.index)
		case stepDeref:
			cur = derefOf(cur)
		case stepVariant:
			cur = variantOf(cur, st.field)
		}
		if cur.Variant == corekit.ValueError {
			return cur
		}
	}
	return cur
}

func errValue(msg string) corekit.Value {
	return corekit.Value{Variant: corekit.ValueError, ErrorMessage: msg}
}

func fieldOf(v corekit.Value, name string) corekit.Value {
	if v.Variant != corekit.ValueInstance && v.Variant != corekit.ValueTuple {
		return errValue("not a record: " + name)
	}
	for i, f := range v.Kind.Fields {
		if f.Name == name && i < len(v.Children) {
			return v.Children[i]
		}
	}
	return errValue("no such field: " + name)
}

func indexOf(v corekit.Value, idx int) corekit.Value {
	if !v.IsContainer() {
		return errValue("not indexable")
	}
	if idx < 0 || idx >= len(v.Children) {
		return errValue("index out of range")
	}
	return v.Children[idx]
}

func derefOf(v corekit.Value) corekit.Value {
	if v.Variant != corekit.ValuePointer && v.Variant != corekit.ValueRef {
		return errValue("not a pointer")
	}
	if len(v.Children) == 0 {
		return errValue("pointer has no dereferenced value")
	}
	return v.Children[0]
}

func variantOf(v corekit.Value, tag string) corekit.Value {
	if v.Variant != corekit.ValueVariant {
		return errValue("not a variant")
	}
	if v.VariantLabel != tag {
		return errValue("variant is not tagged " + tag)
	}
	if len(v.Children) == 0 {
		return errValue("variant has no payload")
	}
	return v.Children[0]
}
