package flow

import (
	"regexp"
	"strings"

	"github.com/codetracer/replay-core/corekit"
)

// sourceProvider is the bundled ShapeProvider: it derives loop shapes by a
// lightweight indentation-and-keyword scan of the function's source range,
// since the replay core has no full per-language parser (§9: the Value and
// expression surfaces are deliberately narrow, not a general evaluator).
// It is a heuristic, not a source-language grammar: loop headers are lines
// matching a common keyword set, and a loop's body extends to the next
// line at the same or shallower indentation.
type sourceProvider struct {
	symbols symbolLookup
	src     sourceLookup
}

type symbolLookup interface {
	SymbolRange(key corekit.FunctionKey) (path string, startLine, endLine int, ok bool)
}

type sourceLookup interface {
	LineText(path string, line int) (string, error)
}

// NewSourceShapeProvider returns a ShapeProvider backed by a Trace Store's
// symbol table and source snapshot.
func NewSourceShapeProvider(symbols symbolLookup, src sourceLookup) ShapeProvider {
	return &sourceProvider{symbols: symbols, src: src}
}

var loopHeaderPattern = regexp.MustCompile(`^\s*(for|while|loop|each|repeat)\b`)

// commentLinePattern matches a line that is entirely a comment, across the
// handful of comment syntaxes the traced sources use. It deliberately
// doesn't try to detect a trailing comment on a code line, or a block
// comment's interior lines, which already read as plain text to the static
// scan; only whole comment lines get excluded from flow columns (§4.3).
var commentLinePattern = regexp.MustCompile(`^\s*(//|#|--|/\*|\*)`)

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 8
		} else {
			break
		}
	}
	return n
}

func (p *sourceProvider) Shape(key corekit.FunctionKey) (FunctionShape, error) {
	path, start, end, ok := p.symbols.SymbolRange(key)
	if !ok {
		return FunctionShape{}, corekit.NewError(corekit.KindLocation, "flow.Shape", "unknown function key", nil)
	}

	lines := make([]string, 0, end-start+1)
	for ln := start; ln <= end; ln++ {
		text, err := p.src.LineText(path, ln)
		if err != nil {
			text = ""
		}
		lines = append(lines, text)
	}

	loops := scanLoops(lines, start)
	comments := scanComments(lines, start)
	return FunctionShape{Loops: loops, CommentLines: comments}, nil
}

// scanComments returns the line numbers (lines[i] is source line offset+i)
// that are entirely a comment.
func scanComments(lines []string, offset int) []int {
	var out []int
	for i, text := range lines {
		if commentLinePattern.MatchString(text) {
			out = append(out, offset+i)
		}
	}
	return out
}

// scanLoops walks lines (lines[i] is source line offset+i) looking for loop
// headers and closing each loop's body at the first subsequent line whose
// indentation is <= the header's.
func scanLoops(lines []string, offset int) []LoopShape {
	var roots []LoopShape
	var stack []*LoopShape

	for i, text := range lines {
		line := offset + i
		trimmed := strings.TrimRight(text, " \t")
		if trimmed == "" {
			continue
		}
		indent := indentOf(text)

		for len(stack) > 0 && indent <= headerIndent(lines, stack[len(stack)-1].HeaderLine, offset) {
			closed := stack[len(stack)-1]
			closed.BodyEnd = line - 1
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				roots = append(roots, *closed)
			} else {
				stack[len(stack)-1].Nested = append(stack[len(stack)-1].Nested, *closed)
			}
		}

		if loopHeaderPattern.MatchString(text) {
			ls := &LoopShape{HeaderLine: line, BodyStart: line + 1, BodyEnd: line}
			stack = append(stack, ls)
		}
	}

	for len(stack) > 0 {
		closed := stack[len(stack)-1]
		closed.BodyEnd = offset + len(lines) - 1
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			roots = append(roots, *closed)
		} else {
			stack[len(stack)-1].Nested = append(stack[len(stack)-1].Nested, *closed)
		}
	}

	return roots
}

func headerIndent(lines []string, headerLine, offset int) int {
	i := headerLine - offset
	if i < 0 || i >= len(lines) {
		return 0
	}
	return indentOf(lines[i])
}
