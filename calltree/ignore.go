package calltree

import (
	"regexp"
	"strings"

	"github.com/gobwas/glob"

	"github.com/codetracer/replay-core/corekit"
)

// ignoreRule is one newline-separated entry of an ignore-pattern document:
// a shell glob over the call's source path, and/or a regex over its
// function name (§4.4: "shell-glob over path and regex over functionName,
// joined by newline").
type ignoreRule struct {
	pathGlob glob.Glob
	nameRe   *regexp.Regexp
}

// IgnoreSet is a parsed, ready-to-match set of ignore rules.
type IgnoreSet struct {
	rules []ignoreRule
}

// ParseIgnorePatterns parses one newline-separated pattern per line. Each
// line is `pathGlob` or `pathGlob:functionNameRegex`; a line starting with
// `:` matches any path. Malformed globs/regexes fail with ErrorConfig
// (§4.4 failure semantics).
func ParseIgnorePatterns(doc string) (*IgnoreSet, error) {
	set := &IgnoreSet{}
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pathPart, namePart, hasName := strings.Cut(line, ":")

		var rule ignoreRule
		if pathPart != "" {
			g, err := glob.Compile(pathPart, '/')
			if err != nil {
				return nil, corekit.NewError(corekit.KindConfig, "calltree.ParseIgnorePatterns",
					"invalid path glob "+pathPart, err)
			}
			rule.pathGlob = g
		}
		if hasName && namePart != "" {
			re, err := regexp.Compile(namePart)
			if err != nil {
				return nil, corekit.NewError(corekit.KindConfig, "calltree.ParseIgnorePatterns",
					"invalid function name regex "+namePart, err)
			}
			rule.nameRe = re
		}
		set.rules = append(set.rules, rule)
	}
	return set, nil
}

// Matches reports whether path/functionName should be elided from a
// rendered call tree.
func (s *IgnoreSet) Matches(path, functionName string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.rules {
		if r.pathGlob != nil && !r.pathGlob.Match(path) {
			continue
		}
		if r.nameRe != nil && !r.nameRe.MatchString(functionName) {
			continue
		}
		return true
	}
	return false
}
