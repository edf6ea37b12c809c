package eventlog

import (
	"regexp"
	"strings"

	"github.com/codetracer/replay-core/corekit"
)

// newMatcher builds a matcher from a search predicate: plain substring
// search by default, or a compiled regex when s.Regex holds. An invalid
// regex fails with ErrorConfig (§4.6: "when regex is true, invalid
// patterns return ErrorConfig").
func newMatcher(s Search) (matcher, error) {
	if !s.Regex {
		needle := strings.ToLower(s.Value)
		return func(e corekit.Event) bool {
			return strings.Contains(strings.ToLower(e.Content), needle) ||
				strings.Contains(strings.ToLower(e.Loc.Path), needle)
		}, nil
	}

	re, err := regexp.Compile(s.Value)
	if err != nil {
		return nil, corekit.NewError(corekit.KindConfig, "eventlog.newMatcher", "invalid search regex", err)
	}
	return func(e corekit.Event) bool {
		return re.MatchString(e.Content) || re.MatchString(e.Loc.Path)
	}, nil
}
