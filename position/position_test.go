package position_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codetracer/replay-core/corekit"
	"github.com/codetracer/replay-core/position"
)

func TestModelCurrentStartsZero(t *testing.T) {
	m := position.New()
	require.True(t, m.Current().Zero())
}

func TestModelSetAndGet(t *testing.T) {
	m := position.New()
	p := corekit.Position{Tick: 5, Loc: corekit.SourceLoc{Path: "a.rb", Line: 3}}
	m.Set(p)
	require.Equal(t, p, m.Current())
}

func TestModelSetIfUnchanged(t *testing.T) {
	m := position.New()
	start := m.Current()
	next := corekit.Position{Tick: 1}

	ok := m.SetIfUnchanged(start, next)
	require.True(t, ok)
	require.Equal(t, next, m.Current())

	// Stale expected value: the swap must be rejected and the position
	// left untouched.
	stale := corekit.Position{Tick: 999}
	ok = m.SetIfUnchanged(start, stale)
	require.False(t, ok)
	require.Equal(t, next, m.Current())
}

func TestBreakpointsMatchesOnlyEnabled(t *testing.T) {
	bps := position.NewBreakpoints()
	loc := corekit.SourceLoc{Path: "a.rb", Line: 10}
	bps.Set(loc, true)
	require.True(t, bps.Matches(loc))

	bps.Set(loc, false)
	require.False(t, bps.Matches(loc))
	require.Len(t, bps.All(), 1, "disabled breakpoints are preserved, not removed")
}

func TestBreakpointsReplaceAllScopedToPath(t *testing.T) {
	bps := position.NewBreakpoints()
	bps.Set(corekit.SourceLoc{Path: "a.rb", Line: 1}, true)
	bps.Set(corekit.SourceLoc{Path: "b.rb", Line: 1}, true)

	bps.ReplaceAll("a.rb", []position.Breakpoint{
		{Loc: corekit.SourceLoc{Path: "a.rb", Line: 2}, Enabled: true},
	})

	require.False(t, bps.Matches(corekit.SourceLoc{Path: "a.rb", Line: 1}))
	require.True(t, bps.Matches(corekit.SourceLoc{Path: "a.rb", Line: 2}))
	require.True(t, bps.Matches(corekit.SourceLoc{Path: "b.rb", Line: 1}), "other paths untouched")
}
