package rewrite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAnnotationMatcher_SingleSpan(t *testing.T) {
	m := NewMatcher(AnnotationDelimiter)
	set, outcome := m.Match("a[@b@]c")

	require.Equal(t, OutcomeRewritten, outcome)
	require.Equal(t, []string{"a", "c"}, set.Segments)
	require.Equal(t, []string{"b"}, set.Captures)
}

func TestAnnotationMatcher_AdjacentSpans(t *testing.T) {
	m := NewMatcher(AnnotationDelimiter)
	set, outcome := m.Match("[@x@][@y@]")

	require.Equal(t, OutcomeRewritten, outcome)
	require.Equal(t, []string{"", "", ""}, set.Segments)
	require.Equal(t, []string{"x", "y"}, set.Captures)
}

func TestAnnotationMatcher_ExcludedCharacters(t *testing.T) {
	m := NewMatcher(AnnotationDelimiter)

	tests := []struct {
		name  string
		input string
	}{
		{"caret", "[@a^b@]"},
		{"open bracket", "[@a[b@]"},
		{"at sign", "[@a@b@]"},
		{"empty", "[@@]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, outcome := m.Match(tt.input)
			require.Equal(t, OutcomeNoMatch, outcome)
			require.Empty(t, set.Captures)
		})
	}
}

func TestAnnotationMatcher_CaretElsewhereIsFine(t *testing.T) {
	m := NewMatcher(AnnotationDelimiter)
	set, outcome := m.Match("x^2 [@bob@]")

	require.Equal(t, OutcomeRewritten, outcome)
	require.Equal(t, []string{"x^2 ", ""}, set.Segments)
	require.Equal(t, []string{"bob"}, set.Captures)
}

func TestAnnotationMatcher_MissingMarkers(t *testing.T) {
	m := NewMatcher(AnnotationDelimiter)

	_, outcome := m.Match("plain text")
	require.Equal(t, OutcomeNoMarkers, outcome)

	_, outcome = m.Match("[@ only open")
	require.Equal(t, OutcomeNoMarkers, outcome)

	_, outcome = m.Match("only close @]")
	require.Equal(t, OutcomeNoMarkers, outcome)
}

func TestAnnotationMatcher_UnbalancedStillMatchesPairs(t *testing.T) {
	// parity is only enforced for math spans
	m := NewMatcher(AnnotationDelimiter)
	set, outcome := m.Match("[@a@] and [@b")

	require.Equal(t, OutcomeRewritten, outcome)
	require.Equal(t, []string{"", " and [@b"}, set.Segments)
	require.Equal(t, []string{"a"}, set.Captures)
}

func TestMathMatcher_TwoSpans(t *testing.T) {
	m := NewMatcher(MathSpanDelimiter)
	set, outcome := m.Match("$$x$$ and $$y$$")

	require.Equal(t, OutcomeRewritten, outcome)
	require.Equal(t, []string{"", " and ", ""}, set.Segments)
	require.Equal(t, []string{"x", "y"}, set.Captures)
}

func TestMathMatcher_OddCountDeclinesWholeText(t *testing.T) {
	m := NewMatcher(MathSpanDelimiter)

	set, outcome := m.Match("$$a$$$$b")
	require.Equal(t, OutcomeUnpaired, outcome)
	require.Empty(t, set.Segments)

	_, outcome = m.Match("$$ok$$ then $$stray")
	require.Equal(t, OutcomeUnpaired, outcome, "a stray marker suppresses earlier pairs")
}

func TestMathMatcher_EvenCountWithoutContent(t *testing.T) {
	m := NewMatcher(MathSpanDelimiter)
	_, outcome := m.Match("$$$$")
	require.Equal(t, OutcomeNoMatch, outcome)
}

func TestMathMatcher_SingleDollarsAreLiteral(t *testing.T) {
	m := NewMatcher(MathSpanDelimiter)
	set, outcome := m.Match("costs $5, $$x^2$$")

	require.Equal(t, OutcomeRewritten, outcome)
	require.Equal(t, []string{"costs $5, ", ""}, set.Segments)
	require.Equal(t, []string{"x^2"}, set.Captures)
}

func TestMatcher_Wrap(t *testing.T) {
	require.Equal(t, "[@n@]", NewMatcher(AnnotationDelimiter).Wrap("n"))
	require.Equal(t, "$$n$$", NewMatcher(MathSpanDelimiter).Wrap("n"))
}

func TestOutcome_String(t *testing.T) {
	require.Equal(t, "rewritten", OutcomeRewritten.String())
	require.Equal(t, "skipped_no_markers", OutcomeNoMarkers.String())
	require.Equal(t, "skipped_unpaired", OutcomeUnpaired.String())
	require.Equal(t, "skipped_no_match", OutcomeNoMatch.String())
	require.Equal(t, "unknown", Outcome(42).String())
}

// delimiterText draws strings dense in delimiter characters.
func delimiterText() *rapid.Generator[string] {
	return rapid.StringOf(rapid.SampledFrom([]rune{'a', 'b', ' ', '[', '@', ']', '$', '^', 'é'}))
}

func TestProperty_MatchSetShape(t *testing.T) {
	for _, d := range []Delimiter{AnnotationDelimiter, MathSpanDelimiter} {
		m := NewMatcher(d)
		t.Run(string(d.Kind), func(t *testing.T) {
			rapid.Check(t, func(rt *rapid.T) {
				s := delimiterText().Draw(rt, "s")
				set, outcome := m.Match(s)
				if outcome != OutcomeRewritten {
					require.Empty(rt, set.Segments)
					require.Empty(rt, set.Captures)
					return
				}
				require.Len(rt, set.Segments, len(set.Captures)+1)

				var b strings.Builder
				for k, c := range set.Captures {
					require.NotEmpty(rt, c)
					require.False(rt, strings.ContainsAny(c, d.Exclude))
					b.WriteString(set.Segments[k])
					b.WriteString(m.Wrap(c))
				}
				b.WriteString(set.Segments[len(set.Captures)])
				require.Equal(rt, s, b.String())
			})
		})
	}
}
