package drift

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCompare_Equal(t *testing.T) {
	lines := Compare("a\nb\n", "a\nb\n")
	require.False(t, Changed(lines))
	require.Equal(t, []Line{{LineContext, "a"}, {LineContext, "b"}}, lines)
	require.Empty(t, Hunks(lines, 3))
}

func TestCompare_ChangedLine(t *testing.T) {
	lines := Compare("<p>a</p>\n<p>b</p>\n", "<p>a</p>\n<p>c</p>\n")
	require.True(t, Changed(lines))
	require.Equal(t, []Line{
		{LineContext, "<p>a</p>"},
		{LineDeletion, "<p>b</p>"},
		{LineAddition, "<p>c</p>"},
	}, lines)
}

func TestCompare_MissingFile(t *testing.T) {
	lines := Compare("", "x\ny\n")
	require.Equal(t, []Line{{LineAddition, "x"}, {LineAddition, "y"}}, lines)
}

func TestHunks_ContextAndMerge(t *testing.T) {
	old := "1\n2\n3\n4\n5\n6\n7\n8\n9\n"
	lines := Compare(old, strings.Replace(strings.Replace(old, "2\n", "two\n", 1), "8\n", "eight\n", 1))

	hunks := Hunks(lines, 1)
	require.Len(t, hunks, 2)
	require.Equal(t, 0, hunks[0].Start)
	require.Equal(t, []Line{
		{LineContext, "1"},
		{LineDeletion, "2"},
		{LineAddition, "two"},
		{LineContext, "3"},
	}, hunks[0].Lines)

	merged := Hunks(lines, 3)
	require.Len(t, merged, 1)
	require.Len(t, merged[0].Lines, len(lines))
}

func TestCompare_PreservesBothSides(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		gen := rapid.SliceOf(rapid.SampledFrom([]string{"a", "b", "c", "<p>x</p>"}))
		a := gen.Draw(t, "a")
		b := gen.Draw(t, "b")
		join := func(ls []string) string {
			if len(ls) == 0 {
				return ""
			}
			return strings.Join(ls, "\n") + "\n"
		}

		var oldSide, newSide []string
		for _, l := range Compare(join(a), join(b)) {
			if l.Type != LineAddition {
				oldSide = append(oldSide, l.Text)
			}
			if l.Type != LineDeletion {
				newSide = append(newSide, l.Text)
			}
		}
		if len(a) == 0 {
			a = nil
		}
		if len(b) == 0 {
			b = nil
		}
		require.Equal(t, a, oldSide)
		require.Equal(t, b, newSide)
	})
}
