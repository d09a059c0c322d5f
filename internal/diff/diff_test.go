package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinesMarksChanges(t *testing.T) {
	lines := Lines("alpha\nbeta\n", "alpha\ngamma\n")
	require.Equal(t, []Line{
		{Type: LineContext, Text: "alpha", OldLine: 1, NewLine: 1},
		{Type: LineRemoved, Text: "beta", OldLine: 2},
		{Type: LineAdded, Text: "gamma", NewLine: 2},
	}, lines)
}

func TestHunksContext(t *testing.T) {
	var before, after strings.Builder
	for i := 0; i < 20; i++ {
		before.WriteString("row" + string(rune('a'+i)) + "\n")
		if i == 10 {
			after.WriteString("changed\n")
			continue
		}
		after.WriteString("row" + string(rune('a'+i)) + "\n")
	}
	hunks := Hunks(before.String(), after.String(), 1)
	require.Len(t, hunks, 1)
	require.Len(t, hunks[0].Lines, 4) // context, removed, added, context
	added, removed := Stats(hunks)
	require.Equal(t, 1, added)
	require.Equal(t, 1, removed)
}

func TestHunksIdentical(t *testing.T) {
	require.Empty(t, Hunks("a\nb\n", "a\nb\n", 2))
}

func TestHunksWithLimit(t *testing.T) {
	hunks, truncated := HunksWithLimit("a\nb\n", "a\nc\n", 0, 3)
	require.True(t, truncated)
	require.Nil(t, hunks)

	hunks, truncated = HunksWithLimit("a\nb\n", "a\nc\n", 0, 0)
	require.False(t, truncated)
	require.Len(t, hunks, 1)
}
