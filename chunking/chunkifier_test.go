package chunking

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(prefix string, n int) []string {
	res := make([]string, n)
	for i := range res {
		res[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return res
}

func sentence(prefix string, n int) string {
	return strings.Join(words(prefix, n), " ") + "."
}

func Test_Normalize(t *testing.T) {
	var cases = []struct {
		input  string
		output string
	}{
		{input: "a\n\n b\t c", output: "a b c"},
		{input: "  leading and trailing  ", output: "leading and trailing"},
		{input: "line\r\nbreaks\r\r", output: "line breaks"},
		{input: "", output: ""},
		{input: " \n\t ", output: ""},
	}

	for i, c := range cases {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			out := Normalize(c.input)
			assert.Equal(t, c.output, out)
			assert.Equal(t, out, Normalize(out))
		})
	}
}

func Test_WordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount(""))
	assert.Equal(t, 3, WordCount(" one two\nthree "))
}

func Test_Chunkify_ShortTextFallsBack(t *testing.T) {
	c := NewSemanticChunkifier(DefaultConfig())

	var cases = []struct {
		input  string
		output []Segment
	}{
		{input: "Just one sentence.", output: []Segment{{Text: "Just one sentence.", Index: 0}}},
		{input: "no terminator at all", output: []Segment{{Text: "no terminator at all", Index: 0}}},
		{input: "  First. Second!  ", output: []Segment{{Text: "First. Second!", Index: 0}}},
		{input: "", output: []Segment{{Text: "", Index: 0}}},
	}

	for i, tc := range cases {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			assert.Equal(t, tc.output, c.Chunkify(tc.input))
		})
	}
}

func Test_Chunkify_TwoChunksWithOverlap(t *testing.T) {
	first := words("a", 600)
	second := words("b", 50)
	text := strings.Join(first, " ") + ". " + strings.Join(second, " ") + "."

	c := NewSemanticChunkifier(Config{MinWords: 300, MaxWords: 600, OverlapWords: 50})
	out := c.Chunkify(text)

	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].Index)
	assert.Equal(t, 1, out[1].Index)
	assert.Equal(t, 600, WordCount(out[0].Text))

	firstWords := strings.Fields(out[0].Text)
	secondWords := strings.Fields(out[1].Text)
	assert.Equal(t, firstWords[550:], secondWords[:50])
	assert.Equal(t, "b49.", secondWords[len(secondWords)-1])
}

func Test_Chunkify_GrowsPastMaxBelowMin(t *testing.T) {
	text := sentence("a", 8) + " " + sentence("b", 8)

	c := NewSemanticChunkifier(Config{MinWords: 10, MaxWords: 12, OverlapWords: 2})
	out := c.Chunkify(text)

	require.Len(t, out, 1)
	assert.Equal(t, 16, WordCount(out[0].Text))
}

func Test_Chunkify_ReconstructsInput(t *testing.T) {
	var parts []string
	for i := range 40 {
		parts = append(parts, sentence(fmt.Sprintf("s%d_", i), 7+i%5))
	}
	parts = append(parts, "trailing words without a terminator")
	text := Normalize(strings.Join(parts, " \n "))

	overlap := 3
	c := NewSemanticChunkifier(Config{MinWords: 20, MaxWords: 40, OverlapWords: overlap})
	out := c.Chunkify(text)
	require.Greater(t, len(out), 1)

	var rebuilt []string
	for i, seg := range out {
		assert.Equal(t, i, seg.Index)
		w := strings.Fields(seg.Text)
		if i > 0 {
			w = w[overlap:]
		}
		rebuilt = append(rebuilt, w...)
	}

	assert.Equal(t, text, strings.Join(rebuilt, " "))
}

func Test_Chunkify_NoOverlap(t *testing.T) {
	text := sentence("a", 5) + " " + sentence("b", 5) + " " + sentence("c", 5)

	c := NewSemanticChunkifier(Config{MinWords: 5, MaxWords: 6, OverlapWords: 0})
	out := c.Chunkify(text)

	require.Len(t, out, 3)
	for i, seg := range out {
		assert.Equal(t, 5, WordCount(seg.Text), "chunk %d", i)
	}
	assert.Equal(t, "c0 c1 c2 c3 c4.", out[2].Text)
}

func Test_Chunkify_KeepsLeadingTerminators(t *testing.T) {
	c := NewSemanticChunkifier(Config{MinWords: 3, MaxWords: 3, OverlapWords: 0})

	res := c.Chunkify("... a b c. d e f. g h i.")
	require.Len(t, res, 3)
	assert.Equal(t, "... a b c.", res[0].Text)
	assert.Equal(t, "d e f.", res[1].Text)
	assert.Equal(t, "g h i.", res[2].Text)
}
