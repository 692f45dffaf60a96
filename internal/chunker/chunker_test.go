package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSplitSmallInput tests that short input stays whole.
func TestSplitSmallInput(t *testing.T) {
	t.Run("empty input returns nil", func(t *testing.T) {
		assert.Nil(t, Split("", DefaultOptions()))
		assert.Nil(t, Split("   \n\t  ", DefaultOptions()))
	})

	t.Run("input within chunk size returns single chunk", func(t *testing.T) {
		text := "A short note about nothing in particular."
		chunks := Split(text, DefaultOptions())
		require.Len(t, chunks, 1)
		assert.Equal(t, text, chunks[0].Text)
		assert.Equal(t, 0, chunks[0].Start)
	})

	t.Run("input exactly at chunk size returns single chunk", func(t *testing.T) {
		text := strings.Repeat("a", 1000)
		chunks := Split(text, DefaultOptions())
		require.Len(t, chunks, 1)
	})
}

// TestSplitSentenceBoundaries tests that chunks end at sentence breaks.
func TestSplitSentenceBoundaries(t *testing.T) {
	opts := Options{ChunkSize: 100, ChunkOverlap: 20}

	sentence := "The quick brown fox jumps over the lazy dog. "
	text := strings.TrimSpace(strings.Repeat(sentence, 10))

	chunks := Split(text, opts)
	require.Greater(t, len(chunks), 1)

	// Every chunk except the last should end just past a terminator.
	for i, c := range chunks[:len(chunks)-1] {
		trimmed := strings.TrimRight(c.Text, " \t\n")
		last := trimmed[len(trimmed)-1]
		assert.Contains(t, ".!?", string(last), "chunk %d ends mid-sentence: %q", i, c.Text)
	}
}

// TestSplitHardCut tests the fallback when no boundary exists.
func TestSplitHardCut(t *testing.T) {
	opts := Options{ChunkSize: 50, ChunkOverlap: 10}
	text := strings.Repeat("x", 200)

	chunks := Split(text, opts)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Text)), opts.ChunkSize)
	}
}

// TestSplitOverlap tests that consecutive chunks share text.
func TestSplitOverlap(t *testing.T) {
	opts := Options{ChunkSize: 50, ChunkOverlap: 10}
	text := strings.Repeat("y", 200)

	chunks := Split(text, opts)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prevEnd := chunks[i-1].Start + len([]rune(chunks[i-1].Text))
		assert.Equal(t, prevEnd-opts.ChunkOverlap, chunks[i].Start,
			"chunk %d should start %d runes before the previous end", i, opts.ChunkOverlap)
	}
}

// TestSplitCoversInput tests that concatenated chunks reconstruct the input.
func TestSplitCoversInput(t *testing.T) {
	opts := Options{ChunkSize: 80, ChunkOverlap: 15}
	text := "One sentence here. Another follows it. Then a third one appears. " +
		"More prose continues past the window so splitting must happen. " +
		"And still more text keeps the scanner moving to the very end."

	chunks := Split(text, opts)
	require.NotEmpty(t, chunks)

	runes := []rune(strings.TrimSpace(text))
	covered := make([]bool, len(runes))
	for _, c := range chunks {
		n := len([]rune(c.Text))
		assert.Equal(t, string(runes[c.Start:c.Start+n]), c.Text)
		for i := c.Start; i < c.Start+n; i++ {
			covered[i] = true
		}
	}
	for i, ok := range covered {
		assert.True(t, ok, "rune %d not covered by any chunk", i)
	}

	// Last chunk reaches the end of the input.
	last := chunks[len(chunks)-1]
	assert.Equal(t, len(runes), last.Start+len([]rune(last.Text)))
}

// TestSplitDeterministic tests that identical input yields identical chunks.
func TestSplitDeterministic(t *testing.T) {
	opts := Options{ChunkSize: 64, ChunkOverlap: 16}
	text := strings.Repeat("Some text with sentences. It repeats a lot. ", 20)

	first := Split(text, opts)
	second := Split(text, opts)
	assert.Equal(t, first, second)
}

// TestSplitUnicode tests rune-based offsets with multibyte input.
func TestSplitUnicode(t *testing.T) {
	opts := Options{ChunkSize: 30, ChunkOverlap: 5}
	text := strings.Repeat("héllo wörld. ", 20)

	chunks := Split(text, opts)
	require.Greater(t, len(chunks), 1)

	runes := []rune(strings.TrimSpace(text))
	for _, c := range chunks {
		n := len([]rune(c.Text))
		require.LessOrEqual(t, c.Start+n, len(runes))
		assert.Equal(t, string(runes[c.Start:c.Start+n]), c.Text)
	}
}

// TestSplitStallGuard tests that tiny chunks cannot stall the scan.
func TestSplitStallGuard(t *testing.T) {
	// Terminators every few runes produce chunks shorter than the
	// overlap; the scan must still reach the end.
	opts := Options{ChunkSize: 20, ChunkOverlap: 15}
	text := strings.Repeat("Hi. ", 100)

	chunks := Split(text, opts)
	require.NotEmpty(t, chunks)

	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].Start, chunks[i-1].Start, "scan did not advance at chunk %d", i)
	}
}
