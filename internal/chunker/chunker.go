// Package chunker splits extracted text into overlapping passages for embedding.
package chunker

import (
	"strings"
	"unicode"
)

// Chunk is one passage of a file's extracted text.
type Chunk struct {
	Text  string // The passage text
	Start int    // Rune offset of the passage within the (trimmed) input
}

// Options configures the splitter.
type Options struct {
	// ChunkSize is the target passage length in runes.
	ChunkSize int

	// ChunkOverlap is how many runes of the previous passage reappear
	// at the start of the next one.
	ChunkOverlap int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

// Split cuts text into overlapping passages.
//
// The scan moves left to right. Each passage ends at the last
// sentence-terminating boundary (., ! or ? followed by whitespace)
// within ChunkSize runes of its start; if no boundary falls in that
// window the passage is cut at ChunkSize runes. The next passage
// begins ChunkOverlap runes before the previous end. Input that fits
// in a single passage is returned unsplit. Same input always yields
// the same passages.
func Split(text string, opts Options) []Chunk {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultOptions().ChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}
	if opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = opts.ChunkSize / 2
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= opts.ChunkSize {
		return []Chunk{{Text: string(runes), Start: 0}}
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + opts.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else if b := lastSentenceEnd(runes, start, end); b > start {
			end = b
		}

		chunks = append(chunks, Chunk{
			Text:  string(runes[start:end]),
			Start: start,
		})

		if end >= len(runes) {
			break
		}

		next := end - opts.ChunkOverlap
		if next <= start {
			// Overlap would stall the scan on a short passage.
			next = end
		}
		start = next
	}

	return chunks
}

// lastSentenceEnd returns the offset just past the last sentence
// terminator in runes[start:end] that is followed by whitespace, or
// start if there is none. A terminator at end-1 counts when the next
// rune (outside the window) is whitespace or end of input.
func lastSentenceEnd(runes []rune, start, end int) int {
	for i := end - 1; i > start; i-- {
		if !isTerminator(runes[i]) {
			continue
		}
		if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}
	return start
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
