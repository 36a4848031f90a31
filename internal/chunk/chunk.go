// Package chunk splits document text into overlapping, boundary-aware
// segments sized for embedding.
package chunk

import (
	"strings"
	"unicode"
)

// Default splitter parameters.
const (
	DefaultSize    = 400
	DefaultOverlap = 50
)

// Splitter produces overlapping chunks of at most Size runes each, with
// consecutive chunks overlapping by roughly Overlap runes. The zero value is
// not usable; use NewSplitter.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter creates a Splitter. Non-positive size falls back to
// DefaultSize; an overlap outside [0, size) falls back to DefaultOverlap
// (or 0 when even that would not fit).
func NewSplitter(size, overlap int) Splitter {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
		if overlap >= size {
			overlap = 0
		}
	}
	return Splitter{size: size, overlap: overlap}
}

// Split walks the text and emits trimmed, non-empty windows of at most the
// configured size. Each window ends at the nearest paragraph break within
// the window, else the nearest sentence end, else a hard cut. Consecutive
// windows overlap by the configured amount. Empty input yields nil.
// Split is deterministic: the same input always produces the same chunks.
func (s Splitter) Split(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < n {
		end := start + s.size
		if end >= n {
			end = n
		} else {
			end = s.boundary(runes, start, end)
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, piece)
		}

		if end >= n {
			break
		}

		next := end - s.overlap
		// The start must always progress, even when a natural boundary
		// lands inside the overlap window.
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// boundary searches backward within runes[start:end] for a natural cut
// point: first a paragraph break, then sentence-ending punctuation followed
// by whitespace. Returns end unchanged when no boundary is usable.
func (s Splitter) boundary(runes []rune, start, end int) int {
	// Paragraph break: cut after the double newline.
	for i := end - 1; i > start; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}

	// Sentence end: '.', '!' or '?' followed by whitespace.
	for i := end - 2; i > start; i-- {
		if isSentenceEnd(runes[i]) && unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}

	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
