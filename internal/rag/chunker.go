package rag

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidChunking = errors.New("invalid chunking parameters")

// DefaultSeparators are tried in order when looking for a break point.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " "}

// Chunker splits text into overlapping windows of at most Size runes.
// Consecutive chunks share exactly Overlap runes. Inside each window the
// chunker prefers to break after a paragraph, line, sentence or word
// boundary, falling back to a hard cut.
type Chunker struct {
	Size       int
	Overlap    int
	Separators []string
}

// NewChunker creates a chunker with the default separators.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidChunking, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidChunking, size, overlap)
	}
	return &Chunker{
		Size:       size,
		Overlap:    overlap,
		Separators: DefaultSeparators,
	}, nil
}

// Split returns the chunks of text. Blank text yields no chunks.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)

	var chunks []string
	start := 0
	for {
		end := start + c.Size
		if end >= n {
			end = n
		} else {
			end = c.breakPoint(runes, start, end)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == n {
			break
		}
		start = end - c.Overlap
	}
	return chunks
}

// breakPoint returns the rune index just past the last separator inside
// runes[start:end]. The returned index always leaves the next window
// starting after start, and never produces a chunk shorter than half the
// window.
func (c *Chunker) breakPoint(runes []rune, start, end int) int {
	lowest := start + c.Overlap + 1
	if half := start + c.Size/2; half > lowest {
		lowest = half
	}

	for _, sep := range c.Separators {
		sr := []rune(sep)
		for p := end; p >= lowest && p-len(sr) >= start; p-- {
			if hasRunesAt(runes, p-len(sr), sr) {
				return p
			}
		}
	}
	return end
}

func hasRunesAt(runes []rune, at int, sep []rune) bool {
	if at < 0 || at+len(sep) > len(runes) {
		return false
	}
	for i, r := range sep {
		if runes[at+i] != r {
			return false
		}
	}
	return true
}
