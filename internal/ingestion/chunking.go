package ingestion

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// boundary is one level of the recursive split. Delimiters stay attached to the
// piece they terminate so fragments concatenate back to the original text.
type boundary struct {
	name       string
	delimiters []string
}

// defaultBoundaries are ordered coarsest first: paragraph, sentence, word.
// Raw character offsets are the implicit last level.
var defaultBoundaries = []boundary{
	{name: "paragraph", delimiters: []string{"\r\n\r\n", "\n\n"}},
	{name: "sentence", delimiters: []string{". ", "! ", "? ", "\n"}},
	{name: "word", delimiters: []string{" ", "\t"}},
}

// RecursiveChunker splits text into fragments of at most maxSize characters,
// preferring paragraph, then sentence, then word boundaries.
// It holds no state between calls and is safe for concurrent use.
type RecursiveChunker struct {
	maxSize    int
	boundaries []boundary
}

// NewRecursiveChunker creates a chunker bounded to maxSize characters (runes)
func NewRecursiveChunker(maxSize int) (*RecursiveChunker, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFragmentSize, maxSize)
	}
	return &RecursiveChunker{
		maxSize:    maxSize,
		boundaries: defaultBoundaries,
	}, nil
}

// MaxSize returns the fragment size bound in characters
func (c *RecursiveChunker) MaxSize() int {
	return c.maxSize
}

// Chunk splits text into ordered fragments. Empty text yields no fragments.
func (c *RecursiveChunker) Chunk(text string) []string {
	if text == "" {
		return nil
	}
	return c.split(text, 0)
}

func (c *RecursiveChunker) split(text string, level int) []string {
	if utf8.RuneCountInString(text) <= c.maxSize {
		return []string{text}
	}

	// Out of semantic boundaries: cut at raw character offsets
	if level >= len(c.boundaries) {
		return ForceSplitText(text, c.maxSize)
	}

	pieces := splitAfter(text, c.boundaries[level].delimiters)
	if len(pieces) <= 1 {
		// No boundary of this kind, try the next finer one
		return c.split(text, level+1)
	}

	var fragments []string
	for _, merged := range mergePieces(pieces, c.maxSize) {
		if utf8.RuneCountInString(merged) > c.maxSize {
			fragments = append(fragments, c.split(merged, level+1)...)
			continue
		}
		fragments = append(fragments, merged)
	}
	return fragments
}

// splitAfter cuts text after every occurrence of any delimiter.
// Earlier delimiters in the list win when several match at the same offset.
func splitAfter(text string, delimiters []string) []string {
	var pieces []string
	start := 0

	for i := 0; i < len(text); {
		matched := 0
		for _, delim := range delimiters {
			if strings.HasPrefix(text[i:], delim) {
				matched = len(delim)
				break
			}
		}

		if matched == 0 {
			i++
			continue
		}

		i += matched
		pieces = append(pieces, text[start:i])
		start = i
	}

	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	return pieces
}

// mergePieces greedily joins consecutive pieces while the result fits in maxSize.
// A piece that is already too large is emitted on its own.
func mergePieces(pieces []string, maxSize int) []string {
	var merged []string
	var current strings.Builder
	currentLen := 0

	for _, piece := range pieces {
		pieceLen := utf8.RuneCountInString(piece)
		if currentLen > 0 && currentLen+pieceLen > maxSize {
			merged = append(merged, current.String())
			current.Reset()
			currentLen = 0
		}
		current.WriteString(piece)
		currentLen += pieceLen
	}

	if currentLen > 0 {
		merged = append(merged, current.String())
	}
	return merged
}

// ForceSplitText splits text every maxChars characters (runes), never inside a
// multi-byte sequence
func ForceSplitText(text string, maxChars int) []string {
	if text == "" {
		return nil
	}
	if maxChars <= 0 {
		return []string{text}
	}

	var parts []string

	for len(text) > 0 {
		cut := len(text)
		count := 0
		for i := range text {
			if count == maxChars {
				cut = i
				break
			}
			count++
		}

		parts = append(parts, text[:cut])
		text = text[cut:]
	}

	return parts
}
