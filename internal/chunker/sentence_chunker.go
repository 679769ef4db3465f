// Package chunker splits document text into overlapping, length-bounded chunks.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"bilingual-rag/internal/domain"
)

const (
	// DefaultMaxLength is the default chunk length in characters.
	DefaultMaxLength = 1000
	// DefaultOverlapLength is the default number of characters carried into the next chunk.
	DefaultOverlapLength = 200
)

// sentenceBoundary matches terminal punctuation followed by whitespace.
// The punctuation stays with its sentence; the whitespace is dropped.
var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)

// Chunker accumulates sentences into chunks of at most maxLength characters
// (single over-long sentences excepted) and seeds every chunk after the first
// with the last overlapLength characters of its predecessor.
type Chunker struct {
	maxLength     int
	overlapLength int
}

// New validates the parameters and returns a Chunker.
func New(maxLength, overlapLength int) (*Chunker, error) {
	if err := validate(maxLength, overlapLength); err != nil {
		return nil, err
	}
	return &Chunker{maxLength: maxLength, overlapLength: overlapLength}, nil
}

// MaxLength returns the configured chunk length.
func (c *Chunker) MaxLength() int { return c.maxLength }

// OverlapLength returns the configured overlap.
func (c *Chunker) OverlapLength() int { return c.overlapLength }

// Split chunks a document, numbering chunks from zero.
func (c *Chunker) Split(document domain.Document) ([]domain.Chunk, error) {
	texts, err := Chunk(document.Content, c.maxLength, c.overlapLength)
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{Source: document.Source, Index: i, Text: text}
	}
	return chunks, nil
}

// Chunk splits text into overlapping chunks. Lengths count runes.
func Chunk(text string, maxLength, overlapLength int) ([]string, error) {
	if err := validate(maxLength, overlapLength); err != nil {
		return nil, err
	}
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	var chunks []string
	var buf []rune
	for _, sentence := range sentences {
		s := []rune(sentence)
		if len(buf) > 0 && len(buf)+len(s) >= maxLength {
			chunks = append(chunks, trimRight(buf))
			tail := buf[max(0, len(buf)-overlapLength):]
			next := make([]rune, 0, len(tail)+len(s)+1)
			buf = append(next, tail...)
		}
		buf = append(buf, s...)
		buf = append(buf, ' ')
	}
	if last := trimRight(buf); last != "" {
		chunks = append(chunks, last)
	}
	return chunks, nil
}

// SplitSentences breaks text after '.', '!' or '?' followed by whitespace.
// Sentences are trimmed and empty ones dropped.
func SplitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceBoundary.FindAllStringIndex(text, -1) {
		// loc[0] is the punctuation byte; all three marks are single-byte.
		if s := strings.TrimSpace(text[start : loc[0]+1]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func validate(maxLength, overlapLength int) error {
	if maxLength <= 0 {
		return fmt.Errorf("%w: max_length must be positive, got %d", domain.ErrConfiguration, maxLength)
	}
	if overlapLength < 0 {
		return fmt.Errorf("%w: overlap_length must not be negative, got %d", domain.ErrConfiguration, overlapLength)
	}
	if overlapLength >= maxLength {
		return fmt.Errorf("%w: overlap_length (%d) must be less than max_length (%d)", domain.ErrConfiguration, overlapLength, maxLength)
	}
	return nil
}

func trimRight(buf []rune) string {
	return strings.TrimRightFunc(string(buf), unicode.IsSpace)
}
