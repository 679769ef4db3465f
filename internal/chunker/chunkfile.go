package chunker

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"bilingual-rag/internal/domain"
	"bilingual-rag/internal/fsutil"
)

var (
	blankLine  = regexp.MustCompile(`\n[ \t]*\n`)
	blankLines = regexp.MustCompile(`\n(?:[ \t]*\n)+`)
)

// ChunkFileSuffix is appended to a text file's base name for its chunk file.
const ChunkFileSuffix = "_chunks.txt"

// ChunkFileName maps "textbook_english.txt" to "textbook_english_chunks.txt".
func ChunkFileName(textFile string) string {
	return strings.TrimSuffix(textFile, ".txt") + ChunkFileSuffix
}

// WriteFile stores chunks one per block, blocks separated by a blank line.
// Blank lines inside a chunk are collapsed so each block is exactly one chunk.
func WriteFile(path string, chunks []string) error {
	var b strings.Builder
	for _, c := range chunks {
		c = normalizeBlock(c)
		if c == "" {
			continue
		}
		b.WriteString(c)
		b.WriteString("\n\n")
	}
	return fsutil.WriteTextAtomic(path, b.String())
}

// ReadFile loads a chunk file. Chunk indexes follow block order.
func ReadFile(path, source string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("chunk file %s: %w", path, err)
		}
		return nil, fmt.Errorf("read chunk file %s: %w", path, err)
	}
	return ParseBlocks(string(data), source), nil
}

// ParseBlocks splits blank-line separated text into chunks.
func ParseBlocks(content, source string) []domain.Chunk {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var chunks []domain.Chunk
	for _, block := range blankLine.Split(content, -1) {
		block = strings.TrimRight(strings.TrimLeft(block, "\n"), " \t\n")
		if strings.TrimSpace(block) == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{Source: source, Index: len(chunks), Text: block})
	}
	return chunks
}

func normalizeBlock(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blankLines.ReplaceAllString(s, "\n")
	s = strings.TrimRight(strings.TrimLeft(s, "\n"), " \t\n")
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}
