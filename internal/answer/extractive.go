package answer

import (
	"context"
	"fmt"
	"strings"

	"bilingual-rag/internal/domain"
	"bilingual-rag/internal/summarizer"
)

// Extractive answers offline by quoting the retrieved passages: the sentence
// closest to the question, or a frequency summary when more are allowed.
type Extractive struct {
	summarizer   *summarizer.FrequencySummarizer
	maxSentences int
}

// NewExtractive returns an Extractive generator. maxSentences <= 0 means 3.
func NewExtractive(maxSentences int) *Extractive {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Extractive{summarizer: summarizer.NewFrequencySummarizer(), maxSentences: maxSentences}
}

func (e *Extractive) Generate(ctx context.Context, question string, _ domain.Language, contexts []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationService, err)
	}
	text := strings.TrimSpace(strings.Join(contexts, " "))
	if text == "" {
		return "", fmt.Errorf("%w: no context to answer from", domain.ErrInvalidInput)
	}
	if e.maxSentences == 1 {
		if best := e.summarizer.BestSentence(text, question); best != "" {
			return best, nil
		}
	}
	return e.summarizer.Summarize(text, e.maxSentences), nil
}
