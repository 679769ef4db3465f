// Package summarizer ranks sentences by word frequency. It understands both
// Latin sentence punctuation and the Bangla danda.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered).
type FrequencySummarizer struct {
	tokenPattern    *regexp.Regexp
	sentencePattern *regexp.Regexp
	stopwords       map[string]struct{}
}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{
		tokenPattern:    regexp.MustCompile(`[\p{L}\p{M}]+(?:['’][\p{L}\p{M}]+)*`),
		sentencePattern: regexp.MustCompile(`[^.!?।]+(?:[.!?।]+|$)`),
		stopwords:       defaultStopwords(),
	}
}

// Sentences splits text after '.', '!', '?' or '।'. A trailing fragment
// without punctuation is kept.
func (s *FrequencySummarizer) Sentences(text string) []string {
	var out []string
	for _, m := range s.sentencePattern.FindAllString(text, -1) {
		if m = strings.TrimSpace(m); m != "" && len(s.tokens(m)) > 0 {
			out = append(out, m)
		}
	}
	return out
}

// Summarize returns a short summary by ranking sentences using token frequency.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := s.Sentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	scores := s.rank(sentences, s.frequencies(sentences))
	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}
	// Keep original order among selected
	selected := make([]int, maxSentences)
	for i := 0; i < maxSentences; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " ")
}

// BestSentence returns the sentence of text that shares the most weight with
// query. It returns "" when text has no sentences.
func (s *FrequencySummarizer) BestSentence(text, query string) string {
	sentences := s.Sentences(text)
	if len(sentences) == 0 {
		return ""
	}
	weights := map[string]float64{}
	for _, tok := range s.tokens(query) {
		weights[tok] = 1
	}
	if len(weights) == 0 {
		weights = s.frequencies(sentences)
	}
	return sentences[s.rank(sentences, weights)[0].idx]
}

type scored struct {
	idx   int
	score float64
}

func (s *FrequencySummarizer) frequencies(sentences []string) map[string]float64 {
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.tokens(sent) {
			freq[tok]++
		}
	}
	// Normalize frequencies
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}
	return freq
}

// rank orders sentences by descending score; ties keep document order.
func (s *FrequencySummarizer) rank(sentences []string, weights map[string]float64) []scored {
	scores := make([]scored, len(sentences))
	for i, sent := range sentences {
		toks := s.tokens(sent)
		sscore := 0.0
		for _, tok := range toks {
			sscore += weights[tok]
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(toks)); l > 0 {
			sscore /= math.Sqrt(l)
		}
		scores[i] = scored{i, sscore}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	return scores
}

func (s *FrequencySummarizer) tokens(text string) []string {
	raw := s.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := s.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "who", "when", "where", "why", "how", "which", "did", "does", "do",
		"এবং", "ও", "কি", "কী", "কে", "কবে", "কোথায়", "কেন", "কীভাবে", "এই", "সেই", "যে", "হয়", "ছিল", "একটি",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
