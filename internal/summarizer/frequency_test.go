package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentences_DandaAndLatin(t *testing.T) {
	s := NewFrequencySummarizer()
	got := s.Sentences("যুদ্ধ মার্চে শুরু হয়। বিজয় ডিসেম্বরে আসে। War ended! Peace followed")
	assert.Equal(t, []string{"যুদ্ধ মার্চে শুরু হয়।", "বিজয় ডিসেম্বরে আসে।", "War ended!", "Peace followed"}, got)
}

func TestSummarize_KeepsDocumentOrder(t *testing.T) {
	s := NewFrequencySummarizer()
	text := "Rivers flood the delta. The delta rivers feed rice fields. Cats sleep. Rice fields need rivers."
	got := s.Summarize(text, 2)
	assert.Equal(t, "The delta rivers feed rice fields. Rice fields need rivers.", got)
}

func TestSummarize_NoSentences(t *testing.T) {
	s := NewFrequencySummarizer()
	assert.Equal(t, "...", s.Summarize(" ... ", 3))
}

func TestBestSentence(t *testing.T) {
	s := NewFrequencySummarizer()
	text := "The war began in March. Victory came in December. Schools teach it."
	assert.Equal(t, "Victory came in December.", s.BestSentence(text, "When did victory come?"))
	assert.Equal(t, "", s.BestSentence("", "anything"))

	bn := "যুদ্ধ মার্চে শুরু হয়। বিজয় ডিসেম্বরে আসে।"
	assert.Equal(t, "বিজয় ডিসেম্বরে আসে।", s.BestSentence(bn, "বিজয় কবে আসে?"))
}
