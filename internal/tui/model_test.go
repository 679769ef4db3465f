package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilingual-rag/internal/domain"
	"bilingual-rag/internal/retriever"
	"bilingual-rag/internal/service"
)

type fakeAsker struct {
	answer service.Answer
	err    error
	opts   retriever.Options
}

func (f *fakeAsker) Answer(_ context.Context, _ string, opts retriever.Options) (service.Answer, error) {
	f.opts = opts
	return f.answer, f.err
}

func typeQuestion(m Model, q string) Model {
	for _, r := range q {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

func TestModel_AskAndNavigate(t *testing.T) {
	asker := &fakeAsker{answer: service.Answer{
		Text:     "In December.",
		Language: domain.English,
		Results: []domain.Result{
			{Text: "The war ended. Victory came in December.", Source: "textbook_english_chunks.txt", Position: 4, Distance: 0.25},
			{Text: "Flags fly on Victory Day.", Source: "textbook_english_chunks.txt", Position: 9, Distance: 0.5},
		},
	}}
	m := New(context.Background(), asker, 2)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	m = typeQuestion(next.(Model), "When did victory come?")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)

	next, _ = m.Update(cmd())
	m = next.(Model)
	assert.False(t, m.busy)
	assert.Equal(t, 2, asker.opts.TopK)
	assert.Equal(t, "[english] In December.", m.answerLine())
	assert.Contains(t, m.View(), "Bilingual RAG")
	assert.Contains(t, m.renderCurrentResult(), "Result 1/2")
	assert.Contains(t, m.renderCurrentResult(), "distance=0.2500")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Contains(t, m.renderCurrentResult(), "Result 2/2")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Contains(t, m.renderCurrentResult(), "Result 1/2")
}

func TestModel_Error(t *testing.T) {
	m := New(context.Background(), &fakeAsker{err: &domain.UnsupportedLanguageError{Detected: "fr"}}, 2)
	next, _ := m.Update(answerMsg{question: "Bonjour?", err: &domain.UnsupportedLanguageError{Detected: "fr"}})
	m = next.(Model)
	assert.True(t, strings.HasPrefix(m.status, fmt.Sprintf("Error (%s)", domain.KindUnsupportedLanguage)))
	assert.Equal(t, "No results yet.", m.renderCurrentResult())
}

func TestModel_NoMatch(t *testing.T) {
	m := New(context.Background(), &fakeAsker{}, 2)
	next, _ := m.Update(answerMsg{question: "q", answer: service.Answer{
		Text:    domain.NoRelevantText,
		Results: []domain.Result{domain.NoMatchResult()},
	}})
	m = next.(Model)
	assert.Equal(t, domain.NoRelevantText, m.renderCurrentResult())
}

func TestModel_Quit(t *testing.T) {
	m := New(context.Background(), &fakeAsker{err: errors.New("unused")}, 2)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestHighlightBestSentence(t *testing.T) {
	m := New(context.Background(), &fakeAsker{}, 2)
	got := m.highlightBestSentence("The war ended. Victory came in December.", "When did victory come?")
	assert.Contains(t, got, "The war ended.")
	assert.Contains(t, got, "Victory came in December.")
	assert.Equal(t, "", m.highlightBestSentence("   ", "q"))
}
