package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bilingual-rag/internal/domain"
	"bilingual-rag/internal/retriever"
	"bilingual-rag/internal/service"
	"bilingual-rag/internal/summarizer"
)

// Asker is the console-facing subset of the pipeline.
type Asker interface {
	Answer(ctx context.Context, question string, opts retriever.Options) (service.Answer, error)
}

type answerMsg struct {
	question string
	answer   service.Answer
	err      error
}

// Model is the Bubble Tea model for the question console.
type Model struct {
	ctx       context.Context
	asker     Asker
	topK      int
	input     textinput.Model
	viewport  viewport.Model
	sentences *summarizer.FrequencySummarizer
	answer    service.Answer
	status    string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

// New creates a console model. ctx bounds every question asked from it.
func New(ctx context.Context, asker Asker, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask in English or Bangla and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:       ctx,
		asker:     asker,
		topK:      topK,
		input:     ti,
		viewport:  vp,
		sentences: summarizer.NewFrequencySummarizer(),
		status:    "Ready. Type a question.",
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 3 + 1 + qh + 1 // header and answer, status, query box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Error (%s): %v", domain.KindOf(msg.err), msg.err)
			m.answer = service.Answer{}
		} else {
			m.status = fmt.Sprintf("Results for %q", msg.question)
			m.answer = msg.answer
			m.lastQuery = msg.question
		}
		m.cursor = 0
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = "Searching..."
				return m, m.ask(q)
			}
		case "down":
			if n := len(m.answer.Results); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if n := len(m.answer.Results); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	ctx, asker, topK := m.ctx, m.asker, m.topK
	return func() tea.Msg {
		ans, err := asker.Answer(ctx, question, retriever.Options{TopK: topK})
		return answerMsg{question: question, answer: ans, err: err}
	}
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Bilingual RAG")
	answer := answerStyle.Render(m.answerLine())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + answer + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) answerLine() string {
	if m.answer.Text == "" {
		return "No answer yet."
	}
	return fmt.Sprintf("[%s] %s", m.answer.Language, m.answer.Text)
}

func (m Model) renderCurrentResult() string {
	results := m.answer.Results
	if len(results) == 0 {
		return "No results yet."
	}
	r := results[m.cursor]
	if r.NoMatch {
		return r.Text
	}
	title := fmt.Sprintf("Result %d/%d  %s  distance=%.4f  %s#%d",
		m.cursor+1, len(results), m.answer.Language, r.Distance, r.Source, r.Position)
	return title + "\n\n" + m.highlightBestSentence(r.Text, m.lastQuery)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func (m Model) highlightBestSentence(text, query string) string {
	sentences := m.sentences.Sentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	best := m.sentences.BestSentence(text, query)
	done := false
	for i, s := range sentences {
		if !done && s == best {
			sentences[i] = highlightStyle.Render(s)
			done = true
		}
	}
	return strings.Join(sentences, " ")
}
