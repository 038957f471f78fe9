package tui

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"textbookrag/internal/prompt"
	"textbookrag/internal/retrieval"
	"textbookrag/internal/service"
)

// Asker is the session-facing subset of the QA service.
type Asker interface {
	Ask(ctx context.Context, req service.Request) (*service.Answer, error)
}

type stage int

const (
	stageClass stage = iota
	stageSubject
	stageQuestion
)

type turn struct {
	question string
	answer   string
	sources  string
	failed   bool
}

type answerMsg struct {
	question string
	answer   *service.Answer
	err      error
}

// Model is the Bubble Tea model for an interactive question session. It asks
// for class and subject once, then answers one question at a time until the
// user types "exit".
type Model struct {
	ctx      context.Context
	asker    Asker
	input    textinput.Model
	viewport viewport.Model
	stage    stage
	class    int
	subject  string
	turns    []turn
	status   string
	busy     bool
	ready    bool
}

// New creates a session. A positive class or non-empty subject skips the
// matching prompt.
func New(ctx context.Context, asker Asker, class int, subject string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 0
	m := Model{ctx: ctx, asker: asker, input: ti, viewport: viewport.New(0, 0), class: class, subject: strings.TrimSpace(subject)}
	m.stage = stageClass
	if class > 0 {
		m.stage = stageSubject
		if m.subject != "" {
			m.stage = stageQuestion
		}
	}
	m.applyStage()
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+context, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderTranscript())
		return m, nil
	case answerMsg:
		m.busy = false
		m.turns = append(m.turns, turnFor(msg))
		m.status = statusFor(msg)
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			return m.submit()
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	v := strings.TrimSpace(m.input.Value())
	if strings.EqualFold(v, "exit") {
		return m, tea.Quit
	}
	if v == "" {
		return m, nil
	}
	m.input.SetValue("")
	switch m.stage {
	case stageClass:
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			m.status = fmt.Sprintf("Class must be a positive number, got %q", v)
			return m, nil
		}
		m.class = n
		m.stage = stageSubject
		m.applyStage()
		return m, nil
	case stageSubject:
		m.subject = v
		m.stage = stageQuestion
		m.applyStage()
		return m, nil
	}
	m.busy = true
	m.status = "Thinking..."
	return m, m.ask(v)
}

func (m Model) ask(question string) tea.Cmd {
	ctx, asker := m.ctx, m.asker
	req := service.Request{Question: question, Class: m.class, Subject: m.subject}
	return func() tea.Msg {
		ans, err := asker.Ask(ctx, req)
		return answerMsg{question: question, answer: ans, err: err}
	}
}

func (m *Model) applyStage() {
	switch m.stage {
	case stageClass:
		m.input.Placeholder = "Enter class (e.g. 10)"
		m.status = "Type 'exit' to quit."
	case stageSubject:
		m.input.Placeholder = "Enter subject (e.g. Science)"
		m.status = fmt.Sprintf("Class %d selected.", m.class)
	case stageQuestion:
		m.input.Placeholder = "Ask a question and press Enter"
		m.status = fmt.Sprintf("Class %d, %s. Type 'exit' to quit.", m.class, m.subject)
	}
}

func turnFor(msg answerMsg) turn {
	t := turn{question: msg.question}
	switch {
	case errors.Is(msg.err, retrieval.ErrNoGrounding):
		t.answer = "No relevant textbook content found."
		t.failed = true
	case msg.err != nil:
		t.answer = "Error: " + msg.err.Error()
		t.failed = true
	default:
		t.answer = msg.answer.Text
		t.sources = describeSources(msg.answer.Retrieval)
	}
	return t
}

func statusFor(msg answerMsg) string {
	if msg.err != nil && !errors.Is(msg.err, retrieval.ErrNoGrounding) {
		return "Query failed; ask another question."
	}
	return "Ready."
}

func describeSources(r *retrieval.Retrieval) string {
	if r == nil {
		return ""
	}
	if r.Mode == retrieval.ModeImage {
		pages := prompt.DiagramPages(r.Images)
		parts := make([]string, len(pages))
		for i, p := range pages {
			parts[i] = strconv.Itoa(p)
		}
		return "diagrams on page " + strings.Join(parts, ", ")
	}
	parts := make([]string, len(r.Texts))
	for i, t := range r.Texts {
		parts[i] = fmt.Sprintf("ch %d p %d", t.Payload.Chapter, t.Payload.PageNumber)
	}
	return strings.Join(parts, "; ")
}

// View renders the session layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Textbook Q&A")
	scope := "No class selected"
	if m.class > 0 {
		scope = fmt.Sprintf("Class %d", m.class)
		if m.subject != "" {
			scope += " · " + m.subject
		}
	}
	ctxLine := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(scope)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + ctxLine + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return "No questions yet."
	}
	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("Q: " + t.question))
		b.WriteString("\n")
		if t.failed {
			b.WriteString(errorStyle.Render(t.answer))
			continue
		}
		b.WriteString(highlightBestSentence(t.answer, t.question))
		if t.sources != "" {
			b.WriteString("\n")
			b.WriteString(sourceStyle.Render("Sources: " + t.sources))
		}
	}
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	questionStyle  = lipgloss.NewStyle().Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)
)

// highlightBestSentence emphasises the answer sentence sharing the most
// words with the question.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	bestIdx := -1
	bestScore := 0
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
