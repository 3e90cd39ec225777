package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"semsearch/internal/corpus"
	"semsearch/internal/domain"
	"semsearch/internal/service"
)

// Model is the Bubble Tea model for the interactive search screen.
type Model struct {
	ctx      context.Context
	session  *service.Session
	presets  []corpus.Preset
	docs     []string
	title    string
	input    textinput.Model
	viewport viewport.Model
	bar      progress.Model
	status   string
	warning  string
	showDocs bool
	ready    bool
}

// New creates a new TUI model over session. status is shown until the first search.
func New(ctx context.Context, session *service.Session, presets []corpus.Preset, docs []string, status string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a query and press Enter"
	ti.Focus()
	ti.CharLimit = 256
	vp := viewport.New(0, 0)
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 30
	return Model{
		ctx:      ctx,
		session:  session,
		presets:  presets,
		docs:     docs,
		title:    "Semantic Text Search",
		input:    ti,
		viewport: vp,
		bar:      bar,
		status:   status,
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 4 + qh // header, shortcuts, status, warning
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.bar.Width = min(40, max(10, msg.Width/3))
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			m.apply(m.session.EditText(m.ctx, m.input.Value()))
			return m, nil
		case "f1", "f2", "f3":
			i := int(msg.String()[1] - '1')
			if i < len(m.presets) {
				p := m.presets[i]
				ran, err := m.session.SelectShortcut(m.ctx, p)
				if err == nil {
					m.input.SetValue(p.Query)
					m.input.CursorEnd()
				}
				m.apply(ran, err)
			}
			return m, nil
		case "f4":
			m.showDocs = !m.showDocs
			m.refresh()
			return m, nil
		case "shift+up", "ctrl+up":
			m.apply(m.session.SetTopK(m.ctx, m.session.TopK()+1))
			return m, nil
		case "shift+down", "ctrl+down":
			m.apply(m.session.SetTopK(m.ctx, m.session.TopK()-1))
			return m, nil
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

// apply records the outcome of a session transition.
func (m *Model) apply(ran bool, err error) {
	m.warning = ""
	if err != nil {
		m.warning = "⚠ Search failed: " + err.Error()
	} else if ran && m.session.Result().Empty() {
		m.warning = "No results found."
	}
	switch {
	case m.session.State() == service.Active:
		m.status = fmt.Sprintf("Results for %q (top %d)", m.session.Query(), m.session.TopK())
	default:
		m.status = fmt.Sprintf("Type to search (top %d)", m.session.TopK())
	}
	m.refresh()
}

func (m *Model) refresh() {
	if m.showDocs {
		m.viewport.SetContent(m.renderDocuments())
	} else {
		m.viewport.SetContent(m.renderResults())
	}
	m.viewport.GotoTop()
}

// View renders the TUI layout and current results.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(hintStyle.Render(m.shortcutLine()))
	b.WriteString("\n")
	b.WriteString(resultBoxStyle.Render(m.viewport.View()))
	b.WriteString("\n")
	b.WriteString(queryBoxStyle.Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.status))
	if m.warning != "" {
		b.WriteString("\n")
		b.WriteString(warningStyle.Render(m.warning))
	}
	return b.String()
}

func (m Model) shortcutLine() string {
	parts := make([]string, 0, len(m.presets)+2)
	for i, p := range m.presets {
		if i >= 3 {
			break
		}
		parts = append(parts, fmt.Sprintf("F%d %s", i+1, p.Label))
	}
	parts = append(parts, "F4 documents", fmt.Sprintf("shift+↑/↓ results: %d", m.session.TopK()))
	return strings.Join(parts, "  ·  ")
}

func (m Model) renderResults() string {
	if m.session.State() != service.Active {
		return "Enter a query or pick a shortcut to search the sample documents."
	}
	res := m.session.Result()
	if res.Empty() {
		return "No results found."
	}
	var b strings.Builder
	for i, e := range res.Entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(rankStyle.Render(fmt.Sprintf("#%d", e.Rank)))
		b.WriteString(" ")
		b.WriteString(highlightTerms(e.Text, m.session.Query()))
		b.WriteString("\n")
		b.WriteString(m.bar.ViewAs(e.Similarity / 100))
		b.WriteString("\n")
		b.WriteString(captionStyle.Render(Caption(e)))
	}
	return b.String()
}

func (m Model) renderDocuments() string {
	var b strings.Builder
	b.WriteString(rankStyle.Render("Sample Documents"))
	for i, d := range m.docs {
		fmt.Fprintf(&b, "\n%d. %s", i+1, d)
	}
	return b.String()
}

// Caption formats the similarity line shown under each result.
func Caption(e domain.Entry) string {
	return fmt.Sprintf("Similarity: %.1f%% | Distance: %.4f", e.Similarity, e.Distance)
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	rankStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	captionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// highlightTerms emphasizes the words of text that also occur in query.
func highlightTerms(text, query string) string {
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return text
	}
	return unicodeWordRe.ReplaceAllStringFunc(text, func(w string) string {
		if _, ok := qTokens[strings.ToLower(w)]; ok {
			return highlightStyle.Render(w)
		}
		return w
	})
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if len(t) > 2 {
			m[t] = struct{}{}
		}
	}
	return m
}
