// Package tui is the interactive front end: a URL field, a model field with
// the curated models as suggestions, a progress bar, and a scrollable result.
//
// The model is driven entirely by the bubbletea event loop. The analysis runs
// in its own goroutine and reports back through a buffered channel, one
// message per progress step plus a final result.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kevinmichaelchen/repo-analyzer/internal/models"
	"github.com/kevinmichaelchen/repo-analyzer/internal/pipeline"
)

// ExampleURLs are cycled with ctrl+e.
var ExampleURLs = []string{
	"https://github.com/openai/gpt-oss",
	"https://github.com/facebookresearch/llama",
	"https://github.com/huggingface/transformers",
	"https://github.com/matlab-deep-learning/llms-with-matlab",
}

// Runner performs one analysis. *pipeline.Analyzer satisfies it.
type Runner interface {
	Run(ctx context.Context, repoURL, model string, progress pipeline.ProgressFunc) pipeline.Result
}

const (
	focusURL = iota
	focusModel
)

// headerHeight covers title, both inputs, the progress line and the help line.
const headerHeight = 9

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(8)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	timingStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("110"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// progressMsg and resultMsg carry the id of the run that produced them so
// output from a stopped or cleared run is dropped.
type progressMsg struct {
	id       int
	fraction float64
	desc     string
}

type resultMsg struct {
	id     int
	result pipeline.Result
}

// Model is the bubbletea model.
type Model struct {
	runner       Runner
	defaultModel string

	url   textinput.Model
	model textinput.Model
	focus int

	spinner spinner.Model
	bar     progress.Model
	output  viewport.Model

	running bool
	runID   int
	cancel  context.CancelFunc
	updates chan tea.Msg

	fraction float64
	status   string
	analysis string
	timing   string
	failed   bool
	example  int

	width int
	ready bool
}

// New returns a model that runs analyses with runner and preselects
// defaultModel.
func New(runner Runner, defaultModel string) Model {
	url := textinput.New()
	url.Placeholder = "https://github.com/owner/repo"
	url.CharLimit = 512
	url.Width = 60
	url.Focus()

	mdl := textinput.New()
	mdl.Placeholder = models.DefaultModel()
	mdl.CharLimit = 128
	mdl.Width = 40
	mdl.ShowSuggestions = true
	mdl.SetSuggestions(models.ModelNames())
	mdl.SetValue(defaultModel)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		runner:       runner,
		defaultModel: defaultModel,
		url:          url,
		model:        mdl,
		spinner:      sp,
		bar:          progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		output:       viewport.New(80, 20),
		status:       pipeline.PromptMessage,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-20, 10)
		m.output.Width = msg.Width
		m.output.Height = max(msg.Height-headerHeight, 3)
		m.ready = true
		m.refreshOutput()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case progressMsg:
		if msg.id != m.runID || !m.running {
			return m, nil
		}
		m.fraction = msg.fraction
		m.status = msg.desc
		return m, m.listen()

	case resultMsg:
		if msg.id != m.runID || !m.running {
			return m, nil
		}
		m.finish()
		m.analysis = msg.result.Analysis
		m.timing = msg.result.Timing
		m.failed = msg.result.Failed
		if m.failed {
			m.status = "Analysis failed."
		} else {
			m.status = "Analysis complete."
		}
		m.refreshOutput()
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateInputs(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.stop()
		return m, tea.Quit

	case "enter":
		return m.submit()

	case "esc":
		if m.running {
			m.stop()
			m.status = "Analysis stopped."
		}
		return m, nil

	case "ctrl+l":
		m.stop()
		m.url.SetValue("")
		m.model.SetValue(m.defaultModel)
		m.fraction = 0
		m.status = pipeline.PromptMessage
		m.analysis, m.timing, m.failed = "", "", false
		m.setFocus(focusURL)
		m.refreshOutput()
		return m, nil

	case "ctrl+e":
		m.url.SetValue(ExampleURLs[m.example%len(ExampleURLs)])
		m.url.CursorEnd()
		m.example++
		return m, nil

	case "shift+tab":
		if m.focus == focusURL {
			m.setFocus(focusModel)
		} else {
			m.setFocus(focusURL)
		}
		return m, nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		return m, cmd
	}

	return m.updateInputs(msg)
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.focus == focusURL {
		m.url, cmd = m.url.Update(msg)
	} else {
		m.model, cmd = m.model.Update(msg)
	}
	return m, cmd
}

// submit starts an analysis. Empty inputs are handled by the runner, which
// answers with the prompt message.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.running {
		return m, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.runID++
	m.running = true
	m.cancel = cancel
	m.fraction = 0
	m.status = "Starting..."
	m.analysis, m.timing, m.failed = "", "", false
	m.refreshOutput()

	// Progress is dropped rather than filling the last slot, which is kept for
	// the result so the run never blocks on a stopped UI.
	updates := make(chan tea.Msg, 16)
	m.updates = updates

	id, runner := m.runID, m.runner
	repoURL, model := m.url.Value(), m.model.Value()
	go func() {
		defer cancel()
		res := runner.Run(ctx, repoURL, model, func(fraction float64, desc string) {
			if len(updates) < cap(updates)-1 {
				updates <- progressMsg{id: id, fraction: fraction, desc: desc}
			}
		})
		updates <- resultMsg{id: id, result: res}
	}()

	return m, tea.Batch(m.listen(), m.spinner.Tick)
}

func (m Model) listen() tea.Cmd {
	ch := m.updates
	return func() tea.Msg {
		return <-ch
	}
}

func (m *Model) stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.finish()
	m.runID++
}

func (m *Model) finish() {
	m.running = false
	m.cancel = nil
	m.updates = nil
}

func (m *Model) setFocus(f int) {
	m.focus = f
	if f == focusURL {
		m.url.Focus()
		m.model.Blur()
	} else {
		m.model.Focus()
		m.url.Blur()
	}
}

func (m *Model) refreshOutput() {
	body := m.analysis
	if m.failed {
		body = errorStyle.Render(body)
	}
	if m.width > 0 {
		body = lipgloss.NewStyle().Width(m.width).Render(body)
	}
	m.output.SetContent(body)
	m.output.GotoTop()
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("GitHub Repo Analyzer"))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Repo") + m.url.View() + "\n")
	b.WriteString(labelStyle.Render("Model") + m.model.View() + "\n\n")

	indicator := " "
	if m.running {
		indicator = m.spinner.View()
	}
	fmt.Fprintf(&b, "%s %s\n", indicator, m.bar.ViewAs(m.fraction))
	b.WriteString(statusStyle.Render(m.status) + "\n")

	if m.timing != "" && m.timing != m.analysis {
		b.WriteString(timingStyle.Render(m.timing))
	}
	b.WriteString("\n")

	if m.ready {
		b.WriteString(m.output.View() + "\n")
	}

	b.WriteString(helpStyle.Render("enter analyze • esc stop • ctrl+l clear • ctrl+e example • shift+tab switch field • tab accept model • ctrl+c quit"))
	return b.String()
}

// Run starts the program in the alternate screen and blocks until it exits.
func Run(runner Runner, defaultModel string) error {
	_, err := tea.NewProgram(New(runner, defaultModel), tea.WithAltScreen()).Run()
	return err
}
