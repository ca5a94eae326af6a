// Package tui renders a live run monitor: spinner, iteration counter, and
// a scrolling event log fed by the engine's event stream.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mlagent/internal/events"
)

// EventMsg 引擎事件
// EventMsg wraps one engine event for the update loop.
type EventMsg struct{ Event events.Event }

// RunDoneMsg ends the monitor.
type RunDoneMsg struct {
	Solution string
	Err      error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	codeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
)

// Monitor Bubble Tea 主 Model
// Monitor is the run monitor model.
type Monitor struct {
	dataset   string
	goal      string
	spin      spinner.Model
	log       viewport.Model
	lines     []string
	iteration int
	maxIter   int
	done      bool
	err       error
	solution  string
	width     int
	height    int
}

func NewMonitor(dataset, goal string, maxIterations int) Monitor {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Monitor{
		dataset: dataset,
		goal:    goal,
		spin:    sp,
		log:     viewport.New(80, 20),
		maxIter: maxIterations,
	}
}

func (m Monitor) Init() tea.Cmd {
	return m.spin.Tick
}

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.log.Width = msg.Width
		if msg.Height > 6 {
			m.log.Height = msg.Height - 6
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
		return m, nil
	case EventMsg:
		m.appendEvent(msg.Event)
		return m, nil
	case RunDoneMsg:
		m.done = true
		m.solution = msg.Solution
		m.err = msg.Err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Monitor) appendEvent(e events.Event) {
	if e.Step > m.iteration {
		m.iteration = e.Step
	}
	switch e.Type {
	case events.TypeStatus:
		state, _ := e.Payload["state"].(string)
		m.lines = append(m.lines, statusStyle.Render(fmt.Sprintf("[%d] %s", e.Step, state)))
	case events.TypePlan:
		plan, _ := e.Payload["plan"].(string)
		m.lines = append(m.lines, labelStyle.Render("plan:"))
		m.lines = append(m.lines, indent(plan))
	case events.TypeCode:
		code, _ := e.Payload["code"].(string)
		m.lines = append(m.lines, labelStyle.Render("code:"))
		m.lines = append(m.lines, codeStyle.Render(indent(code)))
	case events.TypePlot:
		m.lines = append(m.lines, statusStyle.Render(fmt.Sprintf("captured figure %v", e.Payload["figure"])))
	case events.TypeError:
		msg, _ := e.Payload["error"].(string)
		m.lines = append(m.lines, errorStyle.Render("error: "+msg))
	case events.TypeArtifacts:
		m.lines = append(m.lines, statusStyle.Render(fmt.Sprintf("artifacts: %v", e.Payload["artifacts_dir"])))
	}
	m.log.SetContent(strings.Join(m.lines, "\n"))
	m.log.GotoBottom()
}

func (m Monitor) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("mlagent run") + "\n")
	b.WriteString(labelStyle.Render(fmt.Sprintf("dataset: %s", m.dataset)) + "\n")
	b.WriteString(labelStyle.Render(fmt.Sprintf("goal: %s", m.goal)) + "\n")
	if m.done {
		if m.err != nil {
			b.WriteString(errorStyle.Render("failed: "+m.err.Error()) + "\n")
		} else {
			b.WriteString(statusStyle.Render("completed") + "\n")
		}
	} else {
		b.WriteString(fmt.Sprintf("%s iteration %d/%d\n", m.spin.View(), m.iteration, m.maxIter))
	}
	b.WriteString("\n")
	b.WriteString(m.log.View())
	return b.String()
}

// Solution returns the final solution once the monitor has quit.
func (m Monitor) Solution() string {
	return m.solution
}

func indent(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
