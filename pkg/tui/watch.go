// Package tui implements the live dual-pane viewer: both event streams
// side by side while a differential run is in flight, the verdict when it
// lands.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/raulpineda/wirecheck/pkg/engine"
	"github.com/raulpineda/wirecheck/pkg/executor"
	"github.com/raulpineda/wirecheck/pkg/report"
	"github.com/raulpineda/wirecheck/pkg/scenario"
)

var (
	colorCyan = lipgloss.Color("14")

	paneBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	paneTitle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)
	verdictLine = lipgloss.NewStyle().Bold(true)
	helpLine    = lipgloss.NewStyle().Faint(true)
)

// --- Tea messages ---

// pathEventMsg carries one observed event, tagged with its path.
type pathEventMsg struct {
	path string
	ev   engine.Event
}

// runDoneMsg is sent once both paths have terminated.
type runDoneMsg struct {
	result *report.DifferentialResult
}

// --- Model ---

// Model is the Bubble Tea model for the watch view.
type Model struct {
	runner   *executor.Runner
	scenario *scenario.Scenario

	inPane  viewport.Model
	rmPane  viewport.Model
	inLines []string
	rmLines []string

	spinner spinner.Model
	events  chan tea.Msg
	result  *report.DifferentialResult

	width  int
	height int
	ready  bool
}

// NewModel builds the watch model. The runner's Observe hook is claimed by
// the model; callers must not set their own.
func NewModel(r *executor.Runner, s *scenario.Scenario) *Model {
	m := &Model{
		runner:   r,
		scenario: s,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		events:   make(chan tea.Msg, 64),
	}
	r.Observe = func(path string, ev engine.Event) {
		m.events <- pathEventMsg{path: path, ev: ev}
	}
	return m
}

// Init starts the dual run and the event pump.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startRun(), m.nextEvent())
}

func (m *Model) startRun() tea.Cmd {
	return func() tea.Msg {
		started := time.Now()
		inProc, remote := m.runner.Run(context.Background(), m.scenario)
		return runDoneMsg{result: report.New(m.scenario.Meta.Name, "", started, inProc, remote)}
	}
}

// nextEvent waits for the next observed event.
func (m *Model) nextEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case pathEventMsg:
		line := formatEvent(msg.ev)
		if msg.path == executor.PathInProcess {
			m.inLines = append(m.inLines, line)
			m.inPane.SetContent(strings.Join(m.inLines, "\n"))
			m.inPane.GotoBottom()
		} else {
			m.rmLines = append(m.rmLines, line)
			m.rmPane.SetContent(strings.Join(m.rmLines, "\n"))
			m.rmPane.GotoBottom()
		}
		return m, m.nextEvent()

	case runDoneMsg:
		m.result = msg.result
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.inPane, cmd = m.inPane.Update(msg)
	cmds = append(cmds, cmd)
	m.rmPane, cmd = m.rmPane.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) layout() {
	paneWidth := m.width/2 - 4
	paneHeight := m.height - 6
	if paneWidth < 10 || paneHeight < 3 {
		return
	}
	if !m.ready {
		m.inPane = viewport.New(paneWidth, paneHeight)
		m.rmPane = viewport.New(paneWidth, paneHeight)
		m.ready = true
	} else {
		m.inPane.Width, m.inPane.Height = paneWidth, paneHeight
		m.rmPane.Width, m.rmPane.Height = paneWidth, paneHeight
	}
	m.inPane.SetContent(strings.Join(m.inLines, "\n"))
	m.rmPane.SetContent(strings.Join(m.rmLines, "\n"))
}

// View renders the two panes and the status line.
func (m *Model) View() string {
	if !m.ready {
		return "\n  starting..."
	}

	left := lipgloss.JoinVertical(lipgloss.Left,
		paneTitle.Render("in-process"), paneBorder.Render(m.inPane.View()))
	right := lipgloss.JoinVertical(lipgloss.Left,
		paneTitle.Render("remote"), paneBorder.Render(m.rmPane.View()))
	panes := lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)

	status := fmt.Sprintf("%s running %s on both paths", m.spinner.View(), m.scenario.Meta.Name)
	if m.result != nil {
		status = verdictLine.Render(fmt.Sprintf("verdict: %s", m.result.Verdict))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		"", panes, "  "+status, helpLine.Render("  q: quit"))
}

// Result returns the differential result, nil while the run is in flight.
func (m *Model) Result() *report.DifferentialResult {
	return m.result
}

// formatEvent renders one event as a pane line.
func formatEvent(ev engine.Event) string {
	if len(ev.Payload) == 0 {
		return ev.Kind
	}
	var payload map[string]any
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Sprintf("%s %s", ev.Kind, ev.Payload)
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, payload[k]))
	}
	return fmt.Sprintf("%s  %s", ev.Kind, strings.Join(parts, " "))
}

// Watch runs the dual-pane program to completion and returns the result.
func Watch(r *executor.Runner, s *scenario.Scenario) (*report.DifferentialResult, error) {
	m := NewModel(r, s)
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("watch ui: %w", err)
	}
	if fm, ok := final.(*Model); ok {
		return fm.Result(), nil
	}
	return m.Result(), nil
}
