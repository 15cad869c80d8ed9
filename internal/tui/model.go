package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// finding is a build that was given secrets, as shown under the tasks.
type finding struct {
	build   int
	secrets []string
}

// Model is the Bubble Tea model for the TUI progress display.
type Model struct {
	tasks          []Task
	spinner        spinner.Model
	progress       progress.Model
	events         <-chan Event
	done           bool
	canceled       bool
	project        string
	projectIndex   int
	projectTotal   int
	findings       []finding
	windowWidth    int
	rateLimited    bool
	rateLimitReset time.Time
}

// doneMsg signals that the event channel was closed and all events have
// been processed.
type doneMsg struct{}

// ModelOption is a functional option for configuring a Model.
type ModelOption func(*Model)

// WithTasks sets the tasks to display in the TUI.
func WithTasks(tasks []Task) ModelOption {
	return func(m *Model) {
		m.tasks = tasks
	}
}

// NewModel creates a new TUI model.
func NewModel(events <-chan Event, opts ...ModelOption) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	p := progress.New(
		progress.WithScaledGradient("#f87171", "#7f1d1d"),
		progress.WithWidth(25),
		progress.WithoutPercentage(),
	)

	m := Model{
		tasks:    AnalysisTasks(),
		spinner:  s,
		progress: p,
		events:   events,
	}

	for _, opt := range opts {
		opt(&m)
	}

	return m
}

// Canceled reports whether the user quit before the work finished.
func (m Model) Canceled() bool {
	return m.canceled
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForEvent(m.events),
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.done {
				m.canceled = true
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case ProjectEvent:
		m.project = msg.Project
		m.projectIndex = msg.Index
		m.projectTotal = msg.Total
		m.tasks = AnalysisTasks()
		m.findings = nil
		return m, waitForEvent(m.events)

	case TaskEvent:
		var cmd tea.Cmd
		m, cmd = m.updateTask(msg)
		return m, tea.Batch(cmd, waitForEvent(m.events))

	case FindingEvent:
		m.findings = append(m.findings, finding{build: msg.Build, secrets: msg.Secrets})
		return m, waitForEvent(m.events)

	case RateLimitEvent:
		m.rateLimited = msg.Limited
		m.rateLimitReset = msg.ResetAt
		return m, waitForEvent(m.events)

	case doneMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

// updateTask updates a task based on a TaskEvent.
func (m Model) updateTask(e TaskEvent) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for i := range m.tasks {
		if m.tasks[i].ID != e.Task {
			continue
		}
		m.tasks[i].Status = e.Status
		m.tasks[i].Message = e.Message
		if e.Count > 0 {
			m.tasks[i].Count = e.Count
		}
		if e.Progress > 0 {
			m.tasks[i].Progress = e.Progress
			cmd = m.progress.SetPercent(e.Progress)
		}
		if e.Error != nil {
			m.tasks[i].Error = e.Error
		}
		break
	}
	return m, cmd
}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder

	if m.project != "" {
		header := "Checking " + projectStyle.Render(m.project)
		if m.projectTotal > 1 {
			header += messageStyle.Render(fmt.Sprintf(" [%d/%d]", m.projectIndex, m.projectTotal))
		}
		b.WriteString("  " + header + "\n")
	}

	for _, task := range m.tasks {
		b.WriteString(task.View(m.spinner.View(), m.progress) + "\n")
	}

	for _, f := range m.findings {
		fmt.Fprintf(&b, "    %s build %d: %s\n", iconFinding, f.build, secretStyle.Render(strings.Join(f.secrets, ", ")))
	}

	if m.rateLimited {
		duration := time.Until(m.rateLimitReset).Round(time.Second)
		if duration > 0 {
			b.WriteString(warnStyle.Render(fmt.Sprintf("\n  GitHub rate limit reached (resets in %s)\n", duration)))
		}
	}

	// Only show cancel hint while running
	if !m.done {
		b.WriteString(footerStyle.Render("\n  Press Ctrl+C to cancel"))
	}
	b.WriteString("\n")

	return b.String()
}

// waitForEvent creates a command that waits for the next event.
func waitForEvent(events <-chan Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return doneMsg{}
		}
		return event
	}
}
