// Package tui renders live progress of an analysis run in the terminal.
package tui

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/spiffcs/forkaudit/internal/analyzer"
)

// ErrCanceled is returned by Run when the user quits before the work is done.
var ErrCanceled = errors.New("canceled by user")

// Run starts the TUI and blocks until it completes.
func Run(events <-chan Event) error {
	model := NewModel(events)
	// Don't use alt screen - render inline
	p := tea.NewProgram(model)
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok && m.Canceled() {
		return ErrCanceled
	}
	return nil
}

// ShouldUseTUI returns true if the TUI should be used based on environment.
func ShouldUseTUI() bool {
	// Check if stdout is a TTY
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return false
	}

	// Check for CI environment variables
	ciVars := []string{
		"CI",
		"GITHUB_ACTIONS",
		"JENKINS_URL",
		"TRAVIS",
		"CIRCLECI",
		"GITLAB_CI",
		"BUILDKITE",
	}

	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return false
		}
	}

	return true
}

// SendEvent sends an event to the channel in a non-blocking manner.
func SendEvent(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	select {
	case ch <- e:
	default:
		// Non-blocking send - drop event if channel is full
	}
}

// SendTaskEvent is a convenience function for sending task events.
func SendTaskEvent(ch chan<- Event, task TaskID, status TaskStatus, opts ...TaskEventOption) {
	e := TaskEvent{
		Task:   task,
		Status: status,
	}
	for _, opt := range opts {
		opt(&e)
	}
	SendEvent(ch, e)
}

// TaskEventOption is a functional option for TaskEvent.
type TaskEventOption func(*TaskEvent)

// WithMessage sets the message on a TaskEvent.
func WithMessage(msg string) TaskEventOption {
	return func(e *TaskEvent) {
		e.Message = msg
	}
}

// WithCount sets the count on a TaskEvent.
func WithCount(count int) TaskEventOption {
	return func(e *TaskEvent) {
		e.Count = count
	}
}

// WithProgress sets the progress on a TaskEvent.
func WithProgress(progress float64) TaskEventOption {
	return func(e *TaskEvent) {
		e.Progress = progress
	}
}

// WithError sets the error on a TaskEvent.
func WithError(err error) TaskEventOption {
	return func(e *TaskEvent) {
		e.Error = err
	}
}

var stageTasks = map[analyzer.Stage]TaskID{
	analyzer.StageCollect:   TaskCollect,
	analyzer.StageCorrelate: TaskCorrelate,
	analyzer.StageInspect:   TaskInspect,
}

// Observer translates analyzer progress into TUI events on ch.
func Observer(ch chan<- Event) analyzer.Observer {
	return func(p analyzer.Progress) {
		task, ok := stageTasks[p.Stage]
		if !ok {
			return
		}

		switch {
		case p.Err != nil:
			SendTaskEvent(ch, task, StatusError, WithError(p.Err))
		case p.Skipped:
			SendTaskEvent(ch, task, StatusSkipped)
		case p.Finished:
			SendTaskEvent(ch, task, StatusComplete, WithCount(p.Done))
		case p.Started:
			SendTaskEvent(ch, task, StatusRunning)
		case p.Build != nil:
			var progress float64
			if p.Total > 0 {
				progress = float64(p.Done) / float64(p.Total)
			}
			SendTaskEvent(ch, task, StatusRunning,
				WithProgress(progress),
				WithMessage(fmt.Sprintf("%d/%d", p.Done, p.Total)),
			)
			if len(p.Build.Secrets) > 0 {
				SendEvent(ch, FindingEvent{Build: p.Build.Build.BuildNumber, Secrets: p.Build.Secrets})
			}
		}
	}
}
