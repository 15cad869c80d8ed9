package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/spiffcs/forkaudit/internal/analyzer"
	"github.com/spiffcs/forkaudit/internal/model"
)

func TestTaskID(t *testing.T) {
	// Verify task IDs are distinct
	ids := []TaskID{TaskCollect, TaskCorrelate, TaskInspect}
	seen := make(map[TaskID]bool)

	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate task ID: %d", id)
		}
		seen[id] = true
	}
}

func TestNewTask(t *testing.T) {
	task := NewTask(TaskCorrelate, "Correlating CI builds")

	if task.ID != TaskCorrelate {
		t.Errorf("expected ID %d, got %d", TaskCorrelate, task.ID)
	}
	if task.Status != StatusPending {
		t.Errorf("expected status %d, got %d", StatusPending, task.Status)
	}
}

func TestSendEventNilChannel(t *testing.T) {
	// Should not panic with nil channel
	SendEvent(nil, TaskEvent{})
}

func TestSendEventDropsWhenFull(t *testing.T) {
	ch := make(chan Event, 1)
	SendEvent(ch, TaskEvent{Task: TaskCollect})
	SendEvent(ch, TaskEvent{Task: TaskInspect})

	if len(ch) != 1 {
		t.Errorf("expected 1 buffered event, got %d", len(ch))
	}
}

func TestSendTaskEvent(t *testing.T) {
	ch := make(chan Event, 1)
	testErr := errors.New("test error")

	SendTaskEvent(ch, TaskInspect, StatusError,
		WithMessage("2/4"),
		WithCount(2),
		WithProgress(0.5),
		WithError(testErr),
	)

	te, ok := (<-ch).(TaskEvent)
	if !ok {
		t.Fatal("expected TaskEvent type")
	}
	if te.Task != TaskInspect || te.Message != "2/4" || te.Count != 2 || te.Progress != 0.5 || te.Error != testErr {
		t.Errorf("unexpected event %+v", te)
	}
}

func TestObserver(t *testing.T) {
	tests := []struct {
		name       string
		progress   analyzer.Progress
		wantTask   TaskID
		wantStatus TaskStatus
		wantEvents int
	}{
		{
			name:       "stage started",
			progress:   analyzer.Progress{Stage: analyzer.StageCollect, Started: true},
			wantTask:   TaskCollect,
			wantStatus: StatusRunning,
			wantEvents: 1,
		},
		{
			name:       "stage finished",
			progress:   analyzer.Progress{Stage: analyzer.StageCorrelate, Finished: true, Done: 3},
			wantTask:   TaskCorrelate,
			wantStatus: StatusComplete,
			wantEvents: 1,
		},
		{
			name:       "stage skipped",
			progress:   analyzer.Progress{Stage: analyzer.StageInspect, Skipped: true},
			wantTask:   TaskInspect,
			wantStatus: StatusSkipped,
			wantEvents: 1,
		},
		{
			name:       "stage failed",
			progress:   analyzer.Progress{Stage: analyzer.StageCollect, Err: errors.New("boom")},
			wantTask:   TaskCollect,
			wantStatus: StatusError,
			wantEvents: 1,
		},
		{
			name: "exposing build adds a finding",
			progress: analyzer.Progress{
				Stage: analyzer.StageInspect,
				Done:  1,
				Total: 2,
				Build: &model.BuildResult{
					Build:   model.CandidateBuild{BuildNumber: 90},
					Secrets: []string{"DEPLOY_TOKEN"},
				},
			},
			wantTask:   TaskInspect,
			wantStatus: StatusRunning,
			wantEvents: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := make(chan Event, 4)
			Observer(ch)(tt.progress)

			if len(ch) != tt.wantEvents {
				t.Fatalf("expected %d events, got %d", tt.wantEvents, len(ch))
			}
			te, ok := (<-ch).(TaskEvent)
			if !ok {
				t.Fatal("expected TaskEvent first")
			}
			if te.Task != tt.wantTask || te.Status != tt.wantStatus {
				t.Errorf("got task %d status %d, want task %d status %d", te.Task, te.Status, tt.wantTask, tt.wantStatus)
			}
		})
	}
}

func TestModelCtrlCCancels(t *testing.T) {
	m := NewModel(make(chan Event))

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !updated.(Model).Canceled() {
		t.Error("expected model to be canceled")
	}
}

func TestWaitForEventClosedChannel(t *testing.T) {
	ch := make(chan Event, 1)
	ch <- FindingEvent{Build: 7}
	close(ch)

	wait := waitForEvent(ch)
	if msg, ok := wait().(FindingEvent); !ok || msg.Build != 7 {
		t.Errorf("expected buffered finding first, got %#v", msg)
	}
	if _, ok := wait().(doneMsg); !ok {
		t.Error("expected doneMsg once the channel is closed")
	}
}

func TestModelDoneIsNotCanceled(t *testing.T) {
	m := NewModel(make(chan Event))

	updated, cmd := m.Update(doneMsg{})
	if cmd == nil {
		t.Fatal("expected quit command on completion")
	}
	updated, _ = updated.(Model).Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if updated.(Model).Canceled() {
		t.Error("quitting after completion is not a cancel")
	}
}

func TestModelView(t *testing.T) {
	m := NewModel(make(chan Event))

	updated, _ := m.Update(ProjectEvent{Project: "acme/widgets", Index: 1, Total: 2})
	updated, _ = updated.(Model).Update(TaskEvent{Task: TaskCollect, Status: StatusComplete, Count: 4})
	updated, _ = updated.(Model).Update(FindingEvent{Build: 90, Secrets: []string{"DEPLOY_TOKEN"}})

	view := updated.(Model).View()
	for _, want := range []string{"acme/widgets", "[1/2]", "Collecting forked PRs", "(4)", "build 90", "DEPLOY_TOKEN", "Ctrl+C"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestStatusIcon(t *testing.T) {
	// Test that StatusIcon returns non-empty strings for all statuses
	statuses := []TaskStatus{StatusPending, StatusRunning, StatusComplete, StatusError, StatusSkipped}

	for _, status := range statuses {
		icon := StatusIcon(status, ">")
		if icon == "" {
			t.Errorf("StatusIcon returned empty string for status %d", status)
		}
	}
}
