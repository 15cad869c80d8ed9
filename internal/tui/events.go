package tui

import "time"

// TaskID identifies a task in the TUI progress display.
type TaskID int

const (
	TaskCollect   TaskID = iota // Listing PRs and keeping the forked ones
	TaskCorrelate               // Mapping PR commit statuses to CI builds
	TaskInspect                 // Reading each build's environment report
)

// TaskStatus represents the current status of a task.
type TaskStatus int

const (
	StatusPending TaskStatus = iota
	StatusRunning
	StatusComplete
	StatusError
	StatusSkipped
)

// Event is the interface for all TUI events.
type Event interface {
	isEvent()
}

// ProjectEvent announces the project being analyzed and resets the tasks.
type ProjectEvent struct {
	Project string
	Index   int // 1-based position in the run
	Total   int
}

func (ProjectEvent) isEvent() {}

// TaskEvent represents an update to a task's status.
type TaskEvent struct {
	Task     TaskID
	Status   TaskStatus
	Message  string  // Optional message (e.g., "3/10" for progress)
	Count    int     // Count of items (e.g., PRs collected)
	Progress float64 // Progress from 0.0 to 1.0
	Error    error   // Error if status is StatusError
}

func (TaskEvent) isEvent() {}

// FindingEvent reports a build that was given secrets.
type FindingEvent struct {
	Build   int
	Secrets []string
}

func (FindingEvent) isEvent() {}

// RateLimitEvent reports the GitHub rate limit state.
type RateLimitEvent struct {
	Limited bool
	ResetAt time.Time
}

func (RateLimitEvent) isEvent() {}
