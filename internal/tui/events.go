package tui

import "time"

// TaskID identifies a task in the TUI progress display.
type TaskID int

const (
	TaskAuth    TaskID = iota // Resolving the bearer token
	TaskConnect               // First fetch, or the subscription handshake
	TaskReceive               // Receiving updates
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

// TaskEvent represents an update to a task's status.
type TaskEvent struct {
	Task    TaskID
	Status  TaskStatus
	Message string // Optional message (e.g., the authenticated subject)
	Count   int
	Error   error // Error if status is StatusError
}

func (TaskEvent) isEvent() {}

// UpdateEvent carries one delivery of a watched query or subscription.
// Body is the already formatted data; Err replaces it when the delivery
// failed.
type UpdateEvent struct {
	Body   string
	Source string
	At     time.Time
	Err    error
}

func (UpdateEvent) isEvent() {}

// RateLimitEvent reports the server's rate limit after a request.
type RateLimitEvent struct {
	Limited   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

func (RateLimitEvent) isEvent() {}

// DoneEvent signals that all work is complete.
type DoneEvent struct{}

func (DoneEvent) isEvent() {}
