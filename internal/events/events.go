package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventType identifies what happened to a submission.
type EventType string

// Submission lifecycle event types
const (
	// EventAttemptFailed is emitted when an attempt returns an error and
	// another attempt will follow on the same worker.
	EventAttemptFailed EventType = "attempt_failed"

	// EventAttemptIncomplete is emitted when an attempt succeeds without
	// completing the task and the next attempt is rescheduled on the pool.
	EventAttemptIncomplete EventType = "attempt_incomplete"

	// EventSubmissionSucceeded is emitted when a submission resolves with a value.
	EventSubmissionSucceeded EventType = "submission_succeeded"

	// EventSubmissionFailed is emitted when a submission resolves with an error.
	EventSubmissionFailed EventType = "submission_failed"
)

// ErrHandlerPanicked wraps a value recovered from a panicking EventHandler.
var ErrHandlerPanicked = errors.New("event handler panicked")

// Event describes one step in the life of a task submission.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type indicates what happened
	Type EventType `json:"type"`

	// SubmissionID identifies the submission the event belongs to
	SubmissionID uuid.UUID `json:"submission_id"`

	// Attempt is the 1-based number of the attempt that produced the event
	Attempt int `json:"attempt"`

	// Remaining is the number of attempts left after this one
	Remaining int `json:"remaining"`

	// Error holds the attempt or terminal error message, if any
	Error string `json:"error,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent creates a new Event of the given type for a submission.
// A nil err leaves the Error field empty.
func NewEvent(eventType EventType, submissionID uuid.UUID, attempt, remaining int, err error) *Event {
	event := &Event{
		ID:           uuid.New(),
		Type:         eventType,
		SubmissionID: submissionID,
		Attempt:      attempt,
		Remaining:    remaining,
		CreatedAt:    time.Now(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	return event
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts an ordinary function to the EventHandler interface.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent calls f(ctx, event).
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows the runner to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *Event) error
}
