package task

import "context"

// Task is a retryable unit of work producing a value of type V.
// Implementations are supplied by callers of Submit.
type Task[V any] interface {
	// Invoke performs the work once and returns its result. It may have
	// side effects and is not required to be idempotent: every retry runs
	// the full side effect again. The context carries the submission
	// logger (see logger.FromContext) and is cancelled only when the
	// runner is forcibly shut down.
	Invoke(ctx context.Context) (V, error)

	// IsComplete reports whether the task's objective has been durably
	// satisfied by a previous Invoke. It must be free of side effects and
	// is independent of whether the last Invoke returned an error.
	IsComplete() bool
}

// Status represents the current state of a submission
type Status string

// Possible submission status values
const (
	StatusPending   Status = "pending"
	StatusRetrying  Status = "retrying"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Retry budget bounds enforced by Submit.
const (
	MinAttempts = 1
	MaxAttempts = 5
)
