package task

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/google/uuid"
)

// Common errors returned by the task runner. Callers check for them with
// errors.Is; submission-time errors are returned synchronously by Submit,
// attempt-time errors only through a Handle.
var (
	// ErrInvalidParameter is returned by Submit when the retry count or the
	// delay is out of range. Returned errors are *ParameterError values.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNilTask is returned by Submit when no task is supplied.
	ErrNilTask = errors.New("task cannot be nil")

	// ErrTypeMismatch marks a result that could not be coerced to the
	// expected type. It is a programming defect and is never retried,
	// regardless of the remaining budget.
	ErrTypeMismatch = errors.New("task result type mismatch")

	// ErrTaskPanicked wraps a value recovered from a panicking Invoke.
	// It is retried like any other task error.
	ErrTaskPanicked = errors.New("task panicked")

	// ErrRunnerShutdown is returned for submissions rejected after shutdown
	// began, and wrapped into the result of submissions cut off by a
	// forced shutdown.
	ErrRunnerShutdown = errors.New("task runner is shut down")
)

// ParameterError describes a submission parameter outside its allowed range.
type ParameterError struct {
	Field string
	Value any
	Min   any
	Max   any
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s: %q must be in range %v-%v inclusive, got %v",
		ErrInvalidParameter, e.Field, e.Min, e.Max, e.Value)
}

// Unwrap makes errors.Is(err, ErrInvalidParameter) hold for every ParameterError.
func (e *ParameterError) Unwrap() error {
	return ErrInvalidParameter
}

// AttemptError is the terminal error of a submission. It records which
// attempt ended the submission and wraps the cause.
type AttemptError struct {
	SubmissionID uuid.UUID
	Attempt      int
	Err          error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("submission %s failed on attempt %d: %v", e.SubmissionID, e.Attempt, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// isFatal reports whether err ends a submission even with attempts left.
func isFatal(err error) bool {
	return errors.Is(err, ErrTypeMismatch)
}

// panicError converts a recovered panic value into an error. A failed type
// assertion is the runtime form of a result type mismatch.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		var typeErr *runtime.TypeAssertionError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%w: %v", ErrTypeMismatch, typeErr)
		}
		return fmt.Errorf("%w: %w", ErrTaskPanicked, err)
	}
	return fmt.Errorf("%w: %v", ErrTaskPanicked, r)
}
