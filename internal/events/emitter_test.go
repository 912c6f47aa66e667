package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryEventEmitter(t *testing.T) {
	// Create a minimal logger that discards output
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		event := NewEvent(EventAttemptFailed, uuid.New(), 1, 4, errors.New("boom"))

		err := emitter.EmitEvent(context.Background(), event)
		assert.NoError(t, err)
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		handler1 := &MockEventHandler{}
		handler2 := &MockEventHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		event := NewEvent(EventSubmissionSucceeded, uuid.New(), 1, 0, nil)
		err := emitter.EmitEvent(context.Background(), event)
		assert.NoError(t, err)

		assert.Equal(t, 1, handler1.HandledCount)
		assert.Equal(t, 1, handler2.HandledCount)
		assert.Equal(t, event, handler1.LastEvent)
		assert.Equal(t, event, handler2.LastEvent)
	})

	t.Run("emit event with failing handler", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		successHandler := &MockEventHandler{}
		failingHandler := &MockEventHandler{
			HandlerError: errors.New("handler error"),
		}
		secondFailure := &MockEventHandler{
			HandlerError: errors.New("second handler error"),
		}
		emitter.RegisterHandler(failingHandler)
		emitter.RegisterHandler(successHandler)
		emitter.RegisterHandler(secondFailure)

		event := NewEvent(EventSubmissionFailed, uuid.New(), 3, 0, errors.New("boom"))

		// The first error is returned, every handler still sees the event
		err := emitter.EmitEvent(context.Background(), event)
		assert.EqualError(t, err, "handler error")
		assert.Equal(t, 1, successHandler.HandledCount)
		assert.Equal(t, 1, failingHandler.HandledCount)
		assert.Equal(t, 1, secondFailure.HandledCount)
	})

	t.Run("handlers receive only subscribed types", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		all := &MockEventHandler{}
		terminal := &MockEventHandler{}
		emitter.RegisterHandler(all)
		emitter.RegisterHandler(terminal, EventSubmissionSucceeded, EventSubmissionFailed)

		assert.Equal(t, 2, emitter.HandlerCount(EventSubmissionFailed))
		assert.Equal(t, 1, emitter.HandlerCount(EventAttemptFailed))

		id := uuid.New()
		assert.NoError(t, emitter.EmitEvent(context.Background(), NewEvent(EventAttemptFailed, id, 1, 2, errors.New("refused"))))
		assert.NoError(t, emitter.EmitEvent(context.Background(), NewEvent(EventAttemptIncomplete, id, 2, 1, nil)))
		assert.NoError(t, emitter.EmitEvent(context.Background(), NewEvent(EventSubmissionSucceeded, id, 3, 0, nil)))

		assert.Equal(t, 3, all.HandledCount)
		assert.Equal(t, 1, terminal.HandledCount)
		assert.Equal(t, EventSubmissionSucceeded, terminal.LastEvent.Type)
	})

	t.Run("no subscribers for the type", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		terminal := &MockEventHandler{HandlerError: errors.New("should not be called")}
		emitter.RegisterHandler(terminal, EventSubmissionFailed)

		err := emitter.EmitEvent(context.Background(), NewEvent(EventAttemptIncomplete, uuid.New(), 1, 4, nil))

		assert.NoError(t, err)
		assert.Equal(t, 0, terminal.HandledCount)
	})

	t.Run("panicking handler becomes an error", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		after := &MockEventHandler{}
		emitter.RegisterHandler(HandlerFunc(func(ctx context.Context, event *Event) error {
			panic("handler bug")
		}))
		emitter.RegisterHandler(after)

		err := emitter.EmitEvent(context.Background(), NewEvent(EventAttemptIncomplete, uuid.New(), 1, 4, nil))

		assert.ErrorIs(t, err, ErrHandlerPanicked)
		assert.Contains(t, err.Error(), "handler bug")
		assert.Equal(t, 1, after.HandledCount)
	})
}
