package task

import (
	"context"
	"log/slog"

	"github.com/phrazzld/taskrunner/internal/events"
)

// EventLogHandler implements the events.EventHandler interface by writing
// submission lifecycle events to a structured logger. Intermediate attempt
// events are logged at debug level, terminal events at info or warn.
type EventLogHandler struct {
	logger *slog.Logger
}

// NewEventLogHandler creates a new event handler that logs to the given logger.
func NewEventLogHandler(logger *slog.Logger) *EventLogHandler {
	return &EventLogHandler{
		logger: logger.With("component", "submission_event_handler"),
	}
}

// HandleEvent logs the event. It never fails.
func (h *EventLogHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	level := slog.LevelDebug
	switch event.Type {
	case events.EventSubmissionSucceeded:
		level = slog.LevelInfo
	case events.EventSubmissionFailed:
		level = slog.LevelWarn
	}

	attrs := []any{
		"event_id", event.ID,
		"event_type", event.Type,
		"submission_id", event.SubmissionID,
		"attempt", event.Attempt,
		"remaining", event.Remaining,
	}
	if event.Error != "" {
		attrs = append(attrs, "error", event.Error)
	}

	h.logger.Log(ctx, level, "submission event", attrs...)
	return nil
}

// Ensure EventLogHandler implements events.EventHandler
var _ events.EventHandler = (*EventLogHandler)(nil)
