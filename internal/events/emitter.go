package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// subscription pairs a handler with the event types it receives.
// An empty type set receives every event.
type subscription struct {
	handler EventHandler
	types   map[EventType]struct{}
}

func (s subscription) wants(t EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// InMemoryEventEmitter dispatches submission events synchronously to the
// handlers registered for their type, in registration order, on the
// goroutine that emits them. The runner emits from the worker running the
// attempt, so the events of one submission arrive in attempt order and a slow
// handler delays that submission's next attempt.
//
// A failing or panicking handler does not stop delivery to the remaining
// handlers; the first failure is returned to the emitter's caller.
type InMemoryEventEmitter struct {
	subscriptions []subscription
	mu            sync.RWMutex
	logger        *slog.Logger
}

// NewInMemoryEventEmitter creates a new instance of InMemoryEventEmitter.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		logger: logger.With("component", "in_memory_event_emitter"),
	}
}

// RegisterHandler subscribes handler to the given event types, or to every
// event type when none are given.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler, types ...EventType) {
	sub := subscription{handler: handler}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscriptions = append(e.subscriptions, sub)
	e.logger.Debug("registered new event handler",
		"handler_count", len(e.subscriptions),
		"event_types", types)
}

// HandlerCount returns how many handlers would receive an event of type t.
func (e *InMemoryEventEmitter) HandlerCount(t EventType) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for _, sub := range e.subscriptions {
		if sub.wants(t) {
			n++
		}
	}
	return n
}

// EmitEvent delivers event to every handler subscribed to its type.
// It returns nil without dispatching when nobody is subscribed.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *Event) error {
	e.mu.RLock()
	handlers := make([]EventHandler, 0, len(e.subscriptions))
	for _, sub := range e.subscriptions {
		if sub.wants(event.Type) {
			handlers = append(handlers, sub.handler)
		}
	}
	e.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	e.logger.Debug("emitting event",
		"event_id", event.ID,
		"event_type", event.Type,
		"submission_id", event.SubmissionID,
		"attempt", event.Attempt,
		"handler_count", len(handlers))

	var firstErr error
	for i, handler := range handlers {
		if err := e.deliver(ctx, handler, event); err != nil {
			e.logger.Error("handler failed to process event",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"event_type", event.Type,
				"submission_id", event.SubmissionID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// deliver calls one handler, converting a panic into an error.
func (e *InMemoryEventEmitter) deliver(ctx context.Context, handler EventHandler, event *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanicked, r)
		}
	}()
	return handler.HandleEvent(ctx, event)
}
