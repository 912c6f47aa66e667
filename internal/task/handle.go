package task

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Handle is the single-assignment result of a submission. It settles
// exactly once, either with a value or with an error; later settle calls
// are no-ops.
type Handle[V any] struct {
	id       uuid.UUID
	done     chan struct{}
	once     sync.Once
	value    V
	err      error
	attempts atomic.Int32
	status   atomic.Value
}

func newHandle[V any](id uuid.UUID) *Handle[V] {
	h := &Handle[V]{
		id:   id,
		done: make(chan struct{}),
	}
	h.status.Store(StatusPending)
	return h
}

// ID returns the submission identifier.
func (h *Handle[V]) ID() uuid.UUID {
	return h.id
}

// Done returns a channel that is closed once the handle is settled.
func (h *Handle[V]) Done() <-chan struct{} {
	return h.done
}

// Get blocks until the handle settles or ctx is done. A done ctx only stops
// the wait; the submission keeps running.
func (h *Handle[V]) Get(ctx context.Context) (V, error) {
	select {
	case <-h.done:
		return h.value, h.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Wait blocks until the handle settles and returns its outcome.
func (h *Handle[V]) Wait() (V, error) {
	<-h.done
	return h.value, h.err
}

// Attempts returns how many times the task has been invoked so far.
func (h *Handle[V]) Attempts() int {
	return int(h.attempts.Load())
}

// Status returns the current submission status.
func (h *Handle[V]) Status() Status {
	return h.status.Load().(Status)
}

func (h *Handle[V]) recordAttempt() int {
	return int(h.attempts.Add(1))
}

func (h *Handle[V]) markRetrying() {
	h.status.CompareAndSwap(StatusPending, StatusRetrying)
}

// settle stores the outcome and reports whether this call was the one that
// settled the handle.
func (h *Handle[V]) settle(value V, err error) bool {
	settled := false
	h.once.Do(func() {
		h.value = value
		h.err = err
		if err != nil {
			h.status.Store(StatusFailed)
		} else {
			h.status.Store(StatusSucceeded)
		}
		close(h.done)
		settled = true
	})
	return settled
}

func (h *Handle[V]) resolve(value V) bool {
	return h.settle(value, nil)
}

func (h *Handle[V]) reject(err error) bool {
	var zero V
	return h.settle(zero, err)
}
