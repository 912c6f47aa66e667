package task

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// funcTask implements Task with pluggable behaviour and counts invocations.
// The attempt number passed to invokeFn is 1-based.
type funcTask[V any] struct {
	invokeFn   func(ctx context.Context, attempt int) (V, error)
	completeFn func(invocations int) bool
	calls      atomic.Int32
}

func (f *funcTask[V]) Invoke(ctx context.Context) (V, error) {
	n := int(f.calls.Add(1))
	if f.invokeFn == nil {
		var zero V
		return zero, nil
	}
	return f.invokeFn(ctx, n)
}

func (f *funcTask[V]) IsComplete() bool {
	if f.completeFn == nil {
		return false
	}
	return f.completeFn(f.Invocations())
}

func (f *funcTask[V]) Invocations() int {
	return int(f.calls.Load())
}

// completesAfter returns a task that reports complete once it has been
// invoked k times, returning the attempt number as its value.
func completesAfter(k int) *funcTask[int] {
	return &funcTask[int]{
		invokeFn: func(ctx context.Context, attempt int) (int, error) {
			return attempt, nil
		},
		completeFn: func(invocations int) bool {
			return invocations >= k
		},
	}
}

// mockTask is a testify mock implementing Task[string].
type mockTask struct {
	mock.Mock
}

func (m *mockTask) Invoke(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockTask) IsComplete() bool {
	return m.Called().Bool(0)
}

// newTestRunner creates a started runner that is shut down when the test ends.
func newTestRunner(t *testing.T, workers int) *TaskRunner {
	runner := NewTaskRunner(TaskRunnerConfig{WorkerCount: workers, QueueSize: 16}, setupTestLogger())
	runner.Start()
	t.Cleanup(func() { runner.Shutdown(2 * time.Second) })
	return runner
}
