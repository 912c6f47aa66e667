package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/phrazzld/taskrunner/internal/events"
	"github.com/phrazzld/taskrunner/internal/platform/logger"
)

// Delay bounds enforced by Submit.
const (
	MinDelay = time.Millisecond
	MaxDelay = 5 * time.Second
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many attempts can run at the same time
	WorkerCount int

	// QueueSize determines the buffer size for attempts ready to run
	QueueSize int
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount: 10,
		QueueSize:   100,
	}
}

// TaskRunner executes tasks asynchronously on its own worker pool, retrying
// them within a per-submission budget.
type TaskRunner struct {
	pool     *WorkerPool
	logger   *slog.Logger
	emitter  events.EventEmitter
	validate *validator.Validate
}

// retryPolicy carries the per-submission parameters through validation.
type retryPolicy struct {
	Times int           `validate:"min=1,max=5"`
	Delay time.Duration `validate:"min=1ms,max=5s"`
}

// NewTaskRunner creates a new TaskRunner with its own worker pool.
// Call Start before expecting attempts to run.
func NewTaskRunner(config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	logger = logger.With("component", "task_runner")

	pool := NewWorkerPool(WorkerPoolConfig{
		WorkerCount: config.WorkerCount,
		QueueSize:   config.QueueSize,
	}, logger)
	pool.SetErrorHandler(func(job Job, err error) {
		logger.Error("job failed outside the attempt loop", "job", job.Name, "error", err)
	})

	return &TaskRunner{
		pool:     pool,
		logger:   logger,
		validate: validator.New(),
	}
}

// SetEventEmitter sets the emitter that receives submission lifecycle
// events. It must be called before Start.
func (r *TaskRunner) SetEventEmitter(emitter events.EventEmitter) {
	r.emitter = emitter
}

// Start launches the worker pool.
func (r *TaskRunner) Start() {
	r.pool.Start()
	r.logger.Info("task runner started", "worker_count", r.pool.workerCount)
}

// Shutdown stops accepting submissions and blocks until all scheduled
// attempts finish or timeout elapses. It returns true if the pool drained
// gracefully and false if it had to be forcibly stopped.
func (r *TaskRunner) Shutdown(timeout time.Duration) bool {
	r.logger.Info("shutting down task runner", "timeout", timeout)

	graceful := r.pool.Shutdown(timeout)
	if !graceful {
		r.logger.Warn("task runner did not drain before timeout", "timeout", timeout)
	}
	return graceful
}

// Submit schedules t to run on r's pool and returns immediately with a
// Handle for its result. The task is invoked at most times times (1-5),
// waiting delay (1ms-5s) between attempts. The handle settles with the value
// of the first attempt after which t reports complete, or with the last
// attempt's value once the budget is spent. Attempt errors are retried
// unless they wrap ErrTypeMismatch; the error of the final attempt becomes
// the handle's error, wrapped in an *AttemptError.
//
// Parameter, nil task and shutdown errors are returned synchronously and
// nothing is scheduled.
func Submit[V any](r *TaskRunner, t Task[V], times int, delay time.Duration) (*Handle[V], error) {
	if err := r.validatePolicy(retryPolicy{Times: times, Delay: delay}); err != nil {
		return nil, err
	}
	if isNilTask(t) {
		return nil, ErrNilTask
	}

	id := uuid.New()
	s := &submission[V]{
		id:        id,
		task:      t,
		remaining: times,
		delay:     delay,
		handle:    newHandle[V](id),
		runner:    r,
		logger: r.logger.With(
			"submission_id", id,
			"task_type", fmt.Sprintf("%T", t),
		),
	}

	if err := r.pool.Schedule(s.job(), 0); err != nil {
		return nil, fmt.Errorf("failed to schedule task: %w", err)
	}

	s.logger.Debug("task submitted", "times", times, "delay", delay)
	return s.handle, nil
}

// isNilTask reports whether t is nil or an interface holding a nil pointer,
// map, slice, func or channel.
func isNilTask[V any](t Task[V]) bool {
	if t == nil {
		return true
	}
	v := reflect.ValueOf(t)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func (r *TaskRunner) validatePolicy(p retryPolicy) error {
	err := r.validate.Struct(p)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		switch validationErrs[0].StructField() {
		case "Times":
			return &ParameterError{Field: "times", Value: p.Times, Min: MinAttempts, Max: MaxAttempts}
		case "Delay":
			return &ParameterError{Field: "delay", Value: p.Delay, Min: MinDelay, Max: MaxDelay}
		}
	}
	return fmt.Errorf("%w: %w", ErrInvalidParameter, err)
}

func (r *TaskRunner) emit(ctx context.Context, l *slog.Logger, event *events.Event) {
	if r.emitter == nil {
		return
	}
	if err := r.emitter.EmitEvent(ctx, event); err != nil {
		l.Warn("failed to emit submission event", "event_type", event.Type, "error", err)
	}
}

// submission is the runner-owned state of one Submit call. Its fields are
// only touched by the attempt currently running, and attempts are strictly
// sequential.
type submission[V any] struct {
	id        uuid.UUID
	task      Task[V]
	remaining int
	delay     time.Duration
	handle    *Handle[V]
	runner    *TaskRunner
	logger    *slog.Logger
}

func (s *submission[V]) job() Job {
	return Job{
		Name: s.id.String(),
		Run:  s.run,
		Drop: s.abort,
	}
}

// run executes attempts on the current worker. An attempt that returns a
// value without completing the task hands the next attempt back to the pool
// after the delay, so other submissions get a turn on this worker. An
// attempt that fails waits out the delay here and retries on the same
// worker, so the handle only ever has one scheduling path to race with.
func (s *submission[V]) run(ctx context.Context) {
	ctx = logger.WithLogger(ctx, s.logger)

	// Invoke panics are attempt errors. Anything else that panics here
	// (IsComplete, an event emitter) ends the submission.
	defer func() {
		if r := recover(); r != nil {
			err := panicError(r)
			s.logger.Error("submission panicked outside Invoke", "error", err)
			s.fail(ctx, s.handle.Attempts(), err)
		}
	}()

	for {
		attempt := s.handle.recordAttempt()
		value, err := s.invoke(ctx)

		if err == nil {
			complete := s.task.IsComplete()
			if complete || s.remaining <= 1 {
				s.succeed(ctx, attempt, value, complete)
				return
			}

			s.remaining--
			s.handle.markRetrying()
			s.logger.Debug("task not complete, rescheduling",
				"attempt", attempt,
				"remaining", s.remaining,
				"delay", s.delay)
			s.runner.emit(ctx, s.logger,
				events.NewEvent(events.EventAttemptIncomplete, s.id, attempt, s.remaining, nil))

			if err := s.runner.pool.reschedule(s.job(), s.delay); err != nil {
				s.fail(ctx, attempt, err)
			}
			return
		}

		if isFatal(err) || s.remaining <= 1 {
			s.fail(ctx, attempt, err)
			return
		}

		s.remaining--
		s.handle.markRetrying()
		s.logger.Warn("attempt failed, retrying",
			"attempt", attempt,
			"remaining", s.remaining,
			"delay", s.delay,
			"error", err)
		s.runner.emit(ctx, s.logger,
			events.NewEvent(events.EventAttemptFailed, s.id, attempt, s.remaining, err))

		if !sleep(ctx, s.delay) {
			s.fail(ctx, attempt, fmt.Errorf("%w: %w", ErrRunnerShutdown, err))
			return
		}
	}
}

// invoke calls the task once, recovering a panic into an error.
func (s *submission[V]) invoke(ctx context.Context) (value V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return s.task.Invoke(ctx)
}

// abort settles a submission whose next attempt was dropped by the pool.
func (s *submission[V]) abort(err error) {
	s.fail(context.Background(), s.handle.Attempts(), err)
}

func (s *submission[V]) succeed(ctx context.Context, attempt int, value V, complete bool) {
	if !s.handle.resolve(value) {
		return
	}
	s.logger.Info("task resolved",
		"attempt", attempt,
		"complete", complete)
	s.runner.emit(ctx, s.logger,
		events.NewEvent(events.EventSubmissionSucceeded, s.id, attempt, s.remaining-1, nil))
}

func (s *submission[V]) fail(ctx context.Context, attempt int, err error) {
	if !s.handle.reject(&AttemptError{SubmissionID: s.id, Attempt: attempt, Err: err}) {
		return
	}
	s.logger.Error("task failed",
		"attempt", attempt,
		"fatal", isFatal(err),
		"error", err)
	s.runner.emit(ctx, s.logger,
		events.NewEvent(events.EventSubmissionFailed, s.id, attempt, 0, err))
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
