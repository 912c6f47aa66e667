package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// poolState tracks whether the pool accepts work.
type poolState int

const (
	// poolRunning accepts new and rescheduled jobs.
	poolRunning poolState = iota
	// poolDraining refuses new jobs but lets accepted work reschedule itself.
	poolDraining
	// poolStopped was forcibly stopped; remaining jobs are dropped.
	poolStopped
)

// WorkerPool manages a fixed set of worker goroutines that run jobs from a
// task queue, with support for delayed scheduling. It handles graceful
// shutdown and worker lifecycle.
type WorkerPool struct {
	// taskQueue holds jobs ready to run
	taskQueue *TaskQueue

	// workerCount is the number of concurrent workers to start
	workerCount int

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	// inflight counts jobs that are delayed, queued or running
	inflight sync.WaitGroup

	// ctx is handed to every job and cancelled on forced shutdown
	ctx context.Context

	// cancel is the function to call to cancel the context
	cancel context.CancelFunc

	// logger for structured logging
	logger *slog.Logger

	// errorHandler is called when a job panics, before the job's Drop
	// If nil, panics are only logged
	errorHandler func(job Job, err error)

	mu         sync.Mutex
	started    bool
	state      poolState
	delayed    map[*delayedJob]struct{}
	drainOnce  sync.Once
	terminated chan struct{}
}

// delayedJob is a job waiting for its timer. Whoever removes it from
// WorkerPool.delayed owns the job.
type delayedJob struct {
	job   Job
	timer *time.Timer
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int

	// QueueSize is the number of ready jobs buffered ahead of the workers
	// If zero or negative, defaults to 1
	QueueSize int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
		QueueSize:   100,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration.
// Workers are not started until Start is called.
func NewWorkerPool(config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	// Apply defaults for invalid config values
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		taskQueue:   NewTaskQueue(config.QueueSize, logger),
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
		delayed:     make(map[*delayedJob]struct{}),
		terminated:  make(chan struct{}),
	}
}

// SetErrorHandler allows setting a custom handler for panicking jobs.
// It must be called before Start.
func (p *WorkerPool) SetErrorHandler(handler func(job Job, err error)) {
	p.errorHandler = handler
}

// Start launches the worker goroutines. Calling it more than once, or after
// a forced stop, has no effect.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.state == poolStopped {
		return
	}
	p.started = true

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Debug("worker pool started", "worker_count", p.workerCount)
}

// IsRunning reports whether the pool is started and accepting new jobs.
func (p *WorkerPool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started && p.state == poolRunning
}

// Schedule queues job to run after delay. A zero delay queues it right away,
// or as soon as the queue has room. Jobs are refused with ErrRunnerShutdown
// once Shutdown has been called.
func (p *WorkerPool) Schedule(job Job, delay time.Duration) error {
	p.mu.Lock()
	if p.state != poolRunning {
		p.mu.Unlock()
		return ErrRunnerShutdown
	}
	p.inflight.Add(1)
	p.mu.Unlock()

	return p.dispatch(job, delay)
}

// reschedule queues follow-up work on behalf of a job that is currently
// running. Unlike Schedule it is honoured while the pool drains.
func (p *WorkerPool) reschedule(job Job, delay time.Duration) error {
	p.mu.Lock()
	if p.state == poolStopped {
		p.mu.Unlock()
		return ErrRunnerShutdown
	}
	// The calling job still holds its own inflight slot, so the counter
	// cannot be zero here.
	p.inflight.Add(1)
	p.mu.Unlock()

	return p.dispatch(job, delay)
}

// dispatch hands an already counted job to the queue, directly or via a timer.
// A ready job that finds the queue full waits for room on its own goroutine,
// so callers are never blocked or refused for capacity.
func (p *WorkerPool) dispatch(job Job, delay time.Duration) error {
	if delay <= 0 {
		err := p.taskQueue.Enqueue(job)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrQueueFull):
			p.logger.Debug("task queue full, waiting for room", "job", job.Name)
			go p.enqueueWait(job)
			return nil
		default:
			p.inflight.Done()
			return err
		}
	}

	d := &delayedJob{job: job}

	p.mu.Lock()
	if p.state == poolStopped {
		p.mu.Unlock()
		p.drop(job, ErrRunnerShutdown)
		return nil
	}
	d.timer = time.AfterFunc(delay, func() { p.fire(d) })
	p.delayed[d] = struct{}{}
	p.mu.Unlock()

	return nil
}

// fire moves a delayed job into the queue once its timer expires.
func (p *WorkerPool) fire(d *delayedJob) {
	p.mu.Lock()
	if _, ok := p.delayed[d]; !ok {
		// Claimed by forceStop.
		p.mu.Unlock()
		return
	}
	delete(p.delayed, d)
	p.mu.Unlock()

	p.enqueueWait(d.job)
}

// enqueueWait blocks until job is queued, dropping it if the pool is
// forcibly stopped first.
func (p *WorkerPool) enqueueWait(job Job) {
	if err := p.taskQueue.EnqueueWait(p.ctx, job); err != nil {
		p.drop(job, fmt.Errorf("%w: %w", ErrRunnerShutdown, err))
	}
}

// worker processes jobs from the queue until it is closed
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)

	for job := range p.taskQueue.GetChannel() {
		if p.ctx.Err() != nil {
			p.drop(job, ErrRunnerShutdown)
			continue
		}
		p.execute(job, id)
	}

	p.logger.Debug("task channel closed, stopping worker", "worker_id", id)
}

// execute runs a single job, converting a panic into an error for the handler
func (p *WorkerPool) execute(job Job, workerID int) {
	defer p.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("job panicked: %v", r)
			p.logger.Error("recovered panic in worker",
				"worker_id", workerID,
				"job", job.Name,
				"error", err,
				"stack", string(debug.Stack()))
			if p.errorHandler != nil {
				p.errorHandler(job, err)
			}
			if job.Drop != nil {
				job.Drop(err)
			}
		}
	}()

	job.Run(p.ctx)
}

func (p *WorkerPool) drop(job Job, err error) {
	defer p.inflight.Done()

	p.logger.Debug("dropping job", "job", job.Name, "error", err)
	if job.Drop != nil {
		job.Drop(err)
	}
}

// Shutdown stops accepting new jobs and waits for accepted work, including
// work it reschedules, to finish. It returns true if the pool terminated
// within timeout. Otherwise the pool is forcibly stopped: the job context is
// cancelled, delayed and queued jobs are dropped, and running jobs are left
// to return on their own. Shutdown may be called more than once.
func (p *WorkerPool) Shutdown(timeout time.Duration) bool {
	// Queued jobs need workers to either run or drop them.
	p.Start()

	p.mu.Lock()
	if p.state == poolRunning {
		p.state = poolDraining
	}
	p.mu.Unlock()

	p.drainOnce.Do(func() {
		go func() {
			p.inflight.Wait()
			p.taskQueue.Close()
			p.wg.Wait()
			p.cancel()
			close(p.terminated)
		}()
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.terminated:
		p.logger.Debug("worker pool terminated")
		return true
	case <-timer.C:
		p.forceStop()
		return false
	}
}

// forceStop cancels the job context and drops every job still waiting on a timer.
func (p *WorkerPool) forceStop() {
	p.mu.Lock()
	if p.state == poolStopped {
		p.mu.Unlock()
		return
	}
	p.state = poolStopped
	pending := make([]Job, 0, len(p.delayed))
	for d := range p.delayed {
		d.timer.Stop()
		pending = append(pending, d.job)
		delete(p.delayed, d)
	}
	p.mu.Unlock()

	p.logger.Warn("worker pool shutdown timed out, forcing stop",
		"dropped_delayed_jobs", len(pending))

	p.cancel()
	for _, job := range pending {
		p.drop(job, ErrRunnerShutdown)
	}
}
