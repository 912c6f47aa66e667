package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerPool(t *testing.T) {
	logger := setupTestLogger()
	config := WorkerPoolConfig{
		WorkerCount: 5,
		QueueSize:   10,
	}

	pool := NewWorkerPool(config, logger)

	assert.NotNil(t, pool)
	assert.Equal(t, 5, pool.workerCount)
	assert.NotNil(t, pool.taskQueue)
	assert.NotNil(t, pool.ctx)
	assert.NotNil(t, pool.cancel)
	assert.Nil(t, pool.errorHandler)
	assert.False(t, pool.IsRunning())

	// Test with invalid worker count (should default to 1)
	pool = NewWorkerPool(WorkerPoolConfig{WorkerCount: 0}, logger)
	assert.Equal(t, 1, pool.workerCount)

	// Test with negative worker count (should default to 1)
	pool = NewWorkerPool(WorkerPoolConfig{WorkerCount: -5}, logger)
	assert.Equal(t, 1, pool.workerCount)
}

func TestWorkerPool_Start_Shutdown(t *testing.T) {
	pool := NewWorkerPool(DefaultWorkerPoolConfig(), setupTestLogger())

	pool.Start()
	// A second Start is a no-op
	pool.Start()
	assert.True(t, pool.IsRunning())

	assert.True(t, pool.Shutdown(time.Second))
	assert.False(t, pool.IsRunning())

	// Shutdown is idempotent
	assert.True(t, pool.Shutdown(time.Second))
}

func TestWorkerPool_RunsScheduledJob(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 1, QueueSize: 4}, setupTestLogger())
	pool.Start()
	defer pool.Shutdown(time.Second)

	completed := make(chan struct{})
	err := pool.Schedule(Job{
		Name: "signal",
		Run:  func(ctx context.Context) { close(completed) },
	}, 0)
	require.NoError(t, err)

	select {
	case <-completed:
	case <-time.After(time.Second):
		t.Fatal("job was not executed")
	}
}

func TestWorkerPool_DelayedJob(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 1, QueueSize: 4}, setupTestLogger())
	pool.Start()
	defer pool.Shutdown(time.Second)

	delay := 50 * time.Millisecond
	ran := make(chan time.Time, 1)
	start := time.Now()

	err := pool.Schedule(Job{
		Name: "delayed",
		Run:  func(ctx context.Context) { ran <- time.Now() },
	}, delay)
	require.NoError(t, err)

	select {
	case at := <-ran:
		assert.GreaterOrEqual(t, at.Sub(start), delay)
	case <-time.After(time.Second):
		t.Fatal("delayed job was not executed")
	}
}

func TestWorkerPool_PanicRecovery(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 1, QueueSize: 4}, setupTestLogger())

	handled := make(chan error, 1)
	pool.SetErrorHandler(func(job Job, err error) {
		assert.Equal(t, "explosive", job.Name)
		handled <- err
	})
	pool.Start()
	defer pool.Shutdown(time.Second)

	dropped := make(chan error, 1)
	require.NoError(t, pool.Schedule(Job{
		Name: "explosive",
		Run:  func(ctx context.Context) { panic("kaboom") },
		Drop: func(err error) { dropped <- err },
	}, 0))

	select {
	case err := <-handled:
		assert.Contains(t, err.Error(), "kaboom")
	case <-time.After(time.Second):
		t.Fatal("error handler was not called")
	}

	// The job is told it will not complete normally
	select {
	case err := <-dropped:
		assert.Contains(t, err.Error(), "kaboom")
	case <-time.After(time.Second):
		t.Fatal("panicking job was not dropped")
	}

	// The worker survives the panic
	completed := make(chan struct{})
	require.NoError(t, pool.Schedule(Job{
		Name: "after panic",
		Run:  func(ctx context.Context) { close(completed) },
	}, 0))

	select {
	case <-completed:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive the panic")
	}
}

func TestWorkerPool_ScheduleAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(DefaultWorkerPoolConfig(), setupTestLogger())
	pool.Start()
	require.True(t, pool.Shutdown(time.Second))

	err := pool.Schedule(namedJob("late"), 0)
	assert.ErrorIs(t, err, ErrRunnerShutdown)
}

func TestWorkerPool_ScheduleBeyondQueueCapacity(t *testing.T) {
	// Workers are not started, so the queue fills up
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 1, QueueSize: 1}, setupTestLogger())

	var runs atomic.Int32
	counted := Job{Name: "counted", Run: func(ctx context.Context) { runs.Add(1) }}

	for i := 0; i < 5; i++ {
		assert.NoError(t, pool.Schedule(counted, 0))
	}

	// Shutdown starts the workers and waits for the overflow as well
	assert.True(t, pool.Shutdown(time.Second))
	assert.Equal(t, int32(5), runs.Load())
}

func TestWorkerPool_ForcedShutdownDropsOverflow(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 1, QueueSize: 1}, setupTestLogger())
	pool.Start()

	started := make(chan struct{})
	require.NoError(t, pool.Schedule(Job{
		Name: "blocking",
		Run: func(ctx context.Context) {
			close(started)
			<-ctx.Done()
		},
	}, 0))
	<-started

	dropped := make(chan error, 3)
	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Schedule(Job{
			Name: "overflow",
			Run:  func(ctx context.Context) { t.Error("overflow job should not run") },
			Drop: func(err error) { dropped <- err },
		}, 0))
	}

	assert.False(t, pool.Shutdown(50*time.Millisecond))

	for i := 0; i < 3; i++ {
		select {
		case err := <-dropped:
			assert.ErrorIs(t, err, ErrRunnerShutdown)
		case <-time.After(time.Second):
			t.Fatal("overflow jobs were not dropped")
		}
	}
}

func TestWorkerPool_GracefulShutdownWaitsForReschedules(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 1, QueueSize: 4}, setupTestLogger())
	pool.Start()

	var runs atomic.Int32
	var job Job
	job = Job{
		Name: "chain",
		Run: func(ctx context.Context) {
			if runs.Add(1) < 3 {
				assert.NoError(t, pool.reschedule(job, 20*time.Millisecond))
			}
		},
	}
	require.NoError(t, pool.Schedule(job, 0))

	assert.True(t, pool.Shutdown(time.Second))
	assert.Equal(t, int32(3), runs.Load())
}

func TestWorkerPool_ForcedShutdown(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 1, QueueSize: 4}, setupTestLogger())
	pool.Start()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.NoError(t, pool.Schedule(Job{
		Name: "blocking",
		Run: func(ctx context.Context) {
			close(started)
			<-ctx.Done()
			close(cancelled)
		},
	}, 0))
	<-started

	dropped := make(chan error, 2)
	dropRecorder := func(err error) { dropped <- err }

	require.NoError(t, pool.Schedule(Job{
		Name: "queued",
		Run:  func(ctx context.Context) { t.Error("queued job should not run") },
		Drop: dropRecorder,
	}, 0))
	require.NoError(t, pool.Schedule(Job{
		Name: "delayed",
		Run:  func(ctx context.Context) { t.Error("delayed job should not run") },
		Drop: dropRecorder,
	}, time.Hour))

	assert.False(t, pool.Shutdown(50*time.Millisecond))

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("running job did not see context cancellation")
	}

	for i := 0; i < 2; i++ {
		select {
		case err := <-dropped:
			assert.ErrorIs(t, err, ErrRunnerShutdown)
		case <-time.After(time.Second):
			t.Fatal("pending jobs were not dropped")
		}
	}

	select {
	case <-pool.terminated:
	case <-time.After(time.Second):
		t.Fatal("pool did not terminate after forced stop")
	}

	assert.ErrorIs(t, pool.reschedule(namedJob("late"), 0), ErrRunnerShutdown)
}
