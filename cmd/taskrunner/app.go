package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/taskrunner/internal/config"
	"github.com/phrazzld/taskrunner/internal/events"
	"github.com/phrazzld/taskrunner/internal/probe"
	"github.com/phrazzld/taskrunner/internal/task"
)

// application holds the driver's dependencies.
type application struct {
	config *config.Config
	logger *slog.Logger

	// Event system
	eventEmitter *events.InMemoryEventEmitter

	// Task handling
	taskRunner *task.TaskRunner
}

// newApplication wires the runner and its event emitter. The runner is not
// started until run is called.
func newApplication(cfg *config.Config, logger *slog.Logger) *application {
	app := &application{
		config: cfg,
		logger: logger,
	}

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(task.NewEventLogHandler(logger))

	app.taskRunner = task.NewTaskRunner(task.TaskRunnerConfig{
		WorkerCount: cfg.Runner.WorkerCount,
		QueueSize:   cfg.Runner.QueueSize,
	}, logger)
	app.taskRunner.SetEventEmitter(app.eventEmitter)

	return app
}

// run submits both probes, waits for their results, prints them and shuts
// the runner down.
func (app *application) run(stdout io.Writer) error {
	app.taskRunner.Start()
	defer app.shutdown()

	probeCfg := app.config.Probe

	fileTask := probe.NewFileExistsTask(probeCfg.FileName)
	portTask, err := probe.NewPortAvailableTask(probeCfg.Port)
	if err != nil {
		return fmt.Errorf("failed to create port probe: %w", err)
	}

	fileHandle, err := task.Submit[bool](app.taskRunner, fileTask, probeCfg.Attempts, probeCfg.Delay)
	if err != nil {
		return fmt.Errorf("failed to submit file probe: %w", err)
	}
	portHandle, err := task.Submit[bool](app.taskRunner, portTask, probeCfg.Attempts, probeCfg.Delay)
	if err != nil {
		return fmt.Errorf("failed to submit port probe: %w", err)
	}

	var fileExists, portAvailable bool
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		var err error
		fileExists, err = fileHandle.Get(ctx)
		if err != nil {
			return fmt.Errorf("file probe failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		portAvailable, err = portHandle.Get(ctx)
		if err != nil {
			return fmt.Errorf("port probe failed: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "File '%s' exists: %t\n", probeCfg.FileName, fileExists)
	fmt.Fprintf(stdout, "Port %d is available: %t\n", probeCfg.Port, portAvailable)
	return nil
}

func (app *application) shutdown() {
	timeout := app.config.Runner.ShutdownTimeout
	if !app.taskRunner.Shutdown(timeout) {
		app.logger.Warn("task runner was forcibly stopped", "timeout", timeout)
		return
	}
	app.logger.Info("task runner stopped")
}
