// Package main implements the taskrunner command, which submits a file
// existence check and a port availability probe to the task runner and
// prints both results.
//
// Usage:
//
//	taskrunner [file [port]]
//
// Defaults for the file, the port and the retry policy come from
// configuration (config.yaml or TASKRUNNER_* environment variables).
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/phrazzld/taskrunner/internal/config"
	"github.com/phrazzld/taskrunner/internal/platform/logger"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "taskrunner: %v\n", err)
		os.Exit(1)
	}
}

// run loads configuration, applies the positional overrides and runs both
// probes. Results are written to stdout; logs go to stderr.
func run(args []string, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := applyArgs(&cfg.Probe, args); err != nil {
		return err
	}

	l, err := logger.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("configuration loaded",
		"file_name", cfg.Probe.FileName,
		"port", cfg.Probe.Port,
		"attempts", cfg.Probe.Attempts,
		"delay", cfg.Probe.Delay,
		"worker_count", cfg.Runner.WorkerCount)

	app := newApplication(cfg, l)
	return app.run(stdout)
}

// applyArgs overrides the probe file name and port with positional arguments.
func applyArgs(probe *config.ProbeConfig, args []string) error {
	if len(args) > 0 {
		probe.FileName = args[0]
	}
	if len(args) > 1 {
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", args[1], err)
		}
		probe.Port = port
	}
	return nil
}
