package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Runner RunnerConfig `mapstructure:"runner" validate:"required"`
	Probe  ProbeConfig  `mapstructure:"probe" validate:"required"`
	Log    LogConfig    `mapstructure:"log" validate:"required"`
}

// RunnerConfig contains the settings for the task runner and its worker pool.
type RunnerConfig struct {
	WorkerCount     int           `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize       int           `mapstructure:"queue_size" validate:"required,gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// ProbeConfig contains the inputs and retry policy for the sample probes
// submitted by the command-line driver.
type ProbeConfig struct {
	FileName string        `mapstructure:"file_name" validate:"required"`
	Port     int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	Attempts int           `mapstructure:"attempts" validate:"min=1,max=5"`
	Delay    time.Duration `mapstructure:"delay" validate:"min=1ms,max=5s"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}
