// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files). It provides type-safe
// access to the runner, probe and logging settings while keeping
// configuration details separate from the task execution logic.
package config
