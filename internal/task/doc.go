// Package task runs retryable, result-bearing units of work on a fixed-size
// worker pool. Each submission gets a retry budget and a constant delay
// between attempts, and is exposed to the caller as a single-assignment
// Handle that settles with the final value or the terminal error.
package task
