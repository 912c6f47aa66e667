// Package probe provides sample tasks for the task runner that check local
// system conditions: whether a file exists and whether a TCP port can be bound.
//
// Both tasks latch completion: once the condition has been observed, IsComplete
// keeps reporting true and the runner stops retrying. The completion flag is
// atomic so a task value may be inspected while a submission is running it.
package probe
