// Package events provides types and interfaces for observing task submissions.
//
// The task runner emits an Event for every intermediate attempt that does not
// settle its submission and for the final resolution. Intermediate failures are
// never surfaced to the caller of a submission; handlers registered here are the
// place to observe them.
//
// The primary components are:
// - Event: one step in the life of a submission
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
package events
