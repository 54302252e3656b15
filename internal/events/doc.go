// Package events provides a small in-process event bus.
//
// Services emit events without knowing which handlers will process them. The
// generation service emits SubmissionAccepted for every accepted request; the
// project state handler listens for it and saves the request as the current
// project.
//
// The primary components are:
// - Event: a typed notification with a JSON payload
// - EventHandler: interface for components that can handle events
// - EventEmitter: interface for components that can emit events
// - Bus: the in-process EventEmitter, routing events by type
package events
