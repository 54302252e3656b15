// Package service contains the application use cases. It coordinates the task
// runner, the task store, the event emitter and the pipeline resource to serve
// the generation API.
//
// Services receive their collaborators through constructor injection and never
// depend on a specific storage or transport implementation. Expected failure
// conditions are returned as sentinel errors; the API layer maps them to HTTP
// status codes.
package service
