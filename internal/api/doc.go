// Package api handles incoming HTTP requests, request decoding and response
// formatting. It adapts HTTP to the generation service: handlers decode the
// request, call the service and map service errors to status codes in one
// place (MapErrorToStatusCode).
package api
