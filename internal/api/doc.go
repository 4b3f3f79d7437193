// Package api serves the task endpoints under /api.
//
// Handlers decode and validate JSON payloads, take the authenticated
// principal from the request context and hand off to service.TaskService.
// Errors are mapped to status codes in one place (HandleAPIError); the task
// handlers only choose the client-facing message for each operation.
package api
