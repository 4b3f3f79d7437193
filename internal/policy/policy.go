// Package policy holds the authorization rules for tasks.
//
// Every function here is a pure decision over a domain.Principal and task
// data: no I/O, no clock, no logging. Callers are responsible for loading the
// task first so that a missing task is reported before a permission failure.
package policy

import (
	"errors"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/store"
)

// ErrPermissionDenied is returned when a principal may not act on a task.
var ErrPermissionDenied = errors.New("permission denied")

// CreationDefaults resolves the creator and assignee for a new task.
//
// The creator is always the principal. An admin's requested assignee is used
// as-is, including uuid.Nil when none was given. A member always assigns to
// themselves regardless of what was requested.
func CreationDefaults(p domain.Principal, requested uuid.UUID) (createdBy, assignedTo uuid.UUID) {
	if p.IsAdmin() {
		return p.UserID, requested
	}
	return p.UserID, p.UserID
}

// ApplyVisibility restricts a listing filter to what the principal may see.
// Admins see everything the filter selects. Members only ever see tasks
// assigned to them; any requested assignee is overridden.
func ApplyVisibility(p domain.Principal, filter store.TaskFilter) store.TaskFilter {
	if p.IsAdmin() {
		return filter
	}
	self := p.UserID
	filter.AssignedTo = &self
	return filter
}

// AuthorizeMutation reports whether the principal may read-for-write, update,
// or delete the task.
func AuthorizeMutation(p domain.Principal, task *domain.Task) error {
	if task == nil {
		return ErrPermissionDenied
	}
	if p.IsAdmin() || (p.UserID != uuid.Nil && task.AssignedTo == p.UserID) {
		return nil
	}
	return ErrPermissionDenied
}
