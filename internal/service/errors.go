package service

import (
	"errors"
	"fmt"
)

// ErrUserExists is returned when seeding a user whose email is already taken.
var ErrUserExists = errors.New("user already exists")

// ServiceError records which service operation failed.
// The wrapped error keeps its identity, so callers still match on the store,
// domain, and policy sentinels with errors.Is.
type ServiceError struct {
	Service string
	Op      string
	Err     error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s service %s operation failed", e.Service, e.Op)
	}
	return fmt.Sprintf("%s service %s operation failed: %v", e.Service, e.Op, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

func newTaskError(op string, err error) *ServiceError {
	return &ServiceError{Service: "task", Op: op, Err: err}
}

func newUserError(op string, err error) *ServiceError {
	return &ServiceError{Service: "user", Op: op, Err: err}
}
