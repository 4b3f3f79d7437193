// Package service contains the task and user use cases.
//
// TaskService composes the authorization policy with a store.TaskStore: it
// loads a task before authorizing, so a missing task is always reported as
// not found rather than forbidden. UserService exists for operator seeding;
// there is no credential handling here.
package service
