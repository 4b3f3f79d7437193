// Package store defines the persistence contracts for users and tasks.
// Implementations live in internal/platform/postgres; an in-memory version
// for tests lives in internal/mocks.
package store
