// Package mocks provides shared test doubles.
//
// MockJWTService and MockUserStore use function fields with simple
// defaults. InMemoryTaskStore is a working store.TaskStore backed by maps,
// used where a test needs real filtering, ordering and reference
// expansion without a database:
//
//	users := mocks.NewMockUserStore()
//	tasks := mocks.NewInMemoryTaskStore(users)
//	svc, _ := service.NewTaskService(tasks, clock, logger)
package mocks
