package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack-api/internal/domain"
)

// TaskFilter narrows a task listing. Nil fields impose no restriction;
// set fields are ANDed together.
type TaskFilter struct {
	AssignedTo *uuid.UUID
	Status     *domain.TaskStatus
	Priority   *domain.TaskPriority
}

// TaskStore defines the interface for task data persistence.
// Every read returns a domain.TaskView with both the creator and the
// assignee expanded to their user references.
type TaskStore interface {
	// Create saves a new task and returns it with references expanded.
	// Returns ErrInvalidEntity if the creator or assignee does not exist.
	Create(ctx context.Context, task *domain.Task) (*domain.TaskView, error)

	// Find returns every task matching the filter, newest first.
	// An empty result is not an error.
	Find(ctx context.Context, filter TaskFilter) ([]*domain.TaskView, error)

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskView, error)

	// Update applies a partial update stamped with updatedAt and returns the
	// stored result. Only fields set in the patch are written.
	// Returns ErrTaskNotFound if the task does not exist, and ErrInvalidEntity
	// if the new assignee does not exist.
	Update(
		ctx context.Context,
		id uuid.UUID,
		patch domain.TaskPatch,
		updatedAt time.Time,
	) (*domain.TaskView, error)

	// Delete removes a task permanently.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}
