package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/platform/logger"
	"github.com/phrazzld/tasktrack-api/internal/policy"
	"github.com/phrazzld/tasktrack-api/internal/store"
)

// CreateTaskInput is the caller-supplied part of a new task.
// AssignedTo is uuid.Nil when the request did not name an assignee.
type CreateTaskInput struct {
	domain.TaskDetails
	AssignedTo uuid.UUID
}

// TaskService provides the task operations exposed over HTTP.
// Every method acts on behalf of the given principal.
type TaskService interface {
	// CreateTask creates a task, applying the creation defaults for the principal's role.
	CreateTask(ctx context.Context, p domain.Principal, in CreateTaskInput) (*domain.TaskView, error)

	// ListTasks returns the tasks visible to the principal that match filter, newest first.
	ListTasks(ctx context.Context, p domain.Principal, filter store.TaskFilter) ([]*domain.TaskView, error)

	// GetTask returns a single task. Not-found is reported before permission.
	GetTask(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.TaskView, error)

	// UpdateTask applies a partial update. Not-found is reported before permission.
	UpdateTask(ctx context.Context, p domain.Principal, id uuid.UUID, patch domain.TaskPatch) (*domain.TaskView, error)

	// DeleteTask removes a task. Not-found is reported before permission.
	DeleteTask(ctx context.Context, p domain.Principal, id uuid.UUID) error
}

type taskServiceImpl struct {
	tasks  store.TaskStore
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewTaskService creates a TaskService backed by tasks.
// It returns an error if the store is nil. A nil clock means the real clock.
func NewTaskService(tasks store.TaskStore, clock clockwork.Clock, logger *slog.Logger) (TaskService, error) {
	if tasks == nil {
		return nil, domain.NewValidationError("tasks", "cannot be nil", domain.ErrValidation)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		tasks:  tasks,
		clock:  clock,
		logger: logger.With(slog.String("component", "task_service")),
	}, nil
}

// CreateTask implements TaskService.CreateTask
func (s *taskServiceImpl) CreateTask(
	ctx context.Context,
	p domain.Principal,
	in CreateTaskInput,
) (*domain.TaskView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	createdBy, assignedTo := policy.CreationDefaults(p, in.AssignedTo)

	task, err := domain.NewTask(in.TaskDetails, createdBy, assignedTo, s.clock.Now())
	if err != nil {
		log.Debug("task failed validation",
			slog.String("error", err.Error()),
			slog.String("user_id", p.UserID.String()))
		return nil, newTaskError("create", err)
	}

	view, err := s.tasks.Create(ctx, task)
	if err != nil {
		return nil, newTaskError("create", err)
	}

	log.Info("task created",
		slog.String("task_id", view.ID.String()),
		slog.String("user_id", p.UserID.String()),
		slog.String("assigned_to", view.AssignedTo.String()))
	return view, nil
}

// ListTasks implements TaskService.ListTasks
func (s *taskServiceImpl) ListTasks(
	ctx context.Context,
	p domain.Principal,
	filter store.TaskFilter,
) ([]*domain.TaskView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	visible := policy.ApplyVisibility(p, filter)

	tasks, err := s.tasks.Find(ctx, visible)
	if err != nil {
		return nil, newTaskError("list", err)
	}

	log.Debug("listed tasks",
		slog.String("user_id", p.UserID.String()),
		slog.String("role", string(p.Role)),
		slog.Int("count", len(tasks)))
	return tasks, nil
}

// GetTask implements TaskService.GetTask
func (s *taskServiceImpl) GetTask(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.TaskView, error) {
	view, err := s.loadAuthorized(ctx, p, id)
	if err != nil {
		return nil, newTaskError("get", err)
	}
	return view, nil
}

// UpdateTask implements TaskService.UpdateTask
func (s *taskServiceImpl) UpdateTask(
	ctx context.Context,
	p domain.Principal,
	id uuid.UUID,
	patch domain.TaskPatch,
) (*domain.TaskView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.loadAuthorized(ctx, p, id); err != nil {
		return nil, newTaskError("update", err)
	}

	if err := patch.Validate(); err != nil {
		log.Debug("task patch failed validation",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, newTaskError("update", err)
	}

	view, err := s.tasks.Update(ctx, id, patch, s.clock.Now())
	if err != nil {
		return nil, newTaskError("update", err)
	}

	log.Info("task updated",
		slog.String("task_id", id.String()),
		slog.String("user_id", p.UserID.String()))
	return view, nil
}

// DeleteTask implements TaskService.DeleteTask
func (s *taskServiceImpl) DeleteTask(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.loadAuthorized(ctx, p, id); err != nil {
		return newTaskError("delete", err)
	}

	if err := s.tasks.Delete(ctx, id); err != nil {
		return newTaskError("delete", err)
	}

	log.Info("task deleted",
		slog.String("task_id", id.String()),
		slog.String("user_id", p.UserID.String()))
	return nil
}

// loadAuthorized fetches the task and then checks the principal against it.
// The order matters: an unknown id is ErrTaskNotFound for everyone.
func (s *taskServiceImpl) loadAuthorized(
	ctx context.Context,
	p domain.Principal,
	id uuid.UUID,
) (*domain.TaskView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	view, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			log.Debug("task not found", slog.String("task_id", id.String()))
		}
		return nil, err
	}

	if err := policy.AuthorizeMutation(p, &view.Task); err != nil {
		log.Warn("task access denied",
			slog.String("task_id", id.String()),
			slog.String("user_id", p.UserID.String()),
			slog.String("role", string(p.Role)))
		return nil, err
	}

	return view, nil
}
