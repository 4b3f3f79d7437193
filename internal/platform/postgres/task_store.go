package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/platform/logger"
	"github.com/phrazzld/tasktrack-api/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
//
// Reads join the users table twice so every returned task carries the
// creator's and assignee's name and email.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// It accepts a database connection or transaction managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// taskViewSelect projects a task row aliased as t together with its expanded
// creator (c) and assignee (a). The FROM clause is supplied by the caller.
const taskViewSelect = `
	SELECT t.id, t.title, t.description, t.status, t.priority, t.due_date,
	       t.created_by, t.assigned_to, t.created_at, t.updated_at,
	       c.name, c.email, a.name, a.email
`

const taskViewJoins = `
	JOIN users c ON c.id = t.created_by
	JOIN users a ON a.id = t.assigned_to
`

// Create implements store.TaskStore.Create
// Returns store.ErrInvalidEntity if the creator or assignee doesn't exist.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) (*domain.TaskView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return nil, err
	}

	query := `
		WITH t AS (
			INSERT INTO tasks (id, title, description, status, priority, due_date,
			                   created_by, assigned_to, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING *
		)` + taskViewSelect + `FROM t` + taskViewJoins

	view, err := scanTaskView(s.db.QueryRowContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		string(task.Priority),
		nullTime(task.DueDate),
		task.CreatedBy,
		task.AssignedTo,
		task.CreatedAt,
		task.UpdatedAt,
	))
	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("foreign key violation during task creation",
				slog.String("task_id", task.ID.String()),
				slog.String("assigned_to", task.AssignedTo.String()),
				slog.String("created_by", task.CreatedBy.String()))
			return nil, fmt.Errorf("%w: assignee or creator does not exist", store.ErrInvalidEntity)
		}
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return nil, store.NewStoreError("task", "create", "failed to insert task", MapError(err, nil))
	}

	log.Info("task created successfully",
		slog.String("task_id", view.ID.String()),
		slog.String("created_by", view.CreatedBy.String()),
		slog.String("assigned_to", view.AssignedTo.String()))
	return view, nil
}

// Find implements store.TaskStore.Find
// Results are ordered newest first.
func (s *PostgresTaskStore) Find(ctx context.Context, filter store.TaskFilter) ([]*domain.TaskView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		conditions []string
		args       []any
	)
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		conditions = append(conditions, fmt.Sprintf("t.assigned_to = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("t.status = $%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, string(*filter.Priority))
		conditions = append(conditions, fmt.Sprintf("t.priority = $%d", len(args)))
	}

	query := taskViewSelect + `FROM tasks t` + taskViewJoins
	if len(conditions) > 0 {
		query += "WHERE " + strings.Join(conditions, " AND ") + "\n"
	}
	query += "ORDER BY t.created_at DESC, t.id"

	log.Debug("finding tasks", slog.Int("conditions", len(conditions)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks", slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "find", "failed to query tasks", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.TaskView, 0)
	for rows.Next() {
		view, err := scanTaskView(rows)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, store.NewStoreError("task", "find", "failed to scan task", err)
		}
		tasks = append(tasks, view)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows", slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "find", "failed to read tasks", err)
	}

	log.Debug("tasks found", slog.Int("count", len(tasks)))
	return tasks, nil
}

// GetByID implements store.TaskStore.GetByID
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	log.Debug("retrieving task by ID", slog.String("task_id", id.String()))

	query := taskViewSelect + `FROM tasks t` + taskViewJoins + `WHERE t.id = $1`
	view, err := scanTaskView(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, store.NewStoreError("task", "get", "failed to query task", err)
	}
	return view, nil
}

// Update implements store.TaskStore.Update
// Unset patch fields keep their stored value. Concurrent updates are
// last-write-wins per column.
func (s *PostgresTaskStore) Update(
	ctx context.Context,
	id uuid.UUID,
	patch domain.TaskPatch,
	updatedAt time.Time,
) (*domain.TaskView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		WITH t AS (
			UPDATE tasks SET
				title       = COALESCE($2, title),
				description = COALESCE($3, description),
				status      = COALESCE($4, status),
				priority    = COALESCE($5, priority),
				due_date    = CASE WHEN $6 THEN NULL ELSE COALESCE($7, due_date) END,
				assigned_to = COALESCE($8, assigned_to),
				updated_at  = $9
			WHERE id = $1
			RETURNING *
		)` + taskViewSelect + `FROM t` + taskViewJoins

	var assignee uuid.NullUUID
	if patch.AssignedTo != nil {
		assignee = uuid.NullUUID{UUID: *patch.AssignedTo, Valid: true}
	}

	view, err := scanTaskView(s.db.QueryRowContext(ctx, query,
		id,
		nullString(patch.Title),
		nullString(patch.Description),
		nullString((*string)(patch.Status)),
		nullString((*string)(patch.Priority)),
		patch.ClearDueDate,
		nullTime(patch.DueDate),
		assignee,
		updatedAt.UTC(),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found for update", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		if IsForeignKeyViolation(err) {
			log.Warn("foreign key violation during task update",
				slog.String("task_id", id.String()))
			return nil, fmt.Errorf("%w: assignee does not exist", store.ErrInvalidEntity)
		}
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, store.NewStoreError("task", "update", "failed to update task", MapError(err, store.ErrTaskNotFound))
	}

	log.Info("task updated successfully", slog.String("task_id", id.String()))
	return view, nil
}

// Delete implements store.TaskStore.Delete
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return store.NewStoreError("task", "delete", "failed to delete task", err)
	}

	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			log.Debug("task not found for deletion", slog.String("task_id", id.String()))
			return err
		}
		log.Error("failed to confirm task deletion",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return store.NewStoreError("task", "delete", "failed to confirm deletion", err)
	}

	log.Info("task deleted successfully", slog.String("task_id", id.String()))
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTaskView(row rowScanner) (*domain.TaskView, error) {
	var (
		view     domain.TaskView
		status   string
		priority string
		dueDate  sql.NullTime
	)
	if err := row.Scan(
		&view.ID,
		&view.Title,
		&view.Description,
		&status,
		&priority,
		&dueDate,
		&view.CreatedBy,
		&view.AssignedTo,
		&view.CreatedAt,
		&view.UpdatedAt,
		&view.Creator.Name,
		&view.Creator.Email,
		&view.Assignee.Name,
		&view.Assignee.Email,
	); err != nil {
		return nil, err
	}

	view.Status = domain.TaskStatus(status)
	view.Priority = domain.TaskPriority(priority)
	if dueDate.Valid {
		due := dueDate.Time.UTC()
		view.DueDate = &due
	}
	view.CreatedAt = view.CreatedAt.UTC()
	view.UpdatedAt = view.UpdatedAt.UTC()
	view.Creator.ID = view.CreatedBy
	view.Assignee.ID = view.AssignedTo
	return &view, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
