package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

// Possible task status values.
const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// IsValid reports whether s is a known status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	default:
		return false
	}
}

// TaskPriority ranks how urgent a task is.
type TaskPriority string

// Possible task priority values.
const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// IsValid reports whether p is a known priority.
func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}

// Field limits.
const (
	MaxTaskTitleLength       = 200
	MaxTaskDescriptionLength = 5000
)

// Validation errors for Task.
var (
	ErrEmptyTaskID         = errors.New("task ID cannot be empty")
	ErrEmptyTaskTitle      = errors.New("task title cannot be empty")
	ErrTaskTitleTooLong    = errors.New("task title is too long")
	ErrTaskDescTooLong     = errors.New("task description is too long")
	ErrInvalidTaskStatus   = errors.New("invalid task status")
	ErrInvalidTaskPriority = errors.New("invalid task priority")
	ErrEmptyTaskCreator    = errors.New("task creator cannot be empty")
	ErrEmptyTaskAssignee   = errors.New("task assignee cannot be empty")
)

// Task is the primary persisted entity. AssignedTo decides who, besides an
// admin, may see and change it.
type Task struct {
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	CreatedBy   uuid.UUID    `json:"createdBy"`
	AssignedTo  uuid.UUID    `json:"assignedTo"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// TaskDetails holds the descriptive fields a caller supplies on creation.
// Empty Status and Priority fall back to todo and medium.
type TaskDetails struct {
	Title       string
	Description string
	Status      TaskStatus
	Priority    TaskPriority
	DueDate     *time.Time
}

// NewTask builds a validated Task. createdBy and assignedTo are expected to
// have already been resolved by the authorization policy.
func NewTask(details TaskDetails, createdBy, assignedTo uuid.UUID, now time.Time) (*Task, error) {
	task := &Task{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(details.Title),
		Description: details.Description,
		Status:      details.Status,
		Priority:    details.Priority,
		DueDate:     normalizeDueDate(details.DueDate),
		CreatedBy:   createdBy,
		AssignedTo:  assignedTo,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	if task.Status == "" {
		task.Status = TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = TaskPriorityMedium
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}
	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrEmptyTaskID)
	}
	if err := validateTitle(t.Title); err != nil {
		return err
	}
	if err := validateDescription(t.Description); err != nil {
		return err
	}
	if !t.Status.IsValid() {
		return NewValidationError("status", "must be one of todo, in_progress, done", ErrInvalidTaskStatus)
	}
	if !t.Priority.IsValid() {
		return NewValidationError("priority", "must be one of low, medium, high", ErrInvalidTaskPriority)
	}
	if t.CreatedBy == uuid.Nil {
		return NewValidationError("createdBy", "cannot be empty", ErrEmptyTaskCreator)
	}
	if t.AssignedTo == uuid.Nil {
		return NewValidationError("assignedTo", "is required", ErrEmptyTaskAssignee)
	}
	return nil
}

// TaskPatch is a partial update. Nil fields are left untouched.
// ClearDueDate removes the due date and takes precedence over DueDate.
type TaskPatch struct {
	Title        *string
	Description  *string
	Status       *TaskStatus
	Priority     *TaskPriority
	DueDate      *time.Time
	ClearDueDate bool
	AssignedTo   *uuid.UUID
}

// IsEmpty reports whether the patch would change nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.DueDate == nil && !p.ClearDueDate && p.AssignedTo == nil
}

// Validate checks every field the patch sets.
func (p *TaskPatch) Validate() error {
	if p.Title != nil {
		trimmed := strings.TrimSpace(*p.Title)
		p.Title = &trimmed
		if err := validateTitle(trimmed); err != nil {
			return err
		}
	}
	if p.Description != nil {
		if err := validateDescription(*p.Description); err != nil {
			return err
		}
	}
	if p.Status != nil && !p.Status.IsValid() {
		return NewValidationError("status", "must be one of todo, in_progress, done", ErrInvalidTaskStatus)
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		return NewValidationError("priority", "must be one of low, medium, high", ErrInvalidTaskPriority)
	}
	if p.AssignedTo != nil && *p.AssignedTo == uuid.Nil {
		return NewValidationError("assignedTo", "cannot be empty", ErrEmptyTaskAssignee)
	}
	p.DueDate = normalizeDueDate(p.DueDate)
	return nil
}

// Apply returns a copy of t with the patch applied and UpdatedAt set to now.
// The patch is assumed to be validated.
func (t Task) Apply(p TaskPatch, now time.Time) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
	if p.ClearDueDate {
		t.DueDate = nil
	}
	if p.AssignedTo != nil {
		t.AssignedTo = *p.AssignedTo
	}
	t.UpdatedAt = now.UTC()
	return t
}

// UserRef is the name/email projection of a user referenced by a task.
type UserRef struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// TaskView is a task with its creator and assignee expanded.
type TaskView struct {
	Task
	Creator  UserRef
	Assignee UserRef
}

func validateTitle(title string) error {
	if title == "" {
		return NewValidationError("title", "cannot be empty", ErrEmptyTaskTitle)
	}
	if utf8.RuneCountInString(title) > MaxTaskTitleLength {
		return NewValidationError("title", "is too long", ErrTaskTitleTooLong)
	}
	return nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxTaskDescriptionLength {
		return NewValidationError("description", "is too long", ErrTaskDescTooLong)
	}
	return nil
}

func normalizeDueDate(due *time.Time) *time.Time {
	if due == nil {
		return nil
	}
	utc := due.UTC()
	return &utc
}
