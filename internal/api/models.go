package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack-api/internal/domain"
)

// CreateTaskRequest defines the payload for POST /api/tasks.
// AssignedTo is kept raw: it is only read for admins, so a member may send
// any value there without failing the request.
type CreateTaskRequest struct {
	Title       string          `json:"title"       validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Status      string          `json:"status"      validate:"omitempty,oneof=todo in_progress done"`
	Priority    string          `json:"priority"    validate:"omitempty,oneof=low medium high"`
	DueDate     *time.Time      `json:"dueDate"`
	AssignedTo  json.RawMessage `json:"assignedTo"`
}

// UpdateTaskRequest defines the payload for PATCH /api/tasks/{id}.
// Absent fields are left unchanged; "dueDate": null clears the due date.
type UpdateTaskRequest struct {
	Title       *string      `json:"title"       validate:"omitempty,max=200"`
	Description *string      `json:"description" validate:"omitempty,max=5000"`
	Status      *string      `json:"status"      validate:"omitempty,oneof=todo in_progress done"`
	Priority    *string      `json:"priority"    validate:"omitempty,oneof=low medium high"`
	DueDate     OptionalTime `json:"dueDate"`
	AssignedTo  *string      `json:"assignedTo"  validate:"omitempty,uuid"`
}

// OptionalTime distinguishes an absent JSON field from an explicit null.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

// UnmarshalJSON implements json.Unmarshaler. It is only called when the key is present.
func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

// UserRefResponse is an expanded user reference.
type UserRefResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// TaskResponse is the JSON shape of a task with both references expanded.
type TaskResponse struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	Priority    string          `json:"priority"`
	DueDate     *time.Time      `json:"dueDate"`
	CreatedBy   UserRefResponse `json:"createdBy"`
	AssignedTo  UserRefResponse `json:"assignedTo"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// StatusResponse is the body of GET /api/test.
type StatusResponse struct {
	Message string `json:"message"`
}

func toUserRefResponse(ref domain.UserRef) UserRefResponse {
	return UserRefResponse{ID: ref.ID, Name: ref.Name, Email: ref.Email}
}

func taskToResponse(view *domain.TaskView) TaskResponse {
	return TaskResponse{
		ID:          view.ID,
		Title:       view.Title,
		Description: view.Description,
		Status:      string(view.Status),
		Priority:    string(view.Priority),
		DueDate:     view.DueDate,
		CreatedBy:   toUserRefResponse(view.Creator),
		AssignedTo:  toUserRefResponse(view.Assignee),
		CreatedAt:   view.CreatedAt,
		UpdatedAt:   view.UpdatedAt,
	}
}

func tasksToResponse(views []*domain.TaskView) []TaskResponse {
	out := make([]TaskResponse, 0, len(views))
	for _, v := range views {
		out = append(out, taskToResponse(v))
	}
	return out
}

// toPatch converts the request into a domain patch. Validation of the
// values happens in the domain layer.
func (req UpdateTaskRequest) toPatch() (domain.TaskPatch, error) {
	patch := domain.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Status != nil {
		s := domain.TaskStatus(*req.Status)
		patch.Status = &s
	}
	if req.Priority != nil {
		p := domain.TaskPriority(*req.Priority)
		patch.Priority = &p
	}
	if req.DueDate.Set {
		if req.DueDate.Value == nil {
			patch.ClearDueDate = true
		} else {
			patch.DueDate = req.DueDate.Value
		}
	}
	if req.AssignedTo != nil {
		id, err := uuid.Parse(*req.AssignedTo)
		if err != nil {
			return domain.TaskPatch{}, domain.NewValidationError("assignedTo", "has invalid format", domain.ErrInvalidID)
		}
		patch.AssignedTo = &id
	}
	return patch, nil
}

// requestedAssignee returns the assignee an admin asked for. Members always
// get uuid.Nil since creation assigns them to themselves anyway. An absent,
// null or empty value is uuid.Nil as well.
func (req CreateTaskRequest) requestedAssignee(p domain.Principal) (uuid.UUID, error) {
	if !p.IsAdmin() || len(req.AssignedTo) == 0 || bytes.Equal(req.AssignedTo, []byte("null")) {
		return uuid.Nil, nil
	}

	var raw string
	if err := json.Unmarshal(req.AssignedTo, &raw); err != nil {
		return uuid.Nil, domain.NewValidationError("assignedTo", "has invalid format", domain.ErrInvalidID)
	}
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError("assignedTo", "has invalid format", domain.ErrInvalidID)
	}
	return id, nil
}

func (req CreateTaskRequest) details() domain.TaskDetails {
	return domain.TaskDetails{
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.TaskStatus(req.Status),
		Priority:    domain.TaskPriority(req.Priority),
		DueDate:     req.DueDate,
	}
}
