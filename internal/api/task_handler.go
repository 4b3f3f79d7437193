package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack-api/internal/api/shared"
	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/platform/logger"
	"github.com/phrazzld/tasktrack-api/internal/service"
)

// taskOp names a task operation for client-facing error messages.
type taskOp struct {
	verb    string // used in "Not authorized to <verb> this task"
	failure string // 400 and 500 message
}

var (
	opCreate = taskOp{verb: "create", failure: "Error creating task"}
	opList   = taskOp{verb: "list", failure: "Error fetching tasks"}
	opGet    = taskOp{verb: "view", failure: "Error fetching task"}
	opUpdate = taskOp{verb: "update", failure: "Error updating task"}
	opDelete = taskOp{verb: "delete", failure: "Error deleting task"}
)

// TaskHandler handles the /api/tasks endpoints.
type TaskHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService service.TaskService, logger *slog.Logger) *TaskHandler {
	if taskService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("taskService cannot be nil for TaskHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		taskService: taskService,
		logger:      logger.With(slog.String("component", "task_handler")),
	}
}

// CreateTask handles POST /api/tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	p, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		h.respondTaskError(w, r, opCreate, err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		h.respondTaskError(w, r, opCreate, err)
		return
	}

	assignee, err := req.requestedAssignee(p)
	if err != nil {
		h.respondTaskError(w, r, opCreate, err)
		return
	}
	in := service.CreateTaskInput{TaskDetails: req.details(), AssignedTo: assignee}

	view, err := h.taskService.CreateTask(r.Context(), p, in)
	if err != nil {
		h.respondTaskError(w, r, opCreate, err)
		return
	}

	log.Debug("task created",
		slog.String("task_id", view.ID.String()),
		slog.String("assigned_to", view.AssignedTo.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, taskToResponse(view))
}

// ListTasks handles GET /api/tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	filter, err := parseTaskFilter(r)
	if err != nil {
		h.respondTaskError(w, r, opList, err)
		return
	}

	views, err := h.taskService.ListTasks(r.Context(), p, filter)
	if err != nil {
		h.respondTaskError(w, r, opList, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, tasksToResponse(views))
}

// GetTask handles GET /api/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndTaskID(w, r, opGet)
	if !ok {
		return
	}

	view, err := h.taskService.GetTask(r.Context(), p, id)
	if err != nil {
		h.respondTaskError(w, r, opGet, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(view))
}

// UpdateTask handles PATCH /api/tasks/{id}.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	p, id, ok := h.principalAndTaskID(w, r, opUpdate)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		h.respondTaskError(w, r, opUpdate, err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		h.respondTaskError(w, r, opUpdate, err)
		return
	}

	patch, err := req.toPatch()
	if err != nil {
		h.respondTaskError(w, r, opUpdate, err)
		return
	}

	view, err := h.taskService.UpdateTask(r.Context(), p, id, patch)
	if err != nil {
		h.respondTaskError(w, r, opUpdate, err)
		return
	}

	log.Debug("task updated", slog.String("task_id", id.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(view))
}

// DeleteTask handles DELETE /api/tasks/{id}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	p, id, ok := h.principalAndTaskID(w, r, opDelete)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(r.Context(), p, id); err != nil {
		h.respondTaskError(w, r, opDelete, err)
		return
	}

	log.Debug("task deleted", slog.String("task_id", id.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, shared.MessageResponse{Message: "Task deleted successfully"})
}

// ServerStatus handles GET /api/test.
func ServerStatus(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, StatusResponse{Message: "Server is running"})
}

func (h *TaskHandler) requirePrincipal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := getPrincipal(r)
	if !ok {
		logger.FromContextOrDefault(r.Context(), h.logger).
			Warn("principal not found or invalid in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return domain.Principal{}, false
	}
	return p, true
}

func (h *TaskHandler) principalAndTaskID(
	w http.ResponseWriter,
	r *http.Request,
	op taskOp,
) (domain.Principal, uuid.UUID, bool) {
	p, ok := h.requirePrincipal(w, r)
	if !ok {
		return domain.Principal{}, uuid.Nil, false
	}

	id, err := getPathUUID(r, "id")
	if err != nil {
		h.respondTaskError(w, r, op, err)
		return domain.Principal{}, uuid.Nil, false
	}
	return p, id, true
}

// respondTaskError picks the client message for err in the context of op
// and writes the response through HandleAPIError.
func (h *TaskHandler) respondTaskError(w http.ResponseWriter, r *http.Request, op taskOp, err error) {
	var message string
	switch MapErrorToStatusCode(err) {
	case http.StatusNotFound:
		message = "Task not found"
	case http.StatusForbidden:
		message = "Not authorized to " + op.verb + " this task"
	case http.StatusBadRequest, http.StatusInternalServerError:
		message = op.failure
	}
	HandleAPIError(w, r, err, message)
}
