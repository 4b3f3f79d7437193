package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack-api/internal/api/shared"
	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/platform/logger"
	"github.com/phrazzld/tasktrack-api/internal/policy"
	"github.com/phrazzld/tasktrack-api/internal/service"
	"github.com/phrazzld/tasktrack-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTaskService is a function-field implementation of service.TaskService.
type mockTaskService struct {
	createFn func(ctx context.Context, p domain.Principal, in service.CreateTaskInput) (*domain.TaskView, error)
	listFn   func(ctx context.Context, p domain.Principal, f store.TaskFilter) ([]*domain.TaskView, error)
	getFn    func(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.TaskView, error)
	updateFn func(ctx context.Context, p domain.Principal, id uuid.UUID, patch domain.TaskPatch) (*domain.TaskView, error)
	deleteFn func(ctx context.Context, p domain.Principal, id uuid.UUID) error
}

func (m *mockTaskService) CreateTask(ctx context.Context, p domain.Principal, in service.CreateTaskInput) (*domain.TaskView, error) {
	return m.createFn(ctx, p, in)
}

func (m *mockTaskService) ListTasks(ctx context.Context, p domain.Principal, f store.TaskFilter) ([]*domain.TaskView, error) {
	return m.listFn(ctx, p, f)
}

func (m *mockTaskService) GetTask(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.TaskView, error) {
	return m.getFn(ctx, p, id)
}

func (m *mockTaskService) UpdateTask(ctx context.Context, p domain.Principal, id uuid.UUID, patch domain.TaskPatch) (*domain.TaskView, error) {
	return m.updateFn(ctx, p, id, patch)
}

func (m *mockTaskService) DeleteTask(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	return m.deleteFn(ctx, p, id)
}

var (
	adminPrincipal  = domain.Principal{UserID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Role: domain.RoleAdmin}
	memberPrincipal = domain.Principal{UserID: uuid.MustParse("22222222-2222-2222-2222-222222222222"), Role: domain.RoleMember}
)

func sampleView(assignee uuid.UUID) *domain.TaskView {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.TaskView{
		Task: domain.Task{
			ID:         uuid.New(),
			Title:      "Write report",
			Status:     domain.TaskStatusTodo,
			Priority:   domain.TaskPriorityMedium,
			CreatedBy:  adminPrincipal.UserID,
			AssignedTo: assignee,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		Creator:  domain.UserRef{ID: adminPrincipal.UserID, Name: "Ada", Email: "ada@example.com"},
		Assignee: domain.UserRef{ID: assignee, Name: "Max", Email: "max@example.com"},
	}
}

func newTestHandler(svc service.TaskService) *TaskHandler {
	log, _ := logger.NewTestLogger()
	return NewTaskHandler(svc, log)
}

// newRequest builds a request carrying principal p (when non-zero) and the
// chi route param id (when non-empty).
func newRequest(method, target, body string, p domain.Principal, id string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := req.Context()
	if p.UserID != uuid.Nil {
		ctx = shared.WithPrincipal(ctx, p)
	}
	if id != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var body shared.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestCreateTask(t *testing.T) {
	assignee := uuid.New()

	tests := []struct {
		name        string
		principal   domain.Principal
		body        string
		serviceErr  error
		wantStatus  int
		wantMessage string
		wantDetail  string
		checkInput  func(t *testing.T, in service.CreateTaskInput)
	}{
		{
			name:       "admin assigns explicitly",
			principal:  adminPrincipal,
			body:       `{"title":"Write report","priority":"high","assignedTo":"` + assignee.String() + `"}`,
			wantStatus: http.StatusCreated,
			checkInput: func(t *testing.T, in service.CreateTaskInput) {
				assert.Equal(t, assignee, in.AssignedTo)
				assert.Equal(t, "Write report", in.Title)
				assert.Equal(t, domain.TaskPriorityHigh, in.Priority)
			},
		},
		{
			name:       "no assignee in payload",
			principal:  memberPrincipal,
			body:       `{"title":"Write report","dueDate":"2025-04-01T00:00:00Z"}`,
			wantStatus: http.StatusCreated,
			checkInput: func(t *testing.T, in service.CreateTaskInput) {
				assert.Equal(t, uuid.Nil, in.AssignedTo)
				require.NotNil(t, in.DueDate)
				assert.Equal(t, 2025, in.DueDate.Year())
			},
		},
		{
			name:        "missing title",
			principal:   adminPrincipal,
			body:        `{"description":"x"}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Error creating task",
			wantDetail:  "title: required field",
		},
		{
			name:        "invalid status",
			principal:   adminPrincipal,
			body:        `{"title":"x","status":"blocked"}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Error creating task",
			wantDetail:  "status: invalid value",
		},
		{
			name:        "malformed assignee",
			principal:   adminPrincipal,
			body:        `{"title":"x","assignedTo":"not-a-uuid"}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Error creating task",
			wantDetail:  "assignedTo: must be a valid id",
		},
		{
			name:        "admin assignee of the wrong type",
			principal:   adminPrincipal,
			body:        `{"title":"x","assignedTo":42}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Error creating task",
			wantDetail:  "assignedTo: must be a valid id",
		},
		{
			name:       "member assignee is ignored whatever its shape",
			principal:  memberPrincipal,
			body:       `{"title":"x","assignedTo":{"id":"U2"}}`,
			wantStatus: http.StatusCreated,
			checkInput: func(t *testing.T, in service.CreateTaskInput) {
				assert.Equal(t, uuid.Nil, in.AssignedTo)
			},
		},
		{
			name:        "malformed json",
			principal:   adminPrincipal,
			body:        `{"title":`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Error creating task",
			wantDetail:  shared.ErrInvalidBody.Error(),
		},
		{
			name:        "domain validation from service",
			principal:   adminPrincipal,
			body:        `{"title":"x"}`,
			serviceErr:  domain.NewValidationError("assignedTo", "is required", domain.ErrEmptyTaskAssignee),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Error creating task",
			wantDetail:  "assignedTo is required",
		},
		{
			name:        "unknown assignee",
			principal:   adminPrincipal,
			body:        `{"title":"x","assignedTo":"` + assignee.String() + `"}`,
			serviceErr:  store.ErrInvalidEntity,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Error creating task",
			wantDetail:  "referenced user does not exist",
		},
		{
			name:        "store failure",
			principal:   adminPrincipal,
			body:        `{"title":"x"}`,
			serviceErr:  errors.New("connection reset"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Error creating task",
		},
		{
			name:        "no principal",
			body:        `{"title":"x"}`,
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Authentication required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockTaskService{
				createFn: func(_ context.Context, p domain.Principal, in service.CreateTaskInput) (*domain.TaskView, error) {
					assert.Equal(t, tt.principal, p)
					if tt.checkInput != nil {
						tt.checkInput(t, in)
					}
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return sampleView(assignee), nil
				},
			}

			rr := httptest.NewRecorder()
			req := newRequest(http.MethodPost, "/api/tasks", tt.body, tt.principal, "")
			newTestHandler(svc).CreateTask(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusCreated {
				var resp TaskResponse
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
				assert.Equal(t, "Max", resp.AssignedTo.Name)
				assert.Equal(t, "max@example.com", resp.AssignedTo.Email)
				assert.Equal(t, "Ada", resp.CreatedBy.Name)
				return
			}
			body := decodeError(t, rr)
			assert.Equal(t, tt.wantMessage, body.Message)
			assert.Equal(t, tt.wantDetail, body.Error)
		})
	}
}

func TestListTasks(t *testing.T) {
	t.Run("passes query filters and returns expanded tasks", func(t *testing.T) {
		svc := &mockTaskService{
			listFn: func(_ context.Context, p domain.Principal, f store.TaskFilter) ([]*domain.TaskView, error) {
				assert.Equal(t, memberPrincipal, p)
				require.NotNil(t, f.Status)
				assert.Equal(t, domain.TaskStatusDone, *f.Status)
				require.NotNil(t, f.Priority)
				assert.Equal(t, domain.TaskPriorityLow, *f.Priority)
				assert.Nil(t, f.AssignedTo)
				return []*domain.TaskView{sampleView(memberPrincipal.UserID), sampleView(memberPrincipal.UserID)}, nil
			},
		}

		rr := httptest.NewRecorder()
		req := newRequest(http.MethodGet, "/api/tasks?status=done&priority=low", "", memberPrincipal, "")
		newTestHandler(svc).ListTasks(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp []TaskResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Len(t, resp, 2)
		assert.Equal(t, memberPrincipal.UserID, resp[0].AssignedTo.ID)
	})

	t.Run("empty list encodes as array", func(t *testing.T) {
		svc := &mockTaskService{
			listFn: func(context.Context, domain.Principal, store.TaskFilter) ([]*domain.TaskView, error) {
				return []*domain.TaskView{}, nil
			},
		}

		rr := httptest.NewRecorder()
		newTestHandler(svc).ListTasks(rr, newRequest(http.MethodGet, "/api/tasks", "", adminPrincipal, ""))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, rr.Body.String())
	})

	t.Run("invalid filter", func(t *testing.T) {
		rr := httptest.NewRecorder()
		newTestHandler(&mockTaskService{}).ListTasks(rr,
			newRequest(http.MethodGet, "/api/tasks?priority=urgent", "", adminPrincipal, ""))

		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Error fetching tasks", decodeError(t, rr).Message)
	})

	t.Run("store failure", func(t *testing.T) {
		svc := &mockTaskService{
			listFn: func(context.Context, domain.Principal, store.TaskFilter) ([]*domain.TaskView, error) {
				return nil, errors.New("timeout")
			},
		}

		rr := httptest.NewRecorder()
		newTestHandler(svc).ListTasks(rr, newRequest(http.MethodGet, "/api/tasks", "", adminPrincipal, ""))

		require.Equal(t, http.StatusInternalServerError, rr.Code)
		body := decodeError(t, rr)
		assert.Equal(t, "Error fetching tasks", body.Message)
		assert.Empty(t, body.Error)
	})
}

func TestUpdateTask(t *testing.T) {
	taskID := uuid.New()

	tests := []struct {
		name        string
		id          string
		body        string
		serviceErr  error
		wantStatus  int
		wantMessage string
		checkPatch  func(t *testing.T, patch domain.TaskPatch)
	}{
		{
			name:       "partial update",
			id:         taskID.String(),
			body:       `{"status":"in_progress"}`,
			wantStatus: http.StatusOK,
			checkPatch: func(t *testing.T, patch domain.TaskPatch) {
				require.NotNil(t, patch.Status)
				assert.Equal(t, domain.TaskStatusInProgress, *patch.Status)
				assert.Nil(t, patch.Title)
				assert.Nil(t, patch.AssignedTo)
				assert.False(t, patch.ClearDueDate)
			},
		},
		{
			name:       "null due date clears it",
			id:         taskID.String(),
			body:       `{"dueDate":null}`,
			wantStatus: http.StatusOK,
			checkPatch: func(t *testing.T, patch domain.TaskPatch) {
				assert.True(t, patch.ClearDueDate)
				assert.Nil(t, patch.DueDate)
			},
		},
		{
			name:        "not found",
			id:          taskID.String(),
			body:        `{"title":"x"}`,
			serviceErr:  store.ErrTaskNotFound,
			wantStatus:  http.StatusNotFound,
			wantMessage: "Task not found",
		},
		{
			name:        "not assignee",
			id:          taskID.String(),
			body:        `{"title":"x"}`,
			serviceErr:  policy.ErrPermissionDenied,
			wantStatus:  http.StatusForbidden,
			wantMessage: "Not authorized to update this task",
		},
		{
			name:        "invalid id",
			id:          "abc",
			body:        `{"title":"x"}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Error updating task",
		},
		{
			name:        "invalid priority",
			id:          taskID.String(),
			body:        `{"priority":"urgent"}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Error updating task",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockTaskService{
				updateFn: func(_ context.Context, _ domain.Principal, id uuid.UUID, patch domain.TaskPatch) (*domain.TaskView, error) {
					assert.Equal(t, taskID, id)
					if tt.checkPatch != nil {
						tt.checkPatch(t, patch)
					}
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return sampleView(memberPrincipal.UserID), nil
				},
			}

			rr := httptest.NewRecorder()
			req := newRequest(http.MethodPatch, "/api/tasks/"+tt.id, tt.body, memberPrincipal, tt.id)
			newTestHandler(svc).UpdateTask(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, decodeError(t, rr).Message)
			}
		})
	}
}

func TestGetAndDeleteTask(t *testing.T) {
	taskID := uuid.New()

	t.Run("get forbidden", func(t *testing.T) {
		svc := &mockTaskService{
			getFn: func(context.Context, domain.Principal, uuid.UUID) (*domain.TaskView, error) {
				return nil, policy.ErrPermissionDenied
			},
		}
		rr := httptest.NewRecorder()
		newTestHandler(svc).GetTask(rr,
			newRequest(http.MethodGet, "/api/tasks/"+taskID.String(), "", memberPrincipal, taskID.String()))

		require.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "Not authorized to view this task", decodeError(t, rr).Message)
	})

	t.Run("get ok", func(t *testing.T) {
		svc := &mockTaskService{
			getFn: func(context.Context, domain.Principal, uuid.UUID) (*domain.TaskView, error) {
				return sampleView(memberPrincipal.UserID), nil
			},
		}
		rr := httptest.NewRecorder()
		newTestHandler(svc).GetTask(rr,
			newRequest(http.MethodGet, "/api/tasks/"+taskID.String(), "", memberPrincipal, taskID.String()))

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	tests := []struct {
		name        string
		serviceErr  error
		wantStatus  int
		wantMessage string
	}{
		{"deleted", nil, http.StatusOK, "Task deleted successfully"},
		{"not found", store.ErrTaskNotFound, http.StatusNotFound, "Task not found"},
		{"forbidden", policy.ErrPermissionDenied, http.StatusForbidden, "Not authorized to delete this task"},
		{"store failure", errors.New("disk full"), http.StatusInternalServerError, "Error deleting task"},
	}

	for _, tt := range tests {
		t.Run("delete "+tt.name, func(t *testing.T) {
			svc := &mockTaskService{
				deleteFn: func(_ context.Context, _ domain.Principal, id uuid.UUID) error {
					assert.Equal(t, taskID, id)
					return tt.serviceErr
				},
			}
			rr := httptest.NewRecorder()
			newTestHandler(svc).DeleteTask(rr,
				newRequest(http.MethodDelete, "/api/tasks/"+taskID.String(), "", memberPrincipal, taskID.String()))

			require.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantMessage, decodeError(t, rr).Message)
		})
	}

	t.Run("delete malformed id", func(t *testing.T) {
		svc := &mockTaskService{
			deleteFn: func(context.Context, domain.Principal, uuid.UUID) error {
				t.Fatal("service must not be called for a malformed id")
				return nil
			},
		}
		rr := httptest.NewRecorder()
		newTestHandler(svc).DeleteTask(rr,
			newRequest(http.MethodDelete, "/api/tasks/abc", "", memberPrincipal, "abc"))

		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Error deleting task", decodeError(t, rr).Message)
	})
}

func TestServerStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	ServerStatus(rr, httptest.NewRequest(http.MethodGet, "/api/test", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Server is running"}`, rr.Body.String())
}

func TestNewTaskHandler_PanicsOnNil(t *testing.T) {
	log, _ := logger.NewTestLogger()
	assert.Panics(t, func() { NewTaskHandler(nil, log) })
	assert.Panics(t, func() { NewTaskHandler(&mockTaskService{}, nil) })
}
