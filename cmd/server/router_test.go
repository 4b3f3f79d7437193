package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/phrazzld/tasktrack-api/internal/api"
	"github.com/phrazzld/tasktrack-api/internal/config"
	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/mocks"
	"github.com/phrazzld/tasktrack-api/internal/platform/logger"
	"github.com/phrazzld/tasktrack-api/internal/platform/metrics"
	"github.com/phrazzld/tasktrack-api/internal/service"
	"github.com/phrazzld/tasktrack-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv is the full router over the in-memory store with a real JWT service.
type testEnv struct {
	t       *testing.T
	handler http.Handler
	tasks   *mocks.InMemoryTaskStore
	clock   *clockwork.FakeClock
	tokens  map[uuid.UUID]string
}

func newTestEnv(t *testing.T, users ...*domain.User) *testEnv {
	t.Helper()

	log, _ := logger.NewTestLogger()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	userStore := mocks.NewMockUserStore(users...)
	taskStore := mocks.NewInMemoryTaskStore(userStore)

	jwtService, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            "test-secret-that-is-at-least-32-characters",
		TokenLifetimeMinutes: 60,
	}, clock)
	require.NoError(t, err)

	taskService, err := service.NewTaskService(taskStore, clock, log)
	require.NoError(t, err)

	env := &testEnv{
		t:     t,
		tasks: taskStore,
		clock: clock,
		handler: newRouter(routerDeps{
			logger:      log,
			taskService: taskService,
			jwtService:  jwtService,
			registry:    metrics.NewRegistry(),
		}),
		tokens: make(map[uuid.UUID]string),
	}

	for _, u := range users {
		token, err := jwtService.GenerateToken(context.Background(), u.ID, u.Role)
		require.NoError(t, err)
		env.tokens[u.ID] = token
	}
	return env
}

func (e *testEnv) do(method, path string, as *domain.User, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+e.tokens[as.ID])
	}

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) create(as *domain.User, body map[string]any) api.TaskResponse {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/tasks", as, body)
	require.Equal(e.t, http.StatusCreated, rr.Code, rr.Body.String())
	var task api.TaskResponse
	require.NoError(e.t, json.NewDecoder(rr.Body).Decode(&task))
	// Distinct creation times keep the listing order deterministic.
	e.clock.Advance(time.Second)
	return task
}

func (e *testEnv) list(as *domain.User) []api.TaskResponse {
	e.t.Helper()
	rr := e.do(http.MethodGet, "/api/tasks", as, nil)
	require.Equal(e.t, http.StatusOK, rr.Code, rr.Body.String())
	var tasks []api.TaskResponse
	require.NoError(e.t, json.NewDecoder(rr.Body).Decode(&tasks))
	return tasks
}

func ids(tasks []api.TaskResponse) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func mustUser(t *testing.T, name, email string, role domain.Role) *domain.User {
	t.Helper()
	u, err := domain.NewUser(name, email, role, time.Now())
	require.NoError(t, err)
	return u
}

type cast struct {
	admin, u1, u2 *domain.User
}

func newCast(t *testing.T) cast {
	return cast{
		admin: mustUser(t, "Ada Admin", "ada@example.com", domain.RoleAdmin),
		u1:    mustUser(t, "Uma One", "uma@example.com", domain.RoleMember),
		u2:    mustUser(t, "Ulf Two", "ulf@example.com", domain.RoleMember),
	}
}

func TestScenario_AdminAssignsThenAssigneeUpdatesAndOtherMemberCannotDelete(t *testing.T) {
	c := newCast(t)
	env := newTestEnv(t, c.admin, c.u1, c.u2)

	task := env.create(c.admin, map[string]any{
		"title":      "Prepare quarterly report",
		"assignedTo": c.u1.ID.String(),
	})
	assert.Equal(t, c.u1.ID, task.AssignedTo.ID)
	assert.Equal(t, "Uma One", task.AssignedTo.Name)
	assert.Equal(t, "uma@example.com", task.AssignedTo.Email)
	assert.Equal(t, c.admin.ID, task.CreatedBy.ID)

	assert.Contains(t, ids(env.list(c.u1)), task.ID)
	assert.Contains(t, ids(env.list(c.admin)), task.ID)
	assert.NotContains(t, ids(env.list(c.u2)), task.ID)

	rr := env.do(http.MethodPatch, "/api/tasks/"+task.ID.String(), c.u1, map[string]any{"status": "in_progress"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated api.TaskResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&updated))
	assert.Equal(t, "in_progress", updated.Status)
	assert.Equal(t, "Prepare quarterly report", updated.Title)

	rr = env.do(http.MethodDelete, "/api/tasks/"+task.ID.String(), c.u2, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `"Not authorized to delete this task"`, mustField(t, rr, "message"))

	assert.Contains(t, ids(env.list(c.u1)), task.ID)
}

func TestScenario_MemberAssignmentIsForcedToSelf(t *testing.T) {
	c := newCast(t)
	env := newTestEnv(t, c.admin, c.u1, c.u2)

	task := env.create(c.u1, map[string]any{
		"title":      "Fix the printer",
		"assignedTo": c.u2.ID.String(),
	})
	assert.Equal(t, c.u1.ID, task.AssignedTo.ID)
	assert.Equal(t, c.u1.ID, task.CreatedBy.ID)

	assert.NotContains(t, ids(env.list(c.u2)), task.ID)
}

func TestScenario_MemberAssigneeOfAnyShapeIsIgnored(t *testing.T) {
	c := newCast(t)
	env := newTestEnv(t, c.admin, c.u1, c.u2)

	for _, assignedTo := range []any{"U2", 42, map[string]any{}, c.u2.ID.String()} {
		task := env.create(c.u1, map[string]any{"title": "x", "assignedTo": assignedTo})
		assert.Equal(t, c.u1.ID, task.AssignedTo.ID)
		assert.Equal(t, c.u1.ID, task.CreatedBy.ID)
	}
	assert.Empty(t, env.list(c.u2))
}

func TestScenario_AssigneeHandsTaskToAnotherMember(t *testing.T) {
	c := newCast(t)
	env := newTestEnv(t, c.admin, c.u1, c.u2)
	task := env.create(c.u1, map[string]any{"title": "pass it on"})

	rr := env.do(http.MethodPatch, "/api/tasks/"+task.ID.String(), c.u1,
		map[string]any{"assignedTo": c.u2.ID.String()})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated api.TaskResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&updated))
	assert.Equal(t, c.u2.ID, updated.AssignedTo.ID)
	assert.Equal(t, c.u1.ID, updated.CreatedBy.ID)

	assert.Equal(t, []uuid.UUID{task.ID}, ids(env.list(c.u2)))
	assert.Empty(t, env.list(c.u1))

	// The previous assignee has lost write access.
	rr = env.do(http.MethodDelete, "/api/tasks/"+task.ID.String(), c.u1, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestProperty_CreatedByIsAlwaysThePrincipal(t *testing.T) {
	c := newCast(t)
	env := newTestEnv(t, c.admin, c.u1, c.u2)

	for _, creator := range []*domain.User{c.admin, c.u1} {
		task := env.create(creator, map[string]any{
			"title":      "anything",
			"createdBy":  c.u2.ID.String(),
			"assignedTo": c.u1.ID.String(),
		})
		assert.Equal(t, creator.ID, task.CreatedBy.ID)
	}
}

func TestProperty_ListingVisibility(t *testing.T) {
	c := newCast(t)
	env := newTestEnv(t, c.admin, c.u1, c.u2)

	forU1 := env.create(c.admin, map[string]any{"title": "a", "assignedTo": c.u1.ID.String()})
	forU2 := env.create(c.admin, map[string]any{"title": "b", "assignedTo": c.u2.ID.String()})
	own := env.create(c.u1, map[string]any{"title": "c"})

	assert.Equal(t, []uuid.UUID{own.ID, forU1.ID}, ids(env.list(c.u1)), "newest first, only own")
	assert.Equal(t, []uuid.UUID{forU2.ID}, ids(env.list(c.u2)))
	assert.Equal(t, []uuid.UUID{own.ID, forU2.ID, forU1.ID}, ids(env.list(c.admin)))

	for _, task := range env.list(c.admin) {
		assert.NotEmpty(t, task.CreatedBy.Name)
		assert.NotEmpty(t, task.AssignedTo.Email)
	}
}

func TestProperty_MutationByNonAssigneeIsForbiddenAndLeavesTaskUnchanged(t *testing.T) {
	c := newCast(t)
	env := newTestEnv(t, c.admin, c.u1, c.u2)
	task := env.create(c.admin, map[string]any{"title": "original", "assignedTo": c.u1.ID.String()})

	rr := env.do(http.MethodPatch, "/api/tasks/"+task.ID.String(), c.u2, map[string]any{"title": "hijacked"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `"Not authorized to update this task"`, mustField(t, rr, "message"))

	rr = env.do(http.MethodGet, "/api/tasks/"+task.ID.String(), c.u1, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `"original"`, mustField(t, rr, "title"))

	// Admins may mutate any task.
	rr = env.do(http.MethodPatch, "/api/tasks/"+task.ID.String(), c.admin, map[string]any{"priority": "high"})
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = env.do(http.MethodDelete, "/api/tasks/"+task.ID.String(), c.admin, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `"Task deleted successfully"`, mustField(t, rr, "message"))
	assert.Equal(t, 0, env.tasks.Len())
}

func TestProperty_NotFoundBeforePermission(t *testing.T) {
	c := newCast(t)
	env := newTestEnv(t, c.admin, c.u1, c.u2)
	missing := uuid.New().String()

	for _, as := range []*domain.User{c.admin, c.u2} {
		rr := env.do(http.MethodPatch, "/api/tasks/"+missing, as, map[string]any{"title": "x"})
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.JSONEq(t, `"Task not found"`, mustField(t, rr, "message"))

		rr = env.do(http.MethodDelete, "/api/tasks/"+missing, as, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	}
}

func TestRouter_Authentication(t *testing.T) {
	c := newCast(t)
	env := newTestEnv(t, c.admin)

	rr := env.do(http.MethodGet, "/api/tasks", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Tokens stop working once they expire.
	env.clock.Advance(2 * time.Hour)
	rr = env.do(http.MethodGet, "/api/tasks", c.admin, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `"Token expired"`, mustField(t, rr, "message"))
}

func TestRouter_PublicEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/api/test", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Server is running"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Trace-ID"))

	rr = env.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())

	rr = env.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "tasktrack_http_requests_total")
}

func TestRouter_AdminWithoutAssigneeIsRejected(t *testing.T) {
	c := newCast(t)
	env := newTestEnv(t, c.admin)

	rr := env.do(http.MethodPost, "/api/tasks", c.admin, map[string]any{"title": "unassigned"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `"Error creating task"`, mustField(t, rr, "message"))
	assert.Equal(t, 0, env.tasks.Len())
}

func mustField(t *testing.T, rr *httptest.ResponseRecorder, key string) string {
	t.Helper()
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	raw, ok := body[key]
	require.True(t, ok, "response has no %q field: %s", key, rr.Body.String())
	return string(raw)
}
