package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack-api/internal/api/shared"
	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/store"
)

// getPrincipal returns the authenticated principal placed in the request
// context by the auth middleware.
func getPrincipal(r *http.Request) (domain.Principal, bool) {
	p, ok := shared.PrincipalFromContext(r.Context())
	if !ok || p.UserID == uuid.Nil {
		return domain.Principal{}, false
	}
	return p, true
}

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}

	return id, nil
}

// parseTaskFilter reads the optional status and priority query parameters.
// Visibility is applied later by the service and can only narrow the result.
func parseTaskFilter(r *http.Request) (store.TaskFilter, error) {
	var filter store.TaskFilter
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status := domain.TaskStatus(raw)
		if !status.IsValid() {
			return store.TaskFilter{}, domain.NewValidationError("status", "must be one of todo, in_progress, done", domain.ErrInvalidTaskStatus)
		}
		filter.Status = &status
	}

	if raw := strings.TrimSpace(q.Get("priority")); raw != "" {
		priority := domain.TaskPriority(raw)
		if !priority.IsValid() {
			return store.TaskFilter{}, domain.NewValidationError("priority", "must be one of low, medium, high", domain.ErrInvalidTaskPriority)
		}
		filter.Priority = &priority
	}

	return filter, nil
}
