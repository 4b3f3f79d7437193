package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/tasktrack-api/internal/api/shared"
	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/policy"
	"github.com/phrazzld/tasktrack-api/internal/service"
	"github.com/phrazzld/tasktrack-api/internal/service/auth"
	"github.com/phrazzld/tasktrack-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes.
// Anything not recognized is a 500.
func MapErrorToStatusCode(err error) int {
	var validationErrs validator.ValidationErrors

	switch {
	case err == nil:
		return http.StatusOK

	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, policy.ErrPermissionDenied):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrTaskNotFound),
		errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrEmailExists),
		errors.Is(err, service.ErrUserExists):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, shared.ErrEmptyBody),
		errors.Is(err, shared.ErrInvalidBody),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for errors that are not
// tied to a specific task operation.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, auth.ErrMissingToken):
		return "Authentication required"
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token"
	case errors.Is(err, domain.ErrUnauthorized):
		return "Authentication required"
	case errors.Is(err, policy.ErrPermissionDenied):
		return "Not authorized"
	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidID):
		return "Validation error"
	default:
		return "An unexpected error occurred"
	}
}

// ValidationDetail returns a client-safe description of why a request was
// rejected, for the "error" field of a 400 response. It returns "" for
// errors that are not validation failures.
func ValidationDetail(err error) string {
	var (
		vErr           *domain.ValidationError
		validationErrs validator.ValidationErrors
	)

	switch {
	case errors.As(err, &vErr):
		return vErr.Error()
	case errors.As(err, &validationErrs):
		return SanitizeValidationError(validationErrs)
	case errors.Is(err, store.ErrInvalidEntity):
		return "referenced user does not exist"
	case errors.Is(err, shared.ErrEmptyBody):
		return shared.ErrEmptyBody.Error()
	case errors.Is(err, shared.ErrInvalidBody):
		return shared.ErrInvalidBody.Error()
	default:
		return ""
	}
}

// SanitizeValidationError turns validator errors into a short message that
// names the fields without echoing submitted values.
func SanitizeValidationError(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "Validation error"
	}
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", lowerFirst(fe.Field()), getValidationTagMessage(fe.Tag())))
	}
	return strings.Join(msgs, "; ")
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "uuid":
		return "must be a valid id"
	default:
		return "validation failed"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// HandleAPIError writes an error response for err using the central mapping.
// message overrides the safe default when non-empty.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}

	var opts []shared.ResponseOption
	if status == http.StatusBadRequest {
		if detail := ValidationDetail(err); detail != "" {
			opts = append(opts, shared.WithErrorDetail(detail))
		}
	}

	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
