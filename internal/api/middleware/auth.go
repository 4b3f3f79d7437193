package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/tasktrack-api/internal/api/shared"
	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/platform/logger"
	"github.com/phrazzld/tasktrack-api/internal/service/auth"
)

// AuthMiddleware provides JWT authentication for routes.
type AuthMiddleware struct {
	jwtService auth.JWTService
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(jwtService auth.JWTService) *AuthMiddleware {
	if jwtService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("jwtService cannot be nil for AuthMiddleware")
	}
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

// Authenticate validates the bearer token in the Authorization header and
// stores the resulting principal in the request context. Any failure ends
// the request with 401 before the wrapped handler runs.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized,
				"Authorization header required", auth.ErrMissingToken)
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		token = strings.TrimSpace(token)
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized,
				"Invalid authorization format", auth.ErrInvalidToken)
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), token)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, tokenErrorMessage(err), err)
			return
		}

		principal, err := claims.Principal()
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid token", err)
			return
		}

		log.Debug("request authenticated",
			slog.String("user_id", principal.UserID.String()),
			slog.String("role", string(principal.Role)))

		ctx := shared.WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPrincipal extracts the authenticated principal from the request context.
func GetPrincipal(r *http.Request) (domain.Principal, bool) {
	return shared.PrincipalFromContext(r.Context())
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	default:
		return "Invalid token"
	}
}
