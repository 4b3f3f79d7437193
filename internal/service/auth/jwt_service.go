package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack-api/internal/domain"
)

// JWTService defines operations for managing JWT session tokens.
type JWTService interface {
	// GenerateToken creates a signed access token carrying the user's id and role.
	GenerateToken(ctx context.Context, userID uuid.UUID, role domain.Role) (string, error)

	// ValidateToken validates the token string and extracts its claims.
	// Returns ErrExpiredToken, ErrTokenNotYetValid, ErrWrongTokenType or
	// ErrInvalidToken when the token cannot be trusted.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the validated contents of an access token.
type Claims struct {
	UserID    uuid.UUID `json:"uid,omitempty"`
	Role      string    `json:"role,omitempty"`
	TokenType string    `json:"type,omitempty"`

	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}

// Principal converts the claims into the identity used for authorization.
// A token without a role claim is treated as a member.
func (c *Claims) Principal() (domain.Principal, error) {
	if c == nil || c.UserID == uuid.Nil {
		return domain.Principal{}, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return domain.Principal{UserID: c.UserID, Role: role}, nil
}
