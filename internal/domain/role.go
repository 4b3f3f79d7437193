package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the coarse permission level attached to a user.
type Role string

// Supported roles. Member is the default.
const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleMember || r == RoleAdmin
}

// ParseRole parses a case-insensitive role name. An empty name yields RoleMember.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleMember, nil
	}
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", NewValidationError("role", "must be one of member, admin", ErrInvalidRole)
	}
	return r, nil
}

// Principal is the authenticated identity behind a request.
// It is derived from the session token and never persisted.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

// IsAdmin reports whether the principal has unrestricted access.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
