package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validation errors for User.
var (
	ErrEmptyUserID   = errors.New("user ID cannot be empty")
	ErrEmptyUserName = errors.New("user name cannot be empty")
	ErrEmptyEmail    = errors.New("email cannot be empty")
	ErrInvalidEmail  = errors.New("invalid email format")
)

// User is a person who can create and be assigned tasks.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUser creates a validated User with a fresh ID.
func NewUser(name, email string, role Role, now time.Time) (*User, error) {
	user := &User{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Role:      role,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrEmptyUserID)
	}
	if u.Name == "" {
		return NewValidationError("name", "cannot be empty", ErrEmptyUserName)
	}
	if u.Email == "" {
		return NewValidationError("email", "cannot be empty", ErrEmptyEmail)
	}
	if !validEmail(u.Email) {
		return NewValidationError("email", "has invalid format", ErrInvalidEmail)
	}
	if !u.Role.IsValid() {
		return NewValidationError("role", "must be one of member, admin", ErrInvalidRole)
	}
	return nil
}

// Ref returns the name/email projection used when a user is referenced from a task.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}

// validEmail is a shape check only: one '@', non-empty local part, dotted domain.
func validEmail(email string) bool {
	local, host, ok := strings.Cut(email, "@")
	if !ok || local == "" || strings.Contains(host, "@") {
		return false
	}
	dot := strings.LastIndex(host, ".")
	return dot > 0 && dot < len(host)-1
}
