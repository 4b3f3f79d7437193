package mocks

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/store"
)

// MockUserStore implements store.UserStore for testing.
// Without function fields it behaves like a small in-memory table keyed by ID.
type MockUserStore struct {
	CreateFn     func(ctx context.Context, user *domain.User) error
	GetByEmailFn func(ctx context.Context, email string) (*domain.User, error)
	GetByIDFn    func(ctx context.Context, id uuid.UUID) (*domain.User, error)

	CreateError error

	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User
}

var _ store.UserStore = (*MockUserStore)(nil)

// NewMockUserStore creates a new mock store seeded with users.
func NewMockUserStore(users ...*domain.User) *MockUserStore {
	m := &MockUserStore{users: make(map[uuid.UUID]*domain.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

// Create implements the UserStore interface
func (m *MockUserStore) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, user)
	}
	if m.CreateError != nil {
		return m.CreateError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return store.ErrEmailExists
		}
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

// GetByEmail implements the UserStore interface
func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.GetByEmailFn != nil {
		return m.GetByEmailFn(ctx, email)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			found := *u
			return &found, nil
		}
	}
	return nil, store.ErrUserNotFound
}

// GetByID implements the UserStore interface
func (m *MockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	found := *u
	return &found, nil
}

// WithTx returns the same mock; transactions are not modelled.
func (m *MockUserStore) WithTx(_ *sql.Tx) store.UserStore {
	return m
}

// ref returns the reference for id, mirroring the users JOIN.
func (m *MockUserStore) ref(id uuid.UUID) (domain.UserRef, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return domain.UserRef{}, false
	}
	return u.Ref(), true
}
