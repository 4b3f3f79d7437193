package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/store"
	"github.com/stretchr/testify/mock"
)

// MockTaskStore mocks the store.TaskStore interface
type MockTaskStore struct {
	mock.Mock
}

func (m *MockTaskStore) Create(ctx context.Context, task *domain.Task) (*domain.TaskView, error) {
	args := m.Called(ctx, task)
	if fn, ok := args.Get(0).(func(context.Context, *domain.Task) *domain.TaskView); ok {
		return fn(ctx, task), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaskView), args.Error(1)
}

func (m *MockTaskStore) Find(ctx context.Context, filter store.TaskFilter) ([]*domain.TaskView, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TaskView), args.Error(1)
}

func (m *MockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaskView), args.Error(1)
}

func (m *MockTaskStore) Update(
	ctx context.Context,
	id uuid.UUID,
	patch domain.TaskPatch,
	updatedAt time.Time,
) (*domain.TaskView, error) {
	args := m.Called(ctx, id, patch, updatedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaskView), args.Error(1)
}

func (m *MockTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockUserStore mocks the store.UserStore interface
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStore) WithTx(tx *sql.Tx) store.UserStore {
	m.Called(tx)
	return m
}
