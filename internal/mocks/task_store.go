package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/store"
)

// InMemoryTaskStore is a map-backed store.TaskStore. Creator and assignee
// must exist in the user store, matching the foreign keys of the real
// schema, and reads expand both references.
type InMemoryTaskStore struct {
	users *MockUserStore

	// Err, when set, is returned by every method.
	Err error

	mu    sync.RWMutex
	tasks map[uuid.UUID]domain.Task
}

var _ store.TaskStore = (*InMemoryTaskStore)(nil)

// NewInMemoryTaskStore creates an empty task store resolving references through users.
func NewInMemoryTaskStore(users *MockUserStore) *InMemoryTaskStore {
	if users == nil {
		users = NewMockUserStore()
	}
	return &InMemoryTaskStore{
		users: users,
		tasks: make(map[uuid.UUID]domain.Task),
	}
}

// Create implements store.TaskStore.
func (s *InMemoryTaskStore) Create(ctx context.Context, task *domain.Task) (*domain.TaskView, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if err := task.Validate(); err != nil {
		return nil, store.ErrInvalidEntity
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return nil, store.ErrDuplicate
	}
	view, ok := s.expand(*task)
	if !ok {
		return nil, store.ErrInvalidEntity
	}
	s.tasks[task.ID] = *task
	return view, nil
}

// Find implements store.TaskStore.
func (s *InMemoryTaskStore) Find(ctx context.Context, filter store.TaskFilter) ([]*domain.TaskView, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	views := make([]*domain.TaskView, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !matches(t, filter) {
			continue
		}
		if view, ok := s.expand(t); ok {
			views = append(views, view)
		}
	}
	sort.Slice(views, func(i, j int) bool {
		if !views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].CreatedAt.After(views[j].CreatedAt)
		}
		return views[i].ID.String() < views[j].ID.String()
	})
	return views, nil
}

// GetByID implements store.TaskStore.
func (s *InMemoryTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskView, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	view, ok := s.expand(t)
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return view, nil
}

// Update implements store.TaskStore.
func (s *InMemoryTaskStore) Update(
	ctx context.Context,
	id uuid.UUID,
	patch domain.TaskPatch,
	updatedAt time.Time,
) (*domain.TaskView, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	updated := t.Apply(patch, updatedAt)
	view, ok := s.expand(updated)
	if !ok {
		return nil, store.ErrInvalidEntity
	}
	s.tasks[id] = updated
	return view, nil
}

// Delete implements store.TaskStore.
func (s *InMemoryTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

// Len returns the number of stored tasks.
func (s *InMemoryTaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *InMemoryTaskStore) check(ctx context.Context) error {
	if s.Err != nil {
		return s.Err
	}
	return ctx.Err()
}

// expand joins t with its creator and assignee. It reports false when
// either reference is missing.
func (s *InMemoryTaskStore) expand(t domain.Task) (*domain.TaskView, bool) {
	creator, ok := s.users.ref(t.CreatedBy)
	if !ok {
		return nil, false
	}
	assignee, ok := s.users.ref(t.AssignedTo)
	if !ok {
		return nil, false
	}
	if t.DueDate != nil {
		due := *t.DueDate
		t.DueDate = &due
	}
	return &domain.TaskView{Task: t, Creator: creator, Assignee: assignee}, true
}

func matches(t domain.Task, f store.TaskFilter) bool {
	if f.AssignedTo != nil && t.AssignedTo != *f.AssignedTo {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	return true
}
