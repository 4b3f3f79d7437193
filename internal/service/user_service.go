package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/platform/logger"
	"github.com/phrazzld/tasktrack-api/internal/store"
)

// UserService seeds and looks up users. It backs operator tooling; HTTP
// clients never create users.
type UserService interface {
	// CreateUser adds a user with the given role.
	// Returns ErrUserExists if the email is already registered.
	CreateUser(ctx context.Context, name, email string, role domain.Role) (*domain.User, error)
}

// UserServiceImpl implements the UserService interface
type UserServiceImpl struct {
	users  store.UserStore
	db     *sql.DB
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewUserService creates a new UserService. db is used to run the
// check-then-insert in a single transaction.
func NewUserService(users store.UserStore, db *sql.DB, clock clockwork.Clock, logger *slog.Logger) *UserServiceImpl {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserServiceImpl{
		users:  users,
		db:     db,
		clock:  clock,
		logger: logger.With(slog.String("component", "user_service")),
	}
}

var _ UserService = (*UserServiceImpl)(nil)

// CreateUser implements UserService.CreateUser
func (s *UserServiceImpl) CreateUser(
	ctx context.Context,
	name, email string,
	role domain.Role,
) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := domain.NewUser(name, email, role, s.clock.Now())
	if err != nil {
		return nil, newUserError("create", err)
	}

	err = store.InTransaction(ctx, s.db, "create_user", func(ctx context.Context, tx *sql.Tx) error {
		txUsers := s.users.WithTx(tx)

		_, err := txUsers.GetByEmail(ctx, user.Email)
		switch {
		case err == nil:
			return ErrUserExists
		case !errors.Is(err, store.ErrUserNotFound):
			return err
		}

		if err := txUsers.Create(ctx, user); err != nil {
			if errors.Is(err, store.ErrEmailExists) {
				return ErrUserExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		log.Warn("failed to create user", slog.String("error", err.Error()))
		return nil, newUserError("create", err)
	}

	log.Info("user created",
		slog.String("user_id", user.ID.String()),
		slog.String("role", string(user.Role)))
	return user, nil
}
