package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/mocks"
	"github.com/phrazzld/tasktrack-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{{"serve"}, {"migrate"}, {"user", "create"}, {"token", "issue"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestMigrateCommand_RejectsUnknownSubcommand(t *testing.T) {
	loaded := false
	orig := loadRuntime
	loadRuntime = func() (*cliEnv, error) {
		loaded = true
		return nil, errors.New("should not be reached")
	}
	t.Cleanup(func() { loadRuntime = orig })

	root := newRootCmd()
	root.SetArgs([]string{"migrate", "sideways"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid argument")
	assert.False(t, loaded)
}

func TestUserCreate_RejectsUnknownRoleBeforeLoadingConfig(t *testing.T) {
	orig := loadRuntime
	loadRuntime = func() (*cliEnv, error) {
		t.Fatal("config must not be loaded for an invalid role")
		return nil, nil
	}
	t.Cleanup(func() { loadRuntime = orig })

	root := newRootCmd()
	root.SetArgs([]string{"user", "create", "--name", "Ada", "--email", "ada@example.com", "--role", "owner"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestIssueToken(t *testing.T) {
	admin, err := domain.NewUser("Ada", "ada@example.com", domain.RoleAdmin, fixedNow)
	require.NoError(t, err)
	users := mocks.NewMockUserStore(admin)

	var gotRole domain.Role
	jwtService := &mocks.MockJWTService{
		GenerateTokenFn: func(_ context.Context, userID uuid.UUID, role domain.Role) (string, error) {
			assert.Equal(t, admin.ID, userID)
			gotRole = role
			return "signed-token", nil
		},
	}

	token, err := issueToken(context.Background(), users, jwtService, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "signed-token", token)
	assert.Equal(t, domain.RoleAdmin, gotRole)

	_, err = issueToken(context.Background(), users, jwtService, uuid.New())
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
