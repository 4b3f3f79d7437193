package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/phrazzld/tasktrack-api/internal/config"
	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/platform/logger"
	"github.com/phrazzld/tasktrack-api/internal/platform/postgres"
	"github.com/phrazzld/tasktrack-api/internal/service"
	"github.com/phrazzld/tasktrack-api/internal/service/auth"
	"github.com/spf13/cobra"
)

// cliEnv bundles what every subcommand needs after startup.
type cliEnv struct {
	cfg    *config.Config
	logger *slog.Logger
}

// loadRuntime is swapped in tests.
var loadRuntime = func() (*cliEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Debug("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.Bool("jwt_secret_present", cfg.Auth.JWTSecret != ""))

	return &cliEnv{cfg: cfg, logger: log}, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tasktrack",
		Short:        "Task tracking API with admin/member access control",
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newUserCmd(),
		newTokenCmd(),
	)
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := setupAppDatabase(ctx, rt.cfg.Database, rt.logger)
			if err != nil {
				return err
			}

			app, err := newApplication(rt.cfg, rt.logger, db, clockwork.NewRealClock())
			if err != nil {
				_ = db.Close()
				return err
			}
			return app.Run(ctx)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|reset|status|version]",
		Short:     "Run database migrations",
		Long:      "Run goose migrations embedded in the binary. Defaults to up.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: postgres.MigrationCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}

			rt, err := loadRuntime()
			if err != nil {
				return err
			}

			db, err := setupAppDatabase(cmd.Context(), rt.cfg.Database, rt.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			return postgres.RunMigrations(cmd.Context(), db, command, rt.logger)
		},
	}
}

func newUserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var name, email, role string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user that tasks can be assigned to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsedRole, err := domain.ParseRole(role)
			if err != nil {
				return err
			}

			rt, err := loadRuntime()
			if err != nil {
				return err
			}

			db, err := setupAppDatabase(cmd.Context(), rt.cfg.Database, rt.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			users := service.NewUserService(
				postgres.NewPostgresUserStore(db, rt.logger), db, clockwork.NewRealClock(), rt.logger)

			user, err := users.CreateUser(cmd.Context(), name, email, parsedRole)
			if err != nil {
				return err
			}
			return writeJSON(cmd, user)
		},
	}
	createCmd.Flags().StringVar(&name, "name", "", "display name")
	createCmd.Flags().StringVar(&email, "email", "", "email address (unique)")
	createCmd.Flags().StringVar(&role, "role", string(domain.RoleMember), "member or admin")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("email")

	userCmd.AddCommand(createCmd)
	return userCmd
}

func newTokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage access tokens",
	}

	var userID string
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Mint an access token for an existing user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user-id: %w", err)
			}

			rt, err := loadRuntime()
			if err != nil {
				return err
			}

			db, err := setupAppDatabase(cmd.Context(), rt.cfg.Database, rt.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			jwtService, err := auth.NewJWTService(rt.cfg.Auth, clockwork.NewRealClock())
			if err != nil {
				return err
			}

			token, err := issueToken(cmd.Context(), postgres.NewPostgresUserStore(db, rt.logger), jwtService, id)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	issueCmd.Flags().StringVar(&userID, "user-id", "", "id of the user the token is for")
	_ = issueCmd.MarkFlagRequired("user-id")

	tokenCmd.AddCommand(issueCmd)
	return tokenCmd
}

// userLookup is the part of store.UserStore issueToken needs.
type userLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// issueToken signs a token carrying the stored role of user id.
func issueToken(ctx context.Context, users userLookup, jwtService auth.JWTService, id uuid.UUID) (string, error) {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	token, err := jwtService.GenerateToken(ctx, user.ID, user.Role)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
