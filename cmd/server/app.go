package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"
	apiMiddleware "github.com/phrazzld/tasktrack-api/internal/api/middleware"
	"github.com/phrazzld/tasktrack-api/internal/config"
	"github.com/phrazzld/tasktrack-api/internal/platform/metrics"
	"github.com/phrazzld/tasktrack-api/internal/platform/postgres"
	"github.com/phrazzld/tasktrack-api/internal/service"
	"github.com/phrazzld/tasktrack-api/internal/service/auth"
	"github.com/phrazzld/tasktrack-api/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskStore store.TaskStore

	jwtService  auth.JWTService
	taskService service.TaskService

	registry    *prometheus.Registry
	rateLimiter *apiMiddleware.RateLimiter
}

// newApplication wires stores, services and HTTP plumbing around an open
// database handle. The handle is owned by the application from here on.
func newApplication(
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
	clock clockwork.Clock,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		slog.Int("token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes))

	app.taskStore = postgres.NewPostgresTaskStore(db, logger)

	app.taskService, err = service.NewTaskService(app.taskStore, clock, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	app.registry = metrics.NewRegistry()
	metrics.RegisterDBStats(app.registry, db)

	app.rateLimiter = apiMiddleware.NewRateLimiter(cfg.RateLimit, clock)

	logger.Info("application initialized successfully")
	return app, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down and releases resources.
func (app *application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if app.rateLimiter.Enabled() {
		go app.rateLimiter.Run(ctx)
	}

	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (app *application) setupRouter() http.Handler {
	return newRouter(routerDeps{
		logger:         app.logger,
		taskService:    app.taskService,
		jwtService:     app.jwtService,
		registry:       app.registry,
		rateLimiter:    app.rateLimiter,
		allowedOrigins: app.config.CORS.AllowedOrigins,
	})
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}
	app.logger.Info("application shutdown completed")
}
