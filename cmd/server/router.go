package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phrazzld/tasktrack-api/internal/api"
	apiMiddleware "github.com/phrazzld/tasktrack-api/internal/api/middleware"
	"github.com/phrazzld/tasktrack-api/internal/platform/metrics"
	"github.com/phrazzld/tasktrack-api/internal/service"
	"github.com/phrazzld/tasktrack-api/internal/service/auth"
	"github.com/prometheus/client_golang/prometheus"
)

// routerDeps are the collaborators the HTTP surface is built from.
type routerDeps struct {
	logger         *slog.Logger
	taskService    service.TaskService
	jwtService     auth.JWTService
	registry       *prometheus.Registry
	rateLimiter    *apiMiddleware.RateLimiter
	allowedOrigins []string
}

// newRouter creates the chi router with all routes and middleware.
func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.TraceMiddleware(d.logger))
	r.Use(middleware.Recoverer)
	if d.registry != nil {
		r.Use(metrics.NewHTTPMetrics(d.registry).Middleware)
	}
	r.Use(cors.Handler(corsOptions(d.allowedOrigins)))

	taskHandler := api.NewTaskHandler(d.taskService, d.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(d.jwtService)

	r.Route("/api", func(r chi.Router) {
		if d.rateLimiter != nil {
			r.Use(d.rateLimiter.Middleware)
		}

		r.Get("/test", api.ServerStatus)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/tasks", taskHandler.CreateTask)
			r.Get("/tasks", taskHandler.ListTasks)
			r.Get("/tasks/{id}", taskHandler.GetTask)
			r.Patch("/tasks/{id}", taskHandler.UpdateTask)
			r.Delete("/tasks/{id}", taskHandler.DeleteTask)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			d.logger.Error("failed to write health check response", slog.String("error", err.Error()))
		}
	})

	if d.registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.registry))
	}

	return r
}

func corsOptions(allowedOrigins []string) cors.Options {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Trace-ID"},
		ExposedHeaders: []string{"X-Trace-ID"},
		MaxAge:         300,
	}
}
