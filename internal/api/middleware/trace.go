package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/tasktrack-api/internal/api/shared"
	"github.com/phrazzld/tasktrack-api/internal/platform/logger"
)

// maxTraceIDLength bounds client-supplied trace IDs; longer ones are replaced.
const maxTraceIDLength = 128

// TraceMiddleware adds a trace ID to the request context and a logger
// carrying it. An incoming X-Trace-ID header is reused; otherwise one is
// generated. The ID is echoed in the response header.
// It takes the base logger so handlers downstream log with trace_id.
func TraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			incoming := r.Header.Get(shared.TraceIDHeader)
			if len(incoming) > maxTraceIDLength {
				incoming = ""
			}
			ctx := shared.SetTraceID(r.Context(), incoming)
			traceID := shared.GetTraceID(ctx)

			log := base.With(slog.String("trace_id", traceID))
			ctx = logger.WithLogger(ctx, log)

			w.Header().Set(shared.TraceIDHeader, traceID)

			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
