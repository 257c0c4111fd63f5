package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/razikuljoni/crud-express/pkg/httputil"
	"github.com/razikuljoni/crud-express/pkg/logger"
)

// Recovery turns a handler panic into a logged 500 response. http.ErrAbortHandler
// is re-panicked so the server can abort the connection as intended.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				l.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("correlation_id", logger.CorrelationIDFromContext(r.Context())),
				)
				httputil.WriteErrorMessage(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
