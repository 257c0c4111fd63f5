package middleware

import (
	"log/slog"
	"net/http"

	"github.com/razikuljoni/crud-express/pkg/logger"
)

// RequestLogger stores a request-scoped logger in context, enriched with
// correlation_id, trace_id and span_id, and user_id when an Identity is
// already present. Handlers retrieve it with logger.FromContext.
//
// Mount after RequestLogging and Tracing. Auth adds user_id itself on the
// routes it protects.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id, ok := IdentityFromContext(ctx); ok {
				ctx = logger.WithUserID(ctx, id.UserID)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
