package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/razikuljoni/crud-express/pkg/errors"
	"github.com/razikuljoni/crud-express/pkg/httputil"
	"github.com/razikuljoni/crud-express/pkg/logger"
)

type contextKeyType string

const identityKey contextKeyType = "identity"

const (
	msgNoToken      = "No token provided"
	msgInvalidToken = "Invalid or expired token"
)

// Identity is the authenticated caller, taken from a verified bearer token.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	RoleID   int    `json:"roleId"`
}

const authorizationHeader = "Authorization"

// TokenVerifier verifies a bearer token and returns the identity it carries.
type TokenVerifier func(token string) (*Identity, error)

// Auth rejects requests without a valid bearer token and stores the verified
// Identity in the request context. The reason a token was rejected is logged
// at debug level and never returned to the client.
func Auth(verify TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get(authorizationHeader))
			if !ok {
				httputil.WriteError(w, r, apperrors.Unauthorized(msgNoToken), nil)
				return
			}

			identity, err := verify(token)
			if err != nil {
				logger.FromContext(r.Context()).DebugContext(r.Context(), "token rejected",
					slog.String("error", err.Error()),
					slog.String("path", r.URL.Path),
				)
				httputil.WriteError(w, r, apperrors.Unauthorized(msgInvalidToken), nil)
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			ctx = logger.WithUserID(ctx, identity.UserID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", identity.UserID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}
