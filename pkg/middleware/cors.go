package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

const contentTypeHeader = "Content-Type"

// Header lists mirror what Auth, RequestLogger and RateLimiter read or write.
var (
	corsMethods        = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	corsAllowedHeaders = []string{authorizationHeader, contentTypeHeader, correlationHeader}
	corsExposedHeaders = []string{correlationHeader, retryAfterHeader}
)

// CORSConfig controls which origins may call the API from a browser.
type CORSConfig struct {
	// AllowedOrigins lists exact origins. Empty or containing "*" allows any.
	AllowedOrigins []string
	// MaxAge is how long, in seconds, a preflight result may be cached.
	MaxAge int
}

// DefaultCORSConfig allows any origin.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{AllowedOrigins: []string{"*"}, MaxAge: 3600}
}

// CORS sets the cross-origin headers and answers preflight requests with 204.
// Credentials are never allowed; the token travels in the Authorization header.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	wildcard := len(cfg.AllowedOrigins) == 0 || slices.Contains(cfg.AllowedOrigins, "*")
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 3600
	}

	methods := strings.Join(corsMethods, ", ")
	allowed := strings.Join(corsAllowedHeaders, ", ")
	exposed := strings.Join(corsExposedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			switch origin := r.Header.Get("Origin"); {
			case wildcard:
				h.Set("Access-Control-Allow-Origin", "*")
			case origin != "" && slices.Contains(cfg.AllowedOrigins, origin):
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Expose-Headers", exposed)

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", allowed)
				h.Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
