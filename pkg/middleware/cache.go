package middleware

import "net/http"

// NoStore marks every response as uncacheable. API responses carry tokens and
// personal data, so neither browsers nor shared proxies may keep them.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Cache-Control", "no-store")
		h.Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}
