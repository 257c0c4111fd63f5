package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoStore(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := httptest.NewRecorder()
		NoStore(okHandler()).ServeHTTP(rec, httptest.NewRequest(method, "/api/users/profile", nil))

		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"), method)
		assert.Equal(t, "no-cache", rec.Header().Get("Pragma"), method)
	}
}
