package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/razikuljoni/crud-express/pkg/httputil"
)

func serve(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/users/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	defer goleak.VerifyNone(t)

	rl := NewRateLimiter(6, 3, time.Minute, discardLogger())
	defer rl.Close()
	h := rl.Middleware(okHandler())

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:5000").Code, "request %d", i+1)
	}

	rec := serve(h, "10.0.0.1:5000")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))
}

func TestRateLimiter_RejectEnvelope(t *testing.T) {
	defer goleak.VerifyNone(t)

	rl := NewRateLimiter(60, 1, time.Minute, discardLogger())
	defer rl.Close()
	h := rl.Middleware(okHandler())

	require.Equal(t, http.StatusOK, serve(h, "10.0.0.9:5000").Code)
	rec := serve(h, "10.0.0.9:5000")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "RATE_LIMITED", resp.Error.Code)
	assert.Equal(t, "Too many requests, please try again later", resp.Error.Message)
}

func TestRateLimiter_RejectedRequestsDoNotConsumeTokens(t *testing.T) {
	defer goleak.VerifyNone(t)

	rl := NewRateLimiter(60, 1, time.Minute, discardLogger())
	defer rl.Close()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := rl.Middleware(okHandler())

	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.2:1").Code)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusTooManyRequests, serve(h, "10.0.0.2:1").Code)
	}

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.2:1").Code)
}

func TestRateLimiter_PerClientBuckets(t *testing.T) {
	defer goleak.VerifyNone(t)

	rl := NewRateLimiter(1, 1, time.Minute, discardLogger())
	defer rl.Close()
	h := rl.Middleware(okHandler())

	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "10.0.0.1:2").Code)
	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.9:1").Code)
}

func TestRateLimiter_SweepEvictsIdleClients(t *testing.T) {
	defer goleak.VerifyNone(t)

	rl := NewRateLimiter(60, 5, time.Minute, discardLogger())
	defer rl.Close()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := rl.Middleware(okHandler())

	serve(h, "10.0.0.1:1")
	now = now.Add(30 * time.Second)
	serve(h, "10.0.0.2:1")
	require.Equal(t, 2, rl.size())

	now = now.Add(45 * time.Second)
	rl.sweep()
	assert.Equal(t, 1, rl.size())
}

func TestRateLimiter_CloseIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	rl := NewRateLimiter(60, 5, 10*time.Millisecond, discardLogger())
	rl.Close()
	rl.Close()
}
