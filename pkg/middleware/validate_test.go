package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razikuljoni/crud-express/pkg/httputil"
	"github.com/razikuljoni/crud-express/pkg/validator"
)

var renameSchema = &validator.Schema{
	Name: "rename",
	Body: []validator.Field{
		{Name: "username", Kind: validator.String, Required: true, Normalize: []validator.Normalizer{validator.Trim}, Rules: []validator.Rule{
			{Tag: "min=3", Message: "Username must be at least 3 characters"},
		}},
	},
	Params: []validator.Field{
		{Name: "id", Kind: validator.String, Required: true, Rules: []validator.Rule{
			{Tag: "objectid", Message: "Invalid user ID format"},
		}},
	},
}

func validateRouter(t *testing.T, got *validator.Output) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	r.With(Validate(renameSchema)).Patch("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		out, ok := ValidatedFromContext(r.Context())
		require.True(t, ok)
		*got = out
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp
}

func TestValidate_PassesNormalizedInput(t *testing.T) {
	var got validator.Output
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/users/507f1f77bcf86cd799439011",
		strings.NewReader(`{"username":"  alice  ","passwordHash":"forged"}`))

	validateRouter(t, &got).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, map[string]any{"username": "alice"}, got.Body)
	assert.Equal(t, "507f1f77bcf86cd799439011", got.Params["id"])
}

func TestValidate_ReportsAllViolations(t *testing.T) {
	var got validator.Output
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/users/xyz", strings.NewReader(`{"username":"al"}`))

	validateRouter(t, &got).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	assert.Equal(t, "Validation failed", resp.Error.Message)
	assert.Equal(t, []validator.FieldError{
		{Field: "body.username", Message: "Username must be at least 3 characters"},
		{Field: "params.id", Message: "Invalid user ID format"},
	}, resp.Error.Errors)
	assert.Nil(t, got.Body)
}

func TestValidate_EmptyBodyReportsRequired(t *testing.T) {
	var got validator.Output
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/users/507f1f77bcf86cd799439011", nil)

	validateRouter(t, &got).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, []validator.FieldError{{Field: "body.username", Message: "Required"}}, resp.Error.Errors)
}

func TestValidate_MalformedBody(t *testing.T) {
	for name, body := range map[string]string{
		"truncated":   `{"username":`,
		"array":       `["alice"]`,
		"two objects": `{"username":"alice"} {"username":"bob"}`,
		"not json":    `username=alice`,
	} {
		t.Run(name, func(t *testing.T) {
			var got validator.Output
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPatch, "/users/507f1f77bcf86cd799439011", strings.NewReader(body))

			validateRouter(t, &got).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeEnvelope(t, rec)
			assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
			assert.Equal(t, "Invalid request data", resp.Error.Message)
		})
	}
}

func TestValidate_NullBodyIsEmpty(t *testing.T) {
	var got validator.Output
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/users/507f1f77bcf86cd799439011", strings.NewReader(`null`))

	validateRouter(t, &got).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", decodeEnvelope(t, rec).Error.Code)
}
