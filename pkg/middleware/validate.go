package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/razikuljoni/crud-express/pkg/errors"
	"github.com/razikuljoni/crud-express/pkg/httputil"
	"github.com/razikuljoni/crud-express/pkg/logger"
	"github.com/razikuljoni/crud-express/pkg/validator"
)

const validatedKey contextKeyType = "validated"

// maxBodyBytes bounds request bodies read for validation.
const maxBodyBytes = 1 << 20

// Validate evaluates the request against schema before next runs. On
// success the normalized values are stored in the context for
// ValidatedFromContext; on failure next is not called and every violation
// is returned in a 400 envelope.
func Validate(schema *validator.Schema) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := readBody(w, r, len(schema.Body) > 0)
			if err != nil {
				logger.FromContext(r.Context()).WarnContext(r.Context(), "validation error",
					slog.String("schema", schema.Name),
					slog.String("error", err.Error()),
				)
				httputil.WriteError(w, r, apperrors.InvalidInput("Invalid request data"), nil)
				return
			}

			out, err := schema.Validate(validator.Input{
				Body:   body,
				Query:  r.URL.Query(),
				Params: urlParams(r),
			})
			if err != nil {
				var valErr *validator.ValidationError
				if errors.As(err, &valErr) {
					logger.FromContext(r.Context()).WarnContext(r.Context(), "validation failed",
						slog.String("schema", schema.Name),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.Any("errors", valErr.Errors),
					)
				}
				httputil.WriteValidationError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), validatedKey, out)))
		})
	}
}

// ValidatedFromContext returns the normalized input stored by Validate.
func ValidatedFromContext(ctx context.Context) (validator.Output, bool) {
	out, ok := ctx.Value(validatedKey).(validator.Output)
	return out, ok
}

// readBody decodes a JSON object body. An empty body is an empty object;
// anything that is not a single JSON object is an error. Bodies are only
// read when the schema declares body fields.
func readBody(w http.ResponseWriter, r *http.Request, wanted bool) (map[string]any, error) {
	body := map[string]any{}
	if !wanted || r.Body == nil || r.Body == http.NoBody {
		return body, nil
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	if body == nil {
		// A literal null decodes without error.
		body = map[string]any{}
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON object")
	}
	return body, nil
}

func urlParams(r *http.Request) map[string]string {
	params := map[string]string{}
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return params
	}
	for i, key := range rctx.URLParams.Keys {
		if key == "*" || i >= len(rctx.URLParams.Values) {
			continue
		}
		params[key] = rctx.URLParams.Values[i]
	}
	return params
}
