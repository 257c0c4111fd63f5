package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/razikuljoni/crud-express/pkg/errors"
	"github.com/razikuljoni/crud-express/pkg/logger"
	"github.com/razikuljoni/crud-express/pkg/pagination"
	"github.com/razikuljoni/crud-express/pkg/validator"
)

// Response is the JSON response envelope.
type Response struct {
	Data       any              `json:"data,omitempty"`
	Message    string           `json:"message,omitempty"`
	Pagination *pagination.Meta `json:"pagination,omitempty"`
	Error      *ErrorResponse   `json:"error,omitempty"`
}

// ErrorResponse represents an error in the response envelope.
type ErrorResponse struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Errors    []validator.FieldError `json:"errors,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteErrorMessage writes an error envelope with an explicit code and message.
func WriteErrorMessage(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	WriteJSON(w, status, Response{
		Error: &ErrorResponse{
			Code:      code,
			Message:   message,
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		},
	})
}

// WriteError writes an error envelope derived from err. AppErrors keep their
// code, message and status; sentinel errors map to generic messages; anything
// else is logged and returned as a 500 without detail. The request-scoped
// logger from context is preferred over fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:      "VALIDATION_FAILED",
				Message:   "Validation failed",
				Errors:    valErr.Errors,
				RequestID: requestID,
			},
		})
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			logInternal(l, r, err)
		}
		WriteJSON(w, appErr.Status, Response{
			Error: &ErrorResponse{Code: appErr.Code, Message: appErr.Message, RequestID: requestID},
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	var code, message string

	switch status {
	case http.StatusNotFound:
		code, message = "NOT_FOUND", "Not found"
	case http.StatusConflict:
		code, message = "ALREADY_EXISTS", "Resource already exists"
	case http.StatusBadRequest:
		code, message = "INVALID_INPUT", "Invalid request data"
	case http.StatusUnauthorized:
		code, message = "UNAUTHORIZED", "Unauthorized"
	case http.StatusForbidden:
		code, message = "FORBIDDEN", "Forbidden"
	case http.StatusTooManyRequests:
		code, message = "RATE_LIMITED", "Too many requests"
	default:
		status, code, message = http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
		logInternal(l, r, err)
	}

	WriteJSON(w, status, Response{
		Error: &ErrorResponse{Code: code, Message: message, RequestID: requestID},
	})
}

func logInternal(l *slog.Logger, r *http.Request, err error) {
	l.ErrorContext(r.Context(), "internal error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
}

// WriteValidationError writes a 400 envelope listing every field error. Any
// other error is reported as invalid request data.
func WriteValidationError(w http.ResponseWriter, r *http.Request, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteError(w, r, valErr, nil)
		return
	}
	WriteError(w, r, apperrors.InvalidInput("Invalid request data"), nil)
}
