package domain

import (
	"net/http"

	apperrors "github.com/razikuljoni/crud-express/pkg/errors"
)

// Errors raised by the identity service and the user directories. They are
// compared with errors.Is and carry their own HTTP mapping.
var (
	ErrDuplicateUsername  = apperrors.New("DUPLICATE_USERNAME", "Username already exists", http.StatusConflict, apperrors.ErrAlreadyExists)
	ErrDuplicateEmail     = apperrors.New("DUPLICATE_EMAIL", "Email already exists", http.StatusConflict, apperrors.ErrAlreadyExists)
	ErrInvalidCredentials = apperrors.New("INVALID_CREDENTIALS", "Invalid credentials", http.StatusUnauthorized, apperrors.ErrUnauthorized)
	ErrUserNotFound       = apperrors.NotFound("User not found")
)
