package http

import (
	"log/slog"
	"net/http"

	"github.com/razikuljoni/crud-express/internal/domain"
	"github.com/razikuljoni/crud-express/internal/service"
	apperrors "github.com/razikuljoni/crud-express/pkg/errors"
	"github.com/razikuljoni/crud-express/pkg/httputil"
	"github.com/razikuljoni/crud-express/pkg/middleware"
	"github.com/razikuljoni/crud-express/pkg/validator"
)

var errNoIdentity = apperrors.Unauthorized("No token provided")

// UserHandler handles HTTP requests for the user endpoints. Request input
// is validated and normalized by middleware.Validate before a handler runs.
type UserHandler struct {
	service *service.UserService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// LoginResponse is the data of a successful login.
type LoginResponse struct {
	Token string            `json:"token"`
	User  domain.PublicUser `json:"user"`
}

// bindBody copies the validated body into dst.
func bindBody(r *http.Request, dst any) error {
	out, _ := middleware.ValidatedFromContext(r.Context())
	return validator.Bind(out.Body, dst)
}

func bindQuery(r *http.Request, dst any) error {
	out, _ := middleware.ValidatedFromContext(r.Context())
	return validator.Bind(out.Query, dst)
}

func idParam(r *http.Request) string {
	out, _ := middleware.ValidatedFromContext(r.Context())
	id, _ := out.Params["id"].(string)
	return id
}

// Register handles POST /register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := bindBody(r, &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := h.service.Register(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{
		Data:    user.Public(),
		Message: "User registered successfully",
	})
}

// Login handles POST /login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := bindBody(r, &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	res, err := h.service.Login(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data:    LoginResponse{Token: res.Token, User: res.User.Public()},
		Message: "Login successful",
	})
}

// Profile handles GET /profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, errNoIdentity, h.logger)
		return
	}

	user, err := h.service.GetByID(r.Context(), identity.UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: user.Public()})
}

// WhoAmI handles GET /whoami. It answers from the token alone.
func (h *UserHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, errNoIdentity, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: identity})
}

// List handles GET /
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	var in service.ListInput
	if err := bindQuery(r, &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	users, meta, err := h.service.List(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data:       domain.PublicUsers(users),
		Pagination: &meta,
	})
}

// GetByID handles GET /{id}
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetByID(r.Context(), idParam(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: user.Public()})
}

// Update handles PATCH /{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var upd domain.UserUpdate
	if err := bindBody(r, &upd); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := h.service.Update(r.Context(), idParam(r), upd)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data:    user.Public(),
		Message: "User updated successfully",
	})
}

// Delete handles DELETE /{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), idParam(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Message: "User deleted successfully"})
}
