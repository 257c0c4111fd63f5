package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/razikuljoni/crud-express/internal/schema"
	"github.com/razikuljoni/crud-express/internal/service"
	apperrors "github.com/razikuljoni/crud-express/pkg/errors"
	"github.com/razikuljoni/crud-express/pkg/health"
	"github.com/razikuljoni/crud-express/pkg/httputil"
	"github.com/razikuljoni/crud-express/pkg/middleware"
)

// RouterConfig carries the dependencies of NewRouter. Metrics, AuthLimiter
// and Gatherer are optional.
type RouterConfig struct {
	ServiceName string
	Service     *service.UserService
	Verify      middleware.TokenVerifier
	Health      *health.Handler
	Metrics     *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	AuthLimiter *middleware.RateLimiter
	CORS        middleware.CORSConfig
	PprofCIDRs  []string
	Logger      *slog.Logger
}

// NewRouter creates a chi router with all service routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName, "/health", "/metrics", "/debug"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.CORS(cfg.CORS))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, r, apperrors.NotFound("Not found"), logger)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{
			Data:    map[string]string{"status": "ok"},
			Message: "Server is running",
		})
	})

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	middleware.MountDebug(r, cfg.PprofCIDRs, logger)

	users := NewUserHandler(cfg.Service, logger)
	authenticate := middleware.Auth(cfg.Verify)
	limit := func(next http.Handler) http.Handler { return next }
	if cfg.AuthLimiter != nil {
		limit = cfg.AuthLimiter.Middleware
	}

	// Registration and login are public and rate limited per client.
	public := func(r chi.Router) {
		r.With(limit, middleware.Validate(schema.RegisterUser)).Post("/register", users.Register)
		r.With(limit, middleware.Validate(schema.LoginUser)).Post("/login", users.Login)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(ContentTypeJSON)

		r.Route("/users", func(r chi.Router) {
			public(r)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)

				r.Get("/profile", users.Profile)
				r.With(middleware.Validate(schema.ListUsers)).Get("/", users.List)
				r.With(middleware.Validate(schema.GetUserByID)).Get("/{id}", users.GetByID)
				r.With(middleware.Validate(schema.UpdateUser)).Patch("/{id}", users.Update)
				r.With(middleware.Validate(schema.DeleteUser)).Delete("/{id}", users.Delete)
			})
		})

		r.Route("/auth", func(r chi.Router) {
			public(r)
			r.With(authenticate).Get("/whoami", users.WhoAmI)
		})
	})

	return r
}
