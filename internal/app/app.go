package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/razikuljoni/crud-express/internal/auth"
	"github.com/razikuljoni/crud-express/internal/config"
	"github.com/razikuljoni/crud-express/internal/event"
	handler "github.com/razikuljoni/crud-express/internal/handler/http"
	"github.com/razikuljoni/crud-express/internal/repository"
	"github.com/razikuljoni/crud-express/internal/service"
	"github.com/razikuljoni/crud-express/pkg/health"
	pkgkafka "github.com/razikuljoni/crud-express/pkg/kafka"
	"github.com/razikuljoni/crud-express/pkg/middleware"
	"github.com/razikuljoni/crud-express/pkg/tracing"
)

const (
	// ServiceName identifies the service in logs, traces and events.
	ServiceName = "crud-express"
	// Version is stamped into trace resources.
	Version = "0.1.0"

	metricsNamespace = "crud_express"
	rateLimiterTTL   = 10 * time.Minute
)

// App wires together all dependencies and runs the identity service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	directory      *Directory
	producer       *pkgkafka.Producer
	limiter        *middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(ServiceName, Version))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	directory, err := OpenDirectory(ctx, cfg, reg, logger)
	if err != nil {
		return nil, err
	}
	if err := directory.Migrate(ctx); err != nil {
		_ = directory.Close(context.Background())
		return nil, err
	}

	a := &App{
		cfg:            cfg,
		logger:         logger,
		directory:      directory,
		tracerShutdown: tracerShutdown,
	}

	// Kafka is optional; without brokers no events are published.
	var events service.EventPublisher
	if brokers := nonEmpty(cfg.KafkaBrokers); len(brokers) > 0 {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(brokers), reg, logger)
		events = event.NewProducer(a.producer, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", brokers))
	}

	userService, tokens, err := NewUserService(cfg, directory.Users, events, reg, logger)
	if err != nil {
		_ = a.close()
		return nil, err
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical(directory.Driver(), directory.Ping)
	if a.producer != nil {
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
	}

	a.limiter = middleware.NewRateLimiter(cfg.AuthRateLimitPerMinute, cfg.AuthRateLimitBurst, rateLimiterTTL, logger)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(handler.RouterConfig{
		ServiceName: ServiceName,
		Service:     userService,
		Verify:      tokens.VerifyIdentity,
		Health:      healthHandler,
		Metrics:     middleware.NewHTTPMetrics(reg, metricsNamespace),
		Gatherer:    reg,
		AuthLimiter: a.limiter,
		CORS:        cors,
		PprofCIDRs:  cfg.PprofAllowedCIDRs,
		Logger:      logger,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// NewUserService builds the identity service on top of users with the
// configured hasher and token service.
func NewUserService(
	cfg *config.Config,
	users repository.UserRepository,
	events service.EventPublisher,
	reg prometheus.Registerer,
	logger *slog.Logger,
) (*service.UserService, *auth.TokenService, error) {
	hasher, err := auth.NewHasher(auth.Algorithm(cfg.PasswordHashAlgorithm), cfg.BcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("create password hasher: %w", err)
	}
	tokens := auth.NewTokenService(cfg.JWTSecret)
	return service.NewUserService(users, hasher, tokens, events, reg, logger), tokens, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("directory", a.directory.Driver()),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: the HTTP server
// drains in-flight requests, then the tracer flushes their spans, then the
// Kafka producer, rate limiter and directory connection are closed.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.close(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// close releases the producer, limiter and directory.
func (a *App) close() error {
	var errs []error

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.limiter != nil {
		a.limiter.Close()
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.directory.Close(closeCtx); err != nil {
		a.logger.Error("directory close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func nonEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
