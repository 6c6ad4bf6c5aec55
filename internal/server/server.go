package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dt-demo-gcp/authserver/config"
	"github.com/dt-demo-gcp/authserver/internal/db"
	"github.com/dt-demo-gcp/authserver/internal/handlers"
	"github.com/dt-demo-gcp/authserver/internal/mq"
	"github.com/dt-demo-gcp/authserver/internal/observability"
	"github.com/dt-demo-gcp/authserver/internal/services"
	"github.com/dt-demo-gcp/authserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Options carries process-level values that do not come from the environment.
type Options struct {
	Version string
	Logger  *slog.Logger
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	db         *sql.DB
	events     *mq.EventPublisher
	logger     *slog.Logger
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// A missing secret is reported per request as a configuration error so
	// that the health endpoints stay up while the deployment is fixed.
	if !cfg.Auth.HasSecret() {
		logger.Warn("JWT_SECRET_KEY is not set; token endpoints will fail")
	}

	backend, err := mq.NewBackend(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to init events backend: %w", err)
	}
	events := mq.NewEventPublisher(backend, cfg.Events.Channel, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	userRepo := store.NewUserRepository(dbConn)
	tokens := services.NewTokenService(cfg.Auth.SecretKey, cfg.Auth.Issuer)
	verifier, err := services.NewCredentialVerifier(
		userRepo,
		services.NewBcryptHasher(cfg.Auth.BcryptCost),
		tokens,
		services.WithLogger(logger),
		services.WithMetrics(metrics),
		services.WithHashWorkers(cfg.Auth.HashWorkers),
	)
	if err != nil {
		_ = events.Close()
		_ = dbConn.Close()
		return nil, err
	}

	authHandler := handlers.NewAuthHandler(verifier, tokens, handlers.AuthHandlerOptions{
		LoginPath:    cfg.Auth.LoginPath,
		CookieSecure: cfg.Auth.CookieSecure,
		Events:       events,
		Metrics:      metrics,
		Logger:       logger,
	})
	router := NewRouter(authHandler, metrics, cfg.Auth.TokenURL, opts.Version)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		db:         dbConn,
		events:     events,
		logger:     logger,
	}, nil
}

// NewRouter builds the route table around an already wired auth handler.
func NewRouter(auth *handlers.AuthHandler, metrics *observability.Metrics, tokenURL, version string) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/", handlers.Root(version, tokenURL))
	router.Get("/healthz", handlers.Healthz)
	router.Get("/health", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())
	handlers.AuthRouter(router, auth)
	return router
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("auth server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the broker and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.events != nil {
		if cerr := s.events.Close(); cerr != nil {
			s.logger.Warn("failed to close events backend", "error", cerr)
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
