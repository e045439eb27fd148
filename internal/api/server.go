package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labelforge-io/labelforge/internal/api/middleware"
	"github.com/labelforge-io/labelforge/internal/catalog"
	"github.com/labelforge-io/labelforge/internal/ingest"
	"github.com/labelforge-io/labelforge/internal/jobs"
	"github.com/labelforge-io/labelforge/internal/labels"
	"github.com/labelforge-io/labelforge/internal/matching"
	"github.com/labelforge-io/labelforge/internal/session"
	"github.com/labelforge-io/labelforge/internal/tabular"
)

// Dependencies are the component handles the server operates on. They are
// constructed once in cmd/labelforge and injected; the server owns no
// component construction of its own.
//
// Catalog may be nil, in which case the server runs in memory-only mode:
// endpoints that need durable storage fail with UpstreamUnavailable and the
// readiness probe reports ready without a storage check.
type Dependencies struct {
	Catalog     *catalog.Store
	Table       *tabular.Processor
	Registry    *jobs.Registry
	Ingest      *ingest.Coordinator
	Engine      *matching.Engine
	Generator   *labels.Generator
	Sessions    session.Store
	RateLimiter middleware.RateLimiter
}

// Server represents the HTTP API server.
type Server struct {
	httpServer  *http.Server
	logger      *slog.Logger
	config      *ServerConfig
	startTime   time.Time
	catalog     *catalog.Store
	table       *tabular.Processor
	registry    *jobs.Registry
	ingest      *ingest.Coordinator
	engine      *matching.Engine
	generator   *labels.Generator
	sessions    session.Store
	rateLimiter middleware.RateLimiter
}

// NewServer creates a new HTTP server instance with structured logging and
// middleware stack.
//
// Configuration (what) is separated from dependencies (how): cfg carries
// ports, timeouts, and limits; deps carries the live component handles.
func NewServer(cfg *ServerConfig, deps Dependencies) *Server {
	// Create structured logger with configured log level
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	mux := http.NewServeMux()

	server := &Server{
		logger:      logger,
		config:      cfg,
		catalog:     deps.Catalog,
		table:       deps.Table,
		registry:    deps.Registry,
		ingest:      deps.Ingest,
		engine:      deps.Engine,
		generator:   deps.Generator,
		sessions:    deps.Sessions,
		rateLimiter: deps.RateLimiter,
	}

	server.setupRoutes(mux)

	if deps.Catalog == nil {
		logger.Warn("Catalog store not configured - running in memory-only mode")
	}

	if deps.RateLimiter == nil {
		logger.Warn("RateLimiter not configured - rate limiting middleware disabled")
	}

	// Apply middleware chain using functional options pattern.
	// Middleware executes in the order listed (top-to-bottom):
	//   1. RequestID - assign request ID for all responses
	//   2. Recovery - catch panics in all downstream middleware
	//   3. RateLimit - block requests before expensive operations (optional)
	//   4. RequestLogger - log only legitimate requests (not rate-limited spam)
	//   5. CORS - lightweight header manipulation
	handler := middleware.Apply(mux,
		middleware.WithRequestID(),
		middleware.WithRecovery(logger),
		middleware.WithRateLimit(deps.RateLimiter, logger, rateLimitedPaths()...),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.ToCORSConfig()),
	)

	server.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// Start starts the HTTP server and blocks until shutdown.
// It handles graceful shutdown on SIGINT and SIGTERM signals.
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	// Record server start time for uptime calculation
	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("Starting LabelForge API server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("Received shutdown signal",
			slog.String("signal", sig.String()),
		)

		return s.shutdown()
	}
}

// shutdown gracefully shuts down the server and releases component resources.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Initiating server shutdown",
		slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
	)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown failed",
			slog.String("error", err.Error()),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if s.sessions != nil {
		if err := s.sessions.Close(); err != nil {
			s.logger.Error("Failed to close session store", slog.String("error", err.Error()))
		}
	}

	// Stop the rate limiter's background cleanup goroutine
	if s.rateLimiter != nil {
		if limiter, ok := s.rateLimiter.(io.Closer); ok {
			if err := limiter.Close(); err != nil {
				s.logger.Error("Failed to close rate limiter", slog.String("error", err.Error()))
			}
		}
	}

	// The catalog closes last: the session store may be catalog-backed.
	if s.catalog != nil {
		if err := s.catalog.Close(); err != nil {
			s.logger.Error("Failed to close catalog store", slog.String("error", err.Error()))
		} else {
			s.logger.Info("Catalog store closed successfully")
		}
	}

	s.logger.Info("Server shutdown completed successfully")

	return nil
}
