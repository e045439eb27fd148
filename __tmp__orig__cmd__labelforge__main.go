// Package main provides the LabelForge label-generation service.
//
// LabelForge ingests cannabis-industry product inventories from uploaded
// spreadsheets and external JSON feeds, reconciles them against a persistent
// product catalog, and renders printable label documents.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/labelforge-io/labelforge/internal/aliasing"
	"github.com/labelforge-io/labelforge/internal/api"
	"github.com/labelforge-io/labelforge/internal/api/middleware"
	"github.com/labelforge-io/labelforge/internal/catalog"
	"github.com/labelforge-io/labelforge/internal/ingest"
	"github.com/labelforge-io/labelforge/internal/jobs"
	"github.com/labelforge-io/labelforge/internal/labels"
	"github.com/labelforge-io/labelforge/internal/matching"
	"github.com/labelforge-io/labelforge/internal/session"
	"github.com/labelforge-io/labelforge/internal/tabular"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "labelforge"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	serverConfig := api.LoadServerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	logger.Info("Starting LabelForge service",
		slog.String("service", name),
		slog.String("version", version),
	)

	logger.Info("Loaded server configuration",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.String("upload_dir", serverConfig.UploadDir),
		slog.Int64("max_upload_size", serverConfig.MaxUploadSize),
		slog.Int("rate_limit", serverConfig.RateLimit),
		slog.Duration("rate_window", serverConfig.RateWindow),
		slog.String("session_backend", serverConfig.SessionBackend),
		slog.String("log_level", serverConfig.LogLevel.String()),
	)

	// Normalization extension data is optional; a missing or invalid file
	// degrades to the built-in tables.
	aliasConfig, err := aliasing.LoadConfigFromEnv()
	if err != nil {
		logger.Warn("Failed to load normalization config, using built-ins",
			slog.String("error", err.Error()),
		)
	}

	table := tabular.NewProcessor(aliasing.NewResolver(aliasConfig), logger)

	// The catalog is optional: without it the service runs memory-only and
	// durable features (export, strain overrides, session persistence)
	// report the storage as unavailable.
	var store *catalog.Store

	catalogConfig := catalog.LoadConfig()

	store, err = catalog.Open(catalogConfig, logger)
	if err != nil {
		logger.Error("Failed to open product catalog, continuing memory-only",
			slog.String("database", catalogConfig.DatabasePath()),
			slog.String("error", err.Error()),
		)

		store = nil
	} else {
		logger.Info("Product catalog ready", slog.String("database", store.Path()))
	}

	registry := jobs.NewRegistry()

	var mirror ingest.CatalogStore
	if store != nil {
		mirror = store
	}

	coordinator := ingest.NewCoordinator(serverConfig.UploadDir, registry, table, mirror, logger)

	var feedback *matching.FeedbackStore
	if store != nil {
		feedback = matching.NewFeedbackStore(store.DB(), logger)
	}

	var catalogSource matching.CatalogSource
	if store != nil {
		catalogSource = store
	}

	engine := matching.NewEngine(catalogSource, table, feedback, logger)

	generator := labels.NewGenerator(serverConfig.GenerationTimeout, serverConfig.MaxTags, logger)

	var sessions session.Store
	if serverConfig.SessionBackend == api.SessionBackendCatalog && store != nil {
		sessions = session.NewDurableStore(store.DB(), logger)

		logger.Info("Session store initialized", slog.String("backend", api.SessionBackendCatalog))
	} else {
		sessions = session.NewMemoryStore()

		logger.Info("Session store initialized", slog.String("backend", api.SessionBackendMemory))
	}

	rateLimiter := middleware.NewClientRateLimiter(serverConfig.RateLimit, serverConfig.RateWindow)

	server := api.NewServer(serverConfig, api.Dependencies{
		Catalog:     store,
		Table:       table,
		Registry:    registry,
		Ingest:      coordinator,
		Engine:      engine,
		Generator:   generator,
		Sessions:    sessions,
		RateLimiter: rateLimiter,
	})

	if err := server.Start(); err != nil {
		logger.Error("Server failed to start",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger.Info("LabelForge service stopped")
}


