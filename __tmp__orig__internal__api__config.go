// Package api provides the HTTP server surface of the LabelForge service.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/labelforge-io/labelforge/internal/config"
)

const (
	defaultPort              int   = 8080
	maxPort                  int   = 65535
	defaultHost                    = "0.0.0.0"
	defaultCORSMaxAge        int   = 86400
	defaultTimeout                 = 30 * time.Second
	defaultLogLevel                = slog.LevelInfo
	defaultMaxUploadSize     int64 = 20 << 20 // 20 MB
	defaultUploadDir               = "./uploads"
	defaultRateLimit         int   = 100
	defaultRateWindow              = 60 * time.Second
	defaultGenerationTimeout       = 45 * time.Second
	defaultMaxTags           int   = 100

	// SessionBackendMemory keeps selections in process memory (the default).
	SessionBackendMemory = "memory"
	// SessionBackendCatalog persists selections in the catalog database.
	SessionBackendCatalog = "catalog"
)

var (
	// ErrInvalidPort indicates the port number is outside valid range (1-65535).
	ErrInvalidPort = errors.New("invalid port")

	// ErrEmptyHost indicates the server host address is empty.
	ErrEmptyHost = errors.New("host cannot be empty")

	// ErrInvalidReadTimeout indicates the read timeout is zero or negative.
	ErrInvalidReadTimeout = errors.New("read timeout must be positive")

	// ErrInvalidWriteTimeout indicates the write timeout is zero or negative.
	ErrInvalidWriteTimeout = errors.New("write timeout must be positive")

	// ErrInvalidShutdownTimeout indicates the shutdown timeout is zero or negative.
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")

	// ErrInvalidMaxUploadSize indicates the max upload size is zero or negative.
	ErrInvalidMaxUploadSize = errors.New("max upload size must be positive")

	// ErrInvalidRateLimit indicates the rate limit quota or window is invalid.
	ErrInvalidRateLimit = errors.New("rate limit and window must be positive")

	// ErrInvalidMaxTags indicates the per-request tag cap is zero or negative.
	ErrInvalidMaxTags = errors.New("max tags must be positive")

	// ErrInvalidSessionBackend indicates an unknown session backend name.
	ErrInvalidSessionBackend = errors.New("session backend must be \"memory\" or \"catalog\"")
)

type (
	// ServerConfig holds HTTP server configuration.
	// Pure configuration only - no runtime dependencies.
	ServerConfig struct {
		Port              int
		Host              string
		ReadTimeout       time.Duration
		WriteTimeout      time.Duration
		ShutdownTimeout   time.Duration
		LogLevel          slog.Level
		MaxUploadSize     int64
		UploadDir         string
		RateLimit         int
		RateWindow        time.Duration
		GenerationTimeout time.Duration
		MaxTags           int
		SessionBackend    string

		CORSAllowedOrigins []string
		CORSAllowedMethods []string
		CORSAllowedHeaders []string
		CORSMaxAge         int
	}

	// CORSConfig holds CORS configuration options.
	// This is defined here to keep CORS configuration centralized.
	CORSConfig struct {
		AllowedOrigins []string
		AllowedMethods []string
		AllowedHeaders []string
		MaxAge         int
	}
)

// LoadServerConfig loads server configuration from environment variables with sensible defaults.
func LoadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:              config.GetEnvInt("LABELFORGE_PORT", defaultPort),
		Host:              config.GetEnvStr("LABELFORGE_HOST", defaultHost),
		ReadTimeout:       config.GetEnvDuration("LABELFORGE_READ_TIMEOUT", defaultTimeout),
		WriteTimeout:      config.GetEnvDuration("LABELFORGE_WRITE_TIMEOUT", defaultTimeout),
		ShutdownTimeout:   config.GetEnvDuration("LABELFORGE_SHUTDOWN_TIMEOUT", defaultTimeout),
		LogLevel:          config.GetEnvLogLevel("LABELFORGE_LOG_LEVEL", defaultLogLevel),
		MaxUploadSize:     config.GetEnvInt64("LABELFORGE_MAX_UPLOAD_SIZE", defaultMaxUploadSize),
		UploadDir:         config.GetEnvStr("LABELFORGE_UPLOAD_DIR", defaultUploadDir),
		RateLimit:         config.GetEnvInt("LABELFORGE_RATE_LIMIT", defaultRateLimit),
		RateWindow:        config.GetEnvDuration("LABELFORGE_RATE_WINDOW", defaultRateWindow),
		GenerationTimeout: config.GetEnvDuration("LABELFORGE_GENERATION_TIMEOUT", defaultGenerationTimeout),
		MaxTags:           config.GetEnvInt("LABELFORGE_MAX_TAGS", defaultMaxTags),
		SessionBackend:    config.GetEnvStr("LABELFORGE_SESSION_BACKEND", SessionBackendMemory),
		CORSAllowedOrigins: config.ParseCommaSeparatedList(
			config.GetEnvStr("LABELFORGE_CORS_ALLOWED_ORIGINS", "*"),
		), // "*" is Development default - should be restricted in production
		CORSAllowedMethods: config.ParseCommaSeparatedList(
			config.GetEnvStr("LABELFORGE_CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"),
		),
		CORSAllowedHeaders: config.ParseCommaSeparatedList(
			config.GetEnvStr(
				"LABELFORGE_CORS_ALLOWED_HEADERS",
				"Content-Type,X-Request-ID,X-Session-ID",
			),
		),
		CORSMaxAge: config.GetEnvInt("LABELFORGE_CORS_MAX_AGE", defaultCORSMaxAge),
	}
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ToCORSConfig converts ServerConfig CORS fields to middleware.CORSConfigProvider.
func (c *ServerConfig) ToCORSConfig() *CORSConfig {
	return &CORSConfig{
		AllowedOrigins: c.CORSAllowedOrigins,
		AllowedMethods: c.CORSAllowedMethods,
		AllowedHeaders: c.CORSAllowedHeaders,
		MaxAge:         c.CORSMaxAge,
	}
}

// GetAllowedOrigins returns the allowed origins for CORS.
func (c *CORSConfig) GetAllowedOrigins() []string {
	return c.AllowedOrigins
}

// GetAllowedMethods returns the allowed methods for CORS.
func (c *CORSConfig) GetAllowedMethods() []string {
	return c.AllowedMethods
}

// GetAllowedHeaders returns the allowed headers for CORS.
func (c *CORSConfig) GetAllowedHeaders() []string {
	return c.AllowedHeaders
}

// GetMaxAge returns the max age for CORS preflight cache.
func (c *CORSConfig) GetMaxAge() int {
	return c.MaxAge
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > maxPort {
		return fmt.Errorf("%w: %d, must be between 1 and %d", ErrInvalidPort, c.Port, maxPort)
	}

	if c.Host == "" {
		return ErrEmptyHost
	}

	if c.ReadTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidReadTimeout, c.ReadTimeout)
	}

	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidWriteTimeout, c.WriteTimeout)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidShutdownTimeout, c.ShutdownTimeout)
	}

	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidMaxUploadSize, c.MaxUploadSize)
	}

	if c.RateLimit <= 0 || c.RateWindow <= 0 {
		return fmt.Errorf("%w: got %d per %v", ErrInvalidRateLimit, c.RateLimit, c.RateWindow)
	}

	if c.MaxTags <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxTags, c.MaxTags)
	}

	if c.SessionBackend != SessionBackendMemory && c.SessionBackend != SessionBackendCatalog {
		return fmt.Errorf("%w: got %q", ErrInvalidSessionBackend, c.SessionBackend)
	}

	return nil
}


