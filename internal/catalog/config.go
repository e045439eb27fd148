package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/labelforge-io/labelforge/internal/config"
)

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 10 * time.Minute

	// defaultDatabaseFile is the unnamed-store database file.
	defaultDatabaseFile = "product_database.db"

	// namedDatabasePattern resolves a named store to its database file.
	namedDatabasePattern = "product_database_%s.db"
)

var (
	// ErrDataDirEmpty is returned when the data directory is an empty string.
	ErrDataDirEmpty = errors.New("data directory cannot be empty")
	// ErrStoreNameInvalid is returned when the store name contains path separators.
	ErrStoreNameInvalid = errors.New("store name must not contain path separators")
)

// Config holds catalog database configuration with production-ready defaults.
// Each named store owns one SQLite file under DataDir; an empty StoreName
// selects the default file.
type Config struct {
	StoreName       string
	DataDir         string
	MaxOpenConns    int           // Maximum number of open connections
	MaxIdleConns    int           // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of connections
	ConnMaxIdleTime time.Duration // Maximum idle time for connections
}

// LoadConfig loads catalog configuration from environment variables with
// fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		StoreName:       config.GetEnvStr("LABELFORGE_STORE", ""),
		DataDir:         config.GetEnvStr("LABELFORGE_DATA_DIR", "."),
		MaxOpenConns:    config.GetEnvInt("DATABASE_MAX_OPEN_CONNS", defaultMaxOpenConns),
		MaxIdleConns:    config.GetEnvInt("DATABASE_MAX_IDLE_CONNS", defaultMaxIdleConns),
		ConnMaxLifetime: config.GetEnvDuration("DATABASE_CONN_MAX_LIFETIME", defaultConnMaxLifetime),
		ConnMaxIdleTime: config.GetEnvDuration("DATABASE_CONN_MAX_IDLE_TIME", defaultConnMaxIdleTime),
	}
}

// Validate checks if the catalog configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return ErrDataDirEmpty
	}

	if strings.ContainsAny(c.StoreName, `/\`) {
		return ErrStoreNameInvalid
	}

	return nil
}

// DatabasePath returns the database file for the configured store:
// product_database_<store>.db for a named store, product_database.db
// otherwise. Store names are folded to a filesystem-safe form.
func (c *Config) DatabasePath() string {
	name := sanitizeStoreName(c.StoreName)
	if name == "" {
		return filepath.Join(c.DataDir, defaultDatabaseFile)
	}

	return filepath.Join(c.DataDir, fmt.Sprintf(namedDatabasePattern, name))
}

// sanitizeStoreName folds a store name to lowercase with underscores so the
// same logical store always maps to the same file.
func sanitizeStoreName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")

	return name
}
