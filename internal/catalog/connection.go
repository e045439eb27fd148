package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const pingTimeout = 5 * time.Second

// ErrConnectionFailed is returned when the database cannot be opened after a
// retry with a fresh connection.
var ErrConnectionFailed = errors.New("database connection failed")

// Connection wraps the shared database handle for one catalog store. The
// DSN enables WAL journaling so readers never block the single writer, a
// busy timeout so concurrent writers queue instead of erroring, and foreign
// key enforcement.
type Connection struct {
	*sql.DB
}

// NewConnection opens the store's database file and verifies it is usable.
// An initial ping failure is retried once with a fresh connection before
// giving up.
func NewConnection(config *Config) (*Connection, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(config.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	path := config.DatabasePath()

	db, err := openDatabase(path, config)
	if err == nil {
		return &Connection{DB: db}, nil
	}

	// Retry once with a fresh connection.
	db, retryErr := openDatabase(path, config)
	if retryErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, errors.Join(err, retryErr))
	}

	return &Connection{DB: db}, nil
}

// HealthCheck verifies the database is reachable.
func (c *Connection) HealthCheck(ctx context.Context) error {
	return c.PingContext(ctx)
}

func openDatabase(path string, config *Config) (*sql.DB, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database %s: %w", path, err)
	}

	return db, nil
}
