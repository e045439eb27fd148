package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationsTable is where golang-migrate records the applied version.
const migrationsTable = "schema_migrations"

// migrateLogger adapts slog to the migrate.Logger interface. It also
// implements io.Writer for broader compatibility.
type migrateLogger struct {
	logger *slog.Logger
}

var (
	_ migrate.Logger = (*migrateLogger)(nil)
	_ io.Writer      = (*migrateLogger)(nil)
)

// Apply validates the embedded migration set and brings the database up to
// the latest schema version. An already-current database is not an error.
// The caller retains ownership of db; Apply never closes it.
func Apply(db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	set := NewSet(nil)

	if err := set.Validate(); err != nil {
		return fmt.Errorf("embedded migration validation failed: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{
		MigrationsTable: migrationsTable,
	})
	if err != nil {
		return fmt.Errorf("failed to create sqlite3 migration driver: %w", err)
	}

	sourceDriver, err := iofs.New(set.FS(), ".")
	if err != nil {
		return fmt.Errorf("failed to create embedded migration source: %w", err)
	}

	// Only the source is released here. Closing the migrate instance would
	// close the shared database handle out from under the caller.
	defer func() {
		_ = sourceDriver.Close()
	}()

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	m.Log = &migrateLogger{logger: logger}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Debug("No new migrations to apply")
	} else {
		logger.Info("All migrations applied",
			slog.Int("schema_version", set.maxSequence()),
		)
	}

	return nil
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)),
		slog.String("component", "migrate"),
	)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

func (l *migrateLogger) Write(p []byte) (int, error) {
	l.logger.Info(strings.TrimSpace(string(p)),
		slog.String("component", "migrate"),
	)

	return len(p), nil
}
