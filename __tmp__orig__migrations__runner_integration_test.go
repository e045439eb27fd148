package migrations

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalog.db")

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func TestApplyCreatesSchema(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := openTestDatabase(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := Apply(db, logger); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	ctx := t.Context()

	for _, table := range []string{"strains", "products", "sessions", "match_feedback"} {
		var name string

		err := db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("expected table %s to exist after migration: %v", table, err)
		}
	}

	// The Excel-alias view must exist alongside the modern columns.
	var viewName string

	err := db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'view' AND name = 'products_excel'`,
	).Scan(&viewName)
	if err != nil {
		t.Errorf("expected products_excel view to exist after migration: %v", err)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := openTestDatabase(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := Apply(db, logger); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}

	// A second run finds nothing to do and must not error.
	if err := Apply(db, logger); err != nil {
		t.Fatalf("second apply failed: %v", err)
	}
}

func TestApplyLeavesConnectionUsable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := openTestDatabase(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := Apply(db, logger); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	// Apply shares the caller's handle and must not close it.
	if err := db.PingContext(context.Background()); err != nil {
		t.Fatalf("database handle unusable after Apply: %v", err)
	}

	if _, err := db.ExecContext(t.Context(),
		`INSERT INTO sessions (id, state, updated_at) VALUES ('s1', '{}', CURRENT_TIMESTAMP)`,
	); err != nil {
		t.Fatalf("failed to write through shared handle: %v", err)
	}
}

