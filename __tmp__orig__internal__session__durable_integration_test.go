package session

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDatabase opens a throwaway SQLite database with the sessions table.
func setupTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	schema := `
		CREATE TABLE sessions (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create sessions table: %v", err)
	}

	return db
}

func TestDurableStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := t.Context()
	store := NewDurableStore(setupTestDatabase(t), nil)

	state := NewState()
	state.Selected = []string{"Blue Dream - 3.5g", "OG Kush - 1g"}
	state.SaveSnapshot()
	state.MarkJSONMatch([]string{"Blue Dream - 3.5g"})

	if err := store.Save(ctx, "sess-1", state); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}

	loaded, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}

	if len(loaded.Selected) != 2 || loaded.Selected[0] != "Blue Dream - 3.5g" {
		t.Errorf("Selected = %v, want round-tripped selection", loaded.Selected)
	}

	if len(loaded.UndoStack) != 1 {
		t.Errorf("UndoStack length = %d, want 1", len(loaded.UndoStack))
	}

	if loaded.Mode() != FilterModeJSONMatched {
		t.Errorf("Mode() = %q, want json_matched", loaded.Mode())
	}

	if loaded.LastJSONMatch.IsZero() {
		t.Error("LastJSONMatch lost in round trip")
	}
}

func TestDurableStoreSaveReplacesState(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := t.Context()
	store := NewDurableStore(setupTestDatabase(t), nil)

	first := NewState()
	first.Selected = []string{"Blue Dream - 3.5g"}
	_ = store.Save(ctx, "sess-1", first)

	second := NewState()
	second.Selected = []string{"OG Kush - 1g", "Gummy Bears - 100mg"}

	if err := store.Save(ctx, "sess-1", second); err != nil {
		t.Fatalf("Save() upsert failed: %v", err)
	}

	loaded, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}

	if len(loaded.Selected) != 2 || loaded.Selected[0] != "OG Kush - 1g" {
		t.Errorf("Selected = %v, want replacement state", loaded.Selected)
	}
}

func TestDurableStoreGetUnknownSession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := t.Context()
	store := NewDurableStore(setupTestDatabase(t), nil)

	state, err := store.Get(ctx, "never-saved")
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}

	if len(state.Selected) != 0 {
		t.Errorf("Selected = %v, want fresh empty state", state.Selected)
	}
}

func TestDurableStoreCorruptStateRecovers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := t.Context()
	db := setupTestDatabase(t)
	store := NewDurableStore(db, nil)

	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (id, state, updated_at) VALUES (?, ?, ?)`,
		"sess-1", "{not json", time.Now().UTC())
	if err != nil {
		t.Fatalf("failed to seed corrupt row: %v", err)
	}

	state, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get() must not fail on corrupt state: %v", err)
	}

	if len(state.Selected) != 0 {
		t.Errorf("Selected = %v, want fresh state for corrupt row", state.Selected)
	}
}

func TestDurableStoreDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := t.Context()
	store := NewDurableStore(setupTestDatabase(t), nil)

	state := NewState()
	state.Selected = []string{"Blue Dream - 3.5g"}
	_ = store.Save(ctx, "sess-1", state)

	if err := store.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}

	loaded, _ := store.Get(ctx, "sess-1")
	if len(loaded.Selected) != 0 {
		t.Errorf("Selected = %v, want empty after delete", loaded.Selected)
	}
}

func TestDurableStorePruneExpired(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := t.Context()
	db := setupTestDatabase(t)
	store := NewDurableStore(db, nil)

	fresh := NewState()
	fresh.Selected = []string{"Blue Dream - 3.5g"}
	_ = store.Save(ctx, "fresh", fresh)

	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (id, state, updated_at) VALUES (?, ?, ?)`,
		"stale", `{"selected":["OG Kush - 1g"]}`, time.Now().Add(-48*time.Hour).UTC())
	if err != nil {
		t.Fatalf("failed to seed stale row: %v", err)
	}

	pruned, err := store.PruneExpired(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneExpired() unexpected error: %v", err)
	}

	if pruned != 1 {
		t.Errorf("PruneExpired() = %d, want 1", pruned)
	}

	loaded, _ := store.Get(ctx, "fresh")
	if len(loaded.Selected) != 1 {
		t.Error("fresh session was pruned")
	}
}


