package session

import (
	"errors"
	"sync"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	ctx := t.Context()

	t.Run("get unknown session returns fresh state", func(t *testing.T) {
		store := NewMemoryStore()

		state, err := store.Get(ctx, "sess-1")
		if err != nil {
			t.Fatalf("Get() unexpected error: %v", err)
		}

		if len(state.Selected) != 0 || len(state.UndoStack) != 0 {
			t.Errorf("fresh state not empty: %+v", state)
		}
	})

	t.Run("save and get round trip", func(t *testing.T) {
		store := NewMemoryStore()

		state := NewState()
		state.Selected = []string{"Blue Dream - 3.5g", "OG Kush - 1g"}
		state.SaveSnapshot()

		if err := store.Save(ctx, "sess-1", state); err != nil {
			t.Fatalf("Save() unexpected error: %v", err)
		}

		loaded, err := store.Get(ctx, "sess-1")
		if err != nil {
			t.Fatalf("Get() unexpected error: %v", err)
		}

		if len(loaded.Selected) != 2 {
			t.Errorf("Selected length = %d, want 2", len(loaded.Selected))
		}

		if len(loaded.UndoStack) != 1 {
			t.Errorf("UndoStack length = %d, want 1", len(loaded.UndoStack))
		}
	})

	t.Run("returned state is a copy", func(t *testing.T) {
		store := NewMemoryStore()

		state := NewState()
		state.Selected = []string{"Blue Dream - 3.5g"}
		_ = store.Save(ctx, "sess-1", state)

		// Mutating what Save was given or what Get returned must not leak
		// into the stored state.
		state.Selected[0] = "mutated after save"

		loaded, _ := store.Get(ctx, "sess-1")
		loaded.Selected[0] = "mutated after get"

		reloaded, _ := store.Get(ctx, "sess-1")
		if reloaded.Selected[0] != "Blue Dream - 3.5g" {
			t.Errorf("stored state leaked: %v", reloaded.Selected)
		}
	})

	t.Run("delete removes session", func(t *testing.T) {
		store := NewMemoryStore()

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

		if store.Len() != 0 {
			t.Errorf("Len() = %d, want 0", store.Len())
		}
	})

	t.Run("empty session ID rejected", func(t *testing.T) {
		store := NewMemoryStore()

		if _, err := store.Get(ctx, ""); !errors.Is(err, ErrSessionIDEmpty) {
			t.Errorf("Get() error = %v, want ErrSessionIDEmpty", err)
		}

		if err := store.Save(ctx, "", NewState()); !errors.Is(err, ErrSessionIDEmpty) {
			t.Errorf("Save() error = %v, want ErrSessionIDEmpty", err)
		}

		if err := store.Delete(ctx, ""); !errors.Is(err, ErrSessionIDEmpty) {
			t.Errorf("Delete() error = %v, want ErrSessionIDEmpty", err)
		}
	})

	t.Run("nil state rejected", func(t *testing.T) {
		store := NewMemoryStore()

		if err := store.Save(ctx, "sess-1", nil); !errors.Is(err, ErrStateNil) {
			t.Errorf("Save() error = %v, want ErrStateNil", err)
		}
	})
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	ctx := t.Context()
	store := NewMemoryStore()

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(2)

		go func(n int) {
			defer wg.Done()

			id := NewID()
			state := NewState()
			state.Selected = []string{"Blue Dream - 3.5g"}
			_ = store.Save(ctx, id, state)
		}(i)

		go func(n int) {
			defer wg.Done()

			_, _ = store.Get(ctx, "sess-shared")
		}(i)
	}

	wg.Wait()

	if store.Len() != 20 {
		t.Errorf("Len() = %d, want 20", store.Len())
	}
}

func TestNewIDUnique(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	seen := make(map[string]struct{})

	for range 100 {
		id := NewID()
		if id == "" {
			t.Fatal("NewID() returned empty string")
		}

		if _, ok := seen[id]; ok {
			t.Fatalf("NewID() repeated %s", id)
		}

		seen[id] = struct{}{}
	}
}


