package jobs

import (
	"sync"
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	r := NewRegistry()

	if err := r.Set("inventory.xlsx", StateProcessing, ""); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	status, age, ok := r.Get("inventory.xlsx")
	if !ok {
		t.Fatal("Get() did not find the job")
	}

	if status.State != StateProcessing {
		t.Errorf("State = %q, want processing", status.State)
	}

	if age < 0 || age > time.Minute {
		t.Errorf("implausible age %v", age)
	}
}

func TestGetUnknownFilename(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	r := NewRegistry()

	if _, _, ok := r.Get("never-uploaded.xlsx"); ok {
		t.Error("Get() found a job that was never set")
	}
}

func TestSetReplacesPriorJob(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	r := NewRegistry()

	_ = r.Set("inventory.xlsx", StateError, "parse failed")
	_ = r.Set("inventory.xlsx", StateProcessing, "")

	status, _, ok := r.Get("inventory.xlsx")
	if !ok {
		t.Fatal("job missing after replacement")
	}

	if status.State != StateProcessing {
		t.Errorf("State = %q, want processing (replacement)", status.State)
	}

	if status.Reason != "" {
		t.Errorf("Reason = %q, want empty after replacement", status.Reason)
	}

	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestErrorReasonOnlyForErrorState(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	r := NewRegistry()

	_ = r.Set("bad.xlsx", StateError, "header row missing")

	status, _, _ := r.Get("bad.xlsx")
	if status.Reason != "header row missing" {
		t.Errorf("Reason = %q, want failure text", status.Reason)
	}

	_ = r.Set("good.xlsx", StateReady, "should be dropped")

	status, _, _ = r.Get("good.xlsx")
	if status.Reason != "" {
		t.Errorf("Reason = %q, want empty for ready state", status.Reason)
	}
}

func TestSetRejectsInvalidState(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	r := NewRegistry()

	if err := r.Set("x.xlsx", State("exploded"), ""); err == nil {
		t.Error("Set() accepted an invalid state")
	}
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	r := NewRegistry()

	_ = r.Set("old-ready.xlsx", StateReady, "")
	_ = r.Set("old-error.xlsx", StateError, "boom")
	_ = r.Set("stuck.xlsx", StateProcessing, "")
	_ = r.Set("fresh.xlsx", StateProcessing, "")

	// Age three entries past the grace period.
	r.mu.Lock()
	for _, name := range []string{"old-ready.xlsx", "old-error.xlsx", "stuck.xlsx"} {
		status := r.entries[name]
		status.UpdatedAt = time.Now().Add(-16 * time.Minute)
		r.entries[name] = status
	}
	r.mu.Unlock()

	swept := r.Sweep()
	if swept != 3 {
		t.Errorf("Sweep() removed %d entries, want 3", swept)
	}

	if _, _, ok := r.Get("fresh.xlsx"); !ok {
		t.Error("fresh entry was swept")
	}

	if _, _, ok := r.Get("stuck.xlsx"); ok {
		t.Error("stuck PROCESSING entry survived the sweep")
	}
}

func TestSweepProtectsFreshReadyEntries(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	r := NewRegistry()

	_ = r.Set("just-done.xlsx", StateReady, "")

	if swept := r.Sweep(); swept != 0 {
		t.Errorf("Sweep() removed %d fresh READY entries, want 0", swept)
	}

	if _, _, ok := r.Get("just-done.xlsx"); !ok {
		t.Error("fresh READY entry must survive sweeps")
	}
}

func TestGetTriggersAmortizedSweep(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	r := NewRegistry()
	r.sweepChance = func() bool { return true }

	_ = r.Set("expired.xlsx", StateError, "boom")

	r.mu.Lock()
	status := r.entries["expired.xlsx"]
	status.UpdatedAt = time.Now().Add(-16 * time.Minute)
	r.entries["expired.xlsx"] = status
	r.mu.Unlock()

	// Reading a different filename still sweeps the expired one.
	_, _, _ = r.Get("other.xlsx")

	r.mu.Lock()
	_, stillThere := r.entries["expired.xlsx"]
	r.mu.Unlock()

	if stillThere {
		t.Error("Get() did not sweep the expired entry")
	}
}

func TestStateClassification(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if StateProcessing.IsTerminal() {
		t.Error("PROCESSING must not be terminal")
	}

	if !StateReady.IsTerminal() || !StateError.IsTerminal() {
		t.Error("READY and ERROR are terminal states")
	}

	for _, s := range ValidStates() {
		if !s.IsValid() {
			t.Errorf("%q should be valid", s)
		}
	}

	if State("nope").IsValid() {
		t.Error("unknown state validated")
	}
}

func TestConcurrentSetAndGet(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	r := NewRegistry()

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(2)

		go func(n int) {
			defer wg.Done()

			name := string(rune('a'+n%5)) + ".xlsx"
			_ = r.Set(name, StateProcessing, "")
		}(i)

		go func(n int) {
			defer wg.Done()

			name := string(rune('a'+n%5)) + ".xlsx"
			_, _, _ = r.Get(name)
		}(i)
	}

	wg.Wait()

	if r.Len() > 5 {
		t.Errorf("Len() = %d, want at most 5 distinct filenames", r.Len())
	}
}
