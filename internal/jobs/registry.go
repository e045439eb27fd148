// Package jobs provides the in-memory registry tracking asynchronous
// file-processing jobs through their lifecycle states.
//
// The registry is deliberately ephemeral: a restart clears all jobs and the
// ingestion coordinator treats every outstanding upload as failed. Pollers
// recover through the coordinator's heuristics, so nothing here needs to
// survive a process.
package jobs

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

type (
	// State is the job lifecycle state. PROCESSING transitions to READY or
	// ERROR; both of those are terminal and persist for a grace period so
	// pollers can observe them.
	State string

	// Status is the registry record for one logical filename.
	Status struct {
		Filename  string
		State     State
		Reason    string // populated when State == StateError
		UpdatedAt time.Time
	}

	// Registry tracks job statuses keyed by logical filename. One mutex
	// covers the map; all operations are O(1) except sweeps, which are O(n)
	// in swept entries.
	//
	// Sweeping is amortized over Get calls: a small random fraction of reads
	// triggers a sweep instead of a background timer. This keeps the
	// registry free of goroutines and trivially reconstructable on restart.
	Registry struct {
		mu      sync.Mutex
		entries map[string]Status

		// sweepChance decides whether a Get call pays the sweep cost.
		// Overridable in tests.
		sweepChance func() bool
	}
)

const (
	// StateProcessing marks a job whose worker has not finished.
	StateProcessing State = "processing"

	// StateReady marks a successfully completed job. Terminal.
	StateReady State = "ready"

	// StateError marks a failed job; Reason carries the failure. Terminal.
	StateError State = "error"
)

const (
	// sweepGracePeriod is how long entries survive after their last update.
	// Terminal entries older than this are garbage; PROCESSING entries older
	// than this are considered stuck workers and removed too.
	sweepGracePeriod = 15 * time.Minute

	// readyProtection shields fresh READY entries from sweeps so a polling
	// client cannot race a removal of the state it is about to observe.
	readyProtection = 30 * time.Second

	// sweepPercent is the fraction of Get calls that trigger a sweep.
	sweepPercent = 3
)

// ErrInvalidState indicates a Set with a state outside the lifecycle.
var ErrInvalidState = errors.New("invalid job state")

// ValidStates returns all job lifecycle states.
func ValidStates() []State {
	return []State{StateProcessing, StateReady, StateError}
}

// IsValid checks if the State is part of the lifecycle.
func (s State) IsValid() bool {
	for _, valid := range ValidStates() {
		if s == valid {
			return true
		}
	}

	return false
}

// IsTerminal returns true for READY and ERROR.
func (s State) IsTerminal() bool {
	return s == StateReady || s == StateError
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Status),
		sweepChance: func() bool {
			return rand.IntN(100) < sweepPercent //nolint:gosec // amortization, not crypto
		},
	}
}

// Set atomically writes the state for a logical filename, replacing any
// prior job under the same name (a re-upload supersedes the old job).
// The reason is recorded only for StateError.
func (r *Registry) Set(filename string, state State, reason string) error {
	if !state.IsValid() {
		return ErrInvalidState
	}

	if state != StateError {
		reason = ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[filename] = Status{
		Filename:  filename,
		State:     state,
		Reason:    reason,
		UpdatedAt: time.Now(),
	}

	return nil
}

// Get returns the current status and its age since last update. The second
// return is false when the filename is unknown.
//
// A small random fraction of calls sweeps expired entries first.
func (r *Registry) Get(filename string) (Status, time.Duration, bool) {
	if r.sweepChance() {
		r.Sweep()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	status, ok := r.entries[filename]
	if !ok {
		return Status{}, 0, false
	}

	return status, time.Since(status.UpdatedAt), true
}

// Sweep removes entries whose last update is older than the grace period,
// in any state (old PROCESSING entries are stuck workers). READY entries
// younger than the protection window are never removed. Returns the number
// of entries swept.
func (r *Registry) Sweep() int {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	swept := 0

	for filename, status := range r.entries {
		age := now.Sub(status.UpdatedAt)

		if status.State == StateReady && age < readyProtection {
			continue
		}

		if age > sweepGracePeriod {
			delete(r.entries, filename)

			swept++
		}
	}

	return swept
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}
