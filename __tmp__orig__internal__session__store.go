package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrSessionIDEmpty is returned when a session ID is empty.
	ErrSessionIDEmpty = errors.New("session ID cannot be empty")
	// ErrStateNil is returned when a nil state is provided.
	ErrStateNil = errors.New("session state cannot be nil")
)

// Store persists selection state across requests, keyed by session ID.
// Implementations hand out copies; callers mutate their copy and Save it back.
type Store interface {
	// Get returns the state for a session. A session with no saved state
	// yields a fresh empty state, not an error.
	Get(ctx context.Context, sessionID string) (*State, error)
	// Save persists the state for a session, replacing any prior state.
	Save(ctx context.Context, sessionID string, state *State) error
	// Delete removes a session's state.
	Delete(ctx context.Context, sessionID string) error
	// Close releases any resources held by the store.
	Close() error
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// MemoryStore provides thread-safe in-memory session storage. It is the
// default backend; selections are lost on restart.
type MemoryStore struct {
	// states maps session IDs to selection state
	states map[string]*State
	// mutex protects concurrent access to states
	mutex sync.RWMutex
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new thread-safe in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*State),
	}
}

// Get retrieves the state for a session.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (*State, error) {
	if sessionID == "" {
		return nil, ErrSessionIDEmpty
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	state, exists := s.states[sessionID]
	if !exists {
		return NewState(), nil
	}

	// Return a copy to prevent external modification
	return state.Clone(), nil
}

// Save stores the state for a session.
func (s *MemoryStore) Save(_ context.Context, sessionID string, state *State) error {
	if sessionID == "" {
		return ErrSessionIDEmpty
	}

	if state == nil {
		return ErrStateNil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	// Store a copy to prevent external modification
	s.states[sessionID] = state.Clone()

	return nil
}

// Delete removes a session's state.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrSessionIDEmpty
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.states, sessionID)

	return nil
}

// Len returns the number of sessions with saved state.
func (s *MemoryStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.states)
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}


