package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DurableStore persists session state in the catalog database so selections
// survive process restarts. Each session is one row in the sessions table with
// the state JSON-encoded; the table is created by the catalog migrations.
type DurableStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Compile-time check that DurableStore implements Store.
var _ Store = (*DurableStore)(nil)

// NewDurableStore creates a session store backed by the catalog database.
func NewDurableStore(db *sql.DB, logger *slog.Logger) *DurableStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &DurableStore{
		db:     db,
		logger: logger,
	}
}

// Get retrieves the state for a session. Missing sessions and rows whose
// state no longer decodes both yield a fresh empty state so one bad row
// cannot lock a user out.
func (s *DurableStore) Get(ctx context.Context, sessionID string) (*State, error) {
	if sessionID == "" {
		return nil, ErrSessionIDEmpty
	}

	query := `SELECT state FROM sessions WHERE id = ?`

	var raw string

	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return NewState(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		s.logger.Warn("discarding unreadable session state",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))

		return NewState(), nil
	}

	return &state, nil
}

// Save upserts the state for a session.
func (s *DurableStore) Save(ctx context.Context, sessionID string, state *State) error {
	if sessionID == "" {
		return ErrSessionIDEmpty
	}

	if state == nil {
		return ErrStateNil
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	query := `
		INSERT INTO sessions (id, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, sessionID, string(raw), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// Delete removes a session's state.
func (s *DurableStore) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrSessionIDEmpty
	}

	query := `DELETE FROM sessions WHERE id = ?`

	if _, err := s.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// PruneExpired removes sessions idle longer than ttl. Called at startup so
// abandoned sessions do not accumulate in the catalog database.
func (s *DurableStore) PruneExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl).UTC()

	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}

	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if pruned > 0 {
		s.logger.Info("pruned expired sessions", slog.Int64("count", pruned))
	}

	return pruned, nil
}

// Close is a no-op; the catalog owns the underlying database handle.
func (s *DurableStore) Close() error {
	return nil
}
