package matching

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	// ErrFeedbackNameEmpty is returned when a feedback record is missing a name.
	ErrFeedbackNameEmpty = errors.New("feedback product and matched names cannot be empty")
	// ErrFeedbackScoreRange is returned when a feedback score is outside [0, 1].
	ErrFeedbackScoreRange = errors.New("feedback score must be between 0 and 1")
)

// FeedbackStore persists operator-scored match feedback in the catalog
// database. The ensemble trains from these examples once enough accumulate.
type FeedbackStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFeedbackStore creates a feedback store on the catalog database handle.
func NewFeedbackStore(db *sql.DB, logger *slog.Logger) *FeedbackStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &FeedbackStore{db: db, logger: logger}
}

// Add records one operator score for a (feed item, matched product) pair,
// with the feature vector captured at scoring time.
func (s *FeedbackStore) Add(
	ctx context.Context,
	productName, matchedName string,
	score float64,
	features FeatureVector,
) error {
	productName = strings.TrimSpace(productName)
	matchedName = strings.TrimSpace(matchedName)

	if productName == "" || matchedName == "" {
		return ErrFeedbackNameEmpty
	}

	if score < 0 || score > 1 {
		return fmt.Errorf("%w: %v", ErrFeedbackScoreRange, score)
	}

	raw, err := json.Marshal(features)
	if err != nil {
		return fmt.Errorf("failed to encode feature vector: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO match_feedback (product_name, matched_name, score, features, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		productName, matchedName, score, string(raw), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store match feedback: %w", err)
	}

	return nil
}

// Count returns the number of stored feedback examples.
func (s *FeedbackStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM match_feedback`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count match feedback: %w", err)
	}

	return count, nil
}

// Examples loads every feedback record as a training example. Rows whose
// feature vector no longer decodes are skipped with a warning rather than
// poisoning a retrain.
func (s *FeedbackStore) Examples(ctx context.Context) ([]Example, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_name, score, features FROM match_feedback ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query match feedback: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var examples []Example

	for rows.Next() {
		var (
			name     string
			score    float64
			features string
		)

		if err := rows.Scan(&name, &score, &features); err != nil {
			return nil, err
		}

		var vector FeatureVector
		if err := json.Unmarshal([]byte(features), &vector); err != nil {
			s.logger.Warn("Skipping unreadable feedback features",
				slog.String("product", name),
				slog.String("error", err.Error()),
			)

			continue
		}

		examples = append(examples, Example{Features: vector, Score: score})
	}

	return examples, rows.Err()
}
