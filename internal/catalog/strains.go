package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/labelforge-io/labelforge/internal/product"
)

// AddOrUpdateStrain records one lineage observation for a strain. A new
// strain is created with the incoming lineage as canonical; an existing one
// gains a vote, and the canonical lineage follows the majority with the most
// recent ingest winning ties. With sovereign set, the lineage is also
// written as an operator override that thereafter beats the canonical value
// on every read.
func (s *Store) AddOrUpdateStrain(
	ctx context.Context,
	name string,
	lineage product.Lineage,
	sovereign bool,
) (*product.Strain, error) {
	if s.conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrStrainNameEmpty
	}

	if lineage == "" {
		lineage = product.LineageMixed
	}

	if !lineage.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrLineageInvalid, lineage)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	strain, counts, found, err := getStrainByFoldedName(ctx, tx, product.FoldName(name))
	if err != nil {
		return nil, err
	}

	ts := now()

	if !found {
		counts = map[string]int{string(lineage): 1}
		strain = product.Strain{
			Name:             name,
			CanonicalLineage: lineage,
			OccurrenceCount:  1,
			FirstSeen:        ts,
			LastSeen:         ts,
			Confidence:       1,
		}

		if sovereign {
			sv := lineage
			strain.SovereignLineage = &sv
		}

		if err := insertStrain(ctx, tx, &strain, counts); err != nil {
			return nil, err
		}
	} else {
		counts[string(lineage)]++
		strain.OccurrenceCount++
		strain.CanonicalLineage = majorityLineage(counts, lineage, strain.CanonicalLineage)
		strain.Confidence = lineageConfidence(counts, strain.CanonicalLineage)
		strain.LastSeen = ts

		if sovereign {
			sv := lineage
			strain.SovereignLineage = &sv
		}

		if err := updateStrain(ctx, tx, &strain, counts); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &strain, nil
}

// GetStrain fetches one strain by case-folded name.
func (s *Store) GetStrain(ctx context.Context, name string) (*product.Strain, bool, error) {
	if s.conn == nil {
		return nil, false, ErrNoDatabaseConnection
	}

	row := s.conn.QueryRowContext(ctx,
		`SELECT strain_name, canonical_lineage, sovereign_lineage, occurrence_count,
		        confidence, first_seen, last_seen
		 FROM strains WHERE normalized_name = ?`,
		product.FoldName(name),
	)

	strain, err := scanStrain(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	return &strain, true, nil
}

// EffectiveLineages resolves the exposed lineage for a batch of strain
// names. Keys in the returned map are case-folded names; unknown strains are
// absent. Implements the lineage source consumed by the tabular processor.
func (s *Store) EffectiveLineages(ctx context.Context, strains []string) (map[string]product.Lineage, error) {
	if s.conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	folded := make([]string, 0, len(strains))
	seen := make(map[string]bool, len(strains))

	for _, name := range strains {
		f := product.FoldName(name)
		if f == "" || seen[f] {
			continue
		}

		seen[f] = true

		folded = append(folded, f)
	}

	if len(folded) == 0 {
		return map[string]product.Lineage{}, nil
	}

	args := make([]any, len(folded))
	for i, f := range folded {
		args[i] = f
	}

	query := fmt.Sprintf(
		`SELECT normalized_name, canonical_lineage, sovereign_lineage FROM strains WHERE normalized_name IN (%s)`,
		strings.TrimSuffix(strings.Repeat("?, ", len(folded)), ", "),
	)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query strain lineages: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	lineages := make(map[string]product.Lineage, len(folded))

	for rows.Next() {
		var (
			foldedName string
			canonical  string
			sovereign  sql.NullString
		)

		if err := rows.Scan(&foldedName, &canonical, &sovereign); err != nil {
			return nil, err
		}

		strain := product.Strain{CanonicalLineage: product.Lineage(canonical)}
		if sovereign.Valid && sovereign.String != "" {
			sv := product.Lineage(sovereign.String)
			strain.SovereignLineage = &sv
		}

		lineages[foldedName] = strain.EffectiveLineage()
	}

	return lineages, rows.Err()
}

// UpdateStrainLineage writes an operator override for a strain and
// propagates the resulting lineage to every non-paraphernalia product row
// referencing it. Returns the number of product rows updated.
func (s *Store) UpdateStrainLineage(ctx context.Context, name string, lineage product.Lineage) (int64, error) {
	strain, err := s.AddOrUpdateStrain(ctx, name, lineage, true)
	if err != nil {
		return 0, err
	}

	result, err := s.conn.ExecContext(ctx,
		`UPDATE products SET lineage = ?, updated_at = ?
		 WHERE LOWER(TRIM(strain)) = ? AND product_type <> ?`,
		string(strain.EffectiveLineage()), now(),
		product.FoldName(name), string(product.TypeParaphernalia),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to propagate strain lineage: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	s.logger.Info("Updated strain lineage",
		slog.String("strain", strain.Name),
		slog.String("lineage", string(strain.EffectiveLineage())),
		slog.Int64("products_updated", affected),
	)

	return affected, nil
}

// AllStrains returns every strain record ordered by name.
func (s *Store) AllStrains(ctx context.Context) ([]product.Strain, error) {
	if s.conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT strain_name, canonical_lineage, sovereign_lineage, occurrence_count,
		        confidence, first_seen, last_seen
		 FROM strains ORDER BY normalized_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query strains: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var strains []product.Strain

	for rows.Next() {
		strain, err := scanStrain(rows)
		if err != nil {
			return nil, err
		}

		strains = append(strains, strain)
	}

	return strains, rows.Err()
}

// majorityLineage picks the canonical lineage from the vote tally. The most
// recent ingest wins ties; a previous canonical among the leaders stays put
// otherwise, and the remainder falls back to lexicographic order for
// determinism.
func majorityLineage(counts map[string]int, latest, previous product.Lineage) product.Lineage {
	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}

	tied := make(map[product.Lineage]bool, len(counts))
	for l, c := range counts {
		if c == maxCount {
			tied[product.Lineage(l)] = true
		}
	}

	if tied[latest] {
		return latest
	}

	if tied[previous] {
		return previous
	}

	names := make([]string, 0, len(tied))
	for l := range tied {
		names = append(names, string(l))
	}

	sort.Strings(names)

	return product.Lineage(names[0])
}

// lineageConfidence is the canonical lineage's share of all votes.
func lineageConfidence(counts map[string]int, canonical product.Lineage) float64 {
	total := 0
	for _, c := range counts {
		total += c
	}

	if total == 0 {
		return 0
	}

	return float64(counts[string(canonical)]) / float64(total)
}

// getStrainByFoldedName fetches a strain and its vote tally inside a
// transaction.
func getStrainByFoldedName(
	ctx context.Context,
	tx *sql.Tx,
	folded string,
) (product.Strain, map[string]int, bool, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT strain_name, canonical_lineage, sovereign_lineage, occurrence_count,
		        confidence, first_seen, last_seen, lineage_counts
		 FROM strains WHERE normalized_name = ?`,
		folded,
	)

	var (
		strain     product.Strain
		canonical  string
		sovereign  sql.NullString
		countsJSON string
	)

	err := row.Scan(
		&strain.Name, &canonical, &sovereign, &strain.OccurrenceCount,
		&strain.Confidence, &strain.FirstSeen, &strain.LastSeen, &countsJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return product.Strain{}, nil, false, nil
	}

	if err != nil {
		return product.Strain{}, nil, false, err
	}

	strain.CanonicalLineage = product.Lineage(canonical)

	if sovereign.Valid && sovereign.String != "" {
		sv := product.Lineage(sovereign.String)
		strain.SovereignLineage = &sv
	}

	counts := make(map[string]int)
	if countsJSON != "" {
		if err := json.Unmarshal([]byte(countsJSON), &counts); err != nil {
			return product.Strain{}, nil, false, fmt.Errorf(
				"failed to decode lineage counts for %q: %w", strain.Name, err)
		}
	}

	return strain, counts, true, nil
}

func insertStrain(ctx context.Context, tx *sql.Tx, strain *product.Strain, counts map[string]int) error {
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("failed to encode lineage counts for %q: %w", strain.Name, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO strains (strain_name, normalized_name, canonical_lineage, sovereign_lineage,
		                      occurrence_count, lineage_counts, confidence, first_seen, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strain.Name, product.FoldName(strain.Name), string(strain.CanonicalLineage),
		sovereignArg(strain), strain.OccurrenceCount, string(countsJSON),
		strain.Confidence, strain.FirstSeen, strain.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("failed to insert strain %q: %w", strain.Name, err)
	}

	return nil
}

func updateStrain(ctx context.Context, tx *sql.Tx, strain *product.Strain, counts map[string]int) error {
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("failed to encode lineage counts for %q: %w", strain.Name, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE strains SET canonical_lineage = ?, sovereign_lineage = ?, occurrence_count = ?,
		        lineage_counts = ?, confidence = ?, last_seen = ?
		 WHERE normalized_name = ?`,
		string(strain.CanonicalLineage), sovereignArg(strain), strain.OccurrenceCount,
		string(countsJSON), strain.Confidence, strain.LastSeen,
		product.FoldName(strain.Name),
	)
	if err != nil {
		return fmt.Errorf("failed to update strain %q: %w", strain.Name, err)
	}

	return nil
}

// sovereignArg renders the nullable sovereign lineage column value.
func sovereignArg(strain *product.Strain) any {
	if strain.SovereignLineage == nil {
		return nil
	}

	return string(*strain.SovereignLineage)
}

// scanStrain reads one strain row without its vote tally.
func scanStrain(scanner rowScanner) (product.Strain, error) {
	var (
		strain    product.Strain
		canonical string
		sovereign sql.NullString
	)

	err := scanner.Scan(
		&strain.Name, &canonical, &sovereign, &strain.OccurrenceCount,
		&strain.Confidence, &strain.FirstSeen, &strain.LastSeen,
	)
	if err != nil {
		return product.Strain{}, err
	}

	strain.CanonicalLineage = product.Lineage(canonical)

	if sovereign.Valid && sovereign.String != "" {
		sv := product.Lineage(sovereign.String)
		strain.SovereignLineage = &sv
	}

	return strain, nil
}
