package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/labelforge-io/labelforge/internal/product"
)

// Batch repair operations. Each loads every product row, recomputes one
// family of derived or defaulted fields with the ingest rules, and writes
// back only the rows that changed.

// PopulateMissingColumns fills ingest defaults into empty cells (strain,
// ratio, DOH, lineage) and refreshes every derived field. It is the broad
// repair run after a schema extension leaves new columns empty.
func (s *Store) PopulateMissingColumns(ctx context.Context) (int, error) {
	updated, err := s.repairProducts(ctx, func(p *product.Product) bool {
		changed := false

		if p.Type == product.TypeParaphernalia {
			if p.Lineage != product.LineageParaphernalia {
				p.Lineage = product.LineageParaphernalia
				changed = true
			}
		} else if strings.TrimSpace(p.Strain) == "" {
			p.Strain = product.DefaultStrain
			changed = true
		}

		if strings.TrimSpace(p.Ratio) == "" {
			p.Ratio = product.RatioPlaceholder
			changed = true
		}

		if strings.TrimSpace(p.DOH) == "" {
			p.DOH = "No"
			changed = true
		}

		if !p.Lineage.IsValid() {
			p.Lineage = product.NormalizeLineage(string(p.Lineage), p.Type)
			changed = true
		}

		return recomputeDerived(p) || changed
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Populated missing columns", slog.Int("products_updated", updated))

	return updated, nil
}

// UpdateAllDescriptions recomputes the description-and-weight label field
// and the description complexity bucket on every row.
func (s *Store) UpdateAllDescriptions(ctx context.Context) (int, error) {
	updated, err := s.repairProducts(ctx, func(p *product.Product) bool {
		clone := p.Clone()
		clone.ComputeDerived()

		if p.DescAndWeight == clone.DescAndWeight &&
			p.DescriptionComplexity == clone.DescriptionComplexity {
			return false
		}

		p.DescAndWeight = clone.DescAndWeight
		p.DescriptionComplexity = clone.DescriptionComplexity

		return true
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Updated all descriptions", slog.Int("products_updated", updated))

	return updated, nil
}

// UpdateAllRatioOrTHCCBD fills the ratio placeholder into empty ratio cells
// and recomputes the rendered cannabinoid block on every row.
func (s *Store) UpdateAllRatioOrTHCCBD(ctx context.Context) (int, error) {
	updated, err := s.repairProducts(ctx, func(p *product.Product) bool {
		changed := false

		if strings.TrimSpace(p.Ratio) == "" {
			p.Ratio = product.RatioPlaceholder
			changed = true
		}

		clone := p.Clone()
		clone.ComputeDerived()

		if p.RatioOrTHCCBD != clone.RatioOrTHCCBD {
			p.RatioOrTHCCBD = clone.RatioOrTHCCBD
			changed = true
		}

		return changed
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Updated all ratio blocks", slog.Int("products_updated", updated))

	return updated, nil
}

// UpdateAllJointRatios reparses pre-roll pack patterns from product names
// and refreshes the joint ratio and combined weight on every row.
func (s *Store) UpdateAllJointRatios(ctx context.Context) (int, error) {
	updated, err := s.repairProducts(ctx, func(p *product.Product) bool {
		clone := p.Clone()
		clone.ComputeDerived()

		if p.JointRatio == clone.JointRatio && p.CombinedWeight == clone.CombinedWeight {
			return false
		}

		p.JointRatio = clone.JointRatio
		p.CombinedWeight = clone.CombinedWeight

		return true
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Updated all joint ratios", slog.Int("products_updated", updated))

	return updated, nil
}

// UpdateAllProductStrains fills the default strain into empty cells and
// re-reconciles every row's lineage against the strain catalog, which is
// authoritative over per-row values.
func (s *Store) UpdateAllProductStrains(ctx context.Context) (int, error) {
	if s.conn == nil {
		return 0, ErrNoDatabaseConnection
	}

	rows, err := s.AllProducts(ctx)
	if err != nil {
		return 0, err
	}

	filled := make(map[int]bool)

	for i := range rows {
		if rows[i].Type != product.TypeParaphernalia && strings.TrimSpace(rows[i].Strain) == "" {
			rows[i].Strain = product.DefaultStrain
			filled[i] = true
		}
	}

	names := make([]string, 0, len(rows))
	for i := range rows {
		if rows[i].Strain != "" {
			names = append(names, rows[i].Strain)
		}
	}

	effective, err := s.EffectiveLineages(ctx, names)
	if err != nil {
		return 0, err
	}

	var changed []*product.Product

	for i := range rows {
		p := &rows[i]

		if p.Type == product.TypeParaphernalia {
			if p.Lineage != product.LineageParaphernalia {
				p.Lineage = product.LineageParaphernalia
				changed = append(changed, p)
			}

			continue
		}

		rowChanged := filled[i]

		if lineage, ok := effective[product.FoldName(p.Strain)]; ok && lineage != "" && p.Lineage != lineage {
			p.Lineage = lineage
			rowChanged = true
		}

		if rowChanged {
			changed = append(changed, p)
		}
	}

	updated, err := s.writeRepairedRows(ctx, changed)
	if err != nil {
		return 0, err
	}

	s.logger.Info("Updated all product strains", slog.Int("products_updated", updated))

	return updated, nil
}

// repairProducts applies transform to every product row and persists the
// rows it reports as changed, all in one transaction.
func (s *Store) repairProducts(ctx context.Context, transform func(*product.Product) bool) (int, error) {
	if s.conn == nil {
		return 0, ErrNoDatabaseConnection
	}

	rows, err := s.AllProducts(ctx)
	if err != nil {
		return 0, err
	}

	var changed []*product.Product

	for i := range rows {
		if transform(&rows[i]) {
			changed = append(changed, &rows[i])
		}
	}

	return s.writeRepairedRows(ctx, changed)
}

func (s *Store) writeRepairedRows(ctx context.Context, changed []*product.Product) (int, error) {
	if len(changed) == 0 {
		return 0, nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	for _, row := range changed {
		if err := updateProduct(ctx, tx, row); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(changed), nil
}

// recomputeDerived refreshes the derived fields in place and reports whether
// any of them changed.
func recomputeDerived(p *product.Product) bool {
	prevJoint := p.JointRatio
	prevWeight := p.CombinedWeight
	prevDesc := p.DescAndWeight
	prevRatio := p.RatioOrTHCCBD
	prevComplexity := p.DescriptionComplexity

	p.ComputeDerived()

	return p.JointRatio != prevJoint ||
		p.CombinedWeight != prevWeight ||
		p.DescAndWeight != prevDesc ||
		p.RatioOrTHCCBD != prevRatio ||
		p.DescriptionComplexity != prevComplexity
}


