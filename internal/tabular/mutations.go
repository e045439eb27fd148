package tabular

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/labelforge-io/labelforge/internal/product"
)

// LineageSource resolves authoritative lineages for strain names. The catalog
// store implements it; keys of the returned map are case-folded strain names.
type LineageSource interface {
	EffectiveLineages(ctx context.Context, strains []string) (map[string]product.Lineage, error)
}

// UpdateLineage sets the lineage on every row whose name case-folds to name,
// recomputes the rows' derived fields, and invalidates the dropdown cache.
// It reports false when the lineage is invalid or no row matched.
// Paraphernalia rows keep lineage PARAPHERNALIA no matter what was requested.
func (p *Processor) UpdateLineage(name string, lineage product.Lineage) bool {
	if !lineage.IsValid() {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	indexes := p.byName[product.FoldName(name)]
	if len(indexes) == 0 {
		return false
	}

	for _, i := range indexes {
		if p.rows[i].Type == product.TypeParaphernalia {
			p.rows[i].Lineage = product.LineageParaphernalia
		} else {
			p.rows[i].Lineage = lineage
		}

		p.rows[i].ComputeDerived()
	}

	p.dropdowns = computeDropdowns(p.rows)

	return true
}

// UpdateDOH sets the DOH compliance flag on every row whose name case-folds
// to name and invalidates the dropdown cache. It reports false when no row
// matched.
func (p *Processor) UpdateDOH(name, flag string) bool {
	normalized := product.NormalizeDOH(flag)

	p.mu.Lock()
	defer p.mu.Unlock()

	indexes := p.byName[product.FoldName(name)]
	if len(indexes) == 0 {
		return false
	}

	for _, i := range indexes {
		p.rows[i].DOH = normalized
	}

	p.dropdowns = computeDropdowns(p.rows)

	return true
}

// EnsureLineagePersistence reconciles every row's lineage against the
// catalog's effective strain lineage, which is authoritative over per-row
// inputs. It returns the number of rows updated.
//
// The strain snapshot is taken under the read lock, the catalog query runs
// with no lock held, and the reconciliation reacquires the write lock.
func (p *Processor) EnsureLineagePersistence(ctx context.Context, source LineageSource) (int, error) {
	p.mu.RLock()

	strains := make([]string, 0, len(p.rows))
	seen := make(map[string]struct{}, len(p.rows))

	for i := range p.rows {
		strain := p.rows[i].Strain
		if strain == "" {
			continue
		}

		folded := product.FoldName(strain)
		if _, ok := seen[folded]; ok {
			continue
		}

		strains = append(strains, strain)
		seen[folded] = struct{}{}
	}

	p.mu.RUnlock()

	if len(strains) == 0 {
		return 0, nil
	}

	effective, err := source.EffectiveLineages(ctx, strains)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve strain lineages: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	updated := 0

	for i := range p.rows {
		if p.rows[i].Strain == "" || p.rows[i].Type == product.TypeParaphernalia {
			continue
		}

		lineage, ok := effective[product.FoldName(p.rows[i].Strain)]
		if !ok || lineage == "" || p.rows[i].Lineage == lineage {
			continue
		}

		p.rows[i].Lineage = lineage
		p.rows[i].ComputeDerived()
		updated++
	}

	if updated > 0 {
		p.dropdowns = computeDropdowns(p.rows)

		p.logger.Info("reconciled lineages from catalog",
			slog.Int("updated", updated),
			slog.Int("strains", len(strains)))
	}

	return updated, nil
}
