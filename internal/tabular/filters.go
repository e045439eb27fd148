package tabular

import (
	"sort"
	"strings"

	"github.com/labelforge-io/labelforge/internal/product"
)

// Filter categories served by the dropdown cache and the faceted options.
const (
	CategoryVendor  = "vendor"
	CategoryBrand   = "brand"
	CategoryType    = "product_type"
	CategoryLineage = "lineage"
	CategoryWeight  = "weight"
	CategoryStrain  = "strain"
	CategoryDOH     = "doh"
)

// Categories returns the filterable categories in display order.
func Categories() []string {
	return []string{
		CategoryVendor,
		CategoryBrand,
		CategoryType,
		CategoryLineage,
		CategoryWeight,
		CategoryStrain,
		CategoryDOH,
	}
}

// Filters is one multi-valued selection per category. An empty slice means no
// restriction. Values within a category OR together; categories AND together.
// Comparison is case-folded.
type Filters struct {
	Vendors  []string `json:"vendor,omitempty"`
	Brands   []string `json:"brand,omitempty"`
	Types    []string `json:"product_type,omitempty"`
	Lineages []string `json:"lineage,omitempty"`
	Weights  []string `json:"weight,omitempty"`
	Strains  []string `json:"strain,omitempty"`
	DOH      []string `json:"doh,omitempty"`
}

// IsZero checks if no category carries an active selection.
func (f Filters) IsZero() bool {
	return len(f.Vendors) == 0 &&
		len(f.Brands) == 0 &&
		len(f.Types) == 0 &&
		len(f.Lineages) == 0 &&
		len(f.Strains) == 0 &&
		len(f.Weights) == 0 &&
		len(f.DOH) == 0
}

// values returns the active selection for a category.
func (f Filters) values(category string) []string {
	switch category {
	case CategoryVendor:
		return f.Vendors
	case CategoryBrand:
		return f.Brands
	case CategoryType:
		return f.Types
	case CategoryLineage:
		return f.Lineages
	case CategoryWeight:
		return f.Weights
	case CategoryStrain:
		return f.Strains
	case CategoryDOH:
		return f.DOH
	default:
		return nil
	}
}

// categoryValue extracts a row's value for a filter category. Weight filters
// on the rendered CombinedWeight string, matching what the dropdown shows.
func categoryValue(row *product.Product, category string) string {
	switch category {
	case CategoryVendor:
		return row.Vendor
	case CategoryBrand:
		return row.Brand
	case CategoryType:
		return string(row.Type)
	case CategoryLineage:
		return string(row.Lineage)
	case CategoryWeight:
		return row.CombinedWeight
	case CategoryStrain:
		return row.Strain
	case CategoryDOH:
		return row.DOH
	default:
		return ""
	}
}

// matches reports whether the row satisfies every category's selection except
// skip. Pass an empty skip to check all categories.
func (f Filters) matches(row *product.Product, skip string) bool {
	for _, category := range Categories() {
		if category == skip {
			continue
		}

		selected := f.values(category)
		if len(selected) == 0 {
			continue
		}

		value := categoryValue(row, category)

		found := false

		for _, want := range selected {
			if strings.EqualFold(strings.TrimSpace(want), strings.TrimSpace(value)) {
				found = true

				break
			}
		}

		if !found {
			return false
		}
	}

	return true
}

// ApplyFilters returns copies of the non-archived rows satisfying all active
// filters.
func (p *Processor) ApplyFilters(f Filters) []product.Product {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rows := make([]product.Product, 0, len(p.rows))

	for i := range p.rows {
		if p.rows[i].Archived {
			continue
		}

		if !f.matches(&p.rows[i], "") {
			continue
		}

		rows = append(rows, p.rows[i].Clone())
	}

	return rows
}

// FilterOptions returns, per category, the sorted unique values that remain
// selectable given every other category's active selection. With no active
// filters this is the precomputed dropdown cache.
func (p *Processor) FilterOptions(f Filters) map[string][]string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if f.IsZero() {
		return copyOptions(p.dropdowns)
	}

	options := make(map[string][]string, len(Categories()))

	for _, category := range Categories() {
		unique := make(map[string]struct{})

		for i := range p.rows {
			if p.rows[i].Archived {
				continue
			}

			// A category's own selection must not narrow its options,
			// otherwise picking one value hides the others.
			if !f.matches(&p.rows[i], category) {
				continue
			}

			if value := categoryValue(&p.rows[i], category); value != "" {
				unique[value] = struct{}{}
			}
		}

		options[category] = sortedValues(unique)
	}

	return options
}

// computeDropdowns precomputes the unfiltered sorted unique values per
// category over non-archived rows.
func computeDropdowns(rows []product.Product) map[string][]string {
	unique := make(map[string]map[string]struct{}, len(Categories()))
	for _, category := range Categories() {
		unique[category] = make(map[string]struct{})
	}

	for i := range rows {
		if rows[i].Archived {
			continue
		}

		for _, category := range Categories() {
			if value := categoryValue(&rows[i], category); value != "" {
				unique[category][value] = struct{}{}
			}
		}
	}

	options := make(map[string][]string, len(Categories()))
	for _, category := range Categories() {
		options[category] = sortedValues(unique[category])
	}

	return options
}

func sortedValues(set map[string]struct{}) []string {
	values := make([]string, 0, len(set))
	for value := range set {
		values = append(values, value)
	}

	sort.Strings(values)

	return values
}

func copyOptions(options map[string][]string) map[string][]string {
	copied := make(map[string][]string, len(options))
	for category, values := range options {
		copied[category] = append([]string(nil), values...)
	}

	return copied
}
