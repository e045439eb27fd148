package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadFilterFixture loads a small table spanning two vendors, three types,
// and mixed DOH flags.
func loadFilterFixture(t *testing.T) *Processor {
	t.Helper()

	path := writeWorkbook(t, standardHeader, [][]string{
		{"Blue Dream - 3.5g", "Grow Co", "Top Shelf", "flower", "sativa", "Blue Dream", "", "3.5", "g", "25", "", "", "", "Yes"},
		{"OG Kush - 1g", "Grow Co", "Top Shelf", "flower", "indica", "OG Kush", "", "1", "g", "10", "", "", "", "No"},
		{"Dream Roll 0.5g x 2 Pack", "Grow Co", "Budget", "pre-roll", "sativa", "Blue Dream", "", "1", "g", "8", "", "", "", "No"},
		{"Gummy Bears - 100mg", "Edible Co", "Sweet Leaf", "edible (solid)", "", "", "", "100", "mg", "18", "", "", "", "Yes"},
	})

	p := newTestProcessor()
	require.NoError(t, p.Load(path))

	return p
}

func TestApplyFilters_NoFiltersReturnsEverything(t *testing.T) {
	p := loadFilterFixture(t)

	rows := p.ApplyFilters(Filters{})
	assert.Len(t, rows, 4)
}

func TestApplyFilters_AndAcrossCategories(t *testing.T) {
	p := loadFilterFixture(t)

	rows := p.ApplyFilters(Filters{
		Vendors: []string{"Grow Co"},
		Types:   []string{"flower"},
	})

	require.Len(t, rows, 2)

	for _, row := range rows {
		assert.Equal(t, "Grow Co", row.Vendor)
		assert.Equal(t, "flower", string(row.Type))
	}
}

func TestApplyFilters_OrWithinCategory(t *testing.T) {
	p := loadFilterFixture(t)

	rows := p.ApplyFilters(Filters{
		Types: []string{"flower", "pre-roll"},
	})

	assert.Len(t, rows, 3)
}

func TestApplyFilters_CaseFolded(t *testing.T) {
	p := loadFilterFixture(t)

	rows := p.ApplyFilters(Filters{
		Vendors: []string{"grow co"},
	})

	assert.Len(t, rows, 3)
}

func TestApplyFilters_DOH(t *testing.T) {
	p := loadFilterFixture(t)

	rows := p.ApplyFilters(Filters{
		DOH: []string{"Yes"},
	})

	require.Len(t, rows, 2)

	for _, row := range rows {
		assert.Equal(t, "Yes", row.DOH)
	}
}

func TestApplyFilters_NoMatchesIsEmptyNotNilError(t *testing.T) {
	p := loadFilterFixture(t)

	rows := p.ApplyFilters(Filters{
		Vendors: []string{"Grow Co"},
		Brands:  []string{"Sweet Leaf"},
	})

	assert.Empty(t, rows)
}

func TestFilterOptions_Unfiltered(t *testing.T) {
	p := loadFilterFixture(t)

	options := p.FilterOptions(Filters{})

	assert.Equal(t, []string{"Edible Co", "Grow Co"}, options[CategoryVendor])
	assert.Equal(t, []string{"edible solid", "flower", "pre-roll"}, options[CategoryType])
	assert.Equal(t, []string{"INDICA", "MIXED", "SATIVA"}, options[CategoryLineage])
	assert.Equal(t, []string{"No", "Yes"}, options[CategoryDOH])
	assert.Equal(t, []string{"0.5g x 2 Pack", "100mg", "1g", "3.5g"}, options[CategoryWeight])
}

func TestFilterOptions_FacetedByOtherCategories(t *testing.T) {
	p := loadFilterFixture(t)

	options := p.FilterOptions(Filters{
		Vendors: []string{"Grow Co"},
	})

	// Brand options narrow to the selected vendor's brands.
	assert.Equal(t, []string{"Budget", "Top Shelf"}, options[CategoryBrand])

	// A category's own selection never narrows its own options.
	assert.Equal(t, []string{"Edible Co", "Grow Co"}, options[CategoryVendor])
}

func TestFilterOptions_CacheRefreshedAfterMutation(t *testing.T) {
	p := loadFilterFixture(t)

	before := p.FilterOptions(Filters{})
	assert.NotContains(t, before[CategoryLineage], "HYBRID/INDICA")

	require.True(t, p.UpdateLineage("OG Kush - 1g", "HYBRID/INDICA"))

	after := p.FilterOptions(Filters{})
	assert.Contains(t, after[CategoryLineage], "HYBRID/INDICA")
	assert.NotContains(t, after[CategoryLineage], "INDICA")
}


