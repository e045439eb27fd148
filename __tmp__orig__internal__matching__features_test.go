package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/labelforge-io/labelforge/internal/product"
)

func TestTextSimilarity_IdenticalNames(t *testing.T) {
	assert.InDelta(t, 1.0, textSimilarity("blue dream 3.5g", "blue dream 3.5g"), 1e-9)
}

func TestTextSimilarity_ReorderedTokens(t *testing.T) {
	// Token-sort and token-set ratios rescue reordered names.
	s := textSimilarity("blue dream 3.5g", "3.5g dream blue")
	assert.Greater(t, s, 0.6)
}

func TestTextSimilarity_UnrelatedNames(t *testing.T) {
	s := textSimilarity("blue dream flower", "glass pipe accessory")
	assert.Less(t, s, 0.4)
}

func TestPartialRatio_Substring(t *testing.T) {
	assert.InDelta(t, 1.0, partialRatio("dream", "blue dream 3.5g"), 1e-9)
}

func TestWeightSimilarity_UnitConversion(t *testing.T) {
	row := &product.Product{Weight: "3.5", Units: "g"}

	assert.InDelta(t, 1.0, weightSimilarity(Item{Weight: "3.5g"}, row), 1e-9)
	assert.InDelta(t, 1.0, weightSimilarity(Item{Weight: "3500mg"}, row), 1e-9)

	oz := &product.Product{Weight: "1", Units: "oz"}
	assert.InDelta(t, 1.0, weightSimilarity(Item{Weight: "1/8 oz"}, &product.Product{Weight: "0.125", Units: "oz"}), 1e-9)
	assert.InDelta(t, 3.5/28.35, weightSimilarity(Item{Weight: "3.5g"}, oz), 1e-6)
}

func TestWeightSimilarity_MissingIsNeutral(t *testing.T) {
	row := &product.Product{Weight: "3.5", Units: "g"}

	assert.InDelta(t, 0.5, weightSimilarity(Item{}, row), 1e-9)
	assert.InDelta(t, 0.5, weightSimilarity(Item{Weight: "heavy"}, row), 1e-9)
	assert.InDelta(t, 0.5, weightSimilarity(Item{Weight: "3.5g"}, &product.Product{Units: "each"}), 1e-9)
}

func TestPriceSimilarity_ToleranceBands(t *testing.T) {
	assert.InDelta(t, 1.0, priceSimilarity(10, 9), 1e-9)
	assert.InDelta(t, 0.8, priceSimilarity(10, 7), 1e-9)
	assert.InDelta(t, 0.4, priceSimilarity(10, 4), 1e-9)
	assert.InDelta(t, 0.5, priceSimilarity(0, 10), 1e-9)
}

func TestFoldedRatio_CaseInsensitive(t *testing.T) {
	assert.InDelta(t, 1.0, foldedRatio("Acme Gardens", "ACME GARDENS"), 1e-9)
	assert.InDelta(t, 0.5, foldedRatio("", "Acme Gardens"), 1e-9)
}

func TestTypeSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, typeSimilarity("usable marijuana", product.TypeFlower), 1e-9)
	assert.InDelta(t, 0.5, typeSimilarity("", product.TypeFlower), 1e-9)
	assert.Less(t, typeSimilarity("topical", product.TypeFlower), 1.0)
}

func TestCannabinoidSimilarity(t *testing.T) {
	row := &product.Product{THCPct: 20, CBDPct: 1}

	s := cannabinoidSimilarity(map[string]float64{"thc": 10, "cbd": 1}, row)
	assert.InDelta(t, (0.5+1.0)/2, s, 1e-9)

	assert.InDelta(t, 0.5, cannabinoidSimilarity(nil, row), 1e-9)
	assert.InDelta(t, 0.5, cannabinoidSimilarity(map[string]float64{"thca": 5}, row), 1e-9)
}

func TestSoundex_KnownCodes(t *testing.T) {
	assert.Equal(t, "R163", soundex("Robert"))
	assert.Equal(t, "R163", soundex("Rupert"))
	assert.Equal(t, "T522", soundex("Tymczak"))
	assert.Equal(t, "H555", soundex("Honeyman"))
	assert.Equal(t, "", soundex("3.5"))
}

func TestLinearScore_WeightsSumToOne(t *testing.T) {
	all := FeatureVector{
		Text: 1, Semantic: 1, Weight: 1, Price: 1, Vendor: 1, Brand: 1,
		Type: 1, Cannabinoid: 1, Length: 1, TokenOverlap: 1, EditDistance: 1,
		Phonetic: 1,
	}

	assert.InDelta(t, 1.0, all.LinearScore(), 1e-9)
	assert.InDelta(t, 0.0, FeatureVector{}.LinearScore(), 1e-9)
}

func TestComputeFeatures_AllInRange(t *testing.T) {
	item := Item{
		ProductName:   "Blue Dream - 3.5g",
		Vendor:        "Acme Gardens",
		Brand:         "Acme",
		InventoryType: "usable marijuana",
		Weight:        "3.5g",
		Price:         30,
		Cannabinoids:  map[string]float64{"thc": 22.1},
	}
	row := &product.Product{
		Name:   "Blue Dream 3.5g",
		Vendor: "Acme Gardens",
		Brand:  "Acme",
		Type:   product.TypeFlower,
		Weight: "3.5",
		Units:  "g",
		Price:  28,
		THCPct: 21.8,
	}

	v := ComputeFeatures(item, row)

	for i, f := range v.Slice() {
		assert.GreaterOrEqual(t, f, 0.0, "feature %d below range", i)
		assert.LessOrEqual(t, f, 1.0, "feature %d above range", i)
	}

	assert.InDelta(t, 1.0, v.Vendor, 1e-9)
	assert.InDelta(t, 1.0, v.Type, 1e-9)
	assert.Greater(t, v.Text, 0.85)
	assert.Greater(t, v.LinearScore(), 0.8)
}


