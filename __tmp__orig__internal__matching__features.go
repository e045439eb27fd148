package matching

import (
	"math"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/labelforge-io/labelforge/internal/product"
)

// FeatureVector is the twelve similarity features computed per
// (feed item, table row) pair. All features are in [0, 1]; missing data
// scores the neutral 0.5 where the feature definition says so.
type FeatureVector struct {
	Text         float64 `json:"text_similarity"`
	Semantic     float64 `json:"semantic_similarity"`
	Weight       float64 `json:"weight_similarity"`
	Price        float64 `json:"price_similarity"`
	Vendor       float64 `json:"vendor_similarity"`
	Brand        float64 `json:"brand_similarity"`
	Type         float64 `json:"type_similarity"`
	Cannabinoid  float64 `json:"cannabinoid_similarity"`
	Length       float64 `json:"length_similarity"`
	TokenOverlap float64 `json:"token_overlap"`
	EditDistance float64 `json:"edit_distance"`
	Phonetic     float64 `json:"phonetic_similarity"`
}

// linearWeights is the fixed combination used when no trained ensemble is
// available. Length, token overlap, edit distance, and phonetic similarity
// feed the text/semantic features indirectly and carry no standalone weight.
var linearWeights = FeatureVector{
	Text:        0.25,
	Semantic:    0.20,
	Weight:      0.15,
	Vendor:      0.10,
	Brand:       0.10,
	Type:        0.08,
	Cannabinoid: 0.07,
	Price:       0.05,
}

// fixedConfidence is reported for fixed-weight scores.
const fixedConfidence = 0.6

// Slice renders the vector in a stable feature order, for the regressors.
func (v FeatureVector) Slice() []float64 {
	return []float64{
		v.Text, v.Semantic, v.Weight, v.Price, v.Vendor, v.Brand,
		v.Type, v.Cannabinoid, v.Length, v.TokenOverlap, v.EditDistance,
		v.Phonetic,
	}
}

// LinearScore is the fixed linear combination of the weighted features.
func (v FeatureVector) LinearScore() float64 {
	return v.Text*linearWeights.Text +
		v.Semantic*linearWeights.Semantic +
		v.Weight*linearWeights.Weight +
		v.Vendor*linearWeights.Vendor +
		v.Brand*linearWeights.Brand +
		v.Type*linearWeights.Type +
		v.Cannabinoid*linearWeights.Cannabinoid +
		v.Price*linearWeights.Price
}

// ComputeFeatures evaluates every similarity feature for one pair.
func ComputeFeatures(item Item, row *product.Product) FeatureVector {
	a := strings.ToLower(strings.TrimSpace(item.ProductName))
	b := strings.ToLower(strings.TrimSpace(row.Name))

	return FeatureVector{
		Text:         textSimilarity(a, b),
		Semantic:     tfidfCosine(a, b),
		Weight:       weightSimilarity(item, row),
		Price:        priceSimilarity(item.Price, row.Price),
		Vendor:       foldedRatio(item.Vendor, row.Vendor),
		Brand:        foldedRatio(item.Brand, row.Brand),
		Type:         typeSimilarity(item.InventoryType, row.Type),
		Cannabinoid:  cannabinoidSimilarity(item.Cannabinoids, row),
		Length:       lengthSimilarity(a, b),
		TokenOverlap: tokenOverlap(a, b),
		EditDistance: editSimilarity(a, b),
		Phonetic:     phoneticSimilarity(a, b),
	}
}

// textSimilarity is the weighted blend of the four fuzzy ratios: plain 0.3,
// partial 0.2, token-sort 0.3, token-set 0.2.
func textSimilarity(a, b string) float64 {
	return 0.3*ratio(a, b) +
		0.2*partialRatio(a, b) +
		0.3*ratio(sortTokens(a), sortTokens(b)) +
		0.2*tokenSetRatio(a, b)
}

// ratio is the plain similarity ratio: 1 − distance/maxlen.
func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}

	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1
	}

	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}

// partialRatio slides the shorter string across the longer and keeps the best
// same-length window ratio.
func partialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}

	if len(short) == 0 {
		return ratio(a, b)
	}

	best := 0.0

	for i := 0; i+len(short) <= len(long); i++ {
		window := string(long[i : i+len(short)])

		if r := ratio(string(short), window); r > best {
			best = r
		}

		if best == 1 {
			break
		}
	}

	return best
}

// sortTokens rebuilds a string from its whitespace tokens in sorted order.
func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)

	return strings.Join(tokens, " ")
}

// tokenSetRatio compares the sorted shared-token core against each side's
// core-plus-remainder and keeps the best ratio, so reordered or partially
// overlapping names still score high.
func tokenSetRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	var shared, onlyA, onlyB []string

	for token := range setA {
		if setB[token] {
			shared = append(shared, token)
		} else {
			onlyA = append(onlyA, token)
		}
	}

	for token := range setB {
		if !setA[token] {
			onlyB = append(onlyB, token)
		}
	}

	sort.Strings(shared)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	core := strings.Join(shared, " ")
	coreA := strings.TrimSpace(core + " " + strings.Join(onlyA, " "))
	coreB := strings.TrimSpace(core + " " + strings.Join(onlyB, " "))

	best := ratio(core, coreA)
	if r := ratio(core, coreB); r > best {
		best = r
	}

	if r := ratio(coreA, coreB); r > best {
		best = r
	}

	return best
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(s) {
		set[token] = true
	}

	return set
}

// tfidfCosine is the cosine similarity of TF-IDF vectors over word 1- and
// 2-grams of the two names, with the smoothed IDF over the two-document
// corpus.
func tfidfCosine(a, b string) float64 {
	gramsA := ngrams(a)
	gramsB := ngrams(b)

	if len(gramsA) == 0 || len(gramsB) == 0 {
		return 0
	}

	vocab := make(map[string]int)
	for gram := range gramsA {
		vocab[gram]++
	}

	for gram := range gramsB {
		vocab[gram]++
	}

	var dot, normA, normB float64

	for gram, df := range vocab {
		// Smoothed IDF over the two-document corpus.
		idf := math.Log(3.0/float64(1+df)) + 1

		wa := float64(gramsA[gram]) * idf
		wb := float64(gramsB[gram]) * idf

		dot += wa * wb
		normA += wa * wa
		normB += wb * wb
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ngrams counts word unigrams and bigrams.
func ngrams(s string) map[string]int {
	tokens := strings.Fields(s)
	grams := make(map[string]int, len(tokens)*2)

	for i, token := range tokens {
		grams[token]++

		if i+1 < len(tokens) {
			grams[token+" "+tokens[i+1]]++
		}
	}

	return grams
}

// weightSimilarity is min/max of the two weights normalized to grams, 0.5
// when either side is missing or non-numeric.
func weightSimilarity(item Item, row *product.Product) float64 {
	itemGrams, okItem := parseWeightToGrams(item.Weight)
	rowGrams, okRow := row.WeightGrams()

	if !okItem || !okRow || itemGrams <= 0 || rowGrams <= 0 {
		return 0.5
	}

	return math.Min(itemGrams, rowGrams) / math.Max(itemGrams, rowGrams)
}

// parseWeightToGrams reads a free-text weight ("3.5g", "1/8 oz", "100mg",
// bare number = grams) and normalizes to grams.
func parseWeightToGrams(raw string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}

	units := "g"

	switch {
	case strings.HasSuffix(s, "mg"):
		units = "mg"
	case strings.HasSuffix(s, "oz"):
		units = "oz"
	case strings.Contains(s, "/"):
		// Bare fractions are ounce fractions by trade convention.
		units = "oz"
	}

	magnitude, ok := product.ParseMagnitude(s)
	if !ok {
		return 0, false
	}

	return product.ToGrams(magnitude, units), true
}

// priceSimilarity is the min/max ratio with tolerance bands: ≥0.8 is a full
// match, ≥0.6 a near match. 0.5 when either price is missing.
func priceSimilarity(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0.5
	}

	r := math.Min(a, b) / math.Max(a, b)

	switch {
	case r >= 0.8:
		return 1.0
	case r >= 0.6:
		return 0.8
	default:
		return r
	}
}

// foldedRatio is the plain fuzzy ratio on case-folded values, 0.5 when
// either side is missing. Used for vendor and brand.
func foldedRatio(a, b string) float64 {
	fa := product.FoldName(a)
	fb := product.FoldName(b)

	if fa == "" || fb == "" {
		return 0.5
	}

	return ratio(fa, fb)
}

// typeSimilarity is 1.0 on normalized type equality, otherwise the fuzzy
// ratio; 0.5 when either side is missing.
func typeSimilarity(inventoryType string, rowType product.Type) float64 {
	if strings.TrimSpace(inventoryType) == "" || rowType == "" {
		return 0.5
	}

	parsed := product.ParseType(inventoryType)
	if parsed == rowType {
		return 1.0
	}

	return ratio(string(parsed), string(rowType))
}

// cannabinoidSimilarity averages the per-cannabinoid min/max ratios over the
// keys both sides report. 0.5 when no key overlaps.
func cannabinoidSimilarity(lab map[string]float64, row *product.Product) float64 {
	rowValues := map[string]float64{
		"thc":  row.THCPct,
		"cbd":  row.CBDPct,
		"thca": 0,
		"cbda": 0,
	}

	if row.THCPct == 0 && row.THCMg > 0 {
		rowValues["thc"] = row.THCMg
	}

	if row.CBDPct == 0 && row.CBDMg > 0 {
		rowValues["cbd"] = row.CBDMg
	}

	var (
		sum   float64
		count int
	)

	for key, itemValue := range lab {
		rowValue, ok := rowValues[key]
		if !ok || itemValue <= 0 || rowValue <= 0 {
			continue
		}

		sum += math.Min(itemValue, rowValue) / math.Max(itemValue, rowValue)
		count++
	}

	if count == 0 {
		return 0.5
	}

	return sum / float64(count)
}

// lengthSimilarity is min/max of the two name lengths.
func lengthSimilarity(a, b string) float64 {
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}

	return float64(min(la, lb)) / float64(max(la, lb))
}

// tokenOverlap is the Jaccard index of the whitespace token sets.
func tokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0

	for token := range setA {
		if setB[token] {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

// editSimilarity is 1 − Levenshtein/maxlen.
func editSimilarity(a, b string) float64 {
	return ratio(a, b)
}

// phoneticSimilarity is 1.0 when the Soundex codes of the two names agree,
// else 0.
func phoneticSimilarity(a, b string) float64 {
	if soundex(a) == soundex(b) {
		return 1.0
	}

	return 0
}

// soundexCodes maps letters onto the Soundex digit groups.
var soundexCodes = map[rune]byte{
	'b': '1', 'f': '1', 'p': '1', 'v': '1',
	'c': '2', 'g': '2', 'j': '2', 'k': '2', 'q': '2', 's': '2', 'x': '2', 'z': '2',
	'd': '3', 't': '3',
	'l': '4',
	'm': '5', 'n': '5',
	'r': '6',
}

// soundex computes the classic four-character Soundex code of a string's
// first word characters. Empty input yields an empty code.
func soundex(s string) string {
	var letters []rune

	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			letters = append(letters, r)
		}
	}

	if len(letters) == 0 {
		return ""
	}

	code := []byte{byte(letters[0] - 'a' + 'A')}
	prev := soundexCodes[letters[0]]

	for _, r := range letters[1:] {
		digit := soundexCodes[r]

		switch {
		case digit == 0:
			// Vowels and h/w/y reset the adjacency rule.
			if r != 'h' && r != 'w' {
				prev = 0
			}
		case digit != prev:
			code = append(code, digit)
			prev = digit
		}

		if len(code) == 4 {
			break
		}
	}

	for len(code) < 4 {
		code = append(code, '0')
	}

	return string(code)
}


