package product

import (
	"strings"
)

// NormalizeLineage normalizes free-text lineage input to one of the
// enumerated values, applying the product-type defaulting rules.
//
// Normalization rules:
//  1. Paraphernalia products are always PARAPHERNALIA, regardless of input.
//  2. Separator standardization: "INDICA_HYBRID", "INDICA HYBRID",
//     "HYBRID-INDICA" and friends all resolve to "HYBRID/INDICA"
//     (symmetrically for sativa); "CBD BLEND" and "CBD-BLEND" resolve to
//     "CBD_BLEND".
//  3. Empty or NaN-like input defaults to HYBRID for classic types and
//     MIXED for nonclassic types.
//  4. Anything else that is not an enumerated value becomes MIXED.
//
// Rationale:
// Spreadsheets from different vendors spell lineage inconsistently. Without
// normalization the same strain splits across several lineage buckets and
// the catalog's majority vote degrades.
func NormalizeLineage(raw string, productType Type) Lineage {
	if productType == TypeParaphernalia {
		return LineageParaphernalia
	}

	value := strings.ToUpper(strings.TrimSpace(raw))

	if value == "" || value == "NAN" || value == "N/A" || value == "NONE" {
		if productType.IsClassic() {
			return LineageHybrid
		}

		return LineageMixed
	}

	// Fold separators so spelling variants land on one key.
	folded := value
	for _, sep := range []string{"_", "-", " "} {
		folded = strings.ReplaceAll(folded, sep, "/")
	}

	switch folded {
	case "INDICA/HYBRID", "HYBRID/INDICA":
		return LineageHybridIndica
	case "SATIVA/HYBRID", "HYBRID/SATIVA":
		return LineageHybridSativa
	case "CBD/BLEND":
		return LineageCBDBlend
	}

	if lineage := Lineage(value); lineage.IsValid() {
		return lineage
	}

	return LineageMixed
}

// ParseType normalizes free-text product-type input: case-folded, parentheses
// dropped, whitespace collapsed, with spelling variants mapped onto the
// enumerated types. Unknown types are preserved as their normalized text and
// treated as nonclassic.
func ParseType(raw string) Type {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.NewReplacer("(", " ", ")", " ", "_", " ").Replace(value)
	value = strings.Join(strings.Fields(value), " ")

	switch value {
	case "usable marijuana", "usable mj":
		// Traceability feeds say "usable_marijuana" where sheets say flower.
		return TypeFlower
	case "pre roll", "preroll", "pre-roll":
		return TypePreRoll
	case "infused pre roll", "infused preroll", "infused pre-roll":
		return TypeInfusedPreRoll
	case "vape cart", "vape cartridge", "cartridge":
		return TypeVapeCartridge
	case "edible", "edible solid", "edibles":
		return TypeEdibleSolid
	case "edible liquid", "liquid edible", "beverage", "drink":
		return TypeEdibleLiquid
	case "solventless", "solventless concentrate":
		return TypeSolventlessConcentrate
	case "rso", "co2 tanker", "rso/co2 tanker", "rso co2 tanker":
		return TypeRSOCO2Tanker
	case "capsules":
		return TypeCapsule
	case "topicals":
		return TypeTopical
	case "tinctures":
		return TypeTincture
	}

	return Type(value)
}

// NormalizeUnits standardizes weight units ("Grams" → "g", "Ounce" → "oz").
// Unknown units pass through lowercased.
func NormalizeUnits(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "g", "gram", "grams":
		return "g"
	case "oz", "ounce", "ounces":
		return "oz"
	case "mg", "milligram", "milligrams":
		return "mg"
	case "ea", "each":
		return "each"
	case "":
		return ""
	default:
		return strings.ToLower(strings.TrimSpace(raw))
	}
}

// NormalizeDOH standardizes the DOH compliance flag to "Yes"/"No".
// Unrecognized input defaults to "No".
func NormalizeDOH(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "true", "1", "doh":
		return "Yes"
	default:
		return "No"
	}
}


