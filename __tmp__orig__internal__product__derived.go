package product

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	gramsPerOunce     = 28.35
	milligramsPerGram = 1000.0

	maxDescriptionComplexity = 5
)

// Joint-ratio patterns, tried in order against the product name. The first
// match wins.
var jointRatioPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+\.?\d*)g\s*x\s*(\d+)\s*pack`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)g\s*x\s*(\d+)`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)g\s*$`),
}

// conventionalWeights maps nonclassic product types to the conventional
// ounce weight printed on their labels. When such a product's source weight
// is in grams, the conventional value replaces the literal conversion.
// The paraphernalia entry renders as a count rather than a weight.
var conventionalWeights = map[Type]string{
	TypeEdibleSolid:   "2.5oz",
	TypeEdibleLiquid:  "2.5oz",
	TypeTincture:      "1oz",
	TypeTopical:       "2oz",
	TypeCapsule:       "2oz",
	TypeParaphernalia: "each",
}

// ConventionalWeightFor returns the conventional label weight for a
// nonclassic type, or "" when the type has none and the literal weight
// should be rendered.
func ConventionalWeightFor(t Type) string {
	return conventionalWeights[t]
}

// OverrideConventionalWeight replaces or adds a conventional-weight entry.
// Used by the optional YAML normalization config.
func OverrideConventionalWeight(t Type, rendered string) {
	conventionalWeights[t] = rendered
}

// ParseMagnitude parses a weight or price magnitude from spreadsheet text.
// Handles plain decimals ("3.5"), currency markers ("$25.00"), and vulgar
// fractions ("1/8", "1/8 oz" → 0.125).
func ParseMagnitude(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	s = strings.TrimPrefix(s, "$")

	// Strip a trailing unit if one rode along in the cell.
	s = strings.TrimSpace(strings.TrimSuffix(s, "oz"))
	s = strings.TrimSpace(strings.TrimSuffix(s, "mg"))
	s = strings.TrimSpace(strings.TrimSuffix(s, "g"))

	if num, denom, found := strings.Cut(s, "/"); found {
		n, errN := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, errD := strconv.ParseFloat(strings.TrimSpace(denom), 64)

		if errN == nil && errD == nil && d != 0 {
			return n / d, true
		}

		return 0, false
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}

	return value, true
}

// ToGrams converts a magnitude in the given unit to grams. Fractions in the
// raw magnitude are expanded by ParseMagnitude before calling this.
func ToGrams(magnitude float64, units string) float64 {
	switch NormalizeUnits(units) {
	case "oz":
		return magnitude * gramsPerOunce
	case "mg":
		return magnitude / milligramsPerGram
	default:
		return magnitude
	}
}

// WeightGrams returns the product's weight normalized to grams, or false when
// the weight cell is missing or non-numeric.
func (p *Product) WeightGrams() (float64, bool) {
	magnitude, ok := ParseMagnitude(p.Weight)
	if !ok {
		return 0, false
	}

	// A bare "1/8" with no unit column is an eighth of an ounce by trade
	// convention.
	units := p.Units
	if units == "" && strings.Contains(p.Weight, "/") {
		units = "oz"
	}

	return ToGrams(magnitude, units), true
}

// FormatMagnitude renders a weight magnitude without a trailing ".0" on
// integral values: 1.0 → "1", 3.50 → "3.5".
func FormatMagnitude(magnitude float64) string {
	return strconv.FormatFloat(magnitude, 'f', -1, 64)
}

// ComputeDerived recomputes every derived field in place. Call after any
// mutation of the source fields; ingest and the catalog batch repairs both
// route through it.
func (p *Product) ComputeDerived() {
	p.JointRatio = p.deriveJointRatio()
	p.CombinedWeight = p.deriveCombinedWeight()
	p.DescAndWeight = p.deriveDescAndWeight()
	p.RatioOrTHCCBD = p.deriveRatioOrTHCCBD()
	p.DescriptionComplexity = descriptionComplexity(p.labelDescription())
}

// deriveJointRatio parses the product name against the joint-ratio patterns
// for pre-roll types, falling back to the weight field when numeric.
// A single-joint match renders "Xg"; multi-packs render "Xg x N Pack".
func (p *Product) deriveJointRatio() string {
	if !p.Type.IsPreRollType() {
		return ""
	}

	for _, pattern := range jointRatioPatterns {
		match := pattern.FindStringSubmatch(p.Name)
		if match == nil {
			continue
		}

		grams := match[1]

		count := 1
		if len(match) > 2 && match[2] != "" {
			if n, err := strconv.Atoi(match[2]); err == nil {
				count = n
			}
		}

		if count <= 1 {
			return grams + "g"
		}

		return fmt.Sprintf("%sg x %d Pack", grams, count)
	}

	if magnitude, ok := ParseMagnitude(p.Weight); ok {
		return FormatMagnitude(magnitude) + "g"
	}

	return ""
}

// deriveCombinedWeight renders magnitude+unit as one string.
//
// Pre-roll types reuse the joint ratio so the pack count reaches the label.
// Classic types render the literal magnitude with the ".0" suffix stripped.
// Nonclassic types whose source weight is in grams substitute the
// conventional ounce weight for their type.
func (p *Product) deriveCombinedWeight() string {
	if p.Type.IsPreRollType() && p.JointRatio != "" {
		return p.JointRatio
	}

	units := NormalizeUnits(p.Units)

	if !p.Type.IsClassic() && (units == "g" || units == "") {
		if conventional := ConventionalWeightFor(p.Type); conventional != "" {
			return conventional
		}
	}

	magnitude, ok := ParseMagnitude(p.Weight)
	if !ok {
		if p.Weight == "" {
			return ""
		}

		return strings.TrimSpace(p.Weight + units)
	}

	return FormatMagnitude(magnitude) + units
}

// labelDescription is the description base used on labels: the description
// column when present, otherwise the product name with any trailing
// joint-ratio or weight pattern stripped.
func (p *Product) labelDescription() string {
	if desc := strings.TrimSpace(p.Description); desc != "" {
		return desc
	}

	name := strings.TrimSpace(p.Name)

	for _, pattern := range jointRatioPatterns {
		if loc := pattern.FindStringIndex(name); loc != nil {
			name = strings.TrimRight(name[:loc[0]], " -–—")

			break
		}
	}

	return name
}

// deriveDescAndWeight joins the description base and the combined weight
// with a hyphen. Pre-roll types put the weight on its own line.
func (p *Product) deriveDescAndWeight() string {
	desc := p.labelDescription()

	weight := p.CombinedWeight
	if weight == "" {
		return desc
	}

	if p.Type.IsPreRollType() {
		return desc + "\n-" + weight
	}

	return desc + " - " + weight
}

// deriveRatioOrTHCCBD renders the cannabinoid block per product-type
// category. Classic types carry the ratio expression (placeholder sentinel
// when empty); nonclassic types render their milligram content, falling back
// to the ratio expression when no milligram data exists.
func (p *Product) deriveRatioOrTHCCBD() string {
	ratio := strings.TrimSpace(p.Ratio)

	if p.Type.IsClassic() {
		if ratio == "" {
			return RatioPlaceholder
		}

		return ratio
	}

	parts := make([]string, 0, 2)
	if p.THCMg > 0 {
		parts = append(parts, "THC: "+FormatMagnitude(p.THCMg)+"mg")
	}

	if p.CBDMg > 0 {
		parts = append(parts, "CBD: "+FormatMagnitude(p.CBDMg)+"mg")
	}

	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}

	if ratio == "" {
		return RatioPlaceholder
	}

	return ratio
}

// descriptionComplexity buckets a description by its token count into 1..5.
// The label engine picks font sizing tiers from this.
func descriptionComplexity(desc string) int {
	words := len(strings.Fields(desc))
	if words < 1 {
		return 1
	}

	if words > maxDescriptionComplexity {
		return maxDescriptionComplexity
	}

	return words
}


