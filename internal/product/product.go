// Package product provides the domain model for catalog products and strains:
// the lineage and product-type enumerations, identity keys, and the derived
// label fields computed on ingest and on read.
package product

import (
	"regexp"
	"strings"
	"time"
)

type (
	// Lineage is the categorical label describing cannabis plant genetics.
	// All textual inputs normalize to one of the enumerated values; unknown
	// inputs become MIXED.
	Lineage string

	// Type is the enumerated product type. The zero value is not valid; use
	// ParseType to normalize spreadsheet and feed inputs. Types outside the
	// known set are carried as their normalized text and treated as nonclassic.
	Type string

	// Product is a single saleable item. Identity is the (Name, Vendor)
	// composite; names are stored case-sensitively and looked up case-folded
	// (see Key).
	//
	// This is a pure domain model without JSON tags. The API layer maps it to
	// response payload types.
	Product struct {
		// Name is the product name exactly as ingested.
		Name string

		// Vendor is the supplying vendor; part of the identity composite.
		Vendor string

		Brand   string
		Type    Type
		Lineage Lineage

		// Strain references at most one Strain record by name (empty = none).
		Strain string

		Description string

		// Weight is the magnitude exactly as it appeared in the source cell.
		// Kept as text because spreadsheet cells are not reliably numeric.
		Weight string

		// Units is the weight unit ("g", "oz", "mg", "each", ...).
		Units string

		Price  float64
		THCPct float64
		CBDPct float64
		THCMg  float64
		CBDMg  float64

		// Ratio is a free-text ratio expression like "1:1:1". Empty values
		// default to the RatioPlaceholder sentinel on ingest.
		Ratio string

		// JointRatio is the per-joint weight and pack count for pre-rolls,
		// rendered like "0.5g x 2 Pack". Derived; see ComputeDerived.
		JointRatio string

		// DOH is the Department of Health compliance flag ("Yes"/"No").
		DOH string

		Archived       bool
		AcceptedDate   string
		ExpirationDate string

		// Source records where the row came from. Rows whose source marks
		// them as matching artifacts are synthetic and never persisted.
		Source string

		// MatchScore and MatchConfidence are set only on synthetic rows
		// produced by the matching engine.
		MatchScore      *float64
		MatchConfidence *float64

		// Optional spreadsheet-mirror attributes. Present when the source
		// sheet carried them, empty otherwise.
		ConcentrateType    string
		BatchNumber        string
		LotNumber          string
		Barcode            string
		Quantity           string
		QuantityReceived   string
		Cost               string
		Room               string
		State              string
		MedicalOnly        string
		InternalID         string
		THCPerServing      string
		CBDPerServing      string
		ServingsPerPackage string
		NetWeight          string
		Allergens          string
		Ingredients        string

		// Extra holds unknown columns, preserved verbatim (header → cell).
		Extra map[string]string

		// Derived fields, recomputed by ComputeDerived.
		CombinedWeight        string
		DescAndWeight         string
		RatioOrTHCCBD         string
		DescriptionComplexity int
	}

	// Strain is a canonical plant-strain record. Identity is the name,
	// case-folded on lookup.
	Strain struct {
		Name string

		// CanonicalLineage is the learned majority lineage across ingests.
		CanonicalLineage Lineage

		// SovereignLineage is an operator override. When set it takes
		// precedence over the canonical value on every read.
		SovereignLineage *Lineage

		OccurrenceCount int
		FirstSeen       time.Time
		LastSeen        time.Time
		Confidence      float64
	}
)

const (
	LineageSativa        Lineage = "SATIVA"
	LineageIndica        Lineage = "INDICA"
	LineageHybrid        Lineage = "HYBRID"
	LineageHybridSativa  Lineage = "HYBRID/SATIVA"
	LineageHybridIndica  Lineage = "HYBRID/INDICA"
	LineageCBD           Lineage = "CBD"
	LineageCBDBlend      Lineage = "CBD_BLEND"
	LineageMixed         Lineage = "MIXED"
	LineageParaphernalia Lineage = "PARAPHERNALIA"
)

const (
	TypeFlower                 Type = "flower"
	TypePreRoll                Type = "pre-roll"
	TypeInfusedPreRoll         Type = "infused pre-roll"
	TypeConcentrate            Type = "concentrate"
	TypeSolventlessConcentrate Type = "solventless concentrate"
	TypeVapeCartridge          Type = "vape cartridge"
	TypeEdibleSolid            Type = "edible solid"
	TypeEdibleLiquid           Type = "edible liquid"
	TypeTincture               Type = "tincture"
	TypeTopical                Type = "topical"
	TypeCapsule                Type = "capsule"
	TypeParaphernalia          Type = "paraphernalia"
	TypeRSOCO2Tanker           Type = "rso/co2 tanker"
)

// DefaultStrain is the Product-Strain value substituted for empty cells.
const DefaultStrain = "Mixed"

// RatioPlaceholder is the sentinel written to empty Ratio cells. The label
// engine renders it as a three-line THC/CBD block.
const RatioPlaceholder = "THC: | BR | C"

// syntheticSourcePattern marks rows generated by matching or AI augmentation.
// Rows matching it are transient artifacts and are never persisted.
var syntheticSourcePattern = regexp.MustCompile(`(?i)JSON Match|AI Match|JSON|AI|Match|Generated`)

// ValidLineages returns all enumerated lineage values.
func ValidLineages() []Lineage {
	return []Lineage{
		LineageSativa,
		LineageIndica,
		LineageHybrid,
		LineageHybridSativa,
		LineageHybridIndica,
		LineageCBD,
		LineageCBDBlend,
		LineageMixed,
		LineageParaphernalia,
	}
}

// IsValid checks if the Lineage is one of the enumerated values.
func (l Lineage) IsValid() bool {
	for _, valid := range ValidLineages() {
		if l == valid {
			return true
		}
	}

	return false
}

// ClassicTypes returns the product types whose rendering and defaulting rules
// follow the classic (plant-material) conventions.
func ClassicTypes() []Type {
	return []Type{
		TypeFlower,
		TypePreRoll,
		TypeInfusedPreRoll,
		TypeConcentrate,
		TypeSolventlessConcentrate,
		TypeVapeCartridge,
		TypeRSOCO2Tanker,
	}
}

// IsClassic returns true for classic product types. Everything else
// (edibles, tinctures, topicals, capsules, paraphernalia, unknown types)
// is nonclassic.
func (t Type) IsClassic() bool {
	for _, classic := range ClassicTypes() {
		if t == classic {
			return true
		}
	}

	return false
}

// IsPreRollType returns true for the two pre-roll types, which share the
// joint-ratio and own-line weight rendering rules.
func (t Type) IsPreRollType() bool {
	return t == TypePreRoll || t == TypeInfusedPreRoll
}

// Key returns the case-folded identity key for a (name, vendor) composite.
// Storage keeps names case-sensitively; every lookup folds through this.
func Key(name, vendor string) string {
	return FoldName(name) + "|" + FoldName(vendor)
}

// FoldName case-folds a single identity component.
func FoldName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Key returns the product's case-folded identity key.
func (p *Product) Key() string {
	return Key(p.Name, p.Vendor)
}

// Clone returns a deep copy of the product.
func (p *Product) Clone() Product {
	clone := *p

	if p.MatchScore != nil {
		score := *p.MatchScore
		clone.MatchScore = &score
	}

	if p.MatchConfidence != nil {
		confidence := *p.MatchConfidence
		clone.MatchConfidence = &confidence
	}

	if p.Extra != nil {
		clone.Extra = make(map[string]string, len(p.Extra))
		for k, v := range p.Extra {
			clone.Extra[k] = v
		}
	}

	return clone
}

// IsSynthetic reports whether the row is a matching artifact: its source
// matches the synthetic marker pattern, or it carries a match score or
// confidence. Synthetic rows are excluded from catalog persistence.
func (p *Product) IsSynthetic() bool {
	if p.Source != "" && syntheticSourcePattern.MatchString(p.Source) {
		return true
	}

	return p.MatchScore != nil || p.MatchConfidence != nil
}

// EffectiveLineage returns the strain's exposed lineage: sovereign if set,
// else canonical, else MIXED.
func (s *Strain) EffectiveLineage() Lineage {
	if s.SovereignLineage != nil && *s.SovereignLineage != "" {
		return *s.SovereignLineage
	}

	if s.CanonicalLineage != "" {
		return s.CanonicalLineage
	}

	return LineageMixed
}
