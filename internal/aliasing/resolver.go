package aliasing

import (
	"log/slog"
	"strings"
)

// Canonical field names. The tabular processor assigns resolved cells to
// product fields through these.
const (
	FieldProductName        = "product_name"
	FieldVendor             = "vendor"
	FieldBrand              = "brand"
	FieldProductType        = "product_type"
	FieldLineage            = "lineage"
	FieldStrain             = "product_strain"
	FieldDescription        = "description"
	FieldWeight             = "weight"
	FieldUnits              = "units"
	FieldPrice              = "price"
	FieldTHCPct             = "thc_pct"
	FieldCBDPct             = "cbd_pct"
	FieldTHCMg              = "thc_mg"
	FieldCBDMg              = "cbd_mg"
	FieldRatio              = "ratio"
	FieldJointRatio         = "joint_ratio"
	FieldDOH                = "doh"
	FieldArchived           = "archived"
	FieldAcceptedDate       = "accepted_date"
	FieldExpirationDate     = "expiration_date"
	FieldSource             = "source"
	FieldMatchScore         = "match_score"
	FieldMatchConfidence    = "match_confidence"
	FieldConcentrateType    = "concentrate_type"
	FieldBatchNumber        = "batch_number"
	FieldLotNumber          = "lot_number"
	FieldBarcode            = "barcode"
	FieldQuantity           = "quantity"
	FieldQuantityReceived   = "quantity_received"
	FieldCost               = "cost"
	FieldRoom               = "room"
	FieldState              = "state"
	FieldMedicalOnly        = "medical_only"
	FieldInternalID         = "internal_id"
	FieldTHCPerServing      = "thc_per_serving"
	FieldCBDPerServing      = "cbd_per_serving"
	FieldServingsPerPackage = "servings_per_package"
	FieldNetWeight          = "net_weight"
	FieldAllergens          = "allergens"
	FieldIngredients        = "ingredients"
)

// builtinSynonyms is the accepted header set per canonical field. Headers
// are matched through canonicalizeHeader, so punctuation and the Excel "*"
// required-marker never matter.
var builtinSynonyms = map[string][]string{
	FieldProductName:        {"Product Name*", "ProductName", "Product Name", "Item Name", "Item"},
	FieldVendor:             {"Vendor/Supplier*", "Vendor", "Supplier", "Vendor Name", "Vendor Supplier"},
	FieldBrand:              {"Product Brand", "Brand", "Brand Name"},
	FieldProductType:        {"Product Type*", "Product Type", "Type", "Inventory Type", "Category"},
	FieldLineage:            {"Lineage", "Strain Type", "Classification"},
	FieldStrain:             {"Product Strain", "Strain", "Strain Name"},
	FieldDescription:        {"Description", "Product Description"},
	FieldWeight:             {"Weight*", "Weight"},
	FieldUnits:              {"Units", "Unit", "Unit of Measure", "UOM", "Weight Unit"},
	FieldPrice:              {"Price* (Tier Name for Bulk)", "Price*", "Price", "Unit Price"},
	FieldTHCPct:             {"THC%", "THC %", "THC Percent", "Total THC%"},
	FieldCBDPct:             {"CBD%", "CBD %", "CBD Percent", "Total CBD%"},
	FieldTHCMg:              {"THC mg", "THC (mg)", "THC Milligrams"},
	FieldCBDMg:              {"CBD mg", "CBD (mg)", "CBD Milligrams"},
	FieldRatio:              {"Ratio", "Cannabinoid Ratio", "THC CBD Ratio"},
	FieldJointRatio:         {"Joint Ratio", "JointRatio"},
	FieldDOH:                {"DOH", "DOH Compliant", "DOH Compliant (Yes/No)"},
	FieldArchived:           {"Archived"},
	FieldAcceptedDate:       {"Accepted Date", "Date Accepted"},
	FieldExpirationDate:     {"Expiration Date", "Expiration", "Exp Date"},
	FieldSource:             {"Source"},
	FieldMatchScore:         {"match_score", "Match Score"},
	FieldMatchConfidence:    {"match_confidence", "Match Confidence"},
	FieldConcentrateType:    {"Concentrate Type", "Extract Type"},
	FieldBatchNumber:        {"Batch Number", "Batch#", "Batch"},
	FieldLotNumber:          {"Lot Number", "Lot#", "Lot"},
	FieldBarcode:            {"Barcode*", "Barcode", "UPC"},
	FieldQuantity:           {"Quantity*", "Quantity", "Qty"},
	FieldQuantityReceived:   {"Quantity Received*", "Quantity Received", "Qty Received"},
	FieldCost:               {"Cost*", "Cost"},
	FieldRoom:               {"Room*", "Room"},
	FieldState:              {"State", "Market State"},
	FieldMedicalOnly:        {"Med/Rec", "Medical Only", "Med Rec"},
	FieldInternalID:         {"Internal Product Identifier", "Internal ID", "SKU"},
	FieldTHCPerServing:      {"THC Per Serving", "THC/Serving"},
	FieldCBDPerServing:      {"CBD Per Serving", "CBD/Serving"},
	FieldServingsPerPackage: {"Servings Per Package", "Servings"},
	FieldNetWeight:          {"Net Weight", "Net Wt"},
	FieldAllergens:          {"Allergens"},
	FieldIngredients:        {"Ingredients"},
}

// Resolver projects spreadsheet headers onto canonical field names.
// Thread-safe for concurrent use (immutable after construction).
type Resolver struct {
	byHeader map[string]string
}

// NewResolver builds a resolver from the built-in synonym table extended by
// config entries. Config entries with an empty header or an empty field are
// skipped with a warning; a config entry for an already-known header wins
// over the built-in.
//
// A nil config yields the built-in table alone.
func NewResolver(cfg *Config) *Resolver {
	byHeader := make(map[string]string, 256)

	for field, headers := range builtinSynonyms {
		for _, header := range headers {
			byHeader[canonicalizeHeader(header)] = field
		}
	}

	if cfg != nil {
		for header, field := range cfg.ColumnSynonyms {
			key := canonicalizeHeader(header)
			if key == "" {
				slog.Warn("Skipping column synonym with empty header")

				continue
			}

			if strings.TrimSpace(field) == "" {
				slog.Warn("Skipping column synonym with empty field",
					slog.String("header", header))

				continue
			}

			byHeader[key] = strings.TrimSpace(field)
		}
	}

	return &Resolver{byHeader: byHeader}
}

// Resolve maps a sheet header to its canonical field name. The second return
// is false for headers outside the synonym table; such columns are preserved
// as extra attributes rather than dropped.
func (r *Resolver) Resolve(header string) (string, bool) {
	if r == nil {
		return "", false
	}

	field, ok := r.byHeader[canonicalizeHeader(header)]

	return field, ok
}

// HeaderCount returns the number of accepted header spellings.
func (r *Resolver) HeaderCount() int {
	if r == nil {
		return 0
	}

	return len(r.byHeader)
}

// canonicalizeHeader folds a header for lookup: lowercase, "*" markers
// dropped, punctuation collapsed to single spaces. "Vendor/Supplier*" and
// "vendor supplier" land on the same key.
func canonicalizeHeader(header string) string {
	lowered := strings.ToLower(strings.TrimSpace(header))
	lowered = strings.ReplaceAll(lowered, "*", "")

	var b strings.Builder

	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '%':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
