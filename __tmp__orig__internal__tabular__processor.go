// Package tabular owns the in-memory table derived from an uploaded
// spreadsheet: parsing, header aliasing, normalization, the dropdown cache,
// and the filter operations the tag-picking UI is built on.
//
// One Processor instance is shared by the whole process. Load and the
// mutating operations take the write lock; reads copy rows out under the
// read lock so callers never hold a reference into the live table.
package tabular

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/labelforge-io/labelforge/internal/aliasing"
	"github.com/labelforge-io/labelforge/internal/product"
)

var (
	// ErrNoSheet is returned when the workbook contains no sheets.
	ErrNoSheet = errors.New("workbook has no sheets")
	// ErrMissingHeader is returned when the first sheet has no header row.
	ErrMissingHeader = errors.New("header row is required")
	// ErrNoProductColumn is returned when no header resolves to the product name.
	ErrNoProductColumn = errors.New("no product name column found")
)

// Processor holds the normalized table loaded from the most recent
// spreadsheet, plus the precomputed dropdown options per filter category.
type Processor struct {
	resolver *aliasing.Resolver
	logger   *slog.Logger

	// mu protects everything below.
	mu             sync.RWMutex
	rows           []product.Product
	byName         map[string][]int
	lastLoadedFile string
	dropdowns      map[string][]string
}

// columnBinding ties a sheet column to its resolved canonical field. Columns
// that resolve to no known field keep their header text and land in Extra.
type columnBinding struct {
	header string
	field  string
}

// NewProcessor creates an empty processor. Nothing is served until Load
// succeeds.
func NewProcessor(resolver *aliasing.Resolver, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		resolver:  resolver,
		logger:    logger,
		byName:    make(map[string][]int),
		dropdowns: make(map[string][]string),
	}
}

// Load parses the spreadsheet at path, replacing the current table. The first
// sheet is used; the first row must be a header and must contain a product
// name column. On failure the processor is left holding an empty table.
func (p *Processor) Load(path string) error {
	rows, err := p.parseFile(path)
	if err != nil {
		p.reset()

		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.rows = rows
	p.byName = indexByName(rows)
	p.lastLoadedFile = path
	p.dropdowns = computeDropdowns(rows)

	p.logger.Info("loaded spreadsheet",
		slog.String("file", path),
		slog.Int("rows", len(rows)))

	return nil
}

// parseFile reads and normalizes every row of the workbook's first sheet.
func (p *Processor) parseFile(path string) ([]product.Product, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrNoSheet
	}

	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	if len(raw) == 0 {
		return nil, ErrMissingHeader
	}

	bindings, err := p.bindHeader(raw[0])
	if err != nil {
		return nil, err
	}

	rows := make([]product.Product, 0, len(raw)-1)

	for _, cells := range raw[1:] {
		row, ok := buildProduct(bindings, cells)
		if !ok {
			continue
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// bindHeader resolves each header cell to a canonical field via the aliasing
// resolver. Unresolved headers are kept verbatim so their cells survive in
// Extra.
func (p *Processor) bindHeader(header []string) ([]columnBinding, error) {
	bindings := make([]columnBinding, len(header))
	hasProductName := false

	for i, cell := range header {
		text := strings.TrimSpace(cell)
		bindings[i] = columnBinding{header: text}

		if text == "" {
			continue
		}

		if field, ok := p.resolver.Resolve(text); ok {
			bindings[i].field = field

			if field == aliasing.FieldProductName {
				hasProductName = true
			}
		}
	}

	if !hasProductName {
		return nil, ErrNoProductColumn
	}

	return bindings, nil
}

// buildProduct maps one sheet row onto a Product, applying the normalization
// rules and computing derived fields. Rows without a product name are skipped.
func buildProduct(bindings []columnBinding, cells []string) (product.Product, bool) {
	var (
		row        product.Product
		rawType    string
		rawLineage string
	)

	for i, binding := range bindings {
		value := strings.TrimSpace(cellAt(cells, i))
		if value == "" {
			continue
		}

		switch binding.field {
		case aliasing.FieldProductName:
			row.Name = value
		case aliasing.FieldVendor:
			row.Vendor = value
		case aliasing.FieldBrand:
			row.Brand = value
		case aliasing.FieldProductType:
			rawType = value
		case aliasing.FieldLineage:
			rawLineage = value
		case aliasing.FieldStrain:
			row.Strain = value
		case aliasing.FieldDescription:
			row.Description = value
		case aliasing.FieldWeight:
			row.Weight = value
		case aliasing.FieldUnits:
			row.Units = product.NormalizeUnits(value)
		case aliasing.FieldPrice:
			if magnitude, ok := product.ParseMagnitude(value); ok {
				row.Price = magnitude
			}
		case aliasing.FieldTHCPct:
			row.THCPct = parsePercent(value)
		case aliasing.FieldCBDPct:
			row.CBDPct = parsePercent(value)
		case aliasing.FieldTHCMg:
			row.THCMg = parseNumber(value)
		case aliasing.FieldCBDMg:
			row.CBDMg = parseNumber(value)
		case aliasing.FieldRatio:
			row.Ratio = value
		case aliasing.FieldJointRatio:
			row.JointRatio = value
		case aliasing.FieldDOH:
			row.DOH = value
		case aliasing.FieldArchived:
			row.Archived = parseFlag(value)
		case aliasing.FieldAcceptedDate:
			row.AcceptedDate = value
		case aliasing.FieldExpirationDate:
			row.ExpirationDate = value
		case aliasing.FieldSource:
			row.Source = value
		case aliasing.FieldMatchScore:
			if n, err := strconv.ParseFloat(value, 64); err == nil {
				row.MatchScore = &n
			}
		case aliasing.FieldMatchConfidence:
			if n, err := strconv.ParseFloat(value, 64); err == nil {
				row.MatchConfidence = &n
			}
		case aliasing.FieldConcentrateType:
			row.ConcentrateType = value
		case aliasing.FieldBatchNumber:
			row.BatchNumber = value
		case aliasing.FieldLotNumber:
			row.LotNumber = value
		case aliasing.FieldBarcode:
			row.Barcode = value
		case aliasing.FieldQuantity:
			row.Quantity = value
		case aliasing.FieldQuantityReceived:
			row.QuantityReceived = value
		case aliasing.FieldCost:
			row.Cost = value
		case aliasing.FieldRoom:
			row.Room = value
		case aliasing.FieldState:
			row.State = value
		case aliasing.FieldMedicalOnly:
			row.MedicalOnly = value
		case aliasing.FieldInternalID:
			row.InternalID = value
		case aliasing.FieldTHCPerServing:
			row.THCPerServing = value
		case aliasing.FieldCBDPerServing:
			row.CBDPerServing = value
		case aliasing.FieldServingsPerPackage:
			row.ServingsPerPackage = value
		case aliasing.FieldNetWeight:
			row.NetWeight = value
		case aliasing.FieldAllergens:
			row.Allergens = value
		case aliasing.FieldIngredients:
			row.Ingredients = value
		default:
			// Unknown columns are preserved verbatim.
			if binding.header != "" {
				if row.Extra == nil {
					row.Extra = make(map[string]string)
				}

				row.Extra[binding.header] = value
			}
		}
	}

	if row.Name == "" {
		return product.Product{}, false
	}

	row.Type = product.ParseType(rawType)
	row.Lineage = product.NormalizeLineage(rawLineage, row.Type)
	row.DOH = product.NormalizeDOH(row.DOH)

	if row.Strain == "" {
		row.Strain = product.DefaultStrain
	}

	if row.Ratio == "" {
		row.Ratio = product.RatioPlaceholder
	}

	row.ComputeDerived()

	return row, true
}

// cellAt reads a cell by index; sheets trim trailing empty cells per row.
func cellAt(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}

	return ""
}

// parseNumber reads a float cell, tolerating currency and blank values.
func parseNumber(value string) float64 {
	cleaned := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value), "$"))

	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}

	return n
}

// parsePercent reads a percentage cell with or without the % suffix.
func parsePercent(value string) float64 {
	cleaned := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "%"))

	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}

	return n
}

// parseFlag reads a boolean-ish cell.
func parseFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "true", "1", "archived":
		return true
	default:
		return false
	}
}

// indexByName builds the case-folded name index. A name can map to several
// rows when vendors differ.
func indexByName(rows []product.Product) map[string][]int {
	index := make(map[string][]int, len(rows))

	for i := range rows {
		folded := product.FoldName(rows[i].Name)
		index[folded] = append(index[folded], i)
	}

	return index
}

// reset drops the table. Failed loads leave the processor empty rather than
// serving a stale file.
func (p *Processor) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rows = nil
	p.byName = make(map[string][]int)
	p.lastLoadedFile = ""
	p.dropdowns = make(map[string][]string)
}

// LastLoadedFile returns the path of the most recently loaded spreadsheet.
func (p *Processor) LastLoadedFile() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.lastLoadedFile
}

// HasData checks if a table is currently loaded.
func (p *Processor) HasData() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.rows) > 0
}

// RowCount returns the number of loaded rows.
func (p *Processor) RowCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.rows)
}

// Rows returns a copy of every loaded row, archived included. The catalog's
// bulk store consumes this.
func (p *Processor) Rows() []product.Product {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rows := make([]product.Product, 0, len(p.rows))
	for i := range p.rows {
		rows = append(rows, p.rows[i].Clone())
	}

	return rows
}

// AvailableTags returns copies of all non-archived rows with their derived
// fields materialized.
func (p *Processor) AvailableTags() []product.Product {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rows := make([]product.Product, 0, len(p.rows))

	for i := range p.rows {
		if p.rows[i].Archived {
			continue
		}

		rows = append(rows, p.rows[i].Clone())
	}

	return rows
}

// TagNames returns the de-duplicated names of all non-archived rows in table
// order.
func (p *Processor) TagNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.rows))
	seen := make(map[string]struct{}, len(p.rows))

	for i := range p.rows {
		if p.rows[i].Archived {
			continue
		}

		folded := product.FoldName(p.rows[i].Name)
		if _, ok := seen[folded]; ok {
			continue
		}

		names = append(names, p.rows[i].Name)
		seen[folded] = struct{}{}
	}

	return names
}

// GetByName returns copies of the rows whose name case-folds to name.
func (p *Processor) GetByName(name string) []product.Product {
	p.mu.RLock()
	defer p.mu.RUnlock()

	indexes := p.byName[product.FoldName(name)]

	rows := make([]product.Product, 0, len(indexes))
	for _, i := range indexes {
		rows = append(rows, p.rows[i].Clone())
	}

	return rows
}


