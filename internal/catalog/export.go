package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/labelforge-io/labelforge/internal/product"
)

// exportSheet is the worksheet name of a database export.
const exportSheet = "Products"

// exportColumns renders products under the Excel-style headers the upload
// sheets use, so an export is re-ingestable as-is.
var exportColumns = []struct {
	header string
	value  func(*product.Product) any
}{
	{"Product Name*", func(p *product.Product) any { return p.Name }},
	{"Vendor/Supplier*", func(p *product.Product) any { return p.Vendor }},
	{"Product Brand", func(p *product.Product) any { return p.Brand }},
	{"Product Type*", func(p *product.Product) any { return string(p.Type) }},
	{"Lineage", func(p *product.Product) any { return string(p.Lineage) }},
	{"Product Strain", func(p *product.Product) any { return p.Strain }},
	{"Description", func(p *product.Product) any { return p.Description }},
	{"Weight*", func(p *product.Product) any { return p.Weight }},
	{"Units", func(p *product.Product) any { return p.Units }},
	{"Price* (Tier Name for Bulk)", func(p *product.Product) any { return p.Price }},
	{"THC%", func(p *product.Product) any { return p.THCPct }},
	{"CBD%", func(p *product.Product) any { return p.CBDPct }},
	{"THC mg", func(p *product.Product) any { return p.THCMg }},
	{"CBD mg", func(p *product.Product) any { return p.CBDMg }},
	{"Ratio", func(p *product.Product) any { return p.Ratio }},
	{"Joint Ratio", func(p *product.Product) any { return p.JointRatio }},
	{"DOH", func(p *product.Product) any { return p.DOH }},
	{"Archived", func(p *product.Product) any { return archivedCell(p.Archived) }},
	{"Accepted Date", func(p *product.Product) any { return p.AcceptedDate }},
	{"Expiration Date", func(p *product.Product) any { return p.ExpirationDate }},
	{"Source", func(p *product.Product) any { return p.Source }},
	{"Concentrate Type", func(p *product.Product) any { return p.ConcentrateType }},
	{"Batch Number", func(p *product.Product) any { return p.BatchNumber }},
	{"Lot Number", func(p *product.Product) any { return p.LotNumber }},
	{"Barcode*", func(p *product.Product) any { return p.Barcode }},
	{"Quantity*", func(p *product.Product) any { return p.Quantity }},
	{"Quantity Received*", func(p *product.Product) any { return p.QuantityReceived }},
	{"Cost*", func(p *product.Product) any { return p.Cost }},
	{"Room*", func(p *product.Product) any { return p.Room }},
	{"State", func(p *product.Product) any { return p.State }},
	{"Med/Rec", func(p *product.Product) any { return p.MedicalOnly }},
	{"Internal Product Identifier", func(p *product.Product) any { return p.InternalID }},
	{"THC Per Serving", func(p *product.Product) any { return p.THCPerServing }},
	{"CBD Per Serving", func(p *product.Product) any { return p.CBDPerServing }},
	{"Servings Per Package", func(p *product.Product) any { return p.ServingsPerPackage }},
	{"Net Weight", func(p *product.Product) any { return p.NetWeight }},
	{"Allergens", func(p *product.Product) any { return p.Allergens }},
	{"Ingredients", func(p *product.Product) any { return p.Ingredients }},
}

func archivedCell(archived bool) string {
	if archived {
		return "yes"
	}

	return "no"
}

// ExportDatabase mirrors every product row into an .xlsx workbook at path and
// returns the exported row count. The sheet carries the same headers the
// upload loader recognizes.
func (s *Store) ExportDatabase(ctx context.Context, path string) (int, error) {
	if s.conn == nil {
		return 0, ErrNoDatabaseConnection
	}

	if strings.TrimSpace(path) == "" {
		return 0, ErrExportPathEmpty
	}

	rows, err := s.AllProducts(ctx)
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()

	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return 0, fmt.Errorf("failed to initialize export sheet: %w", err)
	}

	header := make([]any, len(exportColumns))
	for i, col := range exportColumns {
		header[i] = col.header
	}

	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return 0, fmt.Errorf("failed to write export header: %w", err)
	}

	for i := range rows {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		cells := make([]any, len(exportColumns))
		for j, col := range exportColumns {
			cells[j] = col.value(&rows[i])
		}

		anchor, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, fmt.Errorf("failed to address export row: %w", err)
		}

		if err := f.SetSheetRow(exportSheet, anchor, &cells); err != nil {
			return 0, fmt.Errorf("failed to write export row: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return 0, fmt.Errorf("failed to save export to %q: %w", path, err)
	}

	s.logger.Info("Exported product database",
		slog.String("path", path),
		slog.Int("rows", len(rows)),
	)

	return len(rows), nil
}
