// Package labels emits printable label sheets as .xlsx workbooks. Each
// selected product becomes one cell block carrying the derived label fields;
// the template type picks the grid, the scale factor sizes it. Font sizing,
// coloring, and page layout belong to the downstream print engine.
package labels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/labelforge-io/labelforge/internal/product"
)

// Template selects the label grid.
type Template string

const (
	TemplateHorizontal Template = "horizontal"
	TemplateVertical   Template = "vertical"
	TemplateMini       Template = "mini"
	TemplateDouble     Template = "double"
)

const (
	// DefaultTimeout bounds one generation run.
	DefaultTimeout = 45 * time.Second

	// DefaultMaxTags is the hard per-request product cap.
	DefaultMaxTags = 100

	sheetName = "Labels"

	minScale = 0.5
	maxScale = 2.0
)

var (
	// ErrNoTags is returned when the request selects nothing.
	ErrNoTags = errors.New("no tags selected for generation")

	// ErrTooManyTags is returned when the selection exceeds the cap.
	ErrTooManyTags = errors.New("too many tags selected")

	// ErrUnknownTemplate is returned for template types outside the enum.
	ErrUnknownTemplate = errors.New("unknown template type")

	// ErrGenerationTimeout is returned when the run exceeds its deadline.
	// No partial document is returned.
	ErrGenerationTimeout = errors.New("label generation timed out")
)

// layout is the per-template grid shape before scaling.
type layout struct {
	columns   int
	colWidth  float64
	rowHeight float64
	// copies repeats each product block; the double template prints two.
	copies int
}

var layouts = map[Template]layout{
	TemplateHorizontal: {columns: 2, colWidth: 42, rowHeight: 16, copies: 1},
	TemplateVertical:   {columns: 3, colWidth: 28, rowHeight: 16, copies: 1},
	TemplateMini:       {columns: 4, colWidth: 20, rowHeight: 13, copies: 1},
	TemplateDouble:     {columns: 2, colWidth: 42, rowHeight: 16, copies: 2},
}

// ParseTemplate validates a template-type string.
func ParseTemplate(raw string) (Template, error) {
	t := Template(raw)
	if _, ok := layouts[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, raw)
	}

	return t, nil
}

// Generator renders label sheets within a timeout and tag cap.
type Generator struct {
	timeout time.Duration
	maxTags int
	logger  *slog.Logger
}

// NewGenerator creates a label generator. Zero values fall back to the
// defaults.
func NewGenerator(timeout time.Duration, maxTags int, logger *slog.Logger) *Generator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if maxTags <= 0 {
		maxTags = DefaultMaxTags
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{timeout: timeout, maxTags: maxTags, logger: logger}
}

// Generate renders the products into a label workbook and returns the .xlsx
// bytes. The run is bounded by the generator timeout on top of any caller
// deadline; exceeding either returns ErrGenerationTimeout with no partial
// output.
func (g *Generator) Generate(
	ctx context.Context,
	template Template,
	products []product.Product,
	scale float64,
) ([]byte, error) {
	grid, ok := layouts[template]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, template)
	}

	if len(products) == 0 {
		return nil, ErrNoTags
	}

	if len(products) > g.maxTags {
		return nil, fmt.Errorf("%w: %d selected, limit %d", ErrTooManyTags, len(products), g.maxTags)
	}

	scale = clampScale(scale)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()

	f := excelize.NewFile()

	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to initialize label sheet: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(grid.columns)
	if err != nil {
		return nil, fmt.Errorf("failed to size label grid: %w", err)
	}

	if err := f.SetColWidth(sheetName, "A", lastCol, grid.colWidth*scale); err != nil {
		return nil, fmt.Errorf("failed to size label grid: %w", err)
	}

	block := 0

	for i := range products {
		p := products[i].Clone()
		p.ComputeDerived()

		for copyN := 0; copyN < grid.copies; copyN++ {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w after %s", ErrGenerationTimeout, time.Since(start).Round(time.Millisecond))
			}

			if err := writeBlock(f, grid, block, &p, scale); err != nil {
				return nil, err
			}

			block++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize label document: %w", err)
	}

	g.logger.Info("Generated label document",
		slog.String("template", string(template)),
		slog.Int("tags", len(products)),
		slog.Int("blocks", block),
		slog.Duration("elapsed", time.Since(start)),
	)

	return buf.Bytes(), nil
}

// blockLines renders the label text lines for one product, in print order.
func blockLines(p *product.Product) []string {
	lines := []string{p.DescAndWeight, p.RatioOrTHCCBD}

	if p.Lineage != "" && p.Lineage != product.LineageParaphernalia {
		lines = append(lines, string(p.Lineage))
	}

	if p.Brand != "" {
		lines = append(lines, p.Brand)
	}

	if p.DOH == "Yes" {
		lines = append(lines, "DOH Compliant")
	}

	return lines
}

// blockStride is the fixed row count reserved per block: up to five label
// lines plus one spacer, so neighboring blocks stay aligned regardless of
// how many lines each product renders.
const blockStride = 6

// writeBlock places one product's lines into the grid cell for block index n.
func writeBlock(f *excelize.File, grid layout, n int, p *product.Product, scale float64) error {
	lines := blockLines(p)

	col := n%grid.columns + 1
	rowStart := (n/grid.columns)*blockStride + 1

	for offset, line := range lines {
		row := rowStart + offset

		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return fmt.Errorf("failed to address label cell: %w", err)
		}

		if err := f.SetCellValue(sheetName, cell, line); err != nil {
			return fmt.Errorf("failed to write label cell: %w", err)
		}

		if err := f.SetRowHeight(sheetName, row, grid.rowHeight*scale); err != nil {
			return fmt.Errorf("failed to size label row: %w", err)
		}
	}

	return nil
}

func clampScale(scale float64) float64 {
	switch {
	case scale == 0:
		return 1.0
	case scale < minScale:
		return minScale
	case scale > maxScale:
		return maxScale
	default:
		return scale
	}
}


