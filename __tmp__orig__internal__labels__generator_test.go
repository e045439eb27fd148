package labels

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/labelforge-io/labelforge/internal/product"
)

func testGenerator() *Generator {
	return NewGenerator(0, 0, slog.New(slog.DiscardHandler))
}

func sampleProducts(n int) []product.Product {
	products := make([]product.Product, n)
	for i := range products {
		products[i] = product.Product{
			Name:    "Blue Dream - 3.5g",
			Vendor:  "Acme Gardens",
			Brand:   "Acme",
			Type:    product.TypeFlower,
			Lineage: product.LineageHybrid,
			Weight:  "3.5",
			Units:   "g",
			THCPct:  22.1,
			CBDPct:  0.4,
			DOH:     "Yes",
		}
	}

	return products
}

// readSheet collects all populated cells of the generated workbook.
func readSheet(t *testing.T, doc []byte) [][]string {
	t.Helper()

	f, err := excelize.OpenReader(bytes.NewReader(doc))
	require.NoError(t, err)

	defer func() {
		_ = f.Close()
	}()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)

	return rows
}

func TestParseTemplate(t *testing.T) {
	for _, raw := range []string{"horizontal", "vertical", "mini", "double"} {
		parsed, err := ParseTemplate(raw)
		require.NoError(t, err)
		assert.Equal(t, Template(raw), parsed)
	}

	_, err := ParseTemplate("landscape")
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestGenerate_HappyPath(t *testing.T) {
	doc, err := testGenerator().Generate(context.Background(), TemplateHorizontal, sampleProducts(3), 1.0)
	require.NoError(t, err)
	require.NotEmpty(t, doc)

	rows := readSheet(t, doc)
	require.NotEmpty(t, rows)

	// First block starts at A1 with the derived description-and-weight line.
	assert.Contains(t, rows[0][0], "3.5g")

	var flat []string
	for _, row := range rows {
		flat = append(flat, row...)
	}

	assert.Contains(t, flat, string(product.LineageHybrid))
	assert.Contains(t, flat, "Acme")
	assert.Contains(t, flat, "DOH Compliant")
}

func TestGenerate_DoubleTemplateDuplicatesBlocks(t *testing.T) {
	single, err := testGenerator().Generate(context.Background(), TemplateHorizontal, sampleProducts(1), 1.0)
	require.NoError(t, err)

	double, err := testGenerator().Generate(context.Background(), TemplateDouble, sampleProducts(1), 1.0)
	require.NoError(t, err)

	count := func(doc []byte) int {
		n := 0

		for _, row := range readSheet(t, doc) {
			for _, cell := range row {
				if cell == "Acme" {
					n++
				}
			}
		}

		return n
	}

	assert.Equal(t, 1, count(single))
	assert.Equal(t, 2, count(double))
}

func TestGenerate_EmptySelection(t *testing.T) {
	_, err := testGenerator().Generate(context.Background(), TemplateMini, nil, 1.0)
	assert.ErrorIs(t, err, ErrNoTags)
}

func TestGenerate_TagCap(t *testing.T) {
	g := NewGenerator(time.Second, 5, slog.New(slog.DiscardHandler))

	_, err := g.Generate(context.Background(), TemplateVertical, sampleProducts(6), 1.0)
	assert.ErrorIs(t, err, ErrTooManyTags)

	_, err = g.Generate(context.Background(), TemplateVertical, sampleProducts(5), 1.0)
	assert.NoError(t, err)
}

func TestGenerate_UnknownTemplate(t *testing.T) {
	_, err := testGenerator().Generate(context.Background(), Template("poster"), sampleProducts(1), 1.0)
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestGenerate_Timeout(t *testing.T) {
	g := NewGenerator(time.Nanosecond, 0, slog.New(slog.DiscardHandler))

	_, err := g.Generate(context.Background(), TemplateHorizontal, sampleProducts(10), 1.0)
	assert.ErrorIs(t, err, ErrGenerationTimeout)
}

func TestGenerate_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testGenerator().Generate(ctx, TemplateHorizontal, sampleProducts(10), 1.0)
	assert.ErrorIs(t, err, ErrGenerationTimeout)
}

func TestClampScale(t *testing.T) {
	assert.InDelta(t, 1.0, clampScale(0), 1e-9)
	assert.InDelta(t, minScale, clampScale(0.1), 1e-9)
	assert.InDelta(t, maxScale, clampScale(5), 1e-9)
	assert.InDelta(t, 1.5, clampScale(1.5), 1e-9)
}


