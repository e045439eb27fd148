package catalog

import (
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/labelforge-io/labelforge/internal/product"
)

func testConfig(t *testing.T) *Config {
	t.Helper()

	return &Config{DataDir: t.TempDir()}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(testConfig(t), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

func TestOpenAndHealthCheck(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := openTestStore(t)
	assert.NoError(t, s.HealthCheck(t.Context()))
}

func TestAddOrUpdateProduct_InsertAndMerge(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := openTestStore(t)
	ctx := t.Context()

	first := &product.Product{
		Name:   "Blue Dream - 3.5g",
		Vendor: "Acme Gardens",
		Type:   product.TypeFlower,
		Weight: "3.5",
		Units:  "g",
		Price:  30,
	}
	require.NoError(t, s.AddOrUpdateProduct(ctx, first))

	// Same identity, new brand, empty weight: merge keeps the stored weight.
	second := &product.Product{
		Name:   "Blue Dream - 3.5g",
		Vendor: "Acme Gardens",
		Brand:  "Acme",
	}
	require.NoError(t, s.AddOrUpdateProduct(ctx, second))

	count, err := s.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	rows, err := s.GetProductsByNames(ctx, []string{"BLUE DREAM - 3.5G"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Acme", rows[0].Brand)
	assert.Equal(t, "3.5", rows[0].Weight)
	assert.InDelta(t, 30.0, rows[0].Price, 1e-9)
	assert.NotEmpty(t, rows[0].DescAndWeight, "derived fields computed on write")
}

func TestAddOrUpdateProduct_Validation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := openTestStore(t)

	assert.ErrorIs(t, s.AddOrUpdateProduct(t.Context(), nil), ErrProductNil)
	assert.ErrorIs(t, s.AddOrUpdateProduct(t.Context(), &product.Product{Name: "  "}), ErrProductNameEmpty)
}

func TestStoreExcelData_ExcludesSynthetic(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := openTestStore(t)
	score := 0.9

	rows := []product.Product{
		{Name: "Blue Dream - 3.5g", Vendor: "Acme Gardens", Type: product.TypeFlower},
		{Name: "Matched Row - 1g", Vendor: "Acme Gardens", Source: "JSON Match"},
		{Name: "Scored Row - 1g", Vendor: "Acme Gardens", MatchScore: &score},
	}

	result, err := s.StoreExcelData(t.Context(), rows, "/uploads/inventory.xlsx")
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 1, result.Stored)
	assert.Equal(t, 2, result.ExcludedSynthetic)

	count, err := s.CountProducts(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := s.AllProducts(t.Context())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "inventory.xlsx", stored[0].Source, "source defaults to the file name")
}

func TestLineageReconciliation_KnownStrainWins(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := openTestStore(t)
	ctx := t.Context()

	_, err := s.AddOrUpdateStrain(ctx, "Blue Dream", product.LineageSativa, false)
	require.NoError(t, err)

	p := &product.Product{
		Name:    "Blue Dream - 3.5g",
		Vendor:  "Acme Gardens",
		Type:    product.TypeFlower,
		Strain:  "Blue Dream",
		Lineage: product.LineageIndica,
	}
	require.NoError(t, s.AddOrUpdateProduct(ctx, p))

	rows, err := s.GetProductsByNames(ctx, []string{"Blue Dream - 3.5g"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, product.LineageSativa, rows[0].Lineage,
		"the strain catalog is authoritative over the incoming lineage")
}

func TestLineageReconciliation_ParaphernaliaForced(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := openTestStore(t)

	p := &product.Product{
		Name:    "Glass Pipe",
		Vendor:  "Gear Co",
		Type:    product.TypeParaphernalia,
		Lineage: product.LineageSativa,
	}
	require.NoError(t, s.AddOrUpdateProduct(t.Context(), p))

	rows, err := s.GetProductsByNames(t.Context(), []string{"Glass Pipe"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, product.LineageParaphernalia, rows[0].Lineage)
}

func TestSovereignLineageOverride(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := openTestStore(t)
	ctx := t.Context()

	// Operator pins the lineage; later ingest votes never displace it.
	_, err := s.AddOrUpdateStrain(ctx, "Gorilla Glue", product.LineageIndica, true)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = s.AddOrUpdateStrain(ctx, "Gorilla Glue", product.LineageSativa, false)
		require.NoError(t, err)
	}

	strain, found, err := s.GetStrain(ctx, "gorilla glue")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, product.LineageIndica, strain.EffectiveLineage())
	assert.Equal(t, product.LineageSativa, strain.CanonicalLineage,
		"canonical still follows the vote majority underneath the override")
}

func TestStrainCanonicalFollowsMajority(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := openTestStore(t)
	ctx := t.Context()

	_, err := s.AddOrUpdateStrain(ctx, "Blue Dream", product.LineageSativa, false)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = s.AddOrUpdateStrain(ctx, "Blue Dream", product.LineageHybrid, false)
		require.NoError(t, err)
	}

	strain, found, err := s.GetStrain(ctx, "Blue Dream")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, product.LineageHybrid, strain.CanonicalLineage)
	assert.Equal(t, 3, strain.OccurrenceCount)
}

func TestUpdateStrainLineage_PropagatesToProducts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := openTestStore(t)
	ctx := t.Context()

	p := &product.Product{
		Name:    "Blue Dream - 3.5g",
		Vendor:  "Acme Gardens",
		Type:    product.TypeFlower,
		Strain:  "Blue Dream",
		Lineage: product.LineageSativa,
	}
	require.NoError(t, s.AddOrUpdateProduct(ctx, p))

	affected, err := s.UpdateStrainLineage(ctx, "Blue Dream", product.LineageHybrid)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	// The propagation already fixed the row; the batch repair finds nothing.
	updated, err := s.UpdateAllProductStrains(ctx)
	require.NoError(t, err)
	assert.Zero(t, updated)

	rows, err := s.GetProductsByNames(ctx, []string{"Blue Dream - 3.5g"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, product.LineageHybrid, rows[0].Lineage)
}

func TestUpdateAllProductStrains_FillsDefault(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := openTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.AddOrUpdateProduct(ctx, &product.Product{
		Name:   "Mystery Gummies - 100mg",
		Vendor: "Sweet Co",
		Type:   product.TypeEdibleSolid,
	}))

	updated, err := s.UpdateAllProductStrains(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	rows, err := s.GetProductsByNames(ctx, []string{"Mystery Gummies - 100mg"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, product.DefaultStrain, rows[0].Strain)

	// Second run is a no-op.
	updated, err = s.UpdateAllProductStrains(ctx)
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestClearAllData(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := openTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.AddOrUpdateProduct(ctx, &product.Product{
		Name: "Blue Dream - 3.5g", Vendor: "Acme Gardens", Strain: "Blue Dream",
	}))

	require.NoError(t, s.ClearAllData(ctx))

	count, err := s.CountProducts(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	strains, err := s.AllStrains(ctx)
	require.NoError(t, err)
	assert.Empty(t, strains)
}

func TestExportDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := openTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.AddOrUpdateProduct(ctx, &product.Product{
		Name:   "Blue Dream - 3.5g",
		Vendor: "Acme Gardens",
		Type:   product.TypeFlower,
		Weight: "3.5",
		Units:  "g",
	}))

	path := filepath.Join(t.TempDir(), "export.xlsx")

	exported, err := s.ExportDatabase(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, exported)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)

	defer func() {
		_ = f.Close()
	}()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Product Name*", rows[0][0])
	assert.Equal(t, "Vendor/Supplier*", rows[0][1])
	assert.Equal(t, "Blue Dream - 3.5g", rows[1][0])
	assert.Equal(t, "Acme Gardens", rows[1][1])
}

func TestExportDatabase_EmptyPath(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := openTestStore(t)

	_, err := s.ExportDatabase(t.Context(), "  ")
	assert.ErrorIs(t, err, ErrExportPathEmpty)
}

func TestOpen_UpgradesLegacySchema(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := testConfig(t)

	// Seed a legacy database whose products table uses the Excel-style
	// quoted physical column names.
	db, err := sql.Open("sqlite3", cfg.DatabasePath())
	require.NoError(t, err)

	_, err = db.Exec(`CREATE TABLE products (
		"Product Name*" TEXT,
		"Vendor/Supplier*" TEXT,
		"Product Type*" TEXT,
		"Lineage" TEXT,
		"Weight*" TEXT,
		"Units" TEXT,
		"Price* (Tier Name for Bulk)" TEXT
	)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO products VALUES
		('Blue Dream - 3.5g', 'Acme Gardens', 'flower', 'HYBRID', '3.5', 'g', '$30.00'),
		('', 'No Name Farm', 'flower', '', '', '', '')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
	})

	ctx := t.Context()

	count, err := s.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "nameless legacy rows are dropped")

	rows, err := s.GetProductsByNames(ctx, []string{"Blue Dream - 3.5g"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Acme Gardens", rows[0].Vendor)
	assert.InDelta(t, 30.0, rows[0].Price, 1e-9)

	// The staging table is gone after the copy.
	var leftover string
	err = s.DB().QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, legacyProductsTable,
	).Scan(&leftover)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUpdateProductLineage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := openTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.AddOrUpdateProduct(ctx, &product.Product{
		Name:    "Blue Dream - 3.5g",
		Vendor:  "Acme Gardens",
		Type:    product.TypeFlower,
		Lineage: product.LineageHybrid,
	}))

	affected, err := s.UpdateProductLineage(ctx, "blue dream - 3.5G", product.LineageSativa)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	rows, err := s.GetProductsByNames(ctx, []string{"Blue Dream - 3.5g"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, product.LineageSativa, rows[0].Lineage)
}

func TestUpdateProductLineage_SkipsParaphernalia(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := openTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.AddOrUpdateProduct(ctx, &product.Product{
		Name:    "Glass Pipe",
		Vendor:  "Acme Gardens",
		Type:    product.TypeParaphernalia,
		Lineage: product.LineageParaphernalia,
	}))

	affected, err := s.UpdateProductLineage(ctx, "Glass Pipe", product.LineageSativa)
	require.NoError(t, err)
	assert.Zero(t, affected)
}

func TestUpdateProductLineage_InvalidLineage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := openTestStore(t)

	_, err := s.UpdateProductLineage(t.Context(), "Blue Dream - 3.5g", "PURPLE")
	assert.ErrorIs(t, err, ErrLineageInvalid)
}
