// Package catalog provides the durable product and strain store backing the
// label generator. Each named store is one SQLite database file holding
// products, strains, match feedback, and durable session state.
//
// The store accepts two historical schemas at open time: the modern one with
// snake_case columns (created by the embedded migrations) and a legacy one
// whose physical column names were Excel-style quoted headers. Legacy
// databases are upgraded in place by rebuild-and-copy.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/labelforge-io/labelforge/migrations"
)

var (
	// ErrNoDatabaseConnection is returned when operating on a closed or nil store.
	ErrNoDatabaseConnection = errors.New("no database connection")
	// ErrProductNil is returned when a nil product is provided.
	ErrProductNil = errors.New("product cannot be nil")
	// ErrProductNameEmpty is returned when a product has no name.
	ErrProductNameEmpty = errors.New("product name cannot be empty")
	// ErrStrainNameEmpty is returned when a strain name is empty.
	ErrStrainNameEmpty = errors.New("strain name cannot be empty")
	// ErrLineageInvalid is returned when a lineage is not one of the enumerated values.
	ErrLineageInvalid = errors.New("invalid lineage")
	// ErrExportPathEmpty is returned when an export path is empty.
	ErrExportPathEmpty = errors.New("export path cannot be empty")
)

// legacyProductsTable is the staging name a legacy products table is renamed
// to while the modern schema is created.
const legacyProductsTable = "products_legacy"

// Store is the catalog backed by one SQLite database file.
type Store struct {
	conn   *Connection
	logger *slog.Logger
	path   string
}

// Open connects to the configured store's database, upgrades a legacy schema
// when one is found, applies the embedded migrations, and backfills any
// columns added since the database was created.
func Open(config *Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := NewConnection(config)
	if err != nil {
		return nil, err
	}

	s := &Store{
		conn:   conn,
		logger: logger,
		path:   config.DatabasePath(),
	}

	ctx := context.Background()

	legacy, err := s.detectLegacySchema(ctx)
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("failed to inspect schema: %w", err)
	}

	if legacy {
		if err := s.stageLegacyTable(ctx); err != nil {
			_ = conn.Close()

			return nil, fmt.Errorf("failed to stage legacy products table: %w", err)
		}
	}

	if err := migrations.Apply(conn.DB, logger); err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	if legacy {
		imported, err := s.importLegacyRows(ctx)
		if err != nil {
			_ = conn.Close()

			return nil, fmt.Errorf("failed to import legacy rows: %w", err)
		}

		logger.Info("Upgraded legacy product database",
			slog.String("database", s.path),
			slog.Int64("rows_imported", imported),
		)
	}

	added, err := s.AddMissingColumns(ctx)
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("failed to add missing columns: %w", err)
	}

	if added > 0 {
		logger.Info("Extended product schema",
			slog.String("database", s.path),
			slog.Int("columns_added", added),
		)
	}

	return s, nil
}

// DB exposes the shared handle for components that store their own data in
// the catalog database, such as the durable session store.
func (s *Store) DB() *sql.DB {
	if s.conn == nil {
		return nil
	}

	return s.conn.DB
}

// Path returns the database file backing this store.
func (s *Store) Path() string {
	return s.path
}

// HealthCheck verifies the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.conn == nil {
		return ErrNoDatabaseConnection
	}

	return s.conn.HealthCheck(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	return s.conn.Close()
}

// detectLegacySchema reports whether the database holds a legacy products
// table, identified by its Excel-style quoted physical column names.
func (s *Store) detectLegacySchema(ctx context.Context) (bool, error) {
	exists, err := s.tableExists(ctx, "products")
	if err != nil || !exists {
		return false, err
	}

	columns, err := s.tableColumns(ctx, "products")
	if err != nil {
		return false, err
	}

	return columns["Product Name*"], nil
}

// stageLegacyTable moves the legacy products table aside so the migrations
// can create the modern one under the original name.
func (s *Store) stageLegacyTable(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx,
		fmt.Sprintf(`ALTER TABLE products RENAME TO %s`, legacyProductsTable),
	)

	return err
}

// legacyColumnKind selects the copy expression for one legacy column.
type legacyColumnKind int

const (
	legacyText legacyColumnKind = iota
	legacyReal
	legacyFlag
)

// legacyColumns maps the legacy Excel-style physical columns to their modern
// counterparts. Only columns actually present in the legacy table are copied.
var legacyColumns = []struct {
	legacy string
	modern string
	kind   legacyColumnKind
}{
	{"Product Name*", "product_name", legacyText},
	{"Vendor/Supplier*", "vendor", legacyText},
	{"Product Brand", "brand", legacyText},
	{"Product Type*", "product_type", legacyText},
	{"Lineage", "lineage", legacyText},
	{"Product Strain", "strain", legacyText},
	{"Description", "description", legacyText},
	{"Weight*", "weight", legacyText},
	{"Units", "units", legacyText},
	{"Price* (Tier Name for Bulk)", "price", legacyReal},
	{"THC%", "thc_pct", legacyReal},
	{"CBD%", "cbd_pct", legacyReal},
	{"THC mg", "thc_mg", legacyReal},
	{"CBD mg", "cbd_mg", legacyReal},
	{"Ratio", "ratio", legacyText},
	{"Joint Ratio", "joint_ratio", legacyText},
	{"DOH", "doh", legacyText},
	{"Archived", "archived", legacyFlag},
	{"Accepted Date", "accepted_date", legacyText},
	{"Expiration Date", "expiration_date", legacyText},
	{"Source", "source", legacyText},
	{"Concentrate Type", "concentrate_type", legacyText},
	{"Batch Number", "batch_number", legacyText},
	{"Lot Number", "lot_number", legacyText},
	{"Barcode*", "barcode", legacyText},
	{"Quantity*", "quantity", legacyText},
	{"Quantity Received*", "quantity_received", legacyText},
	{"Cost*", "cost", legacyText},
	{"Room*", "room", legacyText},
	{"State", "state", legacyText},
	{"Med/Rec", "medical_only", legacyText},
	{"Internal Product Identifier", "internal_id", legacyText},
	{"THC Per Serving", "thc_per_serving", legacyText},
	{"CBD Per Serving", "cbd_per_serving", legacyText},
	{"Servings Per Package", "servings_per_package", legacyText},
	{"Net Weight", "net_weight", legacyText},
	{"Allergens", "allergens", legacyText},
	{"Ingredients", "ingredients", legacyText},
}

// importLegacyRows copies the intersection of legacy and modern columns into
// the migrated products table, computing the normalized identity keys in SQL,
// then drops the staged legacy table. Rows without a product name are
// skipped; duplicate identities keep the first row.
func (s *Store) importLegacyRows(ctx context.Context) (int64, error) {
	live, err := s.tableColumns(ctx, legacyProductsTable)
	if err != nil {
		return 0, err
	}

	if !live["Product Name*"] {
		return 0, fmt.Errorf("legacy table missing %q column", "Product Name*")
	}

	dst := []string{"normalized_key", "normalized_name", "created_at", "updated_at"}

	vendorExpr := `''`
	if live["Vendor/Supplier*"] {
		vendorExpr = `LOWER(TRIM(COALESCE("Vendor/Supplier*", '')))`
	}

	src := []string{
		`LOWER(TRIM("Product Name*")) || '|' || ` + vendorExpr,
		`LOWER(TRIM("Product Name*"))`,
		`datetime('now')`,
		`datetime('now')`,
	}

	for _, col := range legacyColumns {
		if !live[col.legacy] {
			continue
		}

		dst = append(dst, col.modern)

		quoted := `"` + col.legacy + `"`

		switch col.kind {
		case legacyReal:
			src = append(src, `CAST(REPLACE(COALESCE(`+quoted+`, ''), '$', '') AS REAL)`)
		case legacyFlag:
			src = append(src,
				`CASE WHEN LOWER(TRIM(COALESCE(`+quoted+`, ''))) IN ('yes', 'true', '1', 'archived') THEN 1 ELSE 0 END`)
		default:
			src = append(src, `COALESCE(`+quoted+`, '')`)
		}
	}

	query := fmt.Sprintf(
		`INSERT OR IGNORE INTO products (%s) SELECT %s FROM %s WHERE TRIM(COALESCE("Product Name*", '')) <> ''`,
		strings.Join(dst, ", "),
		strings.Join(src, ", "),
		legacyProductsTable,
	)

	result, err := s.conn.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}

	imported, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if _, err := s.conn.ExecContext(ctx,
		fmt.Sprintf(`DROP TABLE %s`, legacyProductsTable),
	); err != nil {
		return imported, fmt.Errorf("failed to drop staged legacy table: %w", err)
	}

	return imported, nil
}

// modernProductColumns is the authoritative products column set, used to
// bring older modern databases forward. DDL fragments use constant defaults
// because SQLite forbids non-constant defaults in ADD COLUMN.
var modernProductColumns = []struct {
	name string
	ddl  string
}{
	{"product_name", "TEXT NOT NULL DEFAULT ''"},
	{"vendor", "TEXT NOT NULL DEFAULT ''"},
	{"normalized_key", "TEXT NOT NULL DEFAULT ''"},
	{"normalized_name", "TEXT NOT NULL DEFAULT ''"},
	{"brand", "TEXT NOT NULL DEFAULT ''"},
	{"product_type", "TEXT NOT NULL DEFAULT ''"},
	{"lineage", "TEXT NOT NULL DEFAULT ''"},
	{"strain", "TEXT NOT NULL DEFAULT ''"},
	{"description", "TEXT NOT NULL DEFAULT ''"},
	{"weight", "TEXT NOT NULL DEFAULT ''"},
	{"units", "TEXT NOT NULL DEFAULT ''"},
	{"price", "REAL NOT NULL DEFAULT 0"},
	{"thc_pct", "REAL NOT NULL DEFAULT 0"},
	{"cbd_pct", "REAL NOT NULL DEFAULT 0"},
	{"thc_mg", "REAL NOT NULL DEFAULT 0"},
	{"cbd_mg", "REAL NOT NULL DEFAULT 0"},
	{"ratio", "TEXT NOT NULL DEFAULT ''"},
	{"joint_ratio", "TEXT NOT NULL DEFAULT ''"},
	{"doh", "TEXT NOT NULL DEFAULT ''"},
	{"archived", "INTEGER NOT NULL DEFAULT 0"},
	{"accepted_date", "TEXT NOT NULL DEFAULT ''"},
	{"expiration_date", "TEXT NOT NULL DEFAULT ''"},
	{"source", "TEXT NOT NULL DEFAULT ''"},
	{"concentrate_type", "TEXT NOT NULL DEFAULT ''"},
	{"batch_number", "TEXT NOT NULL DEFAULT ''"},
	{"lot_number", "TEXT NOT NULL DEFAULT ''"},
	{"barcode", "TEXT NOT NULL DEFAULT ''"},
	{"quantity", "TEXT NOT NULL DEFAULT ''"},
	{"quantity_received", "TEXT NOT NULL DEFAULT ''"},
	{"cost", "TEXT NOT NULL DEFAULT ''"},
	{"room", "TEXT NOT NULL DEFAULT ''"},
	{"state", "TEXT NOT NULL DEFAULT ''"},
	{"medical_only", "TEXT NOT NULL DEFAULT ''"},
	{"internal_id", "TEXT NOT NULL DEFAULT ''"},
	{"thc_per_serving", "TEXT NOT NULL DEFAULT ''"},
	{"cbd_per_serving", "TEXT NOT NULL DEFAULT ''"},
	{"servings_per_package", "TEXT NOT NULL DEFAULT ''"},
	{"net_weight", "TEXT NOT NULL DEFAULT ''"},
	{"allergens", "TEXT NOT NULL DEFAULT ''"},
	{"ingredients", "TEXT NOT NULL DEFAULT ''"},
	{"extra", "TEXT NOT NULL DEFAULT '{}'"},
	{"combined_weight", "TEXT NOT NULL DEFAULT ''"},
	{"desc_and_weight", "TEXT NOT NULL DEFAULT ''"},
	{"ratio_or_thc_cbd", "TEXT NOT NULL DEFAULT ''"},
	{"description_complexity", "INTEGER NOT NULL DEFAULT 0"},
	{"created_at", "TIMESTAMP"},
	{"updated_at", "TIMESTAMP"},
}

// AddMissingColumns diffs the live products columns against the modern set
// and issues ALTER TABLE ADD COLUMN for each absentee. Databases created by
// older releases gain new columns without a migration rewrite.
func (s *Store) AddMissingColumns(ctx context.Context) (int, error) {
	live, err := s.tableColumns(ctx, "products")
	if err != nil {
		return 0, err
	}

	added := 0

	for _, col := range modernProductColumns {
		if live[col.name] {
			continue
		}

		if _, err := s.conn.ExecContext(ctx,
			fmt.Sprintf(`ALTER TABLE products ADD COLUMN %s %s`, col.name, col.ddl),
		); err != nil {
			return added, fmt.Errorf("failed to add column %s: %w", col.name, err)
		}

		added++
	}

	return added, nil
}

// tableExists reports whether a table with the given name exists.
func (s *Store) tableExists(ctx context.Context, table string) (bool, error) {
	var name string

	err := s.conn.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
	).Scan(&name)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

// tableColumns returns the live column set of a table via PRAGMA table_info.
// Table names are internal constants; PRAGMA does not accept placeholders.
func (s *Store) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = rows.Close()
	}()

	columns := make(map[string]bool)

	for rows.Next() {
		var (
			cid        int
			name       string
			columnType string
			notNull    int
			defaultVal sql.NullString
			primaryKey int
		)

		if err := rows.Scan(&cid, &name, &columnType, &notNull, &defaultVal, &primaryKey); err != nil {
			return nil, err
		}

		columns[name] = true
	}

	return columns, rows.Err()
}

// now returns the wall-clock time bound into timestamp parameters. Explicit
// UTC values keep comparisons consistent across connections.
func now() time.Time {
	return time.Now().UTC()
}
