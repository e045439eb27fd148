package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/labelforge-io/labelforge/internal/product"
)

// StoreResult summarizes one bulk spreadsheet ingest. Synthetic rows are
// matching artifacts and are counted but never persisted.
type StoreResult struct {
	Stored            int `json:"stored"`
	ExcludedSynthetic int `json:"excluded_synthetic"`
	TotalRows         int `json:"total_rows"`
}

// productColumnList is the ordered mutable column set shared by the select,
// insert, and update statements. Keeping a single list prevents the three
// from drifting apart.
var productColumnList = []string{
	"product_name", "vendor", "brand", "product_type", "lineage", "strain",
	"description", "weight", "units", "price", "thc_pct", "cbd_pct", "thc_mg",
	"cbd_mg", "ratio", "joint_ratio", "doh", "archived", "accepted_date",
	"expiration_date", "source", "concentrate_type", "batch_number",
	"lot_number", "barcode", "quantity", "quantity_received", "cost", "room",
	"state", "medical_only", "internal_id", "thc_per_serving",
	"cbd_per_serving", "servings_per_package", "net_weight", "allergens",
	"ingredients", "extra", "combined_weight", "desc_and_weight",
	"ratio_or_thc_cbd", "description_complexity",
}

var productSelectColumns = strings.Join(productColumnList, ", ")

// AddOrUpdateProduct upserts one product by its (name, vendor) identity.
// Incoming non-empty fields merge over an existing row; lineage is
// reconciled against the strain catalog before the write (paraphernalia
// forced, known strain's effective lineage authoritative, new strain created
// with the incoming lineage as canonical).
func (s *Store) AddOrUpdateProduct(ctx context.Context, p *product.Product) error {
	if s.conn == nil {
		return ErrNoDatabaseConnection
	}

	if p == nil {
		return ErrProductNil
	}

	row := p.Clone()

	row.Name = strings.TrimSpace(row.Name)
	if row.Name == "" {
		return ErrProductNameEmpty
	}

	if err := s.reconcileLineage(ctx, &row); err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	if err := upsertProduct(ctx, tx, &row); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// reconcileLineage applies the catalog's lineage authority to an incoming
// row. Every non-paraphernalia ingest with a strain also counts as one vote
// toward that strain's canonical lineage.
func (s *Store) reconcileLineage(ctx context.Context, row *product.Product) error {
	if row.Type == product.TypeParaphernalia {
		row.Lineage = product.LineageParaphernalia

		return nil
	}

	strainName := strings.TrimSpace(row.Strain)
	if strainName == "" {
		return nil
	}

	incoming := row.Lineage
	if !incoming.IsValid() {
		incoming = product.NormalizeLineage(string(incoming), row.Type)
	}

	strain, err := s.AddOrUpdateStrain(ctx, strainName, incoming, false)
	if err != nil {
		return fmt.Errorf("failed to reconcile strain %q: %w", strainName, err)
	}

	row.Lineage = strain.EffectiveLineage()

	return nil
}

// GetProductsByNames returns the products whose case-folded names match any
// of the given names, in table order. Unknown names are simply absent from
// the result.
func (s *Store) GetProductsByNames(ctx context.Context, names []string) ([]product.Product, error) {
	if s.conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	folded := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))

	for _, name := range names {
		f := product.FoldName(name)
		if f == "" || seen[f] {
			continue
		}

		seen[f] = true

		folded = append(folded, f)
	}

	if len(folded) == 0 {
		return nil, nil
	}

	args := make([]any, len(folded))
	for i, f := range folded {
		args[i] = f
	}

	query := fmt.Sprintf(
		`SELECT %s FROM products WHERE normalized_name IN (%s) ORDER BY id`,
		productSelectColumns,
		strings.TrimSuffix(strings.Repeat("?, ", len(folded)), ", "),
	)

	return s.queryProducts(ctx, query, args...)
}

// AllProducts returns every product row, archived included, in table order.
func (s *Store) AllProducts(ctx context.Context) ([]product.Product, error) {
	if s.conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	query := fmt.Sprintf(`SELECT %s FROM products ORDER BY id`, productSelectColumns)

	return s.queryProducts(ctx, query)
}

// CountProducts returns the number of stored product rows.
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	if s.conn == nil {
		return 0, ErrNoDatabaseConnection
	}

	var count int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}

	return count, nil
}

// StoreExcelData bulk-upserts a loaded spreadsheet table. Each row commits
// in its own transaction so one bad row never poisons the batch; failures
// are logged and skipped. Synthetic rows (matching artifacts) are excluded
// and counted.
func (s *Store) StoreExcelData(ctx context.Context, rows []product.Product, sourceFile string) (*StoreResult, error) {
	if s.conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	result := &StoreResult{TotalRows: len(rows)}
	source := filepath.Base(sourceFile)

	for i := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		row := rows[i].Clone()

		if row.IsSynthetic() {
			result.ExcludedSynthetic++

			continue
		}

		if row.Source == "" {
			row.Source = source
		}

		if err := s.AddOrUpdateProduct(ctx, &row); err != nil {
			s.logger.Warn("Failed to store product row",
				slog.String("product", row.Name),
				slog.String("source_file", source),
				slog.String("error", err.Error()),
			)

			continue
		}

		result.Stored++
	}

	s.logger.Info("Stored spreadsheet data",
		slog.String("source_file", source),
		slog.Int("stored", result.Stored),
		slog.Int("excluded_synthetic", result.ExcludedSynthetic),
		slog.Int("total_rows", result.TotalRows),
	)

	return result, nil
}

// ClearAllData removes every product, strain, and feedback record. Durable
// sessions survive; they are UI state, not catalog data.
func (s *Store) ClearAllData(ctx context.Context) error {
	if s.conn == nil {
		return ErrNoDatabaseConnection
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	for _, table := range []string{"products", "strains", "match_feedback"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Warn("Cleared all catalog data", slog.String("database", s.path))

	return nil
}

// UpdateProductLineage sets the lineage on every product row whose name
// case-folds to name. Paraphernalia rows are left alone; their lineage is
// pinned. Returns the number of rows updated.
func (s *Store) UpdateProductLineage(ctx context.Context, name string, lineage product.Lineage) (int64, error) {
	if s.conn == nil {
		return 0, ErrNoDatabaseConnection
	}

	if !lineage.IsValid() {
		return 0, fmt.Errorf("%w: %q", ErrLineageInvalid, lineage)
	}

	result, err := s.conn.ExecContext(ctx,
		`UPDATE products SET lineage = ?, updated_at = ?
		 WHERE LOWER(TRIM(product_name)) = ? AND product_type <> ?`,
		string(lineage), now(),
		product.FoldName(name), string(product.TypeParaphernalia),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update product lineage: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	s.logger.Info("Updated product lineage",
		slog.String("product", name),
		slog.String("lineage", string(lineage)),
		slog.Int64("rows_updated", affected),
	)

	return affected, nil
}

// queryProducts runs a product select and scans every row.
func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]product.Product, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var products []product.Product

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}

		products = append(products, p)
	}

	return products, rows.Err()
}

// upsertProduct inserts the row or merges it over the existing row with the
// same identity key. Derived fields are recomputed on the written row.
func upsertProduct(ctx context.Context, tx *sql.Tx, row *product.Product) error {
	existing, found, err := getProductByKey(ctx, tx, row.Key())
	if err != nil {
		return err
	}

	if !found {
		row.ComputeDerived()

		return insertProduct(ctx, tx, row)
	}

	merged := mergeProduct(existing, *row)
	merged.ComputeDerived()

	return updateProduct(ctx, tx, &merged)
}

// mergeProduct merges non-empty incoming fields over the existing row.
// Incoming zero values never erase stored data; Archived follows the most
// recent ingest, and Extra maps merge with incoming keys winning.
func mergeProduct(existing, incoming product.Product) product.Product {
	merged := existing.Clone()

	mergeString(&merged.Name, incoming.Name)
	mergeString(&merged.Vendor, incoming.Vendor)
	mergeString(&merged.Brand, incoming.Brand)
	mergeString(&merged.Description, incoming.Description)
	mergeString(&merged.Strain, incoming.Strain)
	mergeString(&merged.Weight, incoming.Weight)
	mergeString(&merged.Units, incoming.Units)
	mergeString(&merged.Ratio, incoming.Ratio)
	mergeString(&merged.JointRatio, incoming.JointRatio)
	mergeString(&merged.DOH, incoming.DOH)
	mergeString(&merged.AcceptedDate, incoming.AcceptedDate)
	mergeString(&merged.ExpirationDate, incoming.ExpirationDate)
	mergeString(&merged.Source, incoming.Source)
	mergeString(&merged.ConcentrateType, incoming.ConcentrateType)
	mergeString(&merged.BatchNumber, incoming.BatchNumber)
	mergeString(&merged.LotNumber, incoming.LotNumber)
	mergeString(&merged.Barcode, incoming.Barcode)
	mergeString(&merged.Quantity, incoming.Quantity)
	mergeString(&merged.QuantityReceived, incoming.QuantityReceived)
	mergeString(&merged.Cost, incoming.Cost)
	mergeString(&merged.Room, incoming.Room)
	mergeString(&merged.State, incoming.State)
	mergeString(&merged.MedicalOnly, incoming.MedicalOnly)
	mergeString(&merged.InternalID, incoming.InternalID)
	mergeString(&merged.THCPerServing, incoming.THCPerServing)
	mergeString(&merged.CBDPerServing, incoming.CBDPerServing)
	mergeString(&merged.ServingsPerPackage, incoming.ServingsPerPackage)
	mergeString(&merged.NetWeight, incoming.NetWeight)
	mergeString(&merged.Allergens, incoming.Allergens)
	mergeString(&merged.Ingredients, incoming.Ingredients)

	if incoming.Type != "" {
		merged.Type = incoming.Type
	}

	if incoming.Lineage != "" {
		merged.Lineage = incoming.Lineage
	}

	mergeFloat(&merged.Price, incoming.Price)
	mergeFloat(&merged.THCPct, incoming.THCPct)
	mergeFloat(&merged.CBDPct, incoming.CBDPct)
	mergeFloat(&merged.THCMg, incoming.THCMg)
	mergeFloat(&merged.CBDMg, incoming.CBDMg)

	merged.Archived = incoming.Archived

	if len(incoming.Extra) > 0 {
		if merged.Extra == nil {
			merged.Extra = make(map[string]string, len(incoming.Extra))
		}

		for k, v := range incoming.Extra {
			merged.Extra[k] = v
		}
	}

	return merged
}

func mergeString(dst *string, src string) {
	if strings.TrimSpace(src) != "" {
		*dst = src
	}
}

func mergeFloat(dst *float64, src float64) {
	if src != 0 {
		*dst = src
	}
}

// getProductByKey fetches one product by its normalized identity key.
func getProductByKey(ctx context.Context, tx *sql.Tx, key string) (product.Product, bool, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE normalized_key = ?`, productSelectColumns)

	p, err := scanProduct(tx.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return product.Product{}, false, nil
	}

	if err != nil {
		return product.Product{}, false, err
	}

	return p, true, nil
}

func insertProduct(ctx context.Context, tx *sql.Tx, p *product.Product) error {
	args, err := productArgs(p)
	if err != nil {
		return err
	}

	ts := now()
	args = append([]any{p.Key(), product.FoldName(p.Name)}, args...)
	args = append(args, ts, ts)

	query := fmt.Sprintf(
		`INSERT INTO products (normalized_key, normalized_name, %s, created_at, updated_at) VALUES (%s)`,
		productSelectColumns,
		strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", "),
	)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert product %q: %w", p.Name, err)
	}

	return nil
}

func updateProduct(ctx context.Context, tx *sql.Tx, p *product.Product) error {
	args, err := productArgs(p)
	if err != nil {
		return err
	}

	assignments := make([]string, 0, len(productColumnList)+2)
	assignments = append(assignments, "normalized_name = ?")

	for _, col := range productColumnList {
		assignments = append(assignments, col+" = ?")
	}

	assignments = append(assignments, "updated_at = ?")

	args = append([]any{product.FoldName(p.Name)}, args...)
	args = append(args, now(), p.Key())

	query := fmt.Sprintf(
		`UPDATE products SET %s WHERE normalized_key = ?`,
		strings.Join(assignments, ", "),
	)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update product %q: %w", p.Name, err)
	}

	return nil
}

// productArgs renders the mutable columns of a product in productColumnList
// order.
func productArgs(p *product.Product) ([]any, error) {
	extraJSON := "{}"

	if len(p.Extra) > 0 {
		raw, err := json.Marshal(p.Extra)
		if err != nil {
			return nil, fmt.Errorf("failed to encode extra columns for %q: %w", p.Name, err)
		}

		extraJSON = string(raw)
	}

	return []any{
		p.Name, p.Vendor, p.Brand, string(p.Type), string(p.Lineage), p.Strain,
		p.Description, p.Weight, p.Units, p.Price, p.THCPct, p.CBDPct, p.THCMg,
		p.CBDMg, p.Ratio, p.JointRatio, p.DOH, p.Archived, p.AcceptedDate,
		p.ExpirationDate, p.Source, p.ConcentrateType, p.BatchNumber,
		p.LotNumber, p.Barcode, p.Quantity, p.QuantityReceived, p.Cost, p.Room,
		p.State, p.MedicalOnly, p.InternalID, p.THCPerServing, p.CBDPerServing,
		p.ServingsPerPackage, p.NetWeight, p.Allergens, p.Ingredients, extraJSON,
		p.CombinedWeight, p.DescAndWeight, p.RatioOrTHCCBD, p.DescriptionComplexity,
	}, nil
}

// rowScanner abstracts sql.Row and sql.Rows for the shared scan path.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanProduct reads one row in productColumnList order.
func scanProduct(scanner rowScanner) (product.Product, error) {
	var (
		p         product.Product
		extraJSON string
	)

	err := scanner.Scan(
		&p.Name, &p.Vendor, &p.Brand, &p.Type, &p.Lineage, &p.Strain,
		&p.Description, &p.Weight, &p.Units, &p.Price, &p.THCPct, &p.CBDPct,
		&p.THCMg, &p.CBDMg, &p.Ratio, &p.JointRatio, &p.DOH, &p.Archived,
		&p.AcceptedDate, &p.ExpirationDate, &p.Source, &p.ConcentrateType,
		&p.BatchNumber, &p.LotNumber, &p.Barcode, &p.Quantity,
		&p.QuantityReceived, &p.Cost, &p.Room, &p.State, &p.MedicalOnly,
		&p.InternalID, &p.THCPerServing, &p.CBDPerServing,
		&p.ServingsPerPackage, &p.NetWeight, &p.Allergens, &p.Ingredients,
		&extraJSON, &p.CombinedWeight, &p.DescAndWeight, &p.RatioOrTHCCBD,
		&p.DescriptionComplexity,
	)
	if err != nil {
		return product.Product{}, err
	}

	if extraJSON != "" && extraJSON != "{}" {
		if err := json.Unmarshal([]byte(extraJSON), &p.Extra); err != nil {
			return product.Product{}, fmt.Errorf("failed to decode extra columns for %q: %w", p.Name, err)
		}
	}

	return p, nil
}


