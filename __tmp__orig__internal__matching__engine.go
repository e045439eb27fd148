package matching

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/labelforge-io/labelforge/internal/product"
)

const (
	// SourceDatabasePriority tags candidates resolved by exact catalog lookup.
	SourceDatabasePriority = "Database Priority"

	// SourceFuzzyMatch tags candidates produced by the fuzzy ensemble.
	SourceFuzzyMatch = "Fuzzy Match"

	// databasePriorityScore is the fixed score and confidence of an exact
	// catalog hit.
	databasePriorityScore = 0.95

	// emissionThreshold is the minimum score a fuzzy candidate needs to be
	// emitted.
	emissionThreshold = 0.3

	// VendorIsolationMessage explains an empty result to the UI. Zero
	// matches is a success, not an error.
	VendorIsolationMessage = "No matches found. Products are only matched within the same " +
		"vendor; items from other vendors are never suggested regardless of name similarity."
)

type (
	// CatalogSource is the catalog lookup the engine's database-priority
	// strategy consults. The catalog store implements it.
	CatalogSource interface {
		GetProductsByNames(ctx context.Context, names []string) ([]product.Product, error)
	}

	// TableSource serves the rows of the currently loaded spreadsheet. The
	// tabular processor implements it.
	TableSource interface {
		AvailableTags() []product.Product
	}

	// Candidate is one ranked match between a feed item and a target
	// product.
	Candidate struct {
		Item        Item
		Target      product.Product
		Score       float64
		Confidence  float64
		Source      string
		Explanation string
		Features    FeatureVector
	}

	// Result is the outcome of matching one feed.
	Result struct {
		Candidates []Candidate
		// Message explains an empty result; empty otherwise.
		Message string
		// TotalItems is the number of feed items considered.
		TotalItems int
		// SkippedItems counts items dropped by per-item scoring errors.
		SkippedItems int
		// Trained reports whether the trained ensemble scored this feed.
		Trained bool
	}

	// ItemDiagnostic is the per-item dump served by the diagnose endpoint.
	ItemDiagnostic struct {
		Item       Item
		Candidates []CandidateDiagnostic
	}

	// CandidateDiagnostic carries the full feature vector for one evaluated
	// pair, including pairs rejected by vendor isolation or the threshold.
	CandidateDiagnostic struct {
		TargetName     string
		TargetVendor   string
		Score          float64
		Confidence     float64
		Source         string
		Features       FeatureVector
		VendorIsolated bool
		BelowThreshold bool
	}

	// Diagnosis is the diagnose endpoint's payload.
	Diagnosis struct {
		Items            []ItemDiagnostic
		EnsembleTrained  bool
		TrainingExamples int
	}

	// Engine resolves inventory feeds against the catalog and the table.
	// Safe for concurrent use; the trained ensemble is rebuilt lazily when
	// new feedback accumulates.
	Engine struct {
		fetcher  *Fetcher
		catalog  CatalogSource
		table    TableSource
		feedback *FeedbackStore
		logger   *slog.Logger

		mu           sync.Mutex
		ensemble     *Ensemble
		trainedCount int
	}
)

// NewEngine creates a matching engine. The feedback store may be nil, in
// which case the fixed linear weights score every pair. The catalog may be
// nil, disabling the database-priority strategy.
func NewEngine(catalog CatalogSource, table TableSource, feedback *FeedbackStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		fetcher:  NewFetcher(),
		catalog:  catalog,
		table:    table,
		feedback: feedback,
		logger:   logger,
	}
}

// FetchAndMatch fetches the feed at url and resolves every item. Fetch
// failures propagate; per-item scoring failures are logged and the item is
// skipped. An empty candidate list is a success carrying the
// vendor-isolation message.
func (e *Engine) FetchAndMatch(ctx context.Context, url string) (*Result, error) {
	feed, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	ensemble := e.currentEnsemble(ctx)

	result := &Result{
		TotalItems: len(feed.Items),
		Trained:    ensemble != nil,
	}

	byTarget := make(map[string]Candidate)

	for _, item := range feed.Items {
		candidates, err := e.matchItem(ctx, item, ensemble)
		if err != nil {
			result.SkippedItems++

			e.logger.Warn("Skipping feed item",
				slog.String("product", item.ProductName),
				slog.String("error", err.Error()),
			)

			continue
		}

		// Deduplicate by target name, best score wins.
		for _, c := range candidates {
			key := product.FoldName(c.Target.Name)
			if prior, ok := byTarget[key]; ok && prior.Score >= c.Score {
				continue
			}

			byTarget[key] = c
		}
	}

	result.Candidates = make([]Candidate, 0, len(byTarget))
	for _, c := range byTarget {
		result.Candidates = append(result.Candidates, c)
	}

	sort.SliceStable(result.Candidates, func(i, j int) bool {
		return result.Candidates[i].Score > result.Candidates[j].Score
	})

	if len(result.Candidates) == 0 {
		result.Message = VendorIsolationMessage
	}

	e.logger.Info("Matched inventory feed",
		slog.String("url", truncateURL(url)),
		slog.Int("items", result.TotalItems),
		slog.Int("candidates", len(result.Candidates)),
		slog.Int("skipped", result.SkippedItems),
		slog.Bool("trained", result.Trained),
	)

	return result, nil
}

// matchItem produces the ranked candidates for one feed item: the exact
// catalog hit first, then fuzzy table candidates within the same vendor.
func (e *Engine) matchItem(ctx context.Context, item Item, ensemble *Ensemble) ([]Candidate, error) {
	var candidates []Candidate

	hits, err := e.catalogLookup(ctx, item.ProductName)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup failed: %w", err)
	}

	if len(hits) > 0 {
		target := hits[0]

		candidates = append(candidates, Candidate{
			Item:        item,
			Target:      target,
			Score:       databasePriorityScore,
			Confidence:  databasePriorityScore,
			Source:      SourceDatabasePriority,
			Explanation: "Exact catalog match",
			Features:    ComputeFeatures(item, &target),
		})
	}

	itemVendor := product.FoldName(item.Vendor)

	for _, row := range e.table.AvailableTags() {
		// Vendor isolation: fuzzy candidates never cross vendors.
		if itemVendor == "" || product.FoldName(row.Vendor) != itemVendor {
			continue
		}

		features := ComputeFeatures(item, &row)
		score, confidence := scorePair(features, ensemble)

		if score < emissionThreshold {
			continue
		}

		candidates = append(candidates, Candidate{
			Item:        item,
			Target:      row,
			Score:       score,
			Confidence:  confidence,
			Source:      SourceFuzzyMatch,
			Explanation: explain(features),
			Features:    features,
		})
	}

	return candidates, nil
}

// catalogLookup runs the exact-name catalog query. A nil catalog yields no
// hits, leaving the fuzzy table strategy as the only source.
func (e *Engine) catalogLookup(ctx context.Context, name string) ([]product.Product, error) {
	if e.catalog == nil {
		return nil, nil
	}

	return e.catalog.GetProductsByNames(ctx, []string{name})
}

// Diagnose evaluates the feed like FetchAndMatch but reports every pair's
// feature vector and the reason pairs were excluded.
func (e *Engine) Diagnose(ctx context.Context, url string) (*Diagnosis, error) {
	feed, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	ensemble := e.currentEnsemble(ctx)

	diagnosis := &Diagnosis{
		EnsembleTrained: ensemble != nil,
	}

	if e.feedback != nil {
		if count, err := e.feedback.Count(ctx); err == nil {
			diagnosis.TrainingExamples = count
		}
	}

	rows := e.table.AvailableTags()

	for _, item := range feed.Items {
		itemDiag := ItemDiagnostic{Item: item}

		if hits, err := e.catalogLookup(ctx, item.ProductName); err == nil && len(hits) > 0 {
			target := hits[0]
			itemDiag.Candidates = append(itemDiag.Candidates, CandidateDiagnostic{
				TargetName:   target.Name,
				TargetVendor: target.Vendor,
				Score:        databasePriorityScore,
				Confidence:   databasePriorityScore,
				Source:       SourceDatabasePriority,
				Features:     ComputeFeatures(item, &target),
			})
		}

		itemVendor := product.FoldName(item.Vendor)

		for i := range rows {
			row := &rows[i]
			features := ComputeFeatures(item, row)
			score, confidence := scorePair(features, ensemble)

			itemDiag.Candidates = append(itemDiag.Candidates, CandidateDiagnostic{
				TargetName:     row.Name,
				TargetVendor:   row.Vendor,
				Score:          score,
				Confidence:     confidence,
				Source:         SourceFuzzyMatch,
				Features:       features,
				VendorIsolated: itemVendor == "" || product.FoldName(row.Vendor) != itemVendor,
				BelowThreshold: score < emissionThreshold,
			})
		}

		diagnosis.Items = append(diagnosis.Items, itemDiag)
	}

	return diagnosis, nil
}

// RecordFeedback stores one operator score and invalidates the trained
// ensemble so the next match retrains with the new example.
func (e *Engine) RecordFeedback(
	ctx context.Context,
	productName, matchedName string,
	score float64,
	features FeatureVector,
) error {
	if e.feedback == nil {
		return nil
	}

	if err := e.feedback.Add(ctx, productName, matchedName, score, features); err != nil {
		return err
	}

	e.mu.Lock()
	e.ensemble = nil
	e.trainedCount = 0
	e.mu.Unlock()

	return nil
}

// currentEnsemble returns the trained ensemble, rebuilding it when feedback
// has grown past the training gate since the last build. Nil means the fixed
// weights apply.
func (e *Engine) currentEnsemble(ctx context.Context) *Ensemble {
	if e.feedback == nil {
		return nil
	}

	count, err := e.feedback.Count(ctx)
	if err != nil {
		e.logger.Warn("Feedback count failed, using fixed weights", slog.String("error", err.Error()))

		return nil
	}

	if count < minTrainingExamples {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ensemble != nil && e.trainedCount == count {
		return e.ensemble
	}

	examples, err := e.feedback.Examples(ctx)
	if err != nil {
		e.logger.Warn("Feedback load failed, using fixed weights", slog.String("error", err.Error()))

		return e.ensemble
	}

	ensemble := TrainEnsemble(examples)
	if ensemble == nil {
		return e.ensemble
	}

	e.ensemble = ensemble
	e.trainedCount = count

	e.logger.Info("Trained matching ensemble", slog.Int("examples", len(examples)))

	return e.ensemble
}

// scorePair scores one feature vector with the trained ensemble when
// available, else the fixed linear combination.
func scorePair(features FeatureVector, ensemble *Ensemble) (score, confidence float64) {
	if ensemble != nil {
		return ensemble.Predict(features)
	}

	return features.LinearScore(), fixedConfidence
}

// explain composes the human-readable explanation from per-feature rules.
func explain(v FeatureVector) string {
	var reasons []string

	if v.Vendor > 0.8 {
		reasons = append(reasons, "Same vendor/supplier")
	}

	switch {
	case v.Text > 0.8:
		reasons = append(reasons, "Very similar product names")
	case v.Text > 0.6:
		reasons = append(reasons, "Similar product names")
	}

	if v.Brand > 0.8 {
		reasons = append(reasons, "Same brand")
	}

	if v.Type > 0.9 {
		reasons = append(reasons, "Same product type")
	}

	if v.Weight > 0.9 {
		reasons = append(reasons, "Matching weight")
	}

	if v.Cannabinoid > 0.8 {
		reasons = append(reasons, "Comparable cannabinoid profile")
	}

	if v.Phonetic == 1.0 && v.Text <= 0.6 {
		reasons = append(reasons, "Phonetically similar names")
	}

	if len(reasons) == 0 {
		return "Weak overall similarity"
	}

	return strings.Join(reasons, "; ")
}

// truncateURL keeps log lines readable when data URLs carry whole feeds.
func truncateURL(url string) string {
	const maxLogged = 120

	if len(url) <= maxLogged {
		return url
	}

	return url[:maxLogged] + "..."
}


