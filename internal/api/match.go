package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labelforge-io/labelforge/internal/matching"
	"github.com/labelforge-io/labelforge/internal/product"
	"github.com/labelforge-io/labelforge/internal/session"
)

type (
	// JSONMatchRequest names the inventory feed to resolve.
	JSONMatchRequest struct {
		URL string `json:"url"`
	}

	// CandidateView is one ranked match in the response.
	CandidateView struct {
		ProductName  string  `json:"product_name"`
		ItemVendor   string  `json:"item_vendor,omitempty"`
		TargetName   string  `json:"target_name"`
		TargetVendor string  `json:"target_vendor,omitempty"`
		Score        float64 `json:"score"`
		Confidence   float64 `json:"confidence"`
		Source       string  `json:"source"`
		Explanation  string  `json:"explanation,omitempty"`
	}

	// JSONMatchResponse is the payload of /api/json-match.
	JSONMatchResponse struct {
		Candidates   []CandidateView `json:"candidates"`
		MatchedNames []string        `json:"matched_names"`
		Message      string          `json:"message,omitempty"`
		TotalItems   int             `json:"total_items"`
		SkippedItems int             `json:"skipped_items"`
		Trained      bool            `json:"trained"`
	}

	// DiagnosticCandidateView carries the full feature vector for one
	// evaluated pair, including pairs rejected by vendor isolation or the
	// emission threshold.
	DiagnosticCandidateView struct {
		TargetName     string                 `json:"target_name"`
		TargetVendor   string                 `json:"target_vendor,omitempty"`
		Score          float64                `json:"score"`
		Confidence     float64                `json:"confidence"`
		Source         string                 `json:"source"`
		Features       matching.FeatureVector `json:"features"`
		VendorIsolated bool                   `json:"vendor_isolated"`
		BelowThreshold bool                   `json:"below_threshold"`
	}

	// DiagnosticItemView is the per-item dump of the diagnose endpoint.
	DiagnosticItemView struct {
		ProductName string                    `json:"product_name"`
		Vendor      string                    `json:"vendor,omitempty"`
		Candidates  []DiagnosticCandidateView `json:"candidates"`
	}

	// DiagnosisResponse is the payload of /api/json-match/diagnose.
	DiagnosisResponse struct {
		Items            []DiagnosticItemView `json:"items"`
		EnsembleTrained  bool                 `json:"ensemble_trained"`
		TrainingExamples int                  `json:"training_examples"`
	}

	// MatchFeedbackRequest records one operator-observed match score.
	MatchFeedbackRequest struct {
		ProductName string  `json:"product_name"`
		MatchedName string  `json:"matched_name"`
		Score       float64 `json:"score"`
	}
)

// matchError maps matching-engine failures onto the error taxonomy.
func matchError(err error) *APIError {
	switch {
	case errors.Is(err, matching.ErrURLEmpty):
		return InputMalformed(err.Error(), "url")
	case errors.Is(err, matching.ErrFeedMalformed):
		return InputMalformed(err.Error(), "url")
	case errors.Is(err, matching.ErrFeedUnavailable):
		return UpstreamUnavailable(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout("inventory feed fetch timed out")
	default:
		return nil
	}
}

// handleJSONMatch fetches an inventory feed and resolves its items against
// the catalog and the loaded table. Matched target names populate the
// session selection and switch it to json_matched mode.
func (s *Server) handleJSONMatch(w http.ResponseWriter, r *http.Request) {
	var req JSONMatchRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	result, err := s.engine.FetchAndMatch(r.Context(), req.URL)
	if err != nil {
		if apiErr := matchError(err); apiErr != nil {
			WriteError(w, r, s.logger, apiErr)

			return
		}

		s.logger.Error("JSON match failed", slog.String("error", err.Error()))
		WriteError(w, r, s.logger, InternalServerError())

		return
	}

	matched := make([]string, 0, len(result.Candidates))
	candidates := make([]CandidateView, 0, len(result.Candidates))

	for _, c := range result.Candidates {
		matched = append(matched, c.Target.Name)

		candidates = append(candidates, CandidateView{
			ProductName:  c.Item.ProductName,
			ItemVendor:   c.Item.Vendor,
			TargetName:   c.Target.Name,
			TargetVendor: c.Target.Vendor,
			Score:        c.Score,
			Confidence:   c.Confidence,
			Source:       c.Source,
			Explanation:  c.Explanation,
		})
	}

	id, state, apiErr := s.sessionState(w, r)
	if apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	if len(matched) > 0 {
		// Snapshot, then select the matched names in ranking order.
		if err := state.Move(matched, session.DirectionToSelected, false, matched); err == nil {
			state.MarkJSONMatch(matched)
		}
	}

	if apiErr := s.saveSession(r, id, state); apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	WriteData(w, r, s.logger, http.StatusOK, JSONMatchResponse{
		Candidates:   candidates,
		MatchedNames: matched,
		Message:      result.Message,
		TotalItems:   result.TotalItems,
		SkippedItems: result.SkippedItems,
		Trained:      result.Trained,
	})
}

// handleJSONMatchDiagnose evaluates a feed without mutating any state and
// dumps every scored pair, including rejected ones.
func (s *Server) handleJSONMatchDiagnose(w http.ResponseWriter, r *http.Request) {
	var req JSONMatchRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	diagnosis, err := s.engine.Diagnose(r.Context(), req.URL)
	if err != nil {
		if apiErr := matchError(err); apiErr != nil {
			WriteError(w, r, s.logger, apiErr)

			return
		}

		s.logger.Error("JSON match diagnosis failed", slog.String("error", err.Error()))
		WriteError(w, r, s.logger, InternalServerError())

		return
	}

	items := make([]DiagnosticItemView, 0, len(diagnosis.Items))

	for _, item := range diagnosis.Items {
		view := DiagnosticItemView{
			ProductName: item.Item.ProductName,
			Vendor:      item.Item.Vendor,
			Candidates:  make([]DiagnosticCandidateView, 0, len(item.Candidates)),
		}

		for _, c := range item.Candidates {
			view.Candidates = append(view.Candidates, DiagnosticCandidateView{
				TargetName:     c.TargetName,
				TargetVendor:   c.TargetVendor,
				Score:          c.Score,
				Confidence:     c.Confidence,
				Source:         c.Source,
				Features:       c.Features,
				VendorIsolated: c.VendorIsolated,
				BelowThreshold: c.BelowThreshold,
			})
		}

		items = append(items, view)
	}

	WriteData(w, r, s.logger, http.StatusOK, DiagnosisResponse{
		Items:            items,
		EnsembleTrained:  diagnosis.EnsembleTrained,
		TrainingExamples: diagnosis.TrainingExamples,
	})
}

// handleMatchFeedback records an operator-observed match score. The feature
// vector is recomputed from the named rows so the trained ensemble learns
// from the same inputs the matcher scores with.
func (s *Server) handleMatchFeedback(w http.ResponseWriter, r *http.Request) {
	var req MatchFeedbackRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	req.ProductName = strings.TrimSpace(req.ProductName)
	req.MatchedName = strings.TrimSpace(req.MatchedName)

	switch {
	case req.ProductName == "":
		WriteError(w, r, s.logger, InputMalformed("product_name is required", "product_name"))

		return
	case req.MatchedName == "":
		WriteError(w, r, s.logger, InputMalformed("matched_name is required", "matched_name"))

		return
	case req.Score < 0 || req.Score > 1:
		WriteError(w, r, s.logger, InputMalformed("score must be between 0 and 1", "score"))

		return
	}

	target, ok := s.lookupProduct(r, req.MatchedName)
	if !ok {
		WriteError(w, r, s.logger, NotFound("no product named "+req.MatchedName))

		return
	}

	item := matching.Item{ProductName: req.ProductName}
	if source, ok := s.lookupProduct(r, req.ProductName); ok {
		item.Vendor = source.Vendor
		item.Brand = source.Brand
		item.InventoryType = string(source.Type)
		item.Weight = source.Weight + source.Units
		item.Price = source.Price
	}

	features := matching.ComputeFeatures(item, &target)

	if err := s.engine.RecordFeedback(r.Context(), req.ProductName, req.MatchedName, req.Score, features); err != nil {
		s.logger.Error("Failed to record match feedback",
			slog.String("product_name", req.ProductName),
			slog.String("matched_name", req.MatchedName),
			slog.String("error", err.Error()),
		)

		WriteError(w, r, s.logger, InternalServerError())

		return
	}

	WriteData(w, r, s.logger, http.StatusOK, map[string]any{
		"product_name": req.ProductName,
		"matched_name": req.MatchedName,
		"score":        req.Score,
	})
}

// lookupProduct resolves a name against the loaded table first, then the
// catalog.
func (s *Server) lookupProduct(r *http.Request, name string) (product.Product, bool) {
	if rows := s.table.GetByName(name); len(rows) > 0 {
		return rows[0], true
	}

	if s.catalog != nil {
		rows, err := s.catalog.GetProductsByNames(r.Context(), []string{name})
		if err == nil && len(rows) > 0 {
			return rows[0], true
		}
	}

	return product.Product{}, false
}
