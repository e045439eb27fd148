package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labelforge-io/labelforge/internal/product"
)

type (
	// UpdateLineageRequest sets the lineage of one product.
	UpdateLineageRequest struct {
		TagName string `json:"tag_name"`
		Lineage string `json:"lineage"`
	}

	// UpdateLineageResponse reports where the update landed.
	UpdateLineageResponse struct {
		TagName         string `json:"tag_name"`
		Lineage         string `json:"lineage"`
		TableUpdated    bool   `json:"table_updated"`
		ProductsUpdated int64  `json:"products_updated"`
	}

	// UpdateStrainLineageRequest pins a sovereign lineage on a strain.
	UpdateStrainLineageRequest struct {
		StrainName string `json:"strain_name"`
		Lineage    string `json:"lineage"`
	}

	// BatchUpdateLineageRequest applies several lineage updates at once.
	BatchUpdateLineageRequest struct {
		Updates []UpdateLineageRequest `json:"updates"`
	}

	// BatchUpdateFailure names one update that could not be applied.
	BatchUpdateFailure struct {
		TagName string `json:"tag_name"`
		Reason  string `json:"reason"`
	}

	// BatchUpdateLineageResponse summarizes a batch run. Updates apply
	// last-write-wins; individual failures do not abort the batch.
	BatchUpdateLineageResponse struct {
		Updated int                  `json:"updated"`
		Failed  []BatchUpdateFailure `json:"failed,omitempty"`
	}
)

// parseLineage validates a lineage string against the enumerated values.
func parseLineage(raw string) (product.Lineage, bool) {
	lineage := product.Lineage(strings.ToUpper(strings.TrimSpace(raw)))

	return lineage, lineage.IsValid()
}

// applyLineageUpdate updates one product's lineage in the in-memory table
// and the catalog. Either target alone counting as success keeps the two
// stores loosely coupled: a name may live in only one of them.
func (s *Server) applyLineageUpdate(r *http.Request, name string, lineage product.Lineage) (*UpdateLineageResponse, *APIError) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, InputMalformed("tag_name is required", "tag_name")
	}

	tableUpdated := s.table.UpdateLineage(name, lineage)

	var productsUpdated int64

	if s.catalog != nil {
		updated, err := s.catalog.UpdateProductLineage(r.Context(), name, lineage)
		if err != nil {
			s.logger.Error("Failed to persist lineage update",
				slog.String("tag_name", name),
				slog.String("error", err.Error()),
			)

			return nil, InternalServerError()
		}

		productsUpdated = updated
	}

	if !tableUpdated && productsUpdated == 0 {
		return nil, NotFound("no product named " + name)
	}

	return &UpdateLineageResponse{
		TagName:         name,
		Lineage:         string(lineage),
		TableUpdated:    tableUpdated,
		ProductsUpdated: productsUpdated,
	}, nil
}

// handleUpdateLineage sets the lineage of one product in the loaded table
// and the catalog.
func (s *Server) handleUpdateLineage(w http.ResponseWriter, r *http.Request) {
	var req UpdateLineageRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	lineage, ok := parseLineage(req.Lineage)
	if !ok {
		WriteError(w, r, s.logger, InputMalformed("unknown lineage "+req.Lineage, "lineage"))

		return
	}

	result, apiErr := s.applyLineageUpdate(r, req.TagName, lineage)
	if apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	WriteData(w, r, s.logger, http.StatusOK, result)
}

// handleUpdateStrainLineage pins a sovereign lineage on a strain and
// propagates it to every product referencing the strain. The in-memory
// table is re-reconciled afterwards so reads reflect the override
// immediately.
func (s *Server) handleUpdateStrainLineage(w http.ResponseWriter, r *http.Request) {
	var req UpdateStrainLineageRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	req.StrainName = strings.TrimSpace(req.StrainName)
	if req.StrainName == "" {
		WriteError(w, r, s.logger, InputMalformed("strain_name is required", "strain_name"))

		return
	}

	lineage, ok := parseLineage(req.Lineage)
	if !ok {
		WriteError(w, r, s.logger, InputMalformed("unknown lineage "+req.Lineage, "lineage"))

		return
	}

	if s.catalog == nil {
		WriteError(w, r, s.logger, UpstreamUnavailable("product catalog not configured"))

		return
	}

	productsUpdated, err := s.catalog.UpdateStrainLineage(r.Context(), req.StrainName, lineage)
	if err != nil {
		s.logger.Error("Failed to update strain lineage",
			slog.String("strain_name", req.StrainName),
			slog.String("error", err.Error()),
		)

		WriteError(w, r, s.logger, InternalServerError())

		return
	}

	if _, err := s.table.EnsureLineagePersistence(r.Context(), s.catalog); err != nil {
		s.logger.Warn("Failed to refresh table lineages after strain update",
			slog.String("strain_name", req.StrainName),
			slog.String("error", err.Error()),
		)
	}

	WriteData(w, r, s.logger, http.StatusOK, map[string]any{
		"strain_name":      req.StrainName,
		"lineage":          string(lineage),
		"products_updated": productsUpdated,
	})
}

// handleBatchUpdateLineage applies several lineage updates in request order,
// last write wins. Per-entry failures are reported, not fatal.
func (s *Server) handleBatchUpdateLineage(w http.ResponseWriter, r *http.Request) {
	var req BatchUpdateLineageRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	if len(req.Updates) == 0 {
		WriteError(w, r, s.logger, InputMalformed("updates cannot be empty", "updates"))

		return
	}

	response := BatchUpdateLineageResponse{}

	for _, update := range req.Updates {
		lineage, ok := parseLineage(update.Lineage)
		if !ok {
			response.Failed = append(response.Failed, BatchUpdateFailure{
				TagName: update.TagName,
				Reason:  "unknown lineage " + update.Lineage,
			})

			continue
		}

		if _, apiErr := s.applyLineageUpdate(r, update.TagName, lineage); apiErr != nil {
			response.Failed = append(response.Failed, BatchUpdateFailure{
				TagName: update.TagName,
				Reason:  apiErr.Message,
			})

			continue
		}

		response.Updated++
	}

	WriteData(w, r, s.logger, http.StatusOK, response)
}


