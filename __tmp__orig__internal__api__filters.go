package api

import (
	"net/http"

	"github.com/labelforge-io/labelforge/internal/tabular"
)

// FilterOptionsResponse carries the per-category dropdown values.
type FilterOptionsResponse struct {
	Options map[string][]string `json:"options"`
}

// handleFilterOptionsGet serves the unfiltered dropdown values per category.
func (s *Server) handleFilterOptionsGet(w http.ResponseWriter, r *http.Request) {
	WriteData(w, r, s.logger, http.StatusOK, FilterOptionsResponse{
		Options: s.table.FilterOptions(tabular.Filters{}),
	})
}

// handleFilterOptionsPost serves the faceted dropdown values: per category,
// the values that remain selectable given every other category's selection
// in the request body.
func (s *Server) handleFilterOptionsPost(w http.ResponseWriter, r *http.Request) {
	var filters tabular.Filters
	if apiErr := decodeJSON(w, r, &filters); apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	WriteData(w, r, s.logger, http.StatusOK, FilterOptionsResponse{
		Options: s.table.FilterOptions(filters),
	})
}


