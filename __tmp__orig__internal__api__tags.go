package api

import (
	"errors"
	"net/http"

	"github.com/labelforge-io/labelforge/internal/product"
	"github.com/labelforge-io/labelforge/internal/session"
)

type (
	// TagView is the list representation of one selectable product.
	TagView struct {
		Name    string `json:"name"`
		Vendor  string `json:"vendor,omitempty"`
		Brand   string `json:"brand,omitempty"`
		Type    string `json:"product_type,omitempty"`
		Lineage string `json:"lineage,omitempty"`
		Weight  string `json:"weight,omitempty"`
		DOH     string `json:"doh,omitempty"`
	}

	// TagListResponse is the payload of the selection read endpoints.
	TagListResponse struct {
		AvailableTags []TagView `json:"available_tags,omitempty"`
		SelectedTags  []string  `json:"selected_tags"`
		Mode          string    `json:"mode"`
		Total         int       `json:"total"`
	}

	// MoveTagsRequest moves tags between the available and selected lists.
	MoveTagsRequest struct {
		Tags      []string `json:"tags"`
		Direction string   `json:"direction"`
		SelectAll bool     `json:"select_all"`
	}

	// ReorderRequest replaces the selection order.
	ReorderRequest struct {
		Tags []string `json:"tags"`
	}
)

// tagView renders a product row for the tag lists.
func tagView(p *product.Product) TagView {
	weight := p.CombinedWeight
	if weight == "" && p.Weight != "" {
		weight = p.Weight + p.Units
	}

	return TagView{
		Name:    p.Name,
		Vendor:  p.Vendor,
		Brand:   p.Brand,
		Type:    string(p.Type),
		Lineage: string(p.Lineage),
		Weight:  weight,
		DOH:     p.DOH,
	}
}

// productIndex returns the ordered known-name universe plus a case-folded
// row lookup: table rows first, catalog rows filling names the table lacks.
func (s *Server) productIndex(r *http.Request) ([]string, map[string]product.Product) {
	rows := s.table.AvailableTags()

	names := make([]string, 0, len(rows))
	byFold := make(map[string]product.Product, len(rows))

	for i := range rows {
		key := product.FoldName(rows[i].Name)
		if _, ok := byFold[key]; ok {
			continue
		}

		byFold[key] = rows[i]

		names = append(names, rows[i].Name)
	}

	if s.catalog != nil {
		catalogRows, err := s.catalog.AllProducts(r.Context())
		if err != nil {
			s.logger.Warn("Catalog unavailable for tag list, serving table only",
				"error", err.Error(),
			)
		} else {
			for i := range catalogRows {
				key := product.FoldName(catalogRows[i].Name)
				if _, ok := byFold[key]; ok {
					continue
				}

				byFold[key] = catalogRows[i]

				names = append(names, catalogRows[i].Name)
			}
		}
	}

	return names, byFold
}

// handleAvailableTags lists the tags a session can still select, honoring
// the session's filter mode and excluding already-selected names.
func (s *Server) handleAvailableTags(w http.ResponseWriter, r *http.Request) {
	id, state, apiErr := s.sessionState(w, r)
	if apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	universe, byFold := s.productIndex(r)

	// The selection must stay a subset of what the system can serve.
	state.Prune(universe)

	serving := modeUniverse(state, universe)

	selected := make(map[string]struct{}, len(state.Selected))
	for _, name := range state.Selected {
		selected[product.FoldName(name)] = struct{}{}
	}

	available := make([]TagView, 0, len(serving))

	for _, name := range serving {
		key := product.FoldName(name)
		if _, ok := selected[key]; ok {
			continue
		}

		row := byFold[key]
		available = append(available, tagView(&row))
	}

	if apiErr := s.saveSession(r, id, state); apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	WriteData(w, r, s.logger, http.StatusOK, TagListResponse{
		AvailableTags: available,
		SelectedTags:  state.Selected,
		Mode:          string(state.Mode()),
		Total:         len(available),
	})
}

// handleSelectedTags returns the session's current selection in order.
func (s *Server) handleSelectedTags(w http.ResponseWriter, r *http.Request) {
	id, state, apiErr := s.sessionState(w, r)
	if apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	state.Prune(s.tagUniverse(r))

	if apiErr := s.saveSession(r, id, state); apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	WriteData(w, r, s.logger, http.StatusOK, TagListResponse{
		SelectedTags: state.Selected,
		Mode:         string(state.Mode()),
		Total:        len(state.Selected),
	})
}

// handleReorderTags replaces the selection order. Unknown names are dropped,
// selected names missing from the new order keep their relative position at
// the end.
func (s *Server) handleReorderTags(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	id, state, apiErr := s.sessionState(w, r)
	if apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	state.Reorder(req.Tags)

	if apiErr := s.saveSession(r, id, state); apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	WriteData(w, r, s.logger, http.StatusOK, TagListResponse{
		SelectedTags: state.Selected,
		Mode:         string(state.Mode()),
		Total:        len(state.Selected),
	})
}

// handleMoveTags moves tags between the available and selected lists.
func (s *Server) handleMoveTags(w http.ResponseWriter, r *http.Request) {
	var req MoveTagsRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	id, state, apiErr := s.sessionState(w, r)
	if apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	universe := modeUniverse(state, s.tagUniverse(r))

	err := state.Move(req.Tags, session.Direction(req.Direction), req.SelectAll, universe)
	if err != nil {
		if errors.Is(err, session.ErrInvalidDirection) {
			WriteError(w, r, s.logger, InputMalformed(err.Error(), "direction"))

			return
		}

		WriteError(w, r, s.logger, InternalServerError())

		return
	}

	if apiErr := s.saveSession(r, id, state); apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	WriteData(w, r, s.logger, http.StatusOK, TagListResponse{
		SelectedTags: state.Selected,
		Mode:         string(state.Mode()),
		Total:        len(state.Selected),
	})
}

// handleUndoMove restores the selection to its state before the last move.
func (s *Server) handleUndoMove(w http.ResponseWriter, r *http.Request) {
	id, state, apiErr := s.sessionState(w, r)
	if apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	if !state.Undo() {
		WriteError(w, r, s.logger, PreconditionFailed("no moves to undo"))

		return
	}

	if apiErr := s.saveSession(r, id, state); apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	WriteData(w, r, s.logger, http.StatusOK, TagListResponse{
		SelectedTags: state.Selected,
		Mode:         string(state.Mode()),
		Total:        len(state.Selected),
	})
}


