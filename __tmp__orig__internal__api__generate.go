package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labelforge-io/labelforge/internal/labels"
	"github.com/labelforge-io/labelforge/internal/product"
)

// xlsxContentType is the MIME type of the generated label workbook.
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GenerateRequest selects the template and products for one label run.
// With no selected_tags the session's selection is used.
type GenerateRequest struct {
	TemplateType string   `json:"template_type"`
	SelectedTags []string `json:"selected_tags"`
	ScaleFactor  float64  `json:"scale_factor"`
}

// handleGenerate renders the selected products into a label workbook and
// streams it back as a download. Success responses are the binary document,
// not the JSON envelope.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		WriteError(w, r, s.logger, apiErr)

		return
	}

	template, err := labels.ParseTemplate(req.TemplateType)
	if err != nil {
		WriteError(w, r, s.logger, InputMalformed(err.Error(), "template_type"))

		return
	}

	names := req.SelectedTags
	if len(names) == 0 {
		_, state, apiErr := s.sessionState(w, r)
		if apiErr != nil {
			WriteError(w, r, s.logger, apiErr)

			return
		}

		names = state.Selected
	}

	products := make([]product.Product, 0, len(names))

	for _, name := range names {
		row, ok := s.lookupProduct(r, name)
		if !ok {
			s.logger.Warn("Skipping unknown tag in generation", slog.String("tag_name", name))

			continue
		}

		products = append(products, row)
	}

	doc, err := s.generator.Generate(r.Context(), template, products, req.ScaleFactor)
	if err != nil {
		switch {
		case errors.Is(err, labels.ErrNoTags), errors.Is(err, labels.ErrTooManyTags):
			WriteError(w, r, s.logger, PreconditionFailed(err.Error()))
		case errors.Is(err, labels.ErrUnknownTemplate):
			WriteError(w, r, s.logger, InputMalformed(err.Error(), "template_type"))
		case errors.Is(err, labels.ErrGenerationTimeout):
			WriteError(w, r, s.logger, Timeout(err.Error()))
		default:
			s.logger.Error("Label generation failed",
				slog.String("template", string(template)),
				slog.String("error", err.Error()),
			)

			WriteError(w, r, s.logger, InternalServerError())
		}

		return
	}

	filename := fmt.Sprintf("labels_%s_%s.xlsx", template, time.Now().Format("20060102_150405"))

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(doc); err != nil {
		s.logger.Error("Failed to stream label document", slog.String("error", err.Error()))
	}
}


