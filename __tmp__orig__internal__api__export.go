package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labelforge-io/labelforge/internal/catalog"
)

// handleDatabaseExport mirrors the catalog into an .xlsx workbook and
// streams it back as a download. The sheet carries the same headers the
// upload loader recognizes, so an export is re-ingestable as-is.
func (s *Server) handleDatabaseExport(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		WriteError(w, r, s.logger, UpstreamUnavailable("product catalog not configured"))

		return
	}

	path := filepath.Join(os.TempDir(), fmt.Sprintf("labelforge_export_%d.xlsx", time.Now().UnixNano()))

	defer func() {
		_ = os.Remove(path)
	}()

	rows, err := s.catalog.ExportDatabase(r.Context(), path)
	if err != nil {
		if errors.Is(err, catalog.ErrNoDatabaseConnection) {
			WriteError(w, r, s.logger, UpstreamUnavailable("product catalog unavailable"))

			return
		}

		s.logger.Error("Database export failed", slog.String("error", err.Error()))
		WriteError(w, r, s.logger, InternalServerError())

		return
	}

	doc, err := os.ReadFile(path)
	if err != nil {
		s.logger.Error("Failed to read export document", slog.String("error", err.Error()))
		WriteError(w, r, s.logger, InternalServerError())

		return
	}

	filename := fmt.Sprintf("product_database_export_%s.xlsx", time.Now().Format("20060102_150405"))

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(doc); err != nil {
		s.logger.Error("Failed to stream export document",
			slog.Int("rows", rows),
			slog.String("error", err.Error()),
		)
	}
}


