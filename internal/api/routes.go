package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	healthCheckTimeout = 2 * time.Second

	// maxJSONBody caps JSON request bodies; file uploads have their own
	// larger limit.
	maxJSONBody int64 = 1 << 20

	serviceVersion = "v1.0.0"
)

type (
	// HealthStatus represents the health check response structure.
	HealthStatus struct {
		Status      string `json:"status"`
		ServiceName string `json:"service_name"`
		Version     string `json:"version"`
		Uptime      string `json:"uptime,omitempty"`
	}
)

// rateLimitedPaths lists the endpoints behind the per-client rate limiter:
// the expensive operations (feed matching, document generation), not the
// cheap selection reads.
func rateLimitedPaths() []string {
	return []string{
		"/api/json-match",
		"/api/json-match/diagnose",
		"/api/generate",
	}
}

// setupRoutes sets up all HTTP routes for the API server.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Health endpoints
	mux.HandleFunc("GET /ping", s.handlePing)     // liveness probe
	mux.HandleFunc("GET /ready", s.handleReady)   // readiness probe, checks the catalog
	mux.HandleFunc("GET /health", s.handleHealth) // status, uptime, version

	// Ingestion
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /api/upload-status", s.handleUploadStatus)

	// Selection
	mux.HandleFunc("GET /api/available-tags", s.handleAvailableTags)
	mux.HandleFunc("GET /api/selected-tags", s.handleSelectedTags)
	mux.HandleFunc("POST /api/selected-tags", s.handleReorderTags)
	mux.HandleFunc("POST /api/move-tags", s.handleMoveTags)
	mux.HandleFunc("POST /api/undo-move", s.handleUndoMove)

	// Filtering
	mux.HandleFunc("GET /api/filter-options", s.handleFilterOptionsGet)
	mux.HandleFunc("POST /api/filter-options", s.handleFilterOptionsPost)

	// Matching
	mux.HandleFunc("POST /api/json-match", s.handleJSONMatch)
	mux.HandleFunc("POST /api/json-match/diagnose", s.handleJSONMatchDiagnose)
	mux.HandleFunc("POST /api/match-feedback", s.handleMatchFeedback)

	// Lineage
	mux.HandleFunc("POST /api/update-lineage", s.handleUpdateLineage)
	mux.HandleFunc("POST /api/update-strain-lineage", s.handleUpdateStrainLineage)
	mux.HandleFunc("POST /api/batch-update-lineage", s.handleBatchUpdateLineage)

	// Output
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/database-export", s.handleDatabaseExport)

	// Catch-all handler for 404 responses
	mux.HandleFunc("/", s.handleNotFound)
}

// handlePing responds to ping requests for basic server validation.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("pong")); err != nil {
		s.logger.Error("Failed to write ping response", "error", err.Error())
	}
}

// handleReady responds to readiness probes with a catalog health check.
//
// Response codes:
//   - 200 OK: the catalog is reachable (or not configured; memory-only mode
//     serves traffic without it)
//   - 503 Service Unavailable: the catalog database is unhealthy
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.catalog != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := s.catalog.HealthCheck(ctx); err != nil {
			s.logger.Error("Catalog health check failed", "error", err.Error())

			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusServiceUnavailable)

			if _, writeErr := w.Write([]byte("storage unavailable")); writeErr != nil {
				s.logger.Error("Failed to write unavailable response", "error", writeErr.Error())
			}

			return
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("ready")); err != nil {
		s.logger.Error("Failed to write ready response", "error", err.Error())
	}
}

// handleHealth returns detailed health status information.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var uptime string

	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Round(time.Second).String()
	}

	WriteData(w, r, s.logger, http.StatusOK, HealthStatus{
		Status:      "healthy",
		ServiceName: "labelforge",
		Version:     serviceVersion,
		Uptime:      uptime,
	})
}

// handleNotFound returns envelope 404 responses for unknown endpoints.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, s.logger, NotFound("The requested resource was not found"))
}

// decodeJSON parses a JSON request body into dst. It returns an *APIError
// describing what the client got wrong, or nil on success.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) *APIError {
	if !hasJSONContentType(r.Header.Get("Content-Type")) {
		return InputMalformed("Content-Type must be application/json", "Content-Type")
	}

	body := http.MaxBytesReader(w, r.Body, maxJSONBody)

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return InputMalformed(fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit), "")
		}

		if errors.Is(err, io.EOF) {
			return InputMalformed("request body is empty", "")
		}

		return InputMalformed(fmt.Sprintf("invalid JSON: %v", err), "")
	}

	return nil
}

// hasJSONContentType checks if Content-Type header starts with "application/json".
// This allows charset parameters (e.g., "application/json; charset=utf-8").
func hasJSONContentType(contentType string) bool {
	return strings.HasPrefix(strings.TrimSpace(contentType), "application/json")
}
