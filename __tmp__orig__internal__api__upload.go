package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labelforge-io/labelforge/internal/ingest"
)

// uploadMemoryLimit is how much of a multipart body stays in memory before
// spilling to temp files.
const uploadMemoryLimit int64 = 4 << 20

type (
	// UploadResponse acknowledges an accepted upload. Processing continues in
	// the background; poll /api/upload-status with the stored filename.
	UploadResponse struct {
		JobID          string `json:"job_id"`
		StoredFilename string `json:"stored_filename"`
		State          string `json:"state"`
	}

	// UploadStatusResponse reports the job state for a stored filename.
	UploadStatusResponse struct {
		Filename string `json:"filename"`
		State    string `json:"state"`
		Reason   string `json:"reason,omitempty"`
	}
)

// handleUpload accepts a multipart spreadsheet upload under the "file" form
// field and submits it for background processing.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadSize)

	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, r, s.logger, InputMalformed("uploaded file exceeds the size limit", "file"))

			return
		}

		WriteError(w, r, s.logger, InputMalformed("request is not valid multipart form data", ""))

		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, r, s.logger, InputMalformed("missing \"file\" form field", "file"))

		return
	}

	defer func() {
		_ = file.Close()
	}()

	handle, err := s.ingest.SubmitUpload(header.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrUnsupportedFile), errors.Is(err, ingest.ErrEmptyUpload):
			WriteError(w, r, s.logger, InputMalformed(err.Error(), "file"))
		default:
			s.logger.Error("Upload submission failed",
				slog.String("filename", header.Filename),
				slog.String("error", err.Error()),
			)

			WriteError(w, r, s.logger, InternalServerError())
		}

		return
	}

	WriteData(w, r, s.logger, http.StatusAccepted, UploadResponse{
		JobID:          handle.JobID,
		StoredFilename: handle.StoredName,
		State:          "processing",
	})
}

// handleUploadStatus reports the processing state for a stored filename.
func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		WriteError(w, r, s.logger, InputMalformed("filename query parameter is required", "filename"))

		return
	}

	status, err := s.ingest.UploadStatus(filename)
	if err != nil {
		if errors.Is(err, ingest.ErrJobNotFound) {
			WriteError(w, r, s.logger, NotFound("no upload job found for "+filename))

			return
		}

		s.logger.Error("Upload status lookup failed",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)

		WriteError(w, r, s.logger, InternalServerError())

		return
	}

	WriteData(w, r, s.logger, http.StatusOK, UploadStatusResponse{
		Filename: filename,
		State:    string(status.State),
		Reason:   status.Reason,
	})
}


