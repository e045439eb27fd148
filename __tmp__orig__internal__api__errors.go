package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/labelforge-io/labelforge/internal/api/middleware"
)

// Error kinds of the response envelope. Every failure a handler emits maps
// to exactly one kind; clients branch on the kind, not the message.
const (
	KindInputMalformed      = "InputMalformed"
	KindUpstreamUnavailable = "UpstreamUnavailable"
	KindNotFound            = "NotFound"
	KindPreconditionFailed  = "PreconditionFailed"
	KindRateLimited         = "RateLimited"
	KindTimeout             = "Timeout"
	KindInternal            = "Internal"
)

type (
	// Envelope is the uniform response shape: success responses carry data,
	// failures carry an error body. Exactly one of the two is present.
	Envelope struct {
		Success bool       `json:"success"`
		Data    any        `json:"data,omitempty"`
		Error   *ErrorBody `json:"error,omitempty"`
	}

	// ErrorBody is the error half of the envelope.
	ErrorBody struct {
		Kind      string `json:"kind"`
		Message   string `json:"message"`
		Field     string `json:"field,omitempty"`
		RequestID string `json:"request_id,omitempty"`
	}

	// APIError pairs an envelope error with its HTTP status. Handlers build
	// one via the constructors below and hand it to WriteError.
	APIError struct {
		Kind    string
		Status  int
		Message string
		Field   string
	}
)

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// InputMalformed creates a 400 error for requests that cannot be parsed or
// fail validation. field names the offending input when known.
func InputMalformed(message, field string) *APIError {
	return &APIError{
		Kind:    KindInputMalformed,
		Status:  http.StatusBadRequest,
		Message: message,
		Field:   field,
	}
}

// UpstreamUnavailable creates a 503 error for unreachable dependencies
// (feed URLs, the catalog database).
func UpstreamUnavailable(message string) *APIError {
	return &APIError{
		Kind:    KindUpstreamUnavailable,
		Status:  http.StatusServiceUnavailable,
		Message: message,
	}
}

// NotFound creates a 404 error for unknown resources.
func NotFound(message string) *APIError {
	return &APIError{
		Kind:    KindNotFound,
		Status:  http.StatusNotFound,
		Message: message,
	}
}

// PreconditionFailed creates a 400 error for operations whose prerequisites
// do not hold (no file loaded, empty selection, nothing to undo).
func PreconditionFailed(message string) *APIError {
	return &APIError{
		Kind:    KindPreconditionFailed,
		Status:  http.StatusBadRequest,
		Message: message,
	}
}

// Timeout creates a 408 error for operations that exceeded their deadline.
func Timeout(message string) *APIError {
	return &APIError{
		Kind:    KindTimeout,
		Status:  http.StatusRequestTimeout,
		Message: message,
	}
}

// InternalServerError creates a 500 error. The internal detail is never
// surfaced to the client; log it at the call site instead.
func InternalServerError() *APIError {
	return &APIError{
		Kind:    KindInternal,
		Status:  http.StatusInternalServerError,
		Message: "An unexpected error occurred while processing the request",
	}
}

// WriteError writes an error envelope for the given APIError.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, apiErr *APIError) {
	requestID := middleware.GetRequestID(r.Context())

	writeJSON(w, r, logger, apiErr.Status, Envelope{
		Success: false,
		Error: &ErrorBody{
			Kind:      apiErr.Kind,
			Message:   apiErr.Message,
			Field:     apiErr.Field,
			RequestID: requestID,
		},
	})
}

// WriteData writes a success envelope carrying data.
func WriteData(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, data any) {
	writeJSON(w, r, logger, status, Envelope{
		Success: true,
		Data:    data,
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, envelope Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		// Headers are already sent; log only.
		logger.Error("Failed to write response envelope",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}


