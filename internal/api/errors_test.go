package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelforge-io/labelforge/internal/api/middleware"
)

func TestErrorConstructors(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name       string
		err        *APIError
		wantKind   string
		wantStatus int
	}{
		{"input malformed", InputMalformed("bad", "url"), KindInputMalformed, http.StatusBadRequest},
		{"upstream unavailable", UpstreamUnavailable("down"), KindUpstreamUnavailable, http.StatusServiceUnavailable},
		{"not found", NotFound("missing"), KindNotFound, http.StatusNotFound},
		{"precondition failed", PreconditionFailed("nope"), KindPreconditionFailed, http.StatusBadRequest},
		{"timeout", Timeout("slow"), KindTimeout, http.StatusRequestTimeout},
		{"internal", InternalServerError(), KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKind, tt.err.Kind)
			assert.Equal(t, tt.wantStatus, tt.err.Status)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestInternalServerError_GenericMessage(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	// Internal details never reach the client.
	assert.Equal(t,
		"An unexpected error occurred while processing the request",
		InternalServerError().Message,
	)
}

func TestWriteError_EnvelopeShape(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	handler := middleware.RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, testLogger(), InputMalformed("url is required", "url"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/json-match", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var envelope Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))

	assert.False(t, envelope.Success)
	assert.Nil(t, envelope.Data)

	require.NotNil(t, envelope.Error)
	assert.Equal(t, KindInputMalformed, envelope.Error.Kind)
	assert.Equal(t, "url is required", envelope.Error.Message)
	assert.Equal(t, "url", envelope.Error.Field)
	assert.Equal(t, "req-123", envelope.Error.RequestID)
}

func TestWriteData_EnvelopeShape(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	WriteData(rec, req, testLogger(), http.StatusOK, map[string]string{"status": "healthy"})

	require.Equal(t, http.StatusOK, rec.Code)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))

	assert.True(t, envelope.Success)
	assert.Nil(t, envelope.Error)
	assert.Equal(t, map[string]any{"status": "healthy"}, envelope.Data)
}
