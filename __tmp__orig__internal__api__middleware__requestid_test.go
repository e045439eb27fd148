package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestRequestID_GeneratesWhenMissing verifies that requests without an
// X-Request-ID header get a fresh identifier in both context and response.
func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	var captured string

	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if captured == "" || captured == "unknown" {
		t.Errorf("expected generated request ID, got %q", captured)
	}

	if got := rec.Header().Get(RequestIDHeader); got != captured {
		t.Errorf("response header = %q, want %q", got, captured)
	}
}

// TestRequestID_ReusesClientHeader verifies that a client-supplied
// X-Request-ID survives the round trip unchanged.
func TestRequestID_ReusesClientHeader(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	var captured string

	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "client-supplied-id")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if captured != "client-supplied-id" {
		t.Errorf("context request ID = %q, want client-supplied-id", captured)
	}

	if got := rec.Header().Get(RequestIDHeader); got != "client-supplied-id" {
		t.Errorf("response header = %q, want client-supplied-id", got)
	}
}

// TestGetRequestID_Fallback verifies the "unknown" fallback for contexts the
// middleware never touched.
func TestGetRequestID_Fallback(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if got := GetRequestID(context.Background()); got != "unknown" {
		t.Errorf("GetRequestID() = %q, want unknown", got)
	}
}


