package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestRequestLogger_RecordsStatusCode verifies the completion log carries the
// handler's status code and the middleware does not alter the response.
func TestRequestLogger_RecordsStatusCode(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	var buf bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/upload", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	logged := buf.String()

	if !strings.Contains(logged, `"status_code":202`) {
		t.Errorf("completion log missing status code, got: %s", logged)
	}

	if !strings.Contains(logged, `"path":"/upload"`) {
		t.Errorf("log missing request path, got: %s", logged)
	}
}

// TestRequestLogger_DefaultsTo200 verifies handlers that never call
// WriteHeader are logged as 200.
func TestRequestLogger_DefaultsTo200(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	var buf bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pong"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	if !strings.Contains(buf.String(), `"status_code":200`) {
		t.Errorf("completion log missing implicit 200, got: %s", buf.String())
	}
}
