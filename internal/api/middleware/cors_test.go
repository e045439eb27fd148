package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// testCORSConfig is a minimal CORSConfigProvider for middleware tests.
type testCORSConfig struct {
	origins []string
	methods []string
	headers []string
	maxAge  int
}

func (c *testCORSConfig) GetAllowedOrigins() []string { return c.origins }
func (c *testCORSConfig) GetAllowedMethods() []string { return c.methods }
func (c *testCORSConfig) GetAllowedHeaders() []string { return c.headers }
func (c *testCORSConfig) GetMaxAge() int              { return c.maxAge }

// TestCORS_WildcardOrigin verifies that a lone "*" allows any origin.
func TestCORS_WildcardOrigin(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	handler := CORS(&testCORSConfig{
		origins: []string{"*"},
		methods: []string{"GET", "POST"},
		headers: []string{"Content-Type"},
		maxAge:  3600,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/available-tags", nil)
	req.Header.Set("Origin", "https://labels.example.com")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}

	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST" {
		t.Errorf("Allow-Methods = %q, want GET, POST", got)
	}

	if got := rec.Header().Get("Access-Control-Max-Age"); got != "3600" {
		t.Errorf("Max-Age = %q, want 3600", got)
	}
}

// TestCORS_OriginAllowList verifies that only listed origins are echoed.
func TestCORS_OriginAllowList(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	handler := CORS(&testCORSConfig{
		origins: []string{"https://labels.example.com"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://labels.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://labels.example.com" {
		t.Errorf("Allow-Origin = %q, want the listed origin", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty for an unlisted origin", got)
	}
}

// TestCORS_PreflightShortCircuits verifies OPTIONS requests answer 204
// without reaching the handler.
func TestCORS_PreflightShortCircuits(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	handler := CORS(&testCORSConfig{
		origins: []string{"*"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run for a preflight request")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/generate", nil)
	req.Header.Set("Origin", "https://labels.example.com")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}
