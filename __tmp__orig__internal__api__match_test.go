package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedURL wraps a JSON feed body in a data: URL so handler tests need no
// HTTP server.
func feedURL(body string) string {
	return "data:application/json," + body
}

func TestJSONMatch_PopulatesSelection(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	srv := newTestServer(t, newTestTable(t, testRows), nil)
	header := sessionOf(t, srv)

	rec := serveJSON(t, srv, http.MethodPost, "/api/json-match", JSONMatchRequest{
		URL: feedURL(`[{"product_name": "Blue Dream - 3.5g", "vendor": "Acme Gardens"}]`),
	}, header)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp JSONMatchResponse
	decodeData(t, rec, &resp)

	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, "Blue Dream - 3.5g", resp.Candidates[0].TargetName)
	assert.Equal(t, []string{"Blue Dream - 3.5g"}, resp.MatchedNames)
	assert.Equal(t, 1, resp.TotalItems)

	// The match populates the session selection and narrows its mode.
	rec = serveJSON(t, srv, http.MethodGet, "/api/selected-tags", nil, header)
	require.Equal(t, http.StatusOK, rec.Code)

	var tags TagListResponse
	decodeData(t, rec, &tags)

	assert.Equal(t, []string{"Blue Dream - 3.5g"}, tags.SelectedTags)
	assert.Equal(t, "json_matched", tags.Mode)
}

func TestJSONMatch_VendorIsolationYieldsNoCandidates(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	srv := newTestServer(t, newTestTable(t, testRows), nil)

	rec := serveJSON(t, srv, http.MethodPost, "/api/json-match", JSONMatchRequest{
		URL: feedURL(`[{"product_name": "Blue Dream - 3.5g", "vendor": "Some Other Farm"}]`),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp JSONMatchResponse
	decodeData(t, rec, &resp)

	assert.Empty(t, resp.Candidates)
	assert.NotEmpty(t, resp.Message)
}

func TestJSONMatch_EmptyURL(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	srv := newTestServer(t, newTestTable(t, testRows), nil)

	rec := serveJSON(t, srv, http.MethodPost, "/api/json-match", JSONMatchRequest{}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, KindInputMalformed, body.Kind)
	assert.Equal(t, "url", body.Field)
}

func TestJSONMatch_MalformedFeed(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	srv := newTestServer(t, newTestTable(t, testRows), nil)

	rec := serveJSON(t, srv, http.MethodPost, "/api/json-match", JSONMatchRequest{
		URL: feedURL(`this is not json`),
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, KindInputMalformed, decodeError(t, rec).Kind)
}

func TestJSONMatchDiagnose_ReportsEveryPair(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	srv := newTestServer(t, newTestTable(t, testRows), nil)

	rec := serveJSON(t, srv, http.MethodPost, "/api/json-match/diagnose", JSONMatchRequest{
		URL: feedURL(`[{"product_name": "Blue Dream - 3.5g", "vendor": "Some Other Farm"}]`),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DiagnosisResponse
	decodeData(t, rec, &resp)

	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Blue Dream - 3.5g", resp.Items[0].ProductName)

	// Diagnosis surfaces the vendor-isolated pair a normal match hides.
	require.NotEmpty(t, resp.Items[0].Candidates)
	assert.True(t, resp.Items[0].Candidates[0].VendorIsolated)
}

func TestJSONMatchDiagnose_DoesNotTouchSession(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	srv := newTestServer(t, newTestTable(t, testRows), nil)
	header := sessionOf(t, srv)

	rec := serveJSON(t, srv, http.MethodPost, "/api/json-match/diagnose", JSONMatchRequest{
		URL: feedURL(`[{"product_name": "Blue Dream - 3.5g", "vendor": "Acme Gardens"}]`),
	}, header)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serveJSON(t, srv, http.MethodGet, "/api/selected-tags", nil, header)
	require.Equal(t, http.StatusOK, rec.Code)

	var tags TagListResponse
	decodeData(t, rec, &tags)

	assert.Empty(t, tags.SelectedTags)
	assert.Equal(t, "full_excel", tags.Mode)
}

func TestMatchFeedback_Recorded(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	srv := newTestServer(t, newTestTable(t, testRows), nil)

	rec := serveJSON(t, srv, http.MethodPost, "/api/match-feedback", MatchFeedbackRequest{
		ProductName: "Blue Dream 3.5 g",
		MatchedName: "Blue Dream - 3.5g",
		Score:       0.9,
	}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMatchFeedback_Validation(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	srv := newTestServer(t, newTestTable(t, testRows), nil)

	tests := []struct {
		name      string
		req       MatchFeedbackRequest
		wantField string
	}{
		{"missing product name", MatchFeedbackRequest{MatchedName: "Blue Dream - 3.5g", Score: 0.5}, "product_name"},
		{"missing matched name", MatchFeedbackRequest{ProductName: "Blue Dream", Score: 0.5}, "matched_name"},
		{"score out of range", MatchFeedbackRequest{ProductName: "Blue Dream", MatchedName: "Blue Dream - 3.5g", Score: 1.5}, "score"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveJSON(t, srv, http.MethodPost, "/api/match-feedback", tt.req, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			body := decodeError(t, rec)
			assert.Equal(t, KindInputMalformed, body.Kind)
			assert.Equal(t, tt.wantField, body.Field)
		})
	}
}

func TestMatchFeedback_UnknownTarget(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	srv := newTestServer(t, newTestTable(t, testRows), nil)

	rec := serveJSON(t, srv, http.MethodPost, "/api/match-feedback", MatchFeedbackRequest{
		ProductName: "Blue Dream",
		MatchedName: "No Such Product",
		Score:       0.5,
	}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, KindNotFound, decodeError(t, rec).Kind)
}


