package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_ExplicitSelection(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	srv := newTestServer(t, newTestTable(t, testRows), nil)

	rec := serveJSON(t, srv, http.MethodPost, "/api/generate", GenerateRequest{
		TemplateType: "horizontal",
		SelectedTags: []string{"Blue Dream - 3.5g", "OG Kush Pre-Roll - 1g"},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestGenerate_UsesSessionSelection(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	srv := newTestServer(t, newTestTable(t, testRows), nil)
	header := sessionOf(t, srv)

	rec := serveJSON(t, srv, http.MethodPost, "/api/move-tags", MoveTagsRequest{
		Tags:      []string{"Gummy Bears - 100mg"},
		Direction: "to_selected",
	}, header)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serveJSON(t, srv, http.MethodPost, "/api/generate", GenerateRequest{
		TemplateType: "vertical",
	}, header)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
}

func TestGenerate_UnknownTemplate(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	srv := newTestServer(t, newTestTable(t, testRows), nil)

	rec := serveJSON(t, srv, http.MethodPost, "/api/generate", GenerateRequest{
		TemplateType: "diagonal",
		SelectedTags: []string{"Blue Dream - 3.5g"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, KindInputMalformed, body.Kind)
	assert.Equal(t, "template_type", body.Field)
}

func TestGenerate_EmptySelection(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	srv := newTestServer(t, newTestTable(t, testRows), nil)

	rec := serveJSON(t, srv, http.MethodPost, "/api/generate", GenerateRequest{
		TemplateType: "horizontal",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, KindPreconditionFailed, decodeError(t, rec).Kind)
}

func TestGenerate_UnknownTagsSkipped(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	srv := newTestServer(t, newTestTable(t, testRows), nil)

	// Every requested name is unknown, so nothing remains to render.
	rec := serveJSON(t, srv, http.MethodPost, "/api/generate", GenerateRequest{
		TemplateType: "mini",
		SelectedTags: []string{"Ghost Product - 1g"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, KindPreconditionFailed, decodeError(t, rec).Kind)
}


