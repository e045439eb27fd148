package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelforge-io/labelforge/internal/tabular"
)

func TestFilterOptions_Unfiltered(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	srv := newTestServer(t, newTestTable(t, testRows), nil)

	rec := serveJSON(t, srv, http.MethodGet, "/api/filter-options", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FilterOptionsResponse
	decodeData(t, rec, &resp)

	assert.Contains(t, resp.Options[tabular.CategoryVendor], "Acme Gardens")
	assert.Contains(t, resp.Options[tabular.CategoryVendor], "Sweet Relief")
	assert.Contains(t, resp.Options[tabular.CategoryBrand], "Acme")
}

func TestFilterOptions_Faceted(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	srv := newTestServer(t, newTestTable(t, testRows), nil)

	rec := serveJSON(t, srv, http.MethodPost, "/api/filter-options", tabular.Filters{
		Vendors: []string{"Sweet Relief"},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FilterOptionsResponse
	decodeData(t, rec, &resp)

	// Other categories narrow to the selected vendor's rows.
	assert.Contains(t, resp.Options[tabular.CategoryBrand], "Sweets")
	assert.NotContains(t, resp.Options[tabular.CategoryBrand], "Acme")

	// The restricted category itself keeps every value selectable.
	assert.Contains(t, resp.Options[tabular.CategoryVendor], "Acme Gardens")
}
