package matching

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_EmptyURL(t *testing.T) {
	f := NewFetcher()

	_, err := f.Fetch(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrURLEmpty)
}

func TestFetch_TopLevelArray(t *testing.T) {
	body := `[
		{"product_name": "Blue Dream - 3.5g", "vendor": "Acme Gardens", "price": 30},
		{"product_name": "Sour Diesel - 1g", "vendor_name": "Acme Gardens", "weight": 1}
	]`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	feed, err := NewFetcher().Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	require.Len(t, feed.Items, 2)

	assert.Equal(t, "Blue Dream - 3.5g", feed.Items[0].ProductName)
	assert.Equal(t, "Acme Gardens", feed.Items[0].Vendor)
	assert.InDelta(t, 30.0, feed.Items[0].Price, 1e-9)

	// vendor_name spelling and numeric weight both tolerated.
	assert.Equal(t, "Acme Gardens", feed.Items[1].Vendor)
	assert.Equal(t, "1", feed.Items[1].Weight)
}

func TestFetch_TransferManifest(t *testing.T) {
	body := `{
		"from_license_name": "Acme Gardens",
		"inventory_transfer_items": [
			{"product_name": "Blue Dream - 3.5g", "inventory_type": "usable_marijuana",
			 "lab_result_data": {"THC": 22.1, "CBD": 0.4}},
			{"product_name": "Gorilla Glue - 1g", "vendor": "Other Farm"}
		]
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	feed, err := NewFetcher().Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "Acme Gardens", feed.DefaultVendor)
	require.Len(t, feed.Items, 2)

	// The manifest vendor backfills items without one; explicit vendors win.
	assert.Equal(t, "Acme Gardens", feed.Items[0].Vendor)
	assert.Equal(t, "Other Farm", feed.Items[1].Vendor)

	// Lab keys are folded to lowercase.
	assert.InDelta(t, 22.1, feed.Items[0].Cannabinoids["thc"], 1e-9)
	assert.InDelta(t, 0.4, feed.Items[0].Cannabinoids["cbd"], 1e-9)
}

func TestFetch_DropsNamelessItems(t *testing.T) {
	feed, err := parseFeed([]byte(`[{"product_name": "  "}, {"product_name": "Kept - 1g"}]`))
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "Kept - 1g", feed.Items[0].ProductName)
}

func TestFetch_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected": true}`))
	}))
	defer server.Close()

	_, err := NewFetcher().Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrFeedMalformed)
}

func TestFetch_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewFetcher().Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrFeedUnavailable)
}

func TestFetch_UnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	_, err := NewFetcher().Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrFeedUnavailable)
}

func TestFetch_DataURL(t *testing.T) {
	payload := `[{"product_name": "Blue Dream - 3.5g", "vendor": "Acme Gardens"}]`
	encoded := base64.StdEncoding.EncodeToString([]byte(payload))

	feed, err := NewFetcher().Fetch(context.Background(), "data:application/json;base64,"+encoded)
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "Blue Dream - 3.5g", feed.Items[0].ProductName)
}

func TestParseFeed_PriceAsString(t *testing.T) {
	feed, err := parseFeed([]byte(`[{"product_name": "Tincture", "price": "25.50"}]`))
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.InDelta(t, 25.50, feed.Items[0].Price, 1e-9)
}
