// Package matching resolves external JSON inventory feeds against the
// catalog and the loaded spreadsheet table. Candidates come from two
// strategies: exact catalog lookup (preferred) and a twelve-feature fuzzy
// ensemble over the table, constrained by vendor isolation.
package matching

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// fetchTimeout bounds the upstream feed fetch.
	fetchTimeout = 15 * time.Second

	// maxFeedBytes caps how much of an upstream response is read.
	maxFeedBytes = 32 << 20
)

var (
	// ErrFeedUnavailable is returned when the feed URL cannot be fetched.
	ErrFeedUnavailable = errors.New("inventory feed unavailable")
	// ErrFeedMalformed is returned when the feed body is not valid feed JSON.
	ErrFeedMalformed = errors.New("inventory feed malformed")
	// ErrURLEmpty is returned when no feed URL is provided.
	ErrURLEmpty = errors.New("feed URL cannot be empty")
)

type (
	// Item is one inventory record extracted from a feed.
	Item struct {
		ProductName   string
		Vendor        string
		Brand         string
		InventoryType string
		Weight        string
		Price         float64
		Cannabinoids  map[string]float64 // keys: thc, cbd, thca, cbda
	}

	// Feed is a parsed inventory feed: its items plus the global default
	// vendor carried by transfer-manifest feeds.
	Feed struct {
		Items         []Item
		DefaultVendor string
	}

	// flexString tolerates JSON numbers in fields the feed schema calls
	// strings; upstream systems emit both.
	flexString string

	// feedItem is the wire shape of one feed record. Vendor and brand each
	// have two accepted spellings.
	feedItem struct {
		ProductName   string             `json:"product_name"`
		Vendor        string             `json:"vendor"`
		VendorName    string             `json:"vendor_name"`
		Brand         string             `json:"brand"`
		BrandName     string             `json:"brand_name"`
		InventoryType string             `json:"inventory_type"`
		Weight        flexString         `json:"weight"`
		Price         flexString         `json:"price"`
		LabResultData map[string]float64 `json:"lab_result_data"`
	}

	// transferManifest is the wrapped feed shape.
	transferManifest struct {
		Items           []feedItem `json:"inventory_transfer_items"`
		FromLicenseName string     `json:"from_license_name"`
	}
)

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("value is neither string nor number: %w", err)
	}

	*f = flexString(n.String())

	return nil
}

// Fetcher retrieves and parses inventory feeds over HTTP(S), with data:
// URLs accepted for testing and offline use.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a feed fetcher with the default timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// Fetch retrieves the feed at url and parses it. Unreachable upstreams and
// non-2xx statuses surface as ErrFeedUnavailable; undecodable bodies as
// ErrFeedMalformed.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Feed, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrURLEmpty
	}

	if strings.HasPrefix(url, "data:") {
		body, err := decodeDataURL(url)
		if err != nil {
			return nil, err
		}

		return parseFeed(body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: upstream returned %d", ErrFeedUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}

	return parseFeed(body)
}

// decodeDataURL extracts the payload of a data: URL, base64-decoding when the
// metadata says so.
func decodeDataURL(url string) ([]byte, error) {
	meta, payload, found := strings.Cut(strings.TrimPrefix(url, "data:"), ",")
	if !found {
		return nil, fmt.Errorf("%w: data URL missing payload", ErrFeedMalformed)
	}

	if strings.HasSuffix(meta, ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFeedMalformed, err)
		}

		return decoded, nil
	}

	return []byte(payload), nil
}

// parseFeed decodes a feed body. Both accepted shapes are tried: a top-level
// array of items, then a transfer manifest whose from_license_name becomes
// the default vendor for every item missing one.
func parseFeed(body []byte) (*Feed, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty body", ErrFeedMalformed)
	}

	if strings.HasPrefix(trimmed, "[") {
		var items []feedItem
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFeedMalformed, err)
		}

		return buildFeed(items, ""), nil
	}

	var manifest transferManifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedMalformed, err)
	}

	if manifest.Items == nil {
		return nil, fmt.Errorf("%w: no inventory_transfer_items array", ErrFeedMalformed)
	}

	return buildFeed(manifest.Items, manifest.FromLicenseName), nil
}

// buildFeed maps wire items onto the domain shape, applying the default
// vendor and the vendor/brand spelling fallbacks. Items without a product
// name are dropped.
func buildFeed(raw []feedItem, defaultVendor string) *Feed {
	feed := &Feed{
		Items:         make([]Item, 0, len(raw)),
		DefaultVendor: strings.TrimSpace(defaultVendor),
	}

	for _, ri := range raw {
		name := strings.TrimSpace(ri.ProductName)
		if name == "" {
			continue
		}

		item := Item{
			ProductName:   name,
			Vendor:        firstNonEmpty(ri.Vendor, ri.VendorName, feed.DefaultVendor),
			Brand:         firstNonEmpty(ri.Brand, ri.BrandName),
			InventoryType: strings.TrimSpace(ri.InventoryType),
			Weight:        strings.TrimSpace(string(ri.Weight)),
		}

		if ri.Price != "" {
			if price, err := strconv.ParseFloat(string(ri.Price), 64); err == nil {
				item.Price = price
			}
		}

		if len(ri.LabResultData) > 0 {
			item.Cannabinoids = make(map[string]float64, len(ri.LabResultData))
			for k, v := range ri.LabResultData {
				item.Cannabinoids[strings.ToLower(strings.TrimSpace(k))] = v
			}
		}

		feed.Items = append(feed.Items, item)
	}

	return feed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}

	return ""
}


