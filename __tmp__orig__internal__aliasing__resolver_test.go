package aliasing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResolver_BuiltinsOnly(t *testing.T) {
	r := NewResolver(nil)

	require.NotNil(t, r)
	assert.Positive(t, r.HeaderCount())
}

func TestResolver_Resolve_BuiltinSynonyms(t *testing.T) {
	r := NewResolver(nil)

	tests := []struct {
		header string
		field  string
	}{
		{"Product Name*", FieldProductName},
		{"ProductName", FieldProductName},
		{"product name", FieldProductName},
		{"Vendor/Supplier*", FieldVendor},
		{"VENDOR", FieldVendor},
		{"Product Brand", FieldBrand},
		{"Product Type*", FieldProductType},
		{"Lineage", FieldLineage},
		{"Product Strain", FieldStrain},
		{"Weight*", FieldWeight},
		{"THC%", FieldTHCPct},
		{"DOH Compliant (Yes/No)", FieldDOH},
		{"Price* (Tier Name for Bulk)", FieldPrice},
		{"match_score", FieldMatchScore},
	}

	for _, tt := range tests {
		field, ok := r.Resolve(tt.header)

		require.True(t, ok, "header %q should resolve", tt.header)
		assert.Equal(t, tt.field, field, "header %q", tt.header)
	}
}

func TestResolver_Resolve_UnknownHeaderPreserved(t *testing.T) {
	r := NewResolver(nil)

	_, ok := r.Resolve("Completely Novel Column")

	assert.False(t, ok)
}

func TestResolver_ConfigExtensionWins(t *testing.T) {
	cfg := &Config{
		ColumnSynonyms: map[string]string{
			"Artikelname": FieldProductName,
			"Brand":       FieldVendor, // override the built-in mapping
		},
	}

	r := NewResolver(cfg)

	field, ok := r.Resolve("Artikelname")
	require.True(t, ok)
	assert.Equal(t, FieldProductName, field)

	field, ok = r.Resolve("Brand")
	require.True(t, ok)
	assert.Equal(t, FieldVendor, field)
}

func TestResolver_SkipsMalformedConfigEntries(t *testing.T) {
	cfg := &Config{
		ColumnSynonyms: map[string]string{
			"":        FieldProductName,
			"Header":  "",
			"Usable":  FieldBrand,
			"   *  *": FieldVendor, // canonicalizes to empty
		},
	}

	r := NewResolver(cfg)

	field, ok := r.Resolve("Usable")
	require.True(t, ok)
	assert.Equal(t, FieldBrand, field)

	_, ok = r.Resolve("Header")
	assert.False(t, ok)
}

func TestResolver_ConcurrentResolve(t *testing.T) {
	r := NewResolver(nil)

	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			field, ok := r.Resolve("Product Name*")
			assert.True(t, ok)
			assert.Equal(t, FieldProductName, field)
		}()
	}

	wg.Wait()
}

func TestCanonicalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Product Name*", "product name"},
		{"Vendor/Supplier*", "vendor supplier"},
		{"  THC %  ", "thc %"},
		{"DOH Compliant (Yes/No)", "doh compliant yes no"},
		{"***", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, canonicalizeHeader(tt.in), "input %q", tt.in)
	}
}


