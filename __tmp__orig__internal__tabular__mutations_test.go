package tabular

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelforge-io/labelforge/internal/product"
)

type fakeLineageSource struct {
	lineages map[string]product.Lineage
	err      error

	requested []string
}

func (f *fakeLineageSource) EffectiveLineages(_ context.Context, strains []string) (map[string]product.Lineage, error) {
	f.requested = strains

	return f.lineages, f.err
}

func TestUpdateLineage(t *testing.T) {
	p := loadFilterFixture(t)

	ok := p.UpdateLineage("Blue Dream - 3.5g", product.LineageHybrid)
	require.True(t, ok)

	rows := p.GetByName("Blue Dream - 3.5g")
	require.Len(t, rows, 1)
	assert.Equal(t, product.LineageHybrid, rows[0].Lineage)
}

func TestUpdateLineage_UnknownProduct(t *testing.T) {
	p := loadFilterFixture(t)

	assert.False(t, p.UpdateLineage("Nonexistent - 1g", product.LineageHybrid))
}

func TestUpdateLineage_InvalidLineage(t *testing.T) {
	p := loadFilterFixture(t)

	assert.False(t, p.UpdateLineage("Blue Dream - 3.5g", product.Lineage("PURPLE")))

	rows := p.GetByName("Blue Dream - 3.5g")
	require.Len(t, rows, 1)
	assert.Equal(t, product.LineageSativa, rows[0].Lineage, "invalid input must not change the row")
}

func TestUpdateLineage_ParaphernaliaForced(t *testing.T) {
	path := writeWorkbook(t, standardHeader, [][]string{
		{"Glass Pipe", "Gear Co", "", "paraphernalia", "", "", "", "", "each", "15", "", "", "", ""},
	})

	p := newTestProcessor()
	require.NoError(t, p.Load(path))

	require.True(t, p.UpdateLineage("Glass Pipe", product.LineageSativa))

	rows := p.GetByName("Glass Pipe")
	require.Len(t, rows, 1)
	assert.Equal(t, product.LineageParaphernalia, rows[0].Lineage)
}

func TestUpdateDOH(t *testing.T) {
	p := loadFilterFixture(t)

	require.True(t, p.UpdateDOH("OG Kush - 1g", "yes"))

	rows := p.GetByName("OG Kush - 1g")
	require.Len(t, rows, 1)
	assert.Equal(t, "Yes", rows[0].DOH)

	assert.False(t, p.UpdateDOH("Nonexistent - 1g", "yes"))
}

func TestEnsureLineagePersistence(t *testing.T) {
	p := loadFilterFixture(t)

	source := &fakeLineageSource{
		lineages: map[string]product.Lineage{
			"blue dream": product.LineageHybridSativa,
			"og kush":    product.LineageIndica, // already INDICA, no change
		},
	}

	updated, err := p.EnsureLineagePersistence(t.Context(), source)
	require.NoError(t, err)

	// Blue Dream appears on a flower row and a pre-roll row.
	assert.Equal(t, 2, updated)
	assert.ElementsMatch(t, []string{"Blue Dream", "OG Kush", "Mixed"}, source.requested)

	for _, name := range []string{"Blue Dream - 3.5g", "Dream Roll 0.5g x 2 Pack"} {
		rows := p.GetByName(name)
		require.Len(t, rows, 1)
		assert.Equal(t, product.LineageHybridSativa, rows[0].Lineage)
	}
}

func TestEnsureLineagePersistence_SourceError(t *testing.T) {
	p := loadFilterFixture(t)

	source := &fakeLineageSource{err: errors.New("database locked")}

	_, err := p.EnsureLineagePersistence(t.Context(), source)
	require.Error(t, err)

	rows := p.GetByName("Blue Dream - 3.5g")
	require.Len(t, rows, 1)
	assert.Equal(t, product.LineageSativa, rows[0].Lineage, "rows untouched on source failure")
}

func TestEnsureLineagePersistence_SkipsParaphernalia(t *testing.T) {
	path := writeWorkbook(t, standardHeader, [][]string{
		{"Glass Pipe", "Gear Co", "", "paraphernalia", "", "Blue Dream", "", "", "each", "15", "", "", "", ""},
	})

	p := newTestProcessor()
	require.NoError(t, p.Load(path))

	source := &fakeLineageSource{
		lineages: map[string]product.Lineage{"blue dream": product.LineageSativa},
	}

	updated, err := p.EnsureLineagePersistence(t.Context(), source)
	require.NoError(t, err)
	assert.Zero(t, updated)

	rows := p.GetByName("Glass Pipe")
	require.Len(t, rows, 1)
	assert.Equal(t, product.LineageParaphernalia, rows[0].Lineage)
}


