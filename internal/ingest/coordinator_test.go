package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelforge-io/labelforge/internal/catalog"
	"github.com/labelforge-io/labelforge/internal/jobs"
	"github.com/labelforge-io/labelforge/internal/product"
)

type fakeTable struct {
	mu      sync.Mutex
	loadErr error
	loaded  string
	rows    []product.Product
}

func (f *fakeTable) Load(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loadErr != nil {
		return f.loadErr
	}

	f.loaded = path

	return nil
}

func (f *fakeTable) Rows() []product.Product {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.rows
}

func (f *fakeTable) LastLoadedFile() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.loaded
}

func (f *fakeTable) HasData() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.loaded != ""
}

type fakeCatalog struct {
	mu       sync.Mutex
	err      error
	received []product.Product
}

func (f *fakeCatalog) StoreExcelData(_ context.Context, rows []product.Product, _ string) (*catalog.StoreResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	f.received = rows

	return &catalog.StoreResult{Stored: len(rows), TotalRows: len(rows)}, nil
}

func newTestCoordinator(t *testing.T, table Table, store CatalogStore) *Coordinator {
	t.Helper()

	return NewCoordinator(t.TempDir(), jobs.NewRegistry(), table, store, slog.New(slog.DiscardHandler))
}

func waitForTerminal(t *testing.T, c *Coordinator, storedName string) jobs.Status {
	t.Helper()

	var status jobs.Status

	require.Eventually(t, func() bool {
		s, err := c.UploadStatus(storedName)
		if err != nil {
			return false
		}

		status = s

		return s.State.IsTerminal()
	}, 2*time.Second, 10*time.Millisecond)

	return status
}

func TestSubmitUpload_HappyPath(t *testing.T) {
	table := &fakeTable{rows: []product.Product{{Name: "Blue Dream - 3.5g", Vendor: "Acme"}}}
	store := &fakeCatalog{}
	c := newTestCoordinator(t, table, store)

	handle, err := c.SubmitUpload("inventory.xlsx", strings.NewReader("workbook-bytes"))
	require.NoError(t, err)
	require.NotEmpty(t, handle.JobID)

	status := waitForTerminal(t, c, handle.StoredName)
	assert.Equal(t, jobs.StateReady, status.State)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.received, 1, "loaded rows must reach the catalog mirror")
}

func TestSubmitUpload_StoredNamePattern(t *testing.T) {
	c := newTestCoordinator(t, &fakeTable{}, nil)

	handle, err := c.SubmitUpload("Q3 inventory.xlsx", strings.NewReader("bytes"))
	require.NoError(t, err)

	assert.Regexp(t,
		regexp.MustCompile(`^Q3 inventory_\d{8}_\d{6}_[0-9a-f]{8}\.xlsx$`),
		handle.StoredName,
	)

	// The stored file is on disk under the upload dir.
	_, statErr := os.Stat(filepath.Join(c.uploadDir, handle.StoredName))
	assert.NoError(t, statErr)
}

func TestSubmitUpload_CollisionFree(t *testing.T) {
	c := newTestCoordinator(t, &fakeTable{}, nil)

	first, err := c.SubmitUpload("inventory.xlsx", strings.NewReader("a"))
	require.NoError(t, err)

	second, err := c.SubmitUpload("inventory.xlsx", strings.NewReader("b"))
	require.NoError(t, err)

	assert.NotEqual(t, first.StoredName, second.StoredName)
}

func TestSubmitUpload_EmptyFileRejected(t *testing.T) {
	c := newTestCoordinator(t, &fakeTable{}, nil)

	_, err := c.SubmitUpload("inventory.xlsx", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyUpload)

	// No job registered, nothing left on disk.
	entries, readErr := os.ReadDir(c.uploadDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestSubmitUpload_UnsupportedExtension(t *testing.T) {
	c := newTestCoordinator(t, &fakeTable{}, nil)

	_, err := c.SubmitUpload("inventory.csv", strings.NewReader("a,b"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestSubmitUpload_LoadFailureGoesError(t *testing.T) {
	table := &fakeTable{loadErr: errors.New("no usable sheet found")}
	c := newTestCoordinator(t, table, nil)

	handle, err := c.SubmitUpload("inventory.xlsx", strings.NewReader("bytes"))
	require.NoError(t, err)

	status := waitForTerminal(t, c, handle.StoredName)
	assert.Equal(t, jobs.StateError, status.State)
	assert.Equal(t, "no usable sheet found", status.Reason)
}

func TestSubmitUpload_CatalogFailureStillReady(t *testing.T) {
	table := &fakeTable{rows: []product.Product{{Name: "Blue Dream - 3.5g"}}}
	store := &fakeCatalog{err: errors.New("disk full")}
	c := newTestCoordinator(t, table, store)

	handle, err := c.SubmitUpload("inventory.xlsx", strings.NewReader("bytes"))
	require.NoError(t, err)

	status := waitForTerminal(t, c, handle.StoredName)
	assert.Equal(t, jobs.StateReady, status.State, "mirror failures must not fail the upload")
}

func TestUploadStatus_UnknownFilename(t *testing.T) {
	c := newTestCoordinator(t, &fakeTable{}, nil)

	_, err := c.UploadStatus("never-uploaded.xlsx")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = c.UploadStatus("   ")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestUploadStatus_RecoversSweptJob(t *testing.T) {
	// Registry lost the job (ephemeral), but the file is on disk and the
	// table still holds it: report READY.
	table := &fakeTable{}
	c := newTestCoordinator(t, table, nil)

	handle, err := c.SubmitUpload("inventory.xlsx", strings.NewReader("bytes"))
	require.NoError(t, err)
	waitForTerminal(t, c, handle.StoredName)

	c.registry = jobs.NewRegistry()

	status, err := c.UploadStatus(handle.StoredName)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateReady, status.State)
}

func TestUploadStatus_PromotesStaleProcessing(t *testing.T) {
	// Job still says PROCESSING but the table already holds the file's
	// data: promote to READY and fix the registry.
	table := &fakeTable{}
	c := newTestCoordinator(t, table, nil)

	handle, err := c.SubmitUpload("inventory.xlsx", strings.NewReader("bytes"))
	require.NoError(t, err)
	waitForTerminal(t, c, handle.StoredName)

	require.NoError(t, c.registry.Set(handle.StoredName, jobs.StateProcessing, ""))

	status, err := c.UploadStatus(handle.StoredName)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateReady, status.State)

	recorded, _, ok := c.registry.Get(handle.StoredName)
	require.True(t, ok)
	assert.Equal(t, jobs.StateReady, recorded.State, "registry must be updated too")
}
