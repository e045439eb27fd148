// Package ingest glues the HTTP upload surface to the background pipeline:
// persist the bytes, register the job, and hand the file to a worker that
// loads the table and mirrors it into the catalog.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/labelforge-io/labelforge/internal/catalog"
	"github.com/labelforge-io/labelforge/internal/jobs"
	"github.com/labelforge-io/labelforge/internal/product"
)

const (
	// storeTimeout bounds the catalog mirror of one upload.
	storeTimeout = 2 * time.Minute

	uploadDirPerm  = 0o750
	uploadFilePerm = 0o600
)

var (
	// ErrEmptyUpload is returned for zero-byte uploads.
	ErrEmptyUpload = errors.New("uploaded file is empty")

	// ErrUnsupportedFile is returned for extensions the loader cannot read.
	ErrUnsupportedFile = errors.New("unsupported file type, expected .xlsx")

	// ErrJobNotFound is returned when no job exists for a filename and no
	// recovery heuristic applies.
	ErrJobNotFound = errors.New("no upload job found for filename")
)

type (
	// Table is the spreadsheet processor surface the coordinator drives.
	Table interface {
		Load(path string) error
		Rows() []product.Product
		LastLoadedFile() string
		HasData() bool
	}

	// CatalogStore mirrors loaded rows into durable storage. Mirror
	// failures are logged, never fatal: the in-memory table stays usable.
	CatalogStore interface {
		StoreExcelData(ctx context.Context, rows []product.Product, sourceFile string) (*catalog.StoreResult, error)
	}

	// Coordinator accepts uploads and runs the background pipeline:
	// persist → PROCESSING → load → mirror → READY.
	Coordinator struct {
		uploadDir string
		registry  *jobs.Registry
		table     Table
		catalog   CatalogStore // nil disables the durable mirror
		logger    *slog.Logger
	}

	// UploadHandle is returned synchronously from SubmitUpload; processing
	// continues in the background under StoredName.
	UploadHandle struct {
		JobID      string
		StoredName string
	}
)

// NewCoordinator creates an ingestion coordinator writing into uploadDir.
func NewCoordinator(
	uploadDir string,
	registry *jobs.Registry,
	table Table,
	catalogStore CatalogStore,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		uploadDir: uploadDir,
		registry:  registry,
		table:     table,
		catalog:   catalogStore,
		logger:    logger,
	}
}

// SubmitUpload persists the stream under a collision-free timestamped name,
// registers the job as PROCESSING, and spawns the worker. It returns as soon
// as the bytes are on disk; poll UploadStatus with the stored name.
func (c *Coordinator) SubmitUpload(filename string, r io.Reader) (*UploadHandle, error) {
	storedName, err := storedFileName(filename)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(c.uploadDir, uploadDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := filepath.Join(c.uploadDir, storedName)

	written, err := writeUpload(path, r)
	if err != nil {
		return nil, err
	}

	if written == 0 {
		_ = os.Remove(path)

		return nil, ErrEmptyUpload
	}

	if err := c.registry.Set(storedName, jobs.StateProcessing, ""); err != nil {
		return nil, err
	}

	handle := &UploadHandle{
		JobID:      uuid.NewString(),
		StoredName: storedName,
	}

	c.logger.Info("Upload accepted",
		slog.String("filename", filename),
		slog.String("stored_name", storedName),
		slog.Int64("bytes", written),
		slog.String("job_id", handle.JobID),
	)

	go c.process(storedName, path)

	return handle, nil
}

// process is the background worker for one upload. Load failures are
// terminal; catalog mirror failures are logged and the job still goes READY.
func (c *Coordinator) process(storedName, path string) {
	if err := c.table.Load(path); err != nil {
		c.logger.Error("Upload processing failed",
			slog.String("stored_name", storedName),
			slog.String("error", err.Error()),
		)

		_ = c.registry.Set(storedName, jobs.StateError, err.Error())

		return
	}

	if c.catalog != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		result, err := c.catalog.StoreExcelData(ctx, c.table.Rows(), path)
		if err != nil {
			c.logger.Error("Catalog mirror failed, table remains in memory only",
				slog.String("stored_name", storedName),
				slog.String("error", err.Error()),
			)
		} else {
			c.logger.Info("Catalog mirror complete",
				slog.String("stored_name", storedName),
				slog.Int("stored", result.Stored),
				slog.Int("excluded_synthetic", result.ExcludedSynthetic),
			)
		}
	}

	_ = c.registry.Set(storedName, jobs.StateReady, "")

	c.logger.Info("Upload ready", slog.String("stored_name", storedName))
}

// UploadStatus reports the job state for a stored filename. The registry is
// ephemeral, so two recovery heuristics cover jobs it no longer holds:
// a missing job whose file is both on disk and the last-loaded table file is
// READY, and a PROCESSING job whose file the table already holds is promoted
// to READY.
func (c *Coordinator) UploadStatus(filename string) (jobs.Status, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return jobs.Status{}, ErrJobNotFound
	}

	path := filepath.Join(c.uploadDir, filename)
	loaded := c.table.LastLoadedFile() == path && c.table.HasData()

	status, _, ok := c.registry.Get(filename)
	if !ok {
		if _, err := os.Stat(path); err == nil && loaded {
			return jobs.Status{Filename: filename, State: jobs.StateReady}, nil
		}

		return jobs.Status{}, ErrJobNotFound
	}

	if status.State == jobs.StateProcessing && loaded {
		_ = c.registry.Set(filename, jobs.StateReady, "")

		status.State = jobs.StateReady
		status.Reason = ""
	}

	return status, nil
}

// storedFileName builds the collision-free on-disk name:
// <stem>_<YYYYMMDD_HHMMSS>_<8-hex><ext>.
func storedFileName(filename string) (string, error) {
	base := filepath.Base(strings.TrimSpace(filename))

	ext := strings.ToLower(filepath.Ext(base))
	if ext != ".xlsx" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFile, ext)
	}

	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "upload"
	}

	return fmt.Sprintf("%s_%s_%s%s",
		stem,
		time.Now().Format("20060102_150405"),
		uuid.NewString()[:8],
		ext,
	), nil
}

// writeUpload streams the upload to disk and reports the byte count.
func writeUpload(path string, r io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, uploadFilePerm)
	if err != nil {
		return 0, fmt.Errorf("failed to create upload file: %w", err)
	}

	written, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)

		return 0, fmt.Errorf("failed to write upload: %w", err)
	}

	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize upload: %w", err)
	}

	return written, nil
}


