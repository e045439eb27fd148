// Package migrations embeds the catalog schema and applies it with
// golang-migrate. Migration files are embedded at build time, so a deployed
// binary carries its own schema; filenames, up/down pairing, sequence
// continuity, and content checksums are validated before anything touches
// the database.
package migrations

import (
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

//go:embed *.sql
var embeddedFiles embed.FS

// Migration filename standard: 001_name.up.sql / 001_name.down.sql.
var filenameRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

type (
	// Set is a validated collection of migration files. Pass nil to NewSet to
	// use the migrations embedded in this package; tests inject fstest maps.
	Set struct {
		fs        fs.FS
		checksums map[string]string // filename -> SHA-256, pinned on first validation
	}

	// fileInfo is the parsed form of a migration filename.
	fileInfo struct {
		Sequence  int
		Name      string
		Direction string // "up" or "down"
		Filename  string
	}
)

// NewSet creates a migration set over the given filesystem, or over the
// package's embedded files when fsys is nil.
func NewSet(fsys fs.FS) *Set {
	if fsys == nil {
		fsys = embeddedFiles
	}

	return &Set{
		fs:        fsys,
		checksums: make(map[string]string),
	}
}

// FS returns the underlying filesystem for use as a migration source.
func (s *Set) FS() fs.FS {
	return s.fs
}

// Files lists the migration files that conform to the naming standard, in
// lexicographic order. Nonconforming files are excluded rather than
// reported; Validate surfaces an error when nothing usable remains.
func (s *Set) Files() ([]string, error) {
	entries, err := fs.ReadDir(s.fs, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if filepath.Ext(name) == ".sql" && filenameRegex.MatchString(name) {
			files = append(files, name)
		}
	}

	// The 3-digit prefix makes lexicographic order the migration order.
	sort.Strings(files)

	return files, nil
}

// Content returns the raw bytes of a single migration file.
func (s *Set) Content(filename string) ([]byte, error) {
	return fs.ReadFile(s.fs, filename)
}

// Validate checks the whole set: at least one file, valid filenames, every
// up paired with a down, no gaps in the sequence, and unchanged content
// against previously pinned checksums. The first successful run pins the
// checksums, so a later call detects in-process tampering.
func (s *Set) Validate() error {
	files, err := s.Files()
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no embedded migration files found")
	}

	infos := make([]*fileInfo, 0, len(files))

	for _, file := range files {
		info, err := parseFilename(file)
		if err != nil {
			return fmt.Errorf("filename validation failed for %s: %w", file, err)
		}

		infos = append(infos, info)
	}

	if err := validatePairing(infos); err != nil {
		return err
	}

	if err := validateSequence(infos); err != nil {
		return err
	}

	for _, file := range files {
		content, err := s.Content(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		sum := fmt.Sprintf("%x", sha256.Sum256(content))

		if pinned, ok := s.checksums[file]; ok && pinned != sum {
			return fmt.Errorf("checksum mismatch for %s: file has been modified", file)
		}

		s.checksums[file] = sum
	}

	return nil
}

// maxSequence returns the highest migration sequence number in the set, or 0
// when the set is empty or unreadable.
func (s *Set) maxSequence() int {
	files, err := s.Files()
	if err != nil {
		return 0
	}

	maxSeq := 0

	for _, file := range files {
		if info, err := parseFilename(file); err == nil && info.Sequence > maxSeq {
			maxSeq = info.Sequence
		}
	}

	return maxSeq
}

func parseFilename(filename string) (*fileInfo, error) {
	matches := filenameRegex.FindStringSubmatch(filename)
	if len(matches) != 4 {
		return nil, fmt.Errorf(
			"invalid migration filename format: %s (expected: 001_name.up.sql or 001_name.down.sql)",
			filename,
		)
	}

	sequence, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid sequence number in filename %s: %w", filename, err)
	}

	return &fileInfo{
		Sequence:  sequence,
		Name:      matches[2],
		Direction: matches[3],
		Filename:  filename,
	}, nil
}

// validatePairing ensures every up migration has a down and vice versa.
func validatePairing(infos []*fileInfo) error {
	pairs := make(map[string]map[string]bool) // "001_name" -> direction set

	for _, info := range infos {
		key := fmt.Sprintf("%03d_%s", info.Sequence, info.Name)
		if pairs[key] == nil {
			pairs[key] = make(map[string]bool)
		}

		pairs[key][info.Direction] = true
	}

	for key, directions := range pairs {
		if !directions["up"] {
			return fmt.Errorf("orphaned down migration: missing up migration for %s", key)
		}

		if !directions["down"] {
			return fmt.Errorf("orphaned up migration: missing down migration for %s", key)
		}
	}

	return nil
}

// validateSequence ensures the sequence starts at 001 and has no gaps.
func validateSequence(infos []*fileInfo) error {
	seen := make(map[int]bool)

	for _, info := range infos {
		seen[info.Sequence] = true
	}

	if len(seen) == 0 {
		return nil
	}

	sequences := make([]int, 0, len(seen))
	for seq := range seen {
		sequences = append(sequences, seq)
	}

	sort.Ints(sequences)

	if sequences[0] != 1 {
		return fmt.Errorf("migration sequence should start with 001, but found %03d", sequences[0])
	}

	for i := 1; i < len(sequences); i++ {
		if sequences[i] != sequences[i-1]+1 {
			return fmt.Errorf(
				"gap in migration sequence: expected %03d, found %03d",
				sequences[i-1]+1,
				sequences[i],
			)
		}
	}

	return nil
}


