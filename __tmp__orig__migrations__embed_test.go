package migrations

import (
	"reflect"
	"strings"
	"testing"
	"testing/fstest"
)

func TestFilesListsEmbeddedMigrations(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	set := NewSet(nil)

	files, err := set.Files()
	if err != nil {
		t.Fatalf("failed to list embedded migrations: %v", err)
	}

	expected := []string{
		"001_create_strains.down.sql",
		"001_create_strains.up.sql",
		"002_create_products.down.sql",
		"002_create_products.up.sql",
		"003_create_sessions.down.sql",
		"003_create_sessions.up.sql",
		"004_create_match_feedback.down.sql",
		"004_create_match_feedback.up.sql",
	}

	if !reflect.DeepEqual(files, expected) {
		t.Errorf("expected files %v, got %v", expected, files)
	}

	for _, file := range files {
		if !filenameRegex.MatchString(file) {
			t.Errorf("file %s does not match the naming standard", file)
		}
	}
}

func TestValidateEmbeddedMigrations(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	set := NewSet(nil)

	if err := set.Validate(); err != nil {
		t.Errorf("embedded migration validation failed: %v", err)
	}

	// Every listed file must be readable and contain SQL.
	files, err := set.Files()
	if err != nil {
		t.Fatalf("failed to list migrations: %v", err)
	}

	for _, file := range files {
		content, err := set.Content(file)
		if err != nil {
			t.Errorf("failed to read migration file %s: %v", file, err)
			continue
		}

		if len(content) == 0 {
			t.Errorf("migration file %s is empty", file)
		}

		text := string(content)
		if !strings.Contains(text, "CREATE") && !strings.Contains(text, "DROP") {
			t.Errorf("migration file %s does not look like SQL: %q", file, text[:min(80, len(text))])
		}
	}
}

func TestValidateRejectsNonconformingSet(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	// Only invalid filenames; listing filters them all out, so validation
	// must report an empty set.
	fsys := fstest.MapFS{
		"migration.sql":        &fstest.MapFile{Data: []byte("-- missing sequence")},
		"001.sql":              &fstest.MapFile{Data: []byte("-- missing direction")},
		"001_test.invalid.sql": &fstest.MapFile{Data: []byte("-- bad direction")},
		"001_test.UP.sql":      &fstest.MapFile{Data: []byte("-- wrong case")},
	}

	set := NewSet(fsys)

	err := set.Validate()
	if err == nil {
		t.Fatal("expected validation to fail for a set with no conforming files")
	}

	if !strings.Contains(err.Error(), "no embedded migration files found") {
		t.Errorf("expected 'no embedded migration files found', got: %v", err)
	}
}

func TestValidateDetectsUnpairedMigration(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	fsys := fstest.MapFS{
		"001_first.up.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE first (id INTEGER);")},
		"001_first.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE first;")},
		"002_second.up.sql":  &fstest.MapFile{Data: []byte("CREATE TABLE second (id INTEGER);")},
	}

	set := NewSet(fsys)

	err := set.Validate()
	if err == nil {
		t.Fatal("expected validation to fail for unpaired up migration")
	}

	if !strings.Contains(err.Error(), "missing down migration") {
		t.Errorf("expected missing-down error, got: %v", err)
	}
}

func TestValidateDetectsSequenceGap(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	fsys := fstest.MapFS{
		"001_first.up.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE first (id INTEGER);")},
		"001_first.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE first;")},
		"003_third.up.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE third (id INTEGER);")},
		"003_third.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE third;")},
	}

	set := NewSet(fsys)

	err := set.Validate()
	if err == nil {
		t.Fatal("expected validation to fail for a sequence gap")
	}

	if !strings.Contains(err.Error(), "gap in migration sequence") {
		t.Errorf("expected sequence-gap error, got: %v", err)
	}
}

func TestValidateDetectsModifiedContent(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	file := &fstest.MapFile{Data: []byte("CREATE TABLE first (id INTEGER);")}
	fsys := fstest.MapFS{
		"001_first.up.sql":   file,
		"001_first.down.sql": {Data: []byte("DROP TABLE first;")},
	}

	set := NewSet(fsys)

	if err := set.Validate(); err != nil {
		t.Fatalf("first validation should pin checksums, got: %v", err)
	}

	// Mutate the file after checksums were pinned.
	file.Data = []byte("CREATE TABLE tampered (id INTEGER);")

	err := set.Validate()
	if err == nil {
		t.Fatal("expected validation to detect modified content")
	}

	if !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("expected checksum-mismatch error, got: %v", err)
	}
}

func TestMigrationsSortInSequenceOrder(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	fsys := fstest.MapFS{
		"010_ten.up.sql":    &fstest.MapFile{Data: []byte("CREATE TABLE ten (id INTEGER);")},
		"010_ten.down.sql":  &fstest.MapFile{Data: []byte("DROP TABLE ten;")},
		"002_two.up.sql":    &fstest.MapFile{Data: []byte("CREATE TABLE two (id INTEGER);")},
		"002_two.down.sql":  &fstest.MapFile{Data: []byte("DROP TABLE two;")},
		"001_one.up.sql":    &fstest.MapFile{Data: []byte("CREATE TABLE one (id INTEGER);")},
		"001_one.down.sql":  &fstest.MapFile{Data: []byte("DROP TABLE one;")},
		"100_cent.up.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE cent (id INTEGER);")},
		"100_cent.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE cent;")},
	}

	set := NewSet(fsys)

	files, err := set.Files()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{
		"001_one.down.sql",
		"001_one.up.sql",
		"002_two.down.sql",
		"002_two.up.sql",
		"010_ten.down.sql",
		"010_ten.up.sql",
		"100_cent.down.sql",
		"100_cent.up.sql",
	}

	if !reflect.DeepEqual(files, expected) {
		t.Errorf("migrations not sorted in sequence order. Expected %v, got %v", expected, files)
	}
}

func TestMaxSequence(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	set := NewSet(nil)

	if got := set.maxSequence(); got != 4 {
		t.Errorf("expected max sequence 4, got %d", got)
	}
}


