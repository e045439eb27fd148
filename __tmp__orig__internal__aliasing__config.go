// Package aliasing provides column-header alias resolution for spreadsheet
// ingestion.
//
// Inventory spreadsheets from different vendors name the same column
// differently ("Product Name*", "ProductName", "Item Name"), breaking field
// resolution. This package provides the built-in synonym table, optional
// YAML-configured extensions, and the resolver that projects any accepted
// header onto a single canonical field.
package aliasing

import (
	"errors"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/labelforge-io/labelforge/internal/config"
)

// Config holds normalization extensions loaded from .labelforge.yaml.
type Config struct {
	// ColumnSynonyms maps extra header spellings to canonical field names.
	// Key is the header as it appears in the sheet, value is the canonical
	// field (see the Field* constants).
	//nolint:tagliatelle // snake_case is intentional for YAML config files
	ColumnSynonyms map[string]string `yaml:"column_synonyms"`

	// LineageSpellings maps extra lineage spellings to enumerated values,
	// e.g. "sat" → "SATIVA".
	//nolint:tagliatelle
	LineageSpellings map[string]string `yaml:"lineage_spellings"`

	// ConventionalWeights overrides the per-type conventional label weight
	// table, e.g. "edible liquid" → "2.5oz".
	//nolint:tagliatelle
	ConventionalWeights map[string]string `yaml:"conventional_weights"`
}

// DefaultConfigPath is the default location for the labelforge configuration
// file. Uses hidden file format following common tool conventions
// (.eslintrc, .prettierrc, etc.).
const DefaultConfigPath = ".labelforge.yaml"

// ConfigPathEnvVar is the environment variable name for custom config path.
const ConfigPathEnvVar = "LABELFORGE_CONFIG_PATH"

// LoadConfig loads normalization extensions from a YAML file at the given path.
//
// Behavior:
//   - Returns empty config (not error) if file doesn't exist - extensions are optional
//   - Returns empty config + logs warning if YAML is invalid (graceful degradation)
//   - Returns populated config on success
//
// This graceful degradation ensures the server can start even without a
// config file, as every extension has a built-in default.
func LoadConfig(path string) (*Config, error) {
	cfg := emptyConfig()

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Missing file is OK - extensions are optional
			slog.Debug("Config file not found, continuing with built-in normalization tables",
				slog.String("path", path))

			return cfg, nil
		}

		// Other read errors (permissions, etc.) - log warning and continue
		slog.Warn("Failed to read config file, continuing with built-in normalization tables",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return cfg, nil
	}

	// Empty file is valid - just no extensions
	if len(data) == 0 {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		// Invalid YAML - log warning and continue with built-ins
		slog.Warn("Failed to parse config file, continuing with built-in normalization tables",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return emptyConfig(), nil
	}

	// Ensure maps are initialized even if YAML had nil/empty sections
	if cfg.ColumnSynonyms == nil {
		cfg.ColumnSynonyms = make(map[string]string)
	}

	if cfg.LineageSpellings == nil {
		cfg.LineageSpellings = make(map[string]string)
	}

	if cfg.ConventionalWeights == nil {
		cfg.ConventionalWeights = make(map[string]string)
	}

	return cfg, nil
}

// LoadConfigFromEnv loads config from the path specified in LABELFORGE_CONFIG_PATH
// environment variable. Falls back to ".labelforge.yaml" in current directory if not set.
func LoadConfigFromEnv() (*Config, error) {
	path := config.GetEnvStr(ConfigPathEnvVar, DefaultConfigPath)

	return LoadConfig(path)
}

func emptyConfig() *Config {
	return &Config{
		ColumnSynonyms:      make(map[string]string),
		LineageSpellings:    make(map[string]string),
		ConventionalWeights: make(map[string]string),
	}
}


