package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Config holds the tunable settings of a sheetagent process.
type Config struct {
	LogLevel string `yaml:"log_level"`

	// Filesystem guardrails for load_table/save_table.
	AllowedDirs []string `yaml:"allowed_dirs"`
	ReadOnly    bool     `yaml:"read_only"`

	Store   StoreConfig   `yaml:"store"`
	Runtime RuntimeConfig `yaml:"runtime"`
}

// StoreConfig bounds the in-memory table store.
type StoreConfig struct {
	HistoryLimit  int `yaml:"history_limit"`
	SnapshotLimit int `yaml:"snapshot_limit"`
	MaxTables     int `yaml:"max_tables"`
	PreviewRows   int `yaml:"preview_rows"`
	SampleRows    int `yaml:"sample_rows"`
	MaxDiffLines  int `yaml:"max_diff_lines"`
	MaxCellsPerOp int `yaml:"max_cells_per_op"`
}

// RuntimeConfig bounds tool call execution.
type RuntimeConfig struct {
	MaxConcurrentRequests int           `yaml:"max_concurrent_requests"`
	OperationTimeout      time.Duration `yaml:"operation_timeout"`
	AcquireRequestTimeout time.Duration `yaml:"acquire_request_timeout"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Store: StoreConfig{
			HistoryLimit:  DefaultHistoryLimit,
			SnapshotLimit: DefaultSnapshotLimit,
			MaxTables:     DefaultMaxTables,
			PreviewRows:   DefaultPreviewRowLimit,
			SampleRows:    DefaultSampleRows,
			MaxDiffLines:  DefaultMaxDiffLines,
			MaxCellsPerOp: DefaultMaxCellsPerOp,
		},
		Runtime: RuntimeConfig{
			MaxConcurrentRequests: DefaultMaxConcurrentRequests,
			OperationTimeout:      DefaultOperationTimeout,
			AcquireRequestTimeout: DefaultAcquireRequestTimeout,
		},
	}
}

// Load reads configuration from a YAML file. A missing file or an empty path
// yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// applyEnvOverrides applies SHEETAGENT_* environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("SHEETAGENT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SHEETAGENT_ALLOWED_DIRS"); v != "" {
		c.AllowedDirs = filepath.SplitList(v)
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"SHEETAGENT_HISTORY_LIMIT", &c.Store.HistoryLimit},
		{"SHEETAGENT_SNAPSHOT_LIMIT", &c.Store.SnapshotLimit},
		{"SHEETAGENT_MAX_TABLES", &c.Store.MaxTables},
		{"SHEETAGENT_PREVIEW_ROWS", &c.Store.PreviewRows},
		{"SHEETAGENT_MAX_CELLS_PER_OP", &c.Store.MaxCellsPerOp},
		{"SHEETAGENT_MAX_CONCURRENT_REQUESTS", &c.Runtime.MaxConcurrentRequests},
	}
	for _, o := range ints {
		v := strings.TrimSpace(os.Getenv(o.env))
		if v == "" {
			continue
		}
		n, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", o.env, err)
		}
		*o.dst = n
	}

	if v := strings.TrimSpace(os.Getenv("SHEETAGENT_READ_ONLY")); v != "" {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return fmt.Errorf("config: SHEETAGENT_READ_ONLY: %w", err)
		}
		c.ReadOnly = b
	}
	if v := strings.TrimSpace(os.Getenv("SHEETAGENT_OPERATION_TIMEOUT")); v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil {
			return fmt.Errorf("config: SHEETAGENT_OPERATION_TIMEOUT: %w", err)
		}
		c.Runtime.OperationTimeout = d
	}
	return nil
}

// Validate rejects non-positive bounds.
func (c *Config) Validate() error {
	checks := []struct {
		name string
		v    int
	}{
		{"store.history_limit", c.Store.HistoryLimit},
		{"store.snapshot_limit", c.Store.SnapshotLimit},
		{"store.max_tables", c.Store.MaxTables},
		{"store.preview_rows", c.Store.PreviewRows},
		{"store.sample_rows", c.Store.SampleRows},
		{"store.max_cells_per_op", c.Store.MaxCellsPerOp},
		{"runtime.max_concurrent_requests", c.Runtime.MaxConcurrentRequests},
	}
	for _, chk := range checks {
		if chk.v <= 0 {
			return fmt.Errorf("config: %s must be > 0 (got %d)", chk.name, chk.v)
		}
	}
	// undo needs a baseline plus at least one post-mutation state
	if c.Store.SnapshotLimit < 2 {
		return fmt.Errorf("config: store.snapshot_limit must be >= 2 (got %d)", c.Store.SnapshotLimit)
	}
	return nil
}
