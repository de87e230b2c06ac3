// Package config loads and validates CodeScout configuration.
// Configuration comes from three layers, later layers winning:
// built-in defaults, a YAML file (codescout.yaml), and CODESCOUT_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the YAML configuration file name looked up in the
// working directory or the path passed to Load.
const ConfigFileName = "codescout.yaml"

// Config represents the complete CodeScout configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	DataDir     string            `yaml:"data_dir" json:"data_dir"`
	Source      SourceConfig      `yaml:"source" json:"source"`
	Index       IndexConfig       `yaml:"index" json:"index"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// SourceConfig configures repository source fetching.
type SourceConfig struct {
	// CloneDir is where git sources are materialized. Defaults to
	// <data_dir>/repos.
	CloneDir string `yaml:"clone_dir" json:"clone_dir"`

	// DefaultBranch is used when a repository record has no branch.
	DefaultBranch string `yaml:"default_branch" json:"default_branch"`

	// FetchTimeout bounds a clone/fetch operation.
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
}

// IndexConfig configures the external search index connection and the
// publisher's batching behavior.
type IndexConfig struct {
	// Backend selects the search index implementation.
	// Options: "embedded" (bleve, local development) or "remote" (hosted REST API).
	Backend string `yaml:"backend" json:"backend"`

	// Endpoint is the base URL of the hosted search index (remote backend).
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// AppID identifies the hosted application (remote backend).
	AppID string `yaml:"app_id" json:"app_id"`

	// APIKey is the write-capable API key (remote backend).
	// Prefer setting this via CODESCOUT_INDEX_API_KEY.
	APIKey string `yaml:"api_key" json:"api_key"`

	// IndexName is the target index name.
	IndexName string `yaml:"index_name" json:"index_name"`

	// BatchSize is the maximum number of operations per batch submission.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// MaxAttempts is the total submission attempts per batch (initial + retries).
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	// BatchTimeout bounds a single batch network call.
	BatchTimeout time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
}

// PerformanceConfig configures pipeline throughput limits.
type PerformanceConfig struct {
	// Workers bounds the number of repository runs executing concurrently.
	Workers int `yaml:"workers" json:"workers"`

	// MaxFiles is the per-run file-count ceiling. Runs that hit it are
	// truncated and flagged, never silently dropped.
	MaxFiles int `yaml:"max_files" json:"max_files"`

	// MaxFileSize is the largest file (bytes) the pipeline will parse.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`

	// ParseTimeout bounds a single file parse.
	ParseTimeout time.Duration `yaml:"parse_timeout" json:"parse_timeout"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Version: 1,
		DataDir: ".codescout",
		Source: SourceConfig{
			DefaultBranch: "main",
			FetchTimeout:  5 * time.Minute,
		},
		Index: IndexConfig{
			Backend:      "embedded",
			IndexName:    "code_entities",
			BatchSize:    1000,
			MaxAttempts:  3,
			BatchTimeout: 30 * time.Second,
		},
		Performance: PerformanceConfig{
			Workers:      2,
			MaxFiles:     10000,
			MaxFileSize:  2 * 1024 * 1024,
			ParseTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// Load reads configuration from dir/codescout.yaml, falling back to
// defaults when the file does not exist, then applies environment
// overrides and validates.
func Load(dir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to dir/codescout.yaml.
func (c *Config) Save(dir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0o644)
}

// applyEnvOverrides applies CODESCOUT_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODESCOUT_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("CODESCOUT_INDEX_BACKEND"); v != "" {
		c.Index.Backend = v
	}
	if v := os.Getenv("CODESCOUT_INDEX_ENDPOINT"); v != "" {
		c.Index.Endpoint = v
	}
	if v := os.Getenv("CODESCOUT_INDEX_APP_ID"); v != "" {
		c.Index.AppID = v
	}
	if v := os.Getenv("CODESCOUT_INDEX_API_KEY"); v != "" {
		c.Index.APIKey = v
	}
	if v := os.Getenv("CODESCOUT_INDEX_NAME"); v != "" {
		c.Index.IndexName = v
	}
	if v := os.Getenv("CODESCOUT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Performance.Workers = n
		}
	}
	if v := os.Getenv("CODESCOUT_MAX_FILES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Performance.MaxFiles = n
		}
	}
	if v := os.Getenv("CODESCOUT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// applyDerivedDefaults fills values that depend on other settings.
func (c *Config) applyDerivedDefaults() {
	if c.Source.CloneDir == "" {
		c.Source.CloneDir = filepath.Join(c.DataDir, "repos")
	}
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if c.Index.BatchSize <= 0 {
		return fmt.Errorf("index.batch_size must be positive, got %d", c.Index.BatchSize)
	}
	if c.Index.MaxAttempts <= 0 {
		return fmt.Errorf("index.max_attempts must be positive, got %d", c.Index.MaxAttempts)
	}
	switch c.Index.Backend {
	case "embedded":
	case "remote":
		if c.Index.Endpoint == "" {
			return fmt.Errorf("index.endpoint is required for the remote backend")
		}
		if c.Index.APIKey == "" {
			return fmt.Errorf("index.api_key is required for the remote backend")
		}
	default:
		return fmt.Errorf("unknown index backend %q (expected embedded or remote)", c.Index.Backend)
	}
	if c.Performance.Workers <= 0 {
		return fmt.Errorf("performance.workers must be positive, got %d", c.Performance.Workers)
	}
	if c.Performance.MaxFiles <= 0 {
		return fmt.Errorf("performance.max_files must be positive, got %d", c.Performance.MaxFiles)
	}
	return nil
}
