// Package config loads the engine configuration. Precedence, lowest to
// highest: built-in defaults, the user config file, the project config
// file, CONFLUENCE_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Ingest  IngestConfig  `yaml:"ingest" json:"ingest"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// IngestConfig configures the ingestion pass.
type IngestConfig struct {
	// TreeDir is the persistent tree location. Empty keeps the tree
	// next to the extracted package.
	TreeDir string `yaml:"tree_dir" json:"tree_dir"`
	// CacheSize bounds the in-memory bag cache during the pass.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// SearchConfig configures the page index and queries.
type SearchConfig struct {
	// MaxResults caps the number of hits returned per query.
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Ingest: IngestConfig{
			TreeDir:   "",
			CacheSize: 512,
		},
		Search: SearchConfig{
			MaxResults: 20,
		},
		Logging: LoggingConfig{
			Level:     "info",
			File:      "",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file,
// following the XDG Base Directory convention.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "confluence", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "confluence", "config.yaml")
	}
	return filepath.Join(home, ".config", "confluence", "config.yaml")
}

// Load loads configuration for the project rooted at dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("load user config: %w", err)
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromDir loads .confluence.yaml or .confluence.yml from dir. No
// config file is fine.
func (c *Config) loadFromDir(dir string) error {
	for _, name := range []string{".confluence.yaml", ".confluence.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Ingest.TreeDir != "" {
		c.Ingest.TreeDir = other.Ingest.TreeDir
	}
	if other.Ingest.CacheSize != 0 {
		c.Ingest.CacheSize = other.Ingest.CacheSize
	}

	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.File != "" {
		c.Logging.File = other.Logging.File
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies CONFLUENCE_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CONFLUENCE_TREE_DIR"); v != "" {
		c.Ingest.TreeDir = v
	}
	if v := os.Getenv("CONFLUENCE_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingest.CacheSize = n
		}
	}
	if v := os.Getenv("CONFLUENCE_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}
	if v := os.Getenv("CONFLUENCE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CONFLUENCE_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Ingest.CacheSize < 0 {
		return fmt.Errorf("ingest.cache_size must be non-negative, got %d", c.Ingest.CacheSize)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be non-negative, got %d", c.Search.MaxResults)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
