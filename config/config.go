// Package config loads statectl settings from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all localstate configuration.
type Config struct {
	// DataDir holds every state file.
	DataDir string `yaml:"data_dir"`
	// Backend selects the key-value store: json, sqlite or memory.
	Backend string `yaml:"backend"`

	Favorites OrderedSetConfig `yaml:"favorites"`
	Recents   OrderedSetConfig `yaml:"recents"`
	Stats     StatsConfig      `yaml:"stats"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// OrderedSetConfig configures one ordered-set file.
type OrderedSetConfig struct {
	File          string `yaml:"file"`
	SchemaVersion int    `yaml:"schema_version"`
	Limit         int    `yaml:"limit"` // 0 = unbounded
}

// StatsConfig bounds the focus counters. The limits are sanity caps, not
// product rules.
type StatsConfig struct {
	Namespace   string `yaml:"namespace"`
	MaxMinutes  int64  `yaml:"max_minutes"`
	MaxSessions int64  `yaml:"max_sessions"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Backend: "json",
		Favorites: OrderedSetConfig{
			File:          "favorites.json",
			SchemaVersion: 1,
		},
		Recents: OrderedSetConfig{
			File:          "recent_tools.json",
			SchemaVersion: 1,
			Limit:         20,
		},
		Stats: StatsConfig{
			Namespace:   "focus",
			MaxMinutes:  1_000_000,
			MaxSessions: 1_000_000,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "localstate")
	}
	return "./data"
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LOCALSTATE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("LOCALSTATE_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("LOCALSTATE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for values no store can work with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	switch c.Backend {
	case "json", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown backend %q (supported: json, sqlite, memory)", c.Backend)
	}
	for name, set := range map[string]OrderedSetConfig{"favorites": c.Favorites, "recents": c.Recents} {
		if set.File == "" || filepath.Base(set.File) != set.File {
			return fmt.Errorf("%s.file must be a plain file name, got %q", name, set.File)
		}
		if set.SchemaVersion < 1 {
			return fmt.Errorf("%s.schema_version must be positive", name)
		}
		if set.Limit < 0 {
			return fmt.Errorf("%s.limit must not be negative", name)
		}
	}
	if c.Favorites.File == c.Recents.File {
		return fmt.Errorf("favorites and recents must use different files")
	}
	if c.Stats.Namespace == "" {
		return fmt.Errorf("stats.namespace is required")
	}
	if c.Stats.MaxMinutes <= 0 || c.Stats.MaxSessions <= 0 {
		return fmt.Errorf("stats limits must be positive")
	}
	return nil
}

// Path joins name onto DataDir.
func (c *Config) Path(name string) string {
	return filepath.Join(c.DataDir, name)
}
