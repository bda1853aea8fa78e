// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/tiercache/lib/dataset"
)

// EnvConfig names the environment variable [Load] reads the config
// file path from.
const EnvConfig = "TIERCACHE_CONFIG"

// Environment overrides applied by [Config.ApplyEnv].
const (
	EnvKillOnStoreFailure = "TIERCACHE_KILL_ON_STORE_FAILURE"
	EnvDataRoot           = "TIERCACHE_DATA_ROOT"
	EnvCacheRoot          = "TIERCACHE_CACHE_ROOT"
	EnvStoreEndpoint      = "TIERCACHE_STORE_ENDPOINT"
	EnvRegistryKey        = "TIERCACHE_REGISTRY_KEY"
	EnvLogLevel           = "TIERCACHE_LOG_LEVEL"
)

// Config is the configuration shared by the tiercache binaries.
type Config struct {
	// KillOnStoreFailure terminates the process when the hot store
	// becomes unreachable. When false the failure is logged and the
	// affected values are treated as absent.
	KillOnStoreFailure bool `yaml:"kill_on_store_failure"`

	// DataRoot is prepended to source paths of cached keys.
	DataRoot string `yaml:"data_root"`

	// CacheRoot is the cold tier root directory.
	CacheRoot string `yaml:"cache_root"`

	// StoreEndpoint is the hot store daemon's Unix socket.
	StoreEndpoint string `yaml:"store_endpoint"`

	// RegistryKeyName is the key name of the id-to-name registry
	// object in the hot store.
	RegistryKeyName string `yaml:"registry_key_name"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Summary controls the derived summary and index listing.
	Summary dataset.SummaryOptions `yaml:"summary"`

	// Store configures the hot store daemon.
	Store StoreConfig `yaml:"store"`
}

// StoreConfig configures tiercache-store.
type StoreConfig struct {
	// ArenaPath is the file backing the shared arena. A tmpfs path
	// keeps the arena in memory.
	ArenaPath string `yaml:"arena_path"`

	// Capacity is the arena size in bytes.
	Capacity int64 `yaml:"capacity"`
}

// Default returns the built-in configuration. Every field is usable
// without a config file.
func Default() *Config {
	return &Config{
		KillOnStoreFailure: true,
		DataRoot:           "/data/tiercache/source",
		CacheRoot:          "/data/tiercache/cold",
		StoreEndpoint:      "/tmp/tiercache-store.sock",
		RegistryKeyName:    "/id_name_map",
		LogLevel:           "info",
		Summary: dataset.SummaryOptions{
			GroupMinCount: 10,
		},
		Store: StoreConfig{
			ArenaPath: "/dev/shm/tiercache-arena",
			Capacity:  1 << 30,
		},
	}
}

// Load builds the configuration from defaults, the file named by
// TIERCACHE_CONFIG when set, and environment overrides.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(EnvConfig))
}

// LoadFile builds the configuration from defaults, the YAML file at
// path (skipped when path is empty), and environment overrides.
// Fields absent from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// ApplyEnv overrides fields from the TIERCACHE_* environment
// variables that are set. Unset variables leave fields unchanged.
func (c *Config) ApplyEnv() error {
	if value, ok := os.LookupEnv(EnvKillOnStoreFailure); ok {
		enabled, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvKillOnStoreFailure, err)
		}
		c.KillOnStoreFailure = enabled
	}

	overrides := []struct {
		name  string
		field *string
	}{
		{EnvDataRoot, &c.DataRoot},
		{EnvCacheRoot, &c.CacheRoot},
		{EnvStoreEndpoint, &c.StoreEndpoint},
		{EnvRegistryKey, &c.RegistryKeyName},
		{EnvLogLevel, &c.LogLevel},
	}
	for _, entry := range overrides {
		if value, ok := os.LookupEnv(entry.name); ok {
			*entry.field = value
		}
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// path values.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.DataRoot = expandVars(c.DataRoot, vars)
	c.CacheRoot = expandVars(c.CacheRoot, vars)
	c.StoreEndpoint = expandVars(c.StoreEndpoint, vars)
	c.Store.ArenaPath = expandVars(c.Store.ArenaPath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns. Names are
// looked up in vars first, then the environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.DataRoot == "" {
		errs = append(errs, fmt.Errorf("data_root is required"))
	}
	if c.CacheRoot == "" {
		errs = append(errs, fmt.Errorf("cache_root is required"))
	} else if !filepath.IsAbs(c.CacheRoot) {
		errs = append(errs, fmt.Errorf("cache_root must be absolute, got %q", c.CacheRoot))
	}
	if c.StoreEndpoint == "" {
		errs = append(errs, fmt.Errorf("store_endpoint is required"))
	}
	if c.RegistryKeyName == "" {
		errs = append(errs, fmt.Errorf("registry_key_name is required"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Summary.GroupMinCount < 0 {
		errs = append(errs, fmt.Errorf("summary.group_min_count must not be negative, got %d", c.Summary.GroupMinCount))
	}
	if c.Store.ArenaPath == "" {
		errs = append(errs, fmt.Errorf("store.arena_path is required"))
	}
	if c.Store.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("store.capacity must be positive, got %d", c.Store.Capacity))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() (slog.Level, error) {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps debug, info, warn and error (case-insensitive) to
// slog levels.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", name)
	}
}

// EnsurePaths creates the cold tier root if it does not exist.
func (c *Config) EnsurePaths() error {
	if err := os.MkdirAll(c.CacheRoot, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", c.CacheRoot, err)
	}
	return nil
}
