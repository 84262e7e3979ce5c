// Package config loads engine tuning knobs from an optional TOML file,
// the way the teacher's config package loads theme/keybinding settings,
// but the knobs themselves are the engine's own (watcher cadence, search
// cap, log rotation) rather than presentation settings.
package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config holds every engine tunable.
type Config struct {
	Watcher WatcherConfig `toml:"watcher"`
	Search  SearchConfig  `toml:"search"`
	Logging LoggingConfig `toml:"logging"`
}

// WatcherConfig tunes the File Watcher (spec §4.6).
type WatcherConfig struct {
	PollIntervalMs int `toml:"poll_interval_ms"`
	DebounceMs     int `toml:"debounce_ms"`
}

// SearchConfig tunes the Search operation (spec §4.5).
type SearchConfig struct {
	MaxMatches            int `toml:"max_matches"`
	ProgressMinIntervalMs int `toml:"progress_min_interval_ms"`
	Workers               int `toml:"workers"`
}

// LoggingConfig tunes the internal diagnostic logger (SPEC_FULL.md §A.2).
type LoggingConfig struct {
	Dir        string `toml:"dir"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// DefaultConfig returns a config with the defaults named in SPEC_FULL.md §A.1.
func DefaultConfig() *Config {
	return &Config{
		Watcher: WatcherConfig{
			PollIntervalMs: 1000,
			DebounceMs:     150,
		},
		Search: SearchConfig{
			MaxMatches:            1000,
			ProgressMinIntervalMs: 100,
			Workers:               0, // 0 means GOMAXPROCS, resolved by the caller
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 10,
		},
	}
}

// Load loads config from file, falling back to defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Try to load from config file
	configPath := getConfigPath()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFrom loads config from an explicit path. If path is empty it
// behaves like Load (the XDG config file if present, else defaults).
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return Load()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves config to file
func Save(cfg *Config) error {
	configPath := getConfigPath()
	if configPath == "" {
		return nil
	}

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// getConfigPath returns the config file path
func getConfigPath() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fatfile", "config.toml")
	}

	// Fall back to ~/.config
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "fatfile", "config.toml")
}

// GetConfigPath exports the config path for user reference
func GetConfigPath() string {
	return getConfigPath()
}
