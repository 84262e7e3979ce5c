package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_HasSaneDefaults(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 1000, cfg.Watcher.PollIntervalMs)
	require.Equal(t, 1000, cfg.Search.MaxMatches)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFrom_EmptyPathFallsBackToDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := LoadFrom("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Search.MaxMatches, cfg.Search.MaxMatches)
}

func TestLoadFrom_ParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fatfile.toml")
	toml := `
[watcher]
poll_interval_ms = 2500

[search]
max_matches = 50
workers = 4
`
	require.NoError(t, os.WriteFile(path, []byte(toml), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	require.Equal(t, 2500, cfg.Watcher.PollIntervalMs)
	require.Equal(t, 50, cfg.Search.MaxMatches)
	require.Equal(t, 4, cfg.Search.Workers)
	// Unset sections keep their defaults.
	require.Equal(t, 150, cfg.Watcher.DebounceMs)
}

func TestSaveAndLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg := DefaultConfig()
	cfg.Search.MaxMatches = 42
	require.NoError(t, Save(cfg))

	loaded, err := Load()
	require.NoError(t, err)
	require.Equal(t, 42, loaded.Search.MaxMatches)
}
