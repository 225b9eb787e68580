// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://127.0.0.1:11434", cfg.Server.Host)
	assert.NotEmpty(t, cfg.Chat.Model)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Connect())
	assert.Equal(t, 60*time.Second, cfg.Timeouts.Read())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Host, cfg.Server.Host)
}

func TestLoadFromPath_SparseFileFilled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[chat]\nmodel = \"llama3.2:3b\"\n"), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "llama3.2:3b", cfg.Chat.Model)
	// Unspecified sections keep defaults.
	assert.Equal(t, Default().Server.Host, cfg.Server.Host)
	assert.Equal(t, Default().Timeouts.ReadSecs, cfg.Timeouts.ReadSecs)
}

func TestLoadFromPath_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[chat\nmodel ="), 0600))

	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestLoadFromPath_HostNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nhost = \"localhost:11434/\"\n"), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", cfg.Server.Host)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SHOAL_HOST", "http://gpu-box:11434")
	t.Setenv("SHOAL_MODEL", "deepseek-r1:8b")
	t.Setenv("SHOAL_TEMPERATURE", "0.2")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, "http://gpu-box:11434", cfg.Server.Host)
	assert.Equal(t, "deepseek-r1:8b", cfg.Chat.Model)
	assert.Equal(t, 0.2, cfg.Chat.Temperature)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"empty host", func(c *Config) { c.Server.Host = " " }, true},
		{"bad scheme", func(c *Config) { c.Server.Host = "ftp://x" }, true},
		{"temperature too high", func(c *Config) { c.Chat.Temperature = 2.5 }, true},
		{"negative temperature", func(c *Config) { c.Chat.Temperature = -0.1 }, true},
		{"zero connect timeout", func(c *Config) { c.Timeouts.ConnectSecs = 0 }, true},
		{"unknown theme", func(c *Config) { c.UI.Theme = "solarized" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Chat.Model = "mistral:7b"
	cfg.Chat.SystemPrompt = "answer briefly"
	require.NoError(t, SaveToPath(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "mistral:7b", loaded.Chat.Model)
	assert.Equal(t, "answer briefly", loaded.Chat.SystemPrompt)
}

func TestSnapshot(t *testing.T) {
	cfg := Default()
	cfg.Chat.Model = "a"
	snap := cfg.Snapshot()

	// Later mutation must not leak into the snapshot.
	cfg.Chat.Model = "b"

	assert.Equal(t, "a", snap.Model)
	assert.Equal(t, 10*time.Second, snap.ConnectTimeout)
}

func TestWatcher_ReloadOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveToPath(Default(), path))

	loaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(c *Config) {
		select {
		case loaded <- c:
		default:
		}
	}, nil)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch())

	cfg := Default()
	cfg.Chat.Model = "gemma2:9b"
	require.NoError(t, SaveToPath(cfg, path))

	select {
	case got := <-loaded:
		assert.Equal(t, "gemma2:9b", got.Chat.Model)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not deliver reloaded config")
	}
}

func TestWatcher_MalformedFileKeepsRunning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveToPath(Default(), path))

	loaded := make(chan *Config, 4)
	errs := make(chan error, 4)
	w, err := NewWatcher(path,
		func(c *Config) { loaded <- c },
		func(e error) { errs <- e },
	)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch())

	// Broken write: surfaced as an error, not a load.
	require.NoError(t, os.WriteFile(path, []byte("[server\n"), 0600))
	select {
	case <-errs:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not report malformed config")
	}

	// A subsequent good write still reloads.
	cfg := Default()
	cfg.Chat.Model = "phi4:14b"
	require.NoError(t, SaveToPath(cfg, path))
	select {
	case got := <-loaded:
		assert.Equal(t, "phi4:14b", got.Chat.Model)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not recover after malformed config")
	}
}
