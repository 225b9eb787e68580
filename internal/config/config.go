// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for shoal.
//
// Configuration lives in ~/.shoal/config.toml with sensible defaults,
// environment variable overrides, and validation.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/shoal-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete shoal configuration.
type Config struct {
	Version string `toml:"version"`

	// Server connection
	Server ServerConfig `toml:"server"`

	// Chat defaults
	Chat ChatConfig `toml:"chat"`

	// Timeouts
	Timeouts TimeoutConfig `toml:"timeouts"`

	// UI configuration
	UI UIConfig `toml:"ui"`
}

// ServerConfig names the model server to talk to.
type ServerConfig struct {
	// Host is the base URL of the Ollama server. A bare host:port is
	// accepted and normalized to http://host:port.
	Host string `toml:"host"`
}

// ChatConfig holds per-exchange chat defaults.
type ChatConfig struct {
	// Model is the default model tag, e.g. "qwen2.5:14b".
	Model string `toml:"model"`
	// SystemPrompt is prepended to every conversation when set.
	SystemPrompt string `toml:"system_prompt"`
	// Temperature is passed through to the server. Valid range 0.0-2.0.
	Temperature float64 `toml:"temperature"`
}

// TimeoutConfig bounds the two phases of an exchange: establishing the
// connection, and waiting for the next chunk of an active stream. There is
// deliberately no whole-response timeout; long generations are normal.
type TimeoutConfig struct {
	ConnectSecs int `toml:"connect_secs"`
	ReadSecs    int `toml:"read_secs"`
}

// Connect returns the connect timeout as a duration.
func (t TimeoutConfig) Connect() time.Duration {
	return time.Duration(t.ConnectSecs) * time.Second
}

// Read returns the per-read stream timeout as a duration.
func (t TimeoutConfig) Read() time.Duration {
	return time.Duration(t.ReadSecs) * time.Second
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// ShowStats displays generation statistics under assistant replies
	ShowStats bool `toml:"show_stats"`
	// ShowReasoning expands reasoning blocks by default
	ShowReasoning bool `toml:"show_reasoning"`
	// CompactMode uses a more compact layout
	CompactMode bool `toml:"compact_mode"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Server: ServerConfig{
			Host: "http://127.0.0.1:11434",
		},

		Chat: ChatConfig{
			Model:       "qwen2.5:14b",
			Temperature: 0.8,
		},

		Timeouts: TimeoutConfig{
			ConnectSecs: 10,
			ReadSecs:    60,
		},

		UI: UIConfig{
			Theme:         "dark",
			ShowStats:     true,
			ShowReasoning: false,
			CompactMode:   false,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the shoal configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".shoal"), nil
}

// Path returns the path to the TOML config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureDir ensures the config directory exists.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.shoal/config.toml, falling back to
// defaults when the file does not exist. Environment overrides are applied
// after the file, and the result is validated.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path. A missing
// file is not an error; defaults are used.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	}

	cfg.fillDefaults()
	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills any missing values with defaults so a sparse config
// file stays valid.
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Server.Host == "" {
		c.Server.Host = defaults.Server.Host
	}
	if c.Chat.Model == "" {
		c.Chat.Model = defaults.Chat.Model
	}
	if c.Chat.Temperature == 0 {
		c.Chat.Temperature = defaults.Chat.Temperature
	}
	if c.Timeouts.ConnectSecs == 0 {
		c.Timeouts.ConnectSecs = defaults.Timeouts.ConnectSecs
	}
	if c.Timeouts.ReadSecs == 0 {
		c.Timeouts.ReadSecs = defaults.Timeouts.ReadSecs
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// ApplyEnvOverrides applies SHOAL_* environment variables over the loaded
// configuration. Environment always wins over the file.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SHOAL_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SHOAL_MODEL"); v != "" {
		c.Chat.Model = v
	}
	if v := os.Getenv("SHOAL_SYSTEM_PROMPT"); v != "" {
		c.Chat.SystemPrompt = v
	}
	if v := os.Getenv("SHOAL_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Chat.Temperature = f
		}
	}
}

// Validate checks the configuration for errors and normalizes the host.
func (c *Config) Validate() error {
	host, err := util.NormalizeHost(c.Server.Host)
	if err != nil {
		return fmt.Errorf("server.host: %w", err)
	}
	c.Server.Host = host

	if c.Chat.Model == "" {
		return fmt.Errorf("chat.model must not be empty")
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		return fmt.Errorf("chat.temperature %v out of range [0, 2]", c.Chat.Temperature)
	}
	if c.Timeouts.ConnectSecs < 1 {
		return fmt.Errorf("timeouts.connect_secs must be at least 1")
	}
	if c.Timeouts.ReadSecs < 1 {
		return fmt.Errorf("timeouts.read_secs must be at least 1")
	}

	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		return fmt.Errorf("ui.theme %q not one of dark, light, auto", c.UI.Theme)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath saves the configuration to a TOML file. The write is atomic so
// a crash mid-save never leaves a truncated config behind.
func SaveToPath(cfg *Config, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0600)
}

// =============================================================================
// EXCHANGE SNAPSHOT
// =============================================================================

// Snapshot is the fixed view of configuration one exchange runs with.
// It is taken when the user submits a turn; later config edits apply to the
// next exchange, never the one in flight.
type Snapshot struct {
	Host           string
	Model          string
	SystemPrompt   string
	Temperature    float64
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Snapshot captures the current exchange-relevant settings.
func (c *Config) Snapshot() Snapshot {
	return Snapshot{
		Host:           c.Server.Host,
		Model:          c.Chat.Model,
		SystemPrompt:   c.Chat.SystemPrompt,
		Temperature:    c.Chat.Temperature,
		ConnectTimeout: c.Timeouts.Connect(),
		ReadTimeout:    c.Timeouts.Read(),
	}
}
