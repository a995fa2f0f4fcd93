package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all ctxburn configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Context    ContextConfig    `toml:"context"`
	Daemon     DaemonConfig     `toml:"daemon"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	DataDir     string `toml:"data_dir,omitempty"`
	DefaultTool string `toml:"default_tool,omitempty"`
}

// ContextConfig holds warning thresholds and limit fallbacks.
// Thresholds are percentages of the context window (80 means 80%).
type ContextConfig struct {
	WarnPercent     float64          `toml:"warn_percent"`
	CriticalPercent float64          `toml:"critical_percent"`
	DefaultLimit    int64            `toml:"default_limit,omitempty"`
	Limits          map[string]int64 `toml:"limits,omitempty"`
}

// DaemonConfig holds settings for the background service.
type DaemonConfig struct {
	Addr            string  `toml:"addr"`
	IntervalSec     int     `toml:"interval_sec"`
	EventsBuffer    int     `toml:"events_buffer"`
	RateLimitPerSec float64 `toml:"rate_limit_per_sec"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Context: ContextConfig{
			WarnPercent:     80,
			CriticalPercent: 95,
		},
		Daemon: DaemonConfig{
			Addr:            "127.0.0.1:8787",
			IntervalSec:     10,
			EventsBuffer:    200,
			RateLimitPerSec: 20,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ctxburn")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ctxburn")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config at path, returning defaults if it doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo writes the config to path, creating parent directories.
func SaveTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// GetDataDir returns the session data directory from env var or config, in
// that order, falling back to DefaultDataDir.
func GetDataDir(cfg Config) string {
	if dir := os.Getenv("CTXBURN_DATA_DIR"); dir != "" {
		return dir
	}
	if cfg.General.DataDir != "" {
		return cfg.General.DataDir
	}
	return DefaultDataDir()
}

// DefaultDataDir is where session exports are read from when nothing else is
// configured.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "ctxburn", "sessions")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "ctxburn", "sessions")
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
