package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFrom_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Context.WarnPercent != 80 || cfg.Context.CriticalPercent != 95 {
		t.Fatalf("thresholds = %v/%v, want 80/95", cfg.Context.WarnPercent, cfg.Context.CriticalPercent)
	}
	if cfg.Daemon.Addr == "" || cfg.Daemon.IntervalSec <= 0 {
		t.Fatalf("daemon defaults missing: %+v", cfg.Daemon)
	}
}

func TestLoadFrom_OverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[general]
data_dir = "/srv/sessions"

[context]
warn_percent = 70

[context.limits]
"claude-sonnet-4-5" = 1000000
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.General.DataDir != "/srv/sessions" {
		t.Errorf("DataDir = %q", cfg.General.DataDir)
	}
	if cfg.Context.WarnPercent != 70 {
		t.Errorf("WarnPercent = %v, want 70", cfg.Context.WarnPercent)
	}
	if cfg.Context.CriticalPercent != 95 {
		t.Errorf("CriticalPercent = %v, want default 95", cfg.Context.CriticalPercent)
	}
	if got := cfg.Context.Limits["claude-sonnet-4-5"]; got != 1_000_000 {
		t.Errorf("limits override = %d, want 1000000", got)
	}
}

func TestLoadFrom_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[context\nwarn_percent = "), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := DefaultConfig()
	cfg.General.DefaultTool = "codex"
	cfg.Context.DefaultLimit = 128_000

	if err := SaveTo(path, cfg); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if got.General.DefaultTool != "codex" || got.Context.DefaultLimit != 128_000 {
		t.Fatalf("round trip lost fields: %+v", got)
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.General.DataDir = "/from/config"

	t.Setenv("CTXBURN_DATA_DIR", "/from/env")
	if got := GetDataDir(cfg); got != "/from/env" {
		t.Errorf("GetDataDir with env = %q, want /from/env", got)
	}

	t.Setenv("CTXBURN_DATA_DIR", "")
	if got := GetDataDir(cfg); got != "/from/config" {
		t.Errorf("GetDataDir with config = %q, want /from/config", got)
	}

	t.Setenv("XDG_DATA_HOME", "/xdg")
	if got := GetDataDir(DefaultConfig()); got != filepath.Join("/xdg", "ctxburn", "sessions") {
		t.Errorf("GetDataDir default = %q", got)
	}
}
