package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"platter/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.TempDir = filepath.Join(base, "temp")
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if path == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.HandBrake.Preset != "default" {
		t.Fatalf("unexpected preset %q", cfg.HandBrake.Preset)
	}
	if !cfg.Workflow.StartEnabled {
		t.Fatal("expected start_enabled default true")
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	body := `
[paths]
temp_dir = "` + filepath.Join(dir, "t") + `"
output_dir = "` + filepath.Join(dir, "o") + `"
log_dir = "` + filepath.Join(dir, "l") + `"

[handbrake]
preset = "  fast  "

[logging]
format = "JSON"
`
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.HandBrake.Preset != "fast" {
		t.Fatalf("preset not trimmed: %q", cfg.HandBrake.Preset)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("format not lowered: %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsBadLogFormat(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(cfgPath, []byte("[logging]\nformat = \"xml\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(cfgPath); err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected logging.format error, got %v", err)
	}
}

func TestValidateRejectsSharedTempOutput(t *testing.T) {
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.TempDir = dir
	cfg.Paths.OutputDir = dir
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected shared temp/output dirs to be rejected")
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.TempDir = filepath.Join(base, "temp")
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.TempDir, cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected second WriteSample to fail")
	}
}
