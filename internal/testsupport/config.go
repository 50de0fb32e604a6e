package testsupport

import (
	"path/filepath"
	"testing"

	"platter/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.TempDir = filepath.Join(base, "tmp")
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Disc.Monitor = false

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithStartDisabled makes the workflow start with processing paused.
func WithStartDisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.StartEnabled = false
	}
}

// WithDiscDevice overrides the optical drive device on the test config.
func WithDiscDevice(device string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Disc.Device = device
	}
}
