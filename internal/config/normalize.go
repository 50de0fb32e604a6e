package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = defaultTempDir
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)

	c.HandBrake.Binary = strings.TrimSpace(c.HandBrake.Binary)
	c.HandBrake.Preset = strings.TrimSpace(c.HandBrake.Preset)
	if c.HandBrake.Preset == "" {
		c.HandBrake.Preset = defaultPreset
	}
	if c.HandBrake.PresetsPath != "" {
		if c.HandBrake.PresetsPath, err = expandPath(c.HandBrake.PresetsPath); err != nil {
			return fmt.Errorf("handbrake.presets_path: %w", err)
		}
	}

	c.Imaging.Binary = strings.TrimSpace(c.Imaging.Binary)
	if c.Imaging.TimeoutSeconds <= 0 {
		c.Imaging.TimeoutSeconds = defaultImagingTimeout
	}
	if c.Imaging.MinFreeGiB < 0 {
		c.Imaging.MinFreeGiB = 0
	}

	c.Disc.Device = strings.TrimSpace(c.Disc.Device)
	if c.Disc.Device == "" {
		c.Disc.Device = defaultDiscDevice
	}

	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
