package config

const (
	defaultTempDir        = "~/.local/share/platter/temp"
	defaultOutputDir      = "~/videos"
	defaultLogDir         = "~/.local/share/platter/logs"
	defaultAPIBind        = "127.0.0.1:7512"
	defaultPreset         = "default"
	defaultDiscDevice     = "/dev/sr0"
	defaultImagingTimeout = 7200
	defaultMinFreeGiB     = 10
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			TempDir:   defaultTempDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		HandBrake: HandBrake{
			Preset: defaultPreset,
		},
		Imaging: Imaging{
			TimeoutSeconds: defaultImagingTimeout,
			MinFreeGiB:     defaultMinFreeGiB,
		},
		Disc: Disc{
			Device:  defaultDiscDevice,
			Monitor: true,
		},
		Workflow: Workflow{
			StartEnabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
