package handbrake

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var builtinPresets []byte

// Preset captures the tunable encode parameters applied on top of the
// scanned track layout.
type Preset struct {
	VideoEncoder  string   `yaml:"video_encoder"`
	Quality       int      `yaml:"quality"`
	AudioEncoder  string   `yaml:"audio_encoder"`
	AudioBitrate  int      `yaml:"audio_bitrate"`
	Mixdown       string   `yaml:"mixdown"`
	AudioFallback string   `yaml:"audio_fallback"`
	ExtraArgs     []string `yaml:"extra_args"`
}

// LoadPresets returns the built-in presets, overlaid with entries from the
// user presets file when one is configured. User entries with a name that
// matches a built-in replace it.
func LoadPresets(userPath string) (map[string]Preset, error) {
	presets := make(map[string]Preset)
	if err := yaml.Unmarshal(builtinPresets, &presets); err != nil {
		return nil, fmt.Errorf("parse builtin presets: %w", err)
	}

	userPath = strings.TrimSpace(userPath)
	if userPath == "" {
		return presets, nil
	}
	data, err := os.ReadFile(userPath)
	if err != nil {
		if os.IsNotExist(err) {
			return presets, nil
		}
		return nil, fmt.Errorf("read presets file: %w", err)
	}
	user := make(map[string]Preset)
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("parse presets file %s: %w", userPath, err)
	}
	for name, preset := range user {
		presets[name] = preset
	}
	return presets, nil
}

// ResolvePreset looks a preset up by name, falling back to "default" for an
// empty name.
func ResolvePreset(presets map[string]Preset, name string) (Preset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "default"
	}
	preset, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q", name)
	}
	return preset, nil
}
