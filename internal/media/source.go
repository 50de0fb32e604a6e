package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"platter/internal/textutil"
)

// SourceType distinguishes the two supported source locators.
type SourceType string

const (
	SourceFile  SourceType = "file"
	SourceDrive SourceType = "drive"
)

// Source locates the media bytes for a work item. A drive source carries the
// device path plus the mounted volume label; a file source carries only the
// path. Sources round-trip through the queue store as JSON.
type Source struct {
	Type   SourceType `json:"type"`
	Path   string     `json:"path"`
	Volume string     `json:"volume,omitempty"`
	Name   string     `json:"name,omitempty"`
}

// NewFileSource builds a source for an on-disk image or video file.
func NewFileSource(path string) Source {
	return Source{Type: SourceFile, Path: path}
}

// NewDriveSource builds a source for media sitting in an optical drive.
func NewDriveSource(device, volume string) Source {
	return Source{Type: SourceDrive, Path: device, Volume: volume}
}

// Key returns the stage-independent media identity used for duplicate
// detection. It stays stable when a drive source is later replaced by the
// ripped image file, because the image file is named after the volume.
func (s Source) Key() string {
	if s.Type == SourceDrive && strings.TrimSpace(s.Volume) != "" {
		return strings.TrimSpace(s.Volume)
	}
	return filepath.Base(strings.TrimSpace(s.Path))
}

// DisplayName returns the human-readable name shown on progress displays.
func (s Source) DisplayName() string {
	if strings.TrimSpace(s.Name) != "" {
		return s.Name
	}
	key := s.Key()
	ext := filepath.Ext(key)
	return textutil.NormalizeTitle(strings.TrimSuffix(key, ext))
}

// Validate checks the source is well formed.
func (s Source) Validate() error {
	switch s.Type {
	case SourceFile, SourceDrive:
	default:
		return fmt.Errorf("unknown source type %q", s.Type)
	}
	if strings.TrimSpace(s.Path) == "" {
		return errors.New("source path required")
	}
	return nil
}

// MarshalSource serializes a source for storage.
func MarshalSource(s Source) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal source: %w", err)
	}
	return string(data), nil
}

// UnmarshalSource restores a source from its stored form.
func UnmarshalSource(raw string) (Source, error) {
	var s Source
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Source{}, fmt.Errorf("unmarshal source: %w", err)
	}
	return s, nil
}
