package handbrake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"platter/internal/media"
)

// Executor abstracts command execution for testability. Combined stdout and
// stderr are streamed into output as they arrive.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, output io.Writer) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps HandBrakeCLI invocations.
type Client struct {
	binary  string
	presets map[string]Preset
	exec    Executor
}

// New constructs a HandBrake client. presetsPath may be empty to use only
// the built-in presets.
func New(binary, presetsPath string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("handbrake binary required")
	}
	presets, err := LoadPresets(presetsPath)
	if err != nil {
		return nil, err
	}
	client := &Client{
		binary:  binary,
		presets: presets,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Scan runs a full title scan against the source and parses the result.
func (c *Client) Scan(ctx context.Context, sourcePath string) (*media.Descriptor, error) {
	var buf bytes.Buffer
	if err := c.exec.Run(ctx, c.binary, BuildScanCommand(sourcePath), &buf); err != nil {
		return nil, fmt.Errorf("handbrake scan: %w", err)
	}
	descriptor, err := ParseScan(buf.String())
	if err != nil {
		return nil, fmt.Errorf("handbrake scan %s: %w", sourcePath, err)
	}
	return descriptor, nil
}

// Encode transcodes one title of the input into outputPath, reporting
// percent-complete through progress as the tool emits it.
func (c *Client) Encode(ctx context.Context, presetName string, descriptor *media.Descriptor, inputPath, outputPath string, titleIndex int, progress func(percent int)) error {
	preset, err := ResolvePreset(c.presets, presetName)
	if err != nil {
		return err
	}
	args, err := BuildCommand(preset, descriptor, inputPath, outputPath, titleIndex)
	if err != nil {
		return err
	}

	relay := NewRelay(progress)
	tail := newTailBuffer(64 * 1024)
	err = c.exec.Run(ctx, c.binary, args, io.MultiWriter(relay, tail))
	relay.Flush()
	if err != nil {
		return fmt.Errorf("handbrake encode: %w; output tail: %s", err, tail.Tail())
	}
	return nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, output io.Writer) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Stdout = output
	cmd.Stderr = output
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s: %w", binary, err)
	}
	return nil
}

// tailBuffer keeps the last max bytes written through it, enough output for
// error reporting without retaining a multi-hour transcode log.
type tailBuffer struct {
	max int
	buf bytes.Buffer
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf.Write(p)
	if extra := t.buf.Len() - t.max; extra > 0 {
		t.buf.Next(extra)
	}
	return len(p), nil
}

func (t *tailBuffer) Tail() string {
	return strings.TrimSpace(t.buf.String())
}
