// Package imaging extracts optical media into on-disk image files using an
// external recovery-capable copier (ddrescue by default).
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"platter/internal/media"
)

// Imager performs the optical-media-to-file extraction for the rip stage.
type Imager interface {
	SaveToFile(ctx context.Context, source media.Source, imagePath string, progress func(percent int)) error
}

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

// Client drives the external imaging tool.
type Client struct {
	binary  string
	timeout time.Duration
	exec    Executor
}

// New constructs an imaging client.
func New(binary string, timeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("imaging binary required")
	}
	client := &Client{
		binary:  binary,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SaveToFile copies the drive source into imagePath. The tool rewrites its
// status line with carriage returns, so percentages are parsed from
// CR-delimited segments as they stream past.
func (c *Client) SaveToFile(ctx context.Context, source media.Source, imagePath string, progress func(percent int)) error {
	if source.Type != media.SourceDrive {
		return fmt.Errorf("imaging requires a drive source, got %s", source.Type)
	}
	if err := os.MkdirAll(filepath.Dir(imagePath), 0o755); err != nil {
		return fmt.Errorf("create image directory: %w", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{"-b", "2048", "-v", source.Path, imagePath, imagePath + ".map"}
	relay := newPercentRelay(progress)
	if err := c.exec.Run(runCtx, c.binary, args, relay); err != nil {
		_ = os.Remove(imagePath)
		_ = os.Remove(imagePath + ".map")
		return fmt.Errorf("image %s: %w", source.Path, err)
	}
	_ = os.Remove(imagePath + ".map")

	if info, err := os.Stat(imagePath); err != nil || info.Size() == 0 {
		return fmt.Errorf("imaging produced no output at %s", imagePath)
	}
	return nil
}

var percentPattern = regexp.MustCompile(` (\d{1,3})%`)

// percentRelay picks integer percentages out of CR-delimited status
// segments. Segments without one are dropped.
type percentRelay struct {
	emit func(percent int)
	buf  bytes.Buffer
}

func newPercentRelay(emit func(percent int)) *percentRelay {
	return &percentRelay{emit: emit}
}

func (r *percentRelay) Write(p []byte) (int, error) {
	r.buf.Write(p)
	for {
		data := r.buf.Bytes()
		boundary := bytes.IndexAny(data, "\r\n")
		if boundary < 0 {
			return len(p), nil
		}
		segment := string(data[:boundary])
		r.buf.Next(boundary + 1)
		r.relaySegment(segment)
	}
}

func (r *percentRelay) relaySegment(segment string) {
	if r.emit == nil {
		return
	}
	match := percentPattern.FindStringSubmatch(segment)
	if match == nil {
		return
	}
	percent, err := strconv.Atoi(match[1])
	if err != nil || percent > 100 {
		return
	}
	r.emit(percent)
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
