package disc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const labelTimeout = 10 * time.Second

// LabelFunc resolves the volume label for a device.
type LabelFunc func(ctx context.Context, device string) (string, error)

// CommandRunner abstracts command output capture for testability.
type CommandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execCommandRunner struct{}

func (execCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.Output()
}

// ReadLabel queries lsblk for the device's volume label. An unreadable or
// unlabeled disc yields "Unknown Disc" rather than an error so it can still
// be queued under a placeholder name.
func ReadLabel(ctx context.Context, device string) (string, error) {
	return readLabel(ctx, execCommandRunner{}, device)
}

func readLabel(ctx context.Context, runner CommandRunner, device string) (string, error) {
	labelCtx, cancel := context.WithTimeout(ctx, labelTimeout)
	defer cancel()

	output, err := runner.Output(labelCtx, "lsblk", "-n", "-o", "LABEL", device)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fallbackLabel(""), nil
		}
		return "", fmt.Errorf("lsblk %s: %w", device, err)
	}

	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		if label := strings.TrimSpace(scanner.Text()); label != "" {
			return label, nil
		}
	}
	return fallbackLabel(""), nil
}

func fallbackLabel(label string) string {
	if trimmed := strings.TrimSpace(label); trimmed != "" {
		return trimmed
	}
	return "Unknown Disc"
}
