// Package services defines the shared error taxonomy for stage execution.
// Stage code wraps failures with one of the sentinel markers below so the
// pipeline can distinguish a recoverable external-tool failure (item goes to
// the Error status, worker keeps running) from a store fault (iteration
// aborts and is logged).
package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExternalTool marks a failure of an invoked external process. This
	// is the only failure class a stage worker recovers from locally.
	ErrExternalTool = errors.New("external tool error")
	// ErrStore marks a queue-store fault surfaced mid-iteration.
	ErrStore = errors.New("store unavailable")
	// ErrValidation marks bad input caught before invoking anything.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable configuration discovered at run time.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsExternalToolError reports whether err is a recoverable external failure.
func IsExternalToolError(err error) bool {
	return errors.Is(err, ErrExternalTool)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
