// Package preflight verifies the runtime environment before the daemon
// starts taking work: directory access, free scratch space, and the
// external binaries the stages shell out to.
package preflight

import (
	"context"

	"platter/internal/config"
	"platter/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFreeSpace("Temp free space", cfg.Paths.TempDir, cfg.Imaging.MinFreeGiB),
	}

	for _, status := range CheckSystemDeps(ctx, cfg) {
		results = append(results, Result{
			Name:   status.Name,
			Passed: status.Available || status.Optional,
			Detail: status.Detail,
		})
	}
	return results
}

// Passed reports whether every result in the set passed.
func Passed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

// CheckSystemDeps evaluates the external binaries for the given config.
// Both the daemon and the CLI preflight command use this to avoid
// duplicating the requirements list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return deps.Check(
		deps.Binary{Name: "HandBrakeCLI", Command: cfg.HandBrakeBinary()},
		deps.Binary{Name: "ddrescue", Command: cfg.ImagingBinary()},
	)
}
