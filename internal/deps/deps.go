// Package deps reports the availability of the external binaries the
// pipeline shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Binary names one external tool the pipeline needs on PATH.
type Binary struct {
	Name     string
	Command  string
	Optional bool
}

// Status is the probe result for one binary.
type Status struct {
	Binary
	Available bool
	Detail    string
}

// Probe resolves a single binary through PATH lookup.
func Probe(bin Binary) Status {
	status := Status{Binary: bin}
	status.Command = strings.TrimSpace(bin.Command)

	switch {
	case status.Command == "":
		status.Detail = "command not configured"
	default:
		if path, err := exec.LookPath(status.Command); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		} else {
			status.Available = true
			status.Detail = path
		}
	}
	return status
}

// Check probes each binary in order.
func Check(bins ...Binary) []Status {
	results := make([]Status, len(bins))
	for i, bin := range bins {
		results[i] = Probe(bin)
	}
	return results
}
