package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"platter/internal/testsupport"
)

// writeTestConfig points every path at the test's temp dir and binds the API
// to a port nothing listens on so client calls fail fast.
func writeTestConfig(t *testing.T, base string) string {
	t.Helper()

	content := fmt.Sprintf(`[paths]
temp_dir = %q
output_dir = %q
log_dir = %q
api_bind = "127.0.0.1:1"

[imaging]
min_free_gib = 0

[disc]
monitor = false
`,
		filepath.Join(base, "tmp"),
		filepath.Join(base, "out"),
		filepath.Join(base, "logs"),
	)

	configPath := filepath.Join(base, "config.toml")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return configPath
}

func runCommand(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestQueueStatusOnEmptyQueue(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())

	output, err := runCommand(t, configPath, "queue", "status")
	if err != nil {
		t.Fatalf("queue status failed: %v", err)
	}
	if !strings.Contains(output, "Queue is empty") {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestAddFallsBackToStoreWhenDaemonIsDown(t *testing.T) {
	base := t.TempDir()
	configPath := writeTestConfig(t, base)

	imagePath := filepath.Join(base, "movie.iso")
	if err := os.WriteFile(imagePath, []byte("iso"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	output, err := runCommand(t, configPath, "add", imagePath)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if !strings.Contains(output, "Queued item") {
		t.Fatalf("unexpected output: %q", output)
	}

	output, err = runCommand(t, configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list failed: %v", err)
	}
	if !strings.Contains(output, "movie") || !strings.Contains(output, "pending-encode") {
		t.Fatalf("item missing from list: %q", output)
	}

	// A second add of the same file is reported, not duplicated.
	output, err = runCommand(t, configPath, "add", imagePath)
	if err != nil {
		t.Fatalf("repeat add failed: %v", err)
	}
	if !strings.Contains(output, "Already queued") {
		t.Fatalf("unexpected repeat output: %q", output)
	}
}

func TestAddDeviceRequiresVolume(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())

	if _, err := runCommand(t, configPath, "add", "--device", "/dev/sr0"); err == nil {
		t.Fatal("expected error without --volume")
	}
}

func TestConfigInitWritesSampleOnce(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "config.toml")

	output, err := runCommand(t, filepath.Join(base, "unused.toml"), "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(output, target) {
		t.Fatalf("unexpected output: %q", output)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, err := runCommand(t, filepath.Join(base, "unused.toml"), "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestConfigPresetsListsBuiltins(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())

	output, err := runCommand(t, configPath, "config", "presets")
	if err != nil {
		t.Fatalf("config presets failed: %v", err)
	}
	for _, name := range []string{"default", "archive", "small"} {
		if !strings.Contains(output, name) {
			t.Fatalf("preset %q missing from output: %q", name, output)
		}
	}
}

func TestPreflightPassesWithStubbedTools(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())
	testsupport.StubBinary(t, "HandBrakeCLI", "exit 0")
	testsupport.StubBinary(t, "ddrescue", "exit 0")

	output, err := runCommand(t, configPath, "preflight")
	if err != nil {
		t.Fatalf("preflight failed: %v\n%s", err, output)
	}
	if strings.Contains(output, "[ERROR]") {
		t.Fatalf("unexpected failing check: %q", output)
	}
}

func TestStatusReportsUnreachableDaemon(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())

	output, err := runCommand(t, configPath, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(output, "Daemon") {
		t.Fatalf("unexpected output: %q", output)
	}
}
