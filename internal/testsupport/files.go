package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// StubBinary drops an executable shell script with the given name into a
// temp directory and prepends that directory to PATH for the test.
func StubBinary(t testing.TB, name, script string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return path
}
