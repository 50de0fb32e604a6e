package deps_test

import (
	"strings"
	"testing"

	"platter/internal/deps"
	"platter/internal/testsupport"
)

func TestCheckReportsAvailability(t *testing.T) {
	testsupport.StubBinary(t, "fake-ripper", "exit 0")

	results := deps.Check(
		deps.Binary{Name: "Ripper", Command: "fake-ripper"},
		deps.Binary{Name: "Missing", Command: "definitely-not-installed-tool"},
		deps.Binary{Name: "Unconfigured", Command: "  "},
	)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Available || !strings.HasSuffix(results[0].Detail, "fake-ripper") {
		t.Fatalf("stubbed binary misreported: %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("missing binary misreported: %#v", results[1])
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unconfigured command misreported: %#v", results[2])
	}
}
