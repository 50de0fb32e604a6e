package testsupport

import (
	"context"
	"testing"

	"platter/internal/config"
	"platter/internal/media"
	"platter/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewFileItem inserts a pending-encode work item backed by a file source.
func NewFileItem(t testing.TB, store *queue.Store, sourcePath, outputPath string) *queue.Item {
	t.Helper()

	item, err := store.Insert(context.Background(), media.NewFileSource(sourcePath), outputPath, 1, queue.StatusPendingEncode)
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return item
}

// NewDriveItem inserts a pending-rip work item backed by an optical drive source.
func NewDriveItem(t testing.TB, store *queue.Store, device, volume, outputPath string) *queue.Item {
	t.Helper()

	item, err := store.Insert(context.Background(), media.NewDriveSource(device, volume), outputPath, 1, queue.StatusPendingRip)
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return item
}
