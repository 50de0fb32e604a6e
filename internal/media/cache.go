package media

import (
	"context"
	"errors"
	"sync"
)

// ScanFunc produces a descriptor for a source path. Implementations are
// expected to be expensive (they shell out to the scanner), which is why
// results are cached.
type ScanFunc func(ctx context.Context, sourcePath string) (*Descriptor, error)

// Scanner memoizes scan results per source path. It is safe for use from
// multiple goroutines; a cached descriptor is returned without re-running
// the scan. Failed scans are not cached.
type Scanner struct {
	scan ScanFunc

	mu    sync.Mutex
	cache map[string]*Descriptor
}

// NewScanner wraps a scan function with a result cache.
func NewScanner(scan ScanFunc) *Scanner {
	return &Scanner{scan: scan, cache: make(map[string]*Descriptor)}
}

// Resolve returns the descriptor for sourcePath, scanning on first access.
func (s *Scanner) Resolve(ctx context.Context, sourcePath string) (*Descriptor, error) {
	if s == nil || s.scan == nil {
		return nil, errors.New("scanner not configured")
	}
	s.mu.Lock()
	if desc, ok := s.cache[sourcePath]; ok {
		s.mu.Unlock()
		return desc, nil
	}
	s.mu.Unlock()

	desc, err := s.scan(ctx, sourcePath)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[sourcePath] = desc
	s.mu.Unlock()
	return desc, nil
}

// Invalidate drops the cached descriptor for a path, if any.
func (s *Scanner) Invalidate(sourcePath string) {
	s.mu.Lock()
	delete(s.cache, sourcePath)
	s.mu.Unlock()
}
