package pipeline

import (
	"context"
	"sync"
)

// Signal is a level-triggered wake event safe for concurrent set, clear,
// and wait. Set while already set is a no-op, as is clear while already
// clear. A waiter sees the signal as long as it stays set.
type Signal struct {
	mu  sync.Mutex
	set bool
	ch  chan struct{}
}

// NewSignal returns a cleared signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Set marks the signal and releases all current waiters.
func (s *Signal) Set() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		return
	}
	s.set = true
	close(s.ch)
}

// Clear resets the signal so subsequent waits block again.
func (s *Signal) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return
	}
	s.set = false
	s.ch = make(chan struct{})
}

// IsSet reports whether the signal is currently set.
func (s *Signal) IsSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// Wait blocks until the signal is set or the context ends.
func (s *Signal) Wait(ctx context.Context) error {
	s.mu.Lock()
	if s.set {
		s.mu.Unlock()
		return nil
	}
	ch := s.ch
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}
