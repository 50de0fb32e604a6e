// Package display routes per-item status and progress updates to registered
// observer handles, keyed by media name.
package display

import (
	"log/slog"
	"sync"

	"platter/internal/logging"
	"platter/internal/queue"
)

// Handle receives updates for a single work item. Implementations must be
// safe for calls from worker goroutines.
type Handle interface {
	SetStatus(status queue.Status)
	SetProgress(percent int)
}

// Factory builds a handle for a media name. Factories run only on the hub's
// owner goroutine, so presentation state they touch needs no extra locking.
type Factory func(name string) Handle

type ensureRequest struct {
	name  string
	reply chan Handle
}

// Hub owns the media-name to handle registry. Handle creation is serialized
// through a single owner goroutine; workers request a handle over a channel
// and receive it in the reply rather than constructing presentation state
// themselves. Lookups for routine updates go through the registry directly.
type Hub struct {
	factory  Factory
	requests chan ensureRequest
	done     chan struct{}
	closed   sync.Once

	mu      sync.RWMutex
	handles map[string]Handle
}

// NewHub starts a hub with the given factory. A nil factory registers
// nothing, turning every update into a skip.
func NewHub(factory Factory) *Hub {
	hub := &Hub{
		factory:  factory,
		requests: make(chan ensureRequest),
		done:     make(chan struct{}),
		handles:  make(map[string]Handle),
	}
	go hub.run()
	return hub
}

// Close stops the owner goroutine. Ensure calls after Close return nil.
func (h *Hub) Close() {
	h.closed.Do(func() {
		close(h.done)
	})
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return
		case req := <-h.requests:
			req.reply <- h.ensureLocked(req.name)
		}
	}
}

func (h *Hub) ensureLocked(name string) Handle {
	h.mu.RLock()
	handle, ok := h.handles[name]
	h.mu.RUnlock()
	if ok {
		return handle
	}
	if h.factory == nil {
		return nil
	}
	handle = h.factory(name)
	if handle == nil {
		return nil
	}
	h.mu.Lock()
	h.handles[name] = handle
	h.mu.Unlock()
	return handle
}

// Ensure returns the handle registered under name, creating one on the
// owner goroutine if none exists yet.
func (h *Hub) Ensure(name string) Handle {
	req := ensureRequest{name: name, reply: make(chan Handle, 1)}
	select {
	case h.requests <- req:
		return <-req.reply
	case <-h.done:
		return nil
	}
}

// Lookup returns the handle registered under name without creating one.
func (h *Hub) Lookup(name string) (Handle, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	handle, ok := h.handles[name]
	return handle, ok
}

// SetStatus forwards a status change to the handle for name. Updates for
// unregistered names are skipped.
func (h *Hub) SetStatus(name string, status queue.Status) {
	if handle, ok := h.Lookup(name); ok {
		handle.SetStatus(status)
	}
}

// SetProgress forwards a progress tick to the handle for name. Updates for
// unregistered names are skipped.
func (h *Hub) SetProgress(name string, percent int) {
	if handle, ok := h.Lookup(name); ok {
		handle.SetProgress(percent)
	}
}

// Remove drops the registration for name.
func (h *Hub) Remove(name string) {
	h.mu.Lock()
	delete(h.handles, name)
	h.mu.Unlock()
}

type multiHandle []Handle

func (m multiHandle) SetStatus(status queue.Status) {
	for _, h := range m {
		h.SetStatus(status)
	}
}

func (m multiHandle) SetProgress(percent int) {
	for _, h := range m {
		h.SetProgress(percent)
	}
}

// Multi fans updates out to every provided handle. Nil handles are skipped.
func Multi(handles ...Handle) Handle {
	out := make(multiHandle, 0, len(handles))
	for _, h := range handles {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

// LogHandle is the daemon's default observer: it writes status changes and
// coarse progress milestones to the structured log.
type LogHandle struct {
	name   string
	logger *slog.Logger

	mu       sync.Mutex
	lastTick int
}

// NewLogHandle builds a log-backed handle for a media name.
func NewLogHandle(name string, logger *slog.Logger) *LogHandle {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogHandle{name: name, logger: logger, lastTick: -1}
}

func (l *LogHandle) SetStatus(status queue.Status) {
	l.logger.Info("status changed",
		logging.String(logging.FieldMediaKey, l.name),
		logging.String("status", status.String()),
	)
}

// SetProgress logs every tenth percent so a multi-hour encode produces a
// bounded number of log lines.
func (l *LogHandle) SetProgress(percent int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tick := percent / 10
	if tick == l.lastTick {
		return
	}
	l.lastTick = tick
	l.logger.Info("progress",
		logging.String(logging.FieldMediaKey, l.name),
		logging.Int("percent", percent),
	)
}
