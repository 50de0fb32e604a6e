// Package api exposes the daemon's queue state over HTTP: JSON views of the
// work items plus a server-sent-event stream of live progress.
package api

import (
	"sync"
	"time"

	"platter/internal/queue"
)

// EventType distinguishes stream payloads.
type EventType string

const (
	EventStatus   EventType = "status"
	EventProgress EventType = "progress"
)

// Event is one progress-stream payload.
type Event struct {
	Type    EventType `json:"type"`
	Media   string    `json:"media"`
	Status  string    `json:"status,omitempty"`
	Percent int       `json:"percent,omitempty"`
	At      time.Time `json:"at"`
}

// Broker fans display events out to SSE subscribers. Slow subscribers drop
// events rather than blocking the worker that produced them.
type Broker struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewBroker builds an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new event channel.
func (b *Broker) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (b *Broker) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers the event to every subscriber that has buffer room.
func (b *Broker) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Handle is a display handle that feeds the broker. One exists per media
// name; the pipeline's display hub creates them lazily.
type Handle struct {
	media  string
	broker *Broker
}

// NewHandle builds a broker-backed display handle.
func NewHandle(media string, broker *Broker) *Handle {
	return &Handle{media: media, broker: broker}
}

func (h *Handle) SetStatus(status queue.Status) {
	h.broker.Publish(Event{Type: EventStatus, Media: h.media, Status: status.String()})
}

func (h *Handle) SetProgress(percent int) {
	h.broker.Publish(Event{Type: EventProgress, Media: h.media, Percent: percent})
}
