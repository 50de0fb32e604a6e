package queue

import (
	"time"

	"platter/internal/media"
)

// Status is the position of a work item in the pipeline. Values are ordered:
// a status strictly below StatusFinished means the item is incomplete, and
// workers only ever move an item forward along this ordering or sideways
// into StatusError.
type Status int

const (
	StatusError         Status = -1
	StatusStopped       Status = 0
	StatusPendingRip    Status = 1
	StatusRipping       Status = 2
	StatusPendingEncode Status = 3
	StatusEncoding      Status = 4
	StatusFinished      Status = 5
)

var allStatuses = []Status{
	StatusError,
	StatusStopped,
	StatusPendingRip,
	StatusRipping,
	StatusPendingEncode,
	StatusEncoding,
	StatusFinished,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// Valid reports whether s is a member of the closed enumeration.
func (s Status) Valid() bool {
	return s >= StatusError && s <= StatusFinished
}

// IsActive reports whether the status represents an in-flight external
// operation. Items left in an active status after an unclean shutdown need
// a reset before any worker will claim them again.
func (s Status) IsActive() bool {
	return s == StatusRipping || s == StatusEncoding
}

// PendingStatus returns the pending status an interrupted active status
// falls back to, and false for statuses that have no such fallback.
func (s Status) PendingStatus() (Status, bool) {
	switch s {
	case StatusRipping:
		return StatusPendingRip, true
	case StatusEncoding:
		return StatusPendingEncode, true
	default:
		return 0, false
	}
}

func (s Status) String() string {
	switch s {
	case StatusError:
		return "error"
	case StatusStopped:
		return "stopped"
	case StatusPendingRip:
		return "pending-rip"
	case StatusRipping:
		return "ripping"
	case StatusPendingEncode:
		return "pending-encode"
	case StatusEncoding:
		return "encoding"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Item is one unit of durable work: a single media source on its way
// through rip and encode. Exactly one item exists per media key; terminal
// items are kept for history rather than deleted.
type Item struct {
	ID              int64
	MediaKey        string
	MediaName       string
	Source          media.Source
	OutputPath      string
	TitleIndex      int
	Status          Status
	ErrorMessage    string
	CreatedAt       time.Time
	StatusChangedAt time.Time
}

// Incomplete reports whether the item still has pipeline work ahead of it
// (including items parked in Error or Stopped).
func (i *Item) Incomplete() bool {
	return i.Status < StatusFinished
}
