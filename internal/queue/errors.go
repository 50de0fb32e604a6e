package queue

import "errors"

// ErrDuplicateKey indicates an insert for a media identity that already has
// a work item. Enqueue treats this as a silent no-op.
var ErrDuplicateKey = errors.New("duplicate media key")

// ErrInvalidStatus indicates a status value outside the closed enumeration
// was passed to the store. Rejected at the boundary before touching SQLite.
var ErrInvalidStatus = errors.New("invalid status value")

// ErrStoreUnavailable wraps any other store-layer fault. The store never
// retries on its own; callers log and abort the current iteration.
var ErrStoreUnavailable = errors.New("store unavailable")
