package gate

import "errors"

var (
	// ErrClosed is returned when sending through a closed gate.
	ErrClosed = errors.New("gate: closed")

	// ErrNoDestination is returned when sending to a nil address.
	ErrNoDestination = errors.New("gate: no destination")
)

// Reasons a received packet is dropped, as reported to metrics.
const (
	dropMalformed   = "malformed"
	dropQueueFull   = "queue_full"
	dropRejected    = "rejected"
	dropInvalid     = "invalid"
	dropUnsolicited = "unsolicited"
)
