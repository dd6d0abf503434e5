package hub

import "errors"

var (
	// ErrClosed is returned when sending through a closed hub.
	ErrClosed = errors.New("hub: closed")

	// ErrUnreachable is returned by MemoryHub.Send when no hub listens on the destination.
	ErrUnreachable = errors.New("hub: destination unreachable")

	// ErrAddressInUse is returned by MemoryNetwork.Listen for a taken address.
	ErrAddressInUse = errors.New("hub: address already in use")
)

// DefaultQueueSize is the number of received datagrams a hub buffers.
const DefaultQueueSize = 256
