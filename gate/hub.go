package gate

import "net"

// Hub is the datagram socket a gate pumps. Implementations must not block
// in Receive or Process and must allow Send from any goroutine.
type Hub interface {
	// Send transmits one datagram.
	Send(data []byte, destination net.Addr) (int, error)
	// Receive returns the next datagram if one is waiting. The gate keeps
	// views into data, so the hub must not reuse it.
	Receive() (data []byte, source net.Addr, ok bool)
	// Process services pending I/O and reports whether any was found.
	Process() bool
	LocalAddr() net.Addr
	Close() error
}
