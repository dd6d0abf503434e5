package hub

import (
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// MemoryAddr names a MemoryHub.
type MemoryAddr string

func (a MemoryAddr) Network() string { return "memory" }
func (a MemoryAddr) String() string  { return string(a) }

// DropFunc decides whether a datagram in flight is lost.
type DropFunc func(data []byte, source, destination net.Addr) bool

// MemoryNetwork delivers datagrams between MemoryHubs in the same process.
type MemoryNetwork struct {
	mu   sync.RWMutex
	hubs map[string]*MemoryHub
	drop DropFunc
}

// NewMemoryNetwork creates an empty network.
func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{hubs: make(map[string]*MemoryHub)}
}

// Listen attaches a hub at addr.
func (n *MemoryNetwork) Listen(addr string, queueSize int) (*MemoryHub, error) {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, taken := n.hubs[addr]; taken {
		return nil, ErrAddressInUse
	}
	h := &MemoryHub{
		network:   n,
		addr:      MemoryAddr(addr),
		queueSize: queueSize,
	}
	n.hubs[addr] = h
	return h, nil
}

// SetDrop installs a loss filter. nil delivers everything.
func (n *MemoryNetwork) SetDrop(drop DropFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.drop = drop
}

func (n *MemoryNetwork) deliver(data []byte, source, destination net.Addr) error {
	n.mu.RLock()
	h, ok := n.hubs[destination.String()]
	drop := n.drop
	n.mu.RUnlock()

	if !ok || destination.Network() != "memory" {
		return ErrUnreachable
	}
	if drop != nil && drop(data, source, destination) {
		logrus.WithFields(logrus.Fields{
			"function":    "MemoryNetwork.deliver",
			"source":      source.String(),
			"destination": destination.String(),
			"size":        len(data),
		}).Debug("Datagram lost in transit")
		return nil
	}

	copied := make([]byte, len(data))
	copy(copied, data)
	h.push(datagram{data: copied, source: source})
	return nil
}

// Close closes every hub on the network.
func (n *MemoryNetwork) Close() error {
	n.mu.RLock()
	hubs := make([]*MemoryHub, 0, len(n.hubs))
	for _, h := range n.hubs {
		hubs = append(hubs, h)
	}
	n.mu.RUnlock()

	var err error
	for _, h := range hubs {
		err = multierr.Append(err, h.Close())
	}
	return err
}

// MemoryHub is a Hub attached to a MemoryNetwork.
type MemoryHub struct {
	network   *MemoryNetwork
	addr      MemoryAddr
	queueSize int

	mu      sync.Mutex
	inbound []datagram
	closed  bool
}

func (h *MemoryHub) push(d datagram) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if len(h.inbound) >= h.queueSize {
		logrus.WithFields(logrus.Fields{
			"function": "MemoryHub.push",
			"hub":      h.addr.String(),
			"source":   d.source.String(),
		}).Warn("Inbound queue full, dropping datagram")
		return
	}
	h.inbound = append(h.inbound, d)
}

// Send delivers a copy of data to destination.
func (h *MemoryHub) Send(data []byte, destination net.Addr) (int, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	if err := h.network.deliver(data, h.addr, destination); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Receive pops the oldest queued datagram.
func (h *MemoryHub) Receive() ([]byte, net.Addr, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.inbound) == 0 {
		return nil, nil, false
	}
	d := h.inbound[0]
	h.inbound[0] = datagram{}
	h.inbound = h.inbound[1:]
	return d.data, d.source, true
}

// Process reports whether datagrams are waiting.
func (h *MemoryHub) Process() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.inbound) > 0
}

// Pending returns the number of queued datagrams.
func (h *MemoryHub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.inbound)
}

func (h *MemoryHub) LocalAddr() net.Addr {
	return h.addr
}

// Close detaches the hub from its network and discards queued datagrams.
func (h *MemoryHub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.inbound = nil
	h.mu.Unlock()

	h.network.mu.Lock()
	if h.network.hubs[string(h.addr)] == h {
		delete(h.network.hubs, string(h.addr))
	}
	h.network.mu.Unlock()
	return nil
}
