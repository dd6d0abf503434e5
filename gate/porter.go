package gate

import (
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/mtpgate/mtp"
)

// Porter handles the traffic of one remote address.
type Porter struct {
	remote net.Addr
	gate   *BaseGate

	mu       sync.Mutex
	queue    [][]byte
	lastSeen time.Time

	// serializes dispatch so a peer's packets are handled in arrival order
	procMu sync.Mutex
}

func newPorter(g *BaseGate, remote net.Addr, now time.Time) *Porter {
	return &Porter{
		remote:   remote,
		gate:     g,
		lastSeen: now,
	}
}

// Remote returns the peer address.
func (p *Porter) Remote() net.Addr {
	return p.remote
}

// LastSeen returns when the porter last received a datagram.
func (p *Porter) LastSeen() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

func (p *Porter) push(data []byte, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) >= p.gate.cfg.QueueSize {
		return false
	}
	p.queue = append(p.queue, data)
	p.lastSeen = now
	return true
}

func (p *Porter) pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Porter) take() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	q := p.queue
	p.queue = nil
	return q
}

// Process decodes and dispatches every queued datagram. It reports whether
// there was anything to do.
func (p *Porter) Process() bool {
	p.procMu.Lock()
	defer p.procMu.Unlock()

	queue := p.take()
	for _, data := range queue {
		p.handle(data)
	}
	return len(queue) > 0
}

func (p *Porter) handle(data []byte) {
	pkt, err := mtp.Parse(data)
	if err != nil {
		p.gate.metrics.PacketDropped(dropMalformed)
		logrus.WithFields(logrus.Fields{
			"function": "Porter.handle",
			"remote":   p.remote.String(),
			"size":     len(data),
			"error":    err.Error(),
		}).Warn("Dropping malformed packet")
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "Porter.handle",
		"remote":   p.remote.String(),
		"packet":   pkt.String(),
	}).Debug("Received packet")

	switch pkt.Type {
	case mtp.Command:
		p.handleCommand(pkt)
	case mtp.Message:
		p.handleMessage(pkt)
	case mtp.MessageFragment:
		p.handleFragment(pkt)
	case mtp.CommandResponse, mtp.MessageResponse:
		p.handleResponse(pkt)
	case mtp.Error:
		p.gate.handler.OnReceivedError(pkt.Body, p.remote, p.gate.LocalAddr())
	}
}

func (p *Porter) handleCommand(pkt *mtp.Packet) {
	if !p.gate.handler.OnReceivedCommand(pkt.Body, p.remote, p.gate.LocalAddr()) {
		p.refuse(pkt, "command refused")
		return
	}
	p.respond(pkt)
}

func (p *Porter) handleMessage(pkt *mtp.Packet) {
	if !p.gate.handler.OnReceivedMessage(pkt.Body, p.remote, p.gate.LocalAddr()) {
		p.refuse(pkt, "message refused")
		return
	}
	p.respond(pkt)
}

func (p *Porter) handleFragment(pkt *mtp.Packet) {
	local := p.gate.LocalAddr()
	if !p.gate.handler.CheckFragment(pkt, p.remote, local) {
		p.gate.metrics.PacketDropped(dropRejected)
		logrus.WithFields(logrus.Fields{
			"function": "Porter.handleFragment",
			"remote":   p.remote.String(),
			"sn":       pkt.SN.String(),
			"offset":   pkt.Offset,
		}).Debug("Fragment not admitted")
		return
	}

	msg, _, err := p.gate.engine.Insert(pkt, p.remote, local)
	if err != nil {
		p.gate.metrics.PacketDropped(dropInvalid)
		return
	}

	// Stored pages and duplicates are both acknowledged, since the
	// sender cannot tell which of its responses were lost. The page that
	// completes the message is acknowledged only once the handler takes it.
	if msg == nil {
		p.respond(pkt)
		return
	}
	if !p.gate.handler.OnReceivedMessage(msg.Body, p.remote, local) {
		p.refuse(msg, "message refused")
		return
	}
	p.respond(pkt)
}

func (p *Porter) handleResponse(pkt *mtp.Packet) {
	dep, matched := p.gate.departures.ack(pkt, p.remote)
	if !matched {
		p.gate.metrics.PacketDropped(dropUnsolicited)
		logrus.WithFields(logrus.Fields{
			"function": "Porter.handleResponse",
			"remote":   p.remote.String(),
			"packet":   pkt.String(),
		}).Debug("Ignoring response without a matching transaction")
		return
	}
	if dep != nil {
		p.gate.succeed(dep)
	}
}

func (p *Porter) respond(pkt *mtp.Packet) {
	resp, ok := mtp.NewResponse(pkt)
	if !ok {
		return
	}
	if err := p.gate.transmit(resp, p.remote); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Porter.respond",
			"remote":   p.remote.String(),
			"sn":       pkt.SN.String(),
			"error":    err.Error(),
		}).Error("Failed to send response")
	}
}

func (p *Porter) refuse(pkt *mtp.Packet, reason string) {
	logrus.WithFields(logrus.Fields{
		"function": "Porter.refuse",
		"remote":   p.remote.String(),
		"sn":       pkt.SN.String(),
		"type":     pkt.Type.String(),
		"reason":   reason,
	}).Warn("Handler refused packet")

	if err := p.gate.transmit(mtp.NewError(pkt.SN, []byte(reason)), p.remote); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Porter.refuse",
			"remote":   p.remote.String(),
			"error":    err.Error(),
		}).Error("Failed to send error")
	}
}
