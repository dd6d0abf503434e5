package gate

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/mtpgate/limits"
	"github.com/opd-ai/mtpgate/metrics"
	"github.com/opd-ai/mtpgate/mtp"
	"github.com/opd-ai/mtpgate/peer"
	"github.com/opd-ai/mtpgate/reassembly"
)

// BaseGate connects a Hub to a Handler. It does no work on its own; call
// Process and Sweep, or use AutoGate.
type BaseGate struct {
	hub     Hub
	engine  *reassembly.Engine
	handler peer.Handler
	cfg     Config
	clock   clock.Clock
	metrics *metrics.Collector

	departures *departures

	mu      sync.RWMutex
	porters map[string]*Porter
	closed  bool
}

// NewBaseGate creates a gate. The engine may be shared with other gates.
func NewBaseGate(hub Hub, engine *reassembly.Engine, handler peer.Handler, cfg Config) *BaseGate {
	cfg = cfg.withDefaults()
	return &BaseGate{
		hub:        hub,
		engine:     engine,
		handler:    handler,
		cfg:        cfg,
		clock:      cfg.Clock,
		metrics:    cfg.Metrics,
		departures: newDepartures(),
		porters:    make(map[string]*Porter),
	}
}

// LocalAddr returns the hub address.
func (g *BaseGate) LocalAddr() net.Addr {
	return g.hub.LocalAddr()
}

// Engine returns the reassembly engine the gate feeds.
func (g *BaseGate) Engine() *reassembly.Engine {
	return g.engine
}

// SendCommand sends body as a single Command packet and returns its
// transaction id. The outcome is reported to the handler.
func (g *BaseGate) SendCommand(body []byte, destination net.Addr) (mtp.TransactionID, error) {
	return g.sendTransaction(mtp.NewCommand(mtp.NewTransactionID(), body), destination)
}

// SendMessage sends body as a Message, split into fragments when it does not
// fit one packet, and returns its transaction id.
func (g *BaseGate) SendMessage(body []byte, destination net.Addr) (mtp.TransactionID, error) {
	if err := limits.ValidateMessage(body); err != nil {
		return mtp.TransactionID{}, err
	}
	return g.sendTransaction(mtp.NewMessage(mtp.NewTransactionID(), body), destination)
}

func (g *BaseGate) sendTransaction(pkt *mtp.Packet, destination net.Addr) (mtp.TransactionID, error) {
	if destination == nil {
		return pkt.SN, ErrNoDestination
	}
	if g.isClosed() {
		return pkt.SN, ErrClosed
	}

	packets, err := mtp.Split(pkt, g.cfg.MaxBody)
	if err != nil {
		return pkt.SN, err
	}

	dep := newDeparture(pkt.SN, pkt.Type, destination, len(packets), g.clock.Now().Add(g.cfg.SendTimeout))
	g.departures.add(dep)

	for _, p := range packets {
		if err := g.transmit(p, destination); err != nil {
			g.departures.remove(pkt.SN, destination)
			return pkt.SN, fmt.Errorf("send %s page %d/%d: %w", pkt.SN, p.Offset, p.Pages, err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":    "BaseGate.sendTransaction",
		"sn":          pkt.SN.String(),
		"type":        pkt.Type.String(),
		"destination": destination.String(),
		"size":        len(pkt.Body),
		"pages":       len(packets),
	}).Debug("Transaction sent")
	return pkt.SN, nil
}

func (g *BaseGate) transmit(pkt *mtp.Packet, destination net.Addr) error {
	data, err := pkt.Bytes()
	if err != nil {
		return err
	}
	if _, err := g.hub.Send(data, destination); err != nil {
		return err
	}
	g.metrics.DatagramSent()
	return nil
}

// Process pumps the hub, hands received datagrams to their porters and lets
// every porter with queued input dispatch it. It reports whether any work
// was done.
func (g *BaseGate) Process() bool {
	if g.isClosed() {
		return false
	}
	worked := g.hub.Process()

	now := g.clock.Now()
	for i := 0; i < receiveBatch; i++ {
		data, source, ok := g.hub.Receive()
		if !ok {
			break
		}
		worked = true
		g.metrics.DatagramReceived()

		if !g.porterFor(source, now).push(data, now) {
			g.metrics.PacketDropped(dropQueueFull)
			logrus.WithFields(logrus.Fields{
				"function": "BaseGate.Process",
				"remote":   source.String(),
			}).Warn("Porter queue full, dropping datagram")
		}
	}

	for _, p := range g.busyPorters() {
		if p.Process() {
			worked = true
		}
	}
	return worked
}

func (g *BaseGate) porterFor(remote net.Addr, now time.Time) *Porter {
	key := addrKey(remote)

	g.mu.RLock()
	p, ok := g.porters[key]
	g.mu.RUnlock()
	if ok {
		return p
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok = g.porters[key]; ok {
		return p
	}
	p = newPorter(g, remote, now)
	g.porters[key] = p
	g.metrics.PortersDelta(1)

	logrus.WithFields(logrus.Fields{
		"function": "BaseGate.porterFor",
		"remote":   remote.String(),
	}).Debug("New porter")
	return p
}

func (g *BaseGate) busyPorters() []*Porter {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var busy []*Porter
	for _, p := range g.porters {
		if p.pending() > 0 {
			busy = append(busy, p)
		}
	}
	return busy
}

// Porter returns the porter for remote, if the gate has heard from it.
func (g *BaseGate) Porter(remote net.Addr) (*Porter, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.porters[addrKey(remote)]
	return p, ok
}

// Porters returns the number of known remotes.
func (g *BaseGate) Porters() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.porters)
}

// Pending returns the number of outgoing transactions awaiting acknowledgement.
func (g *BaseGate) Pending() int {
	return g.departures.len()
}

// Sweep expires reassembly records, times out unacknowledged transactions
// and forgets porters silent for longer than PorterIdle. It returns the
// number of items evicted.
func (g *BaseGate) Sweep(now time.Time) int {
	n := g.engine.Sweep(now)

	for _, dep := range g.departures.expire(now) {
		g.timeout(dep)
		n++
	}

	for _, p := range g.idlePorters(now) {
		g.Disconnect(p.remote)
		n++
	}
	return n
}

func (g *BaseGate) idlePorters(now time.Time) []*Porter {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var idle []*Porter
	for _, p := range g.porters {
		if p.pending() == 0 && now.Sub(p.LastSeen()) > g.cfg.PorterIdle {
			idle = append(idle, p)
		}
	}
	return idle
}

// Disconnect forgets remote and discards its incomplete inbound messages,
// which are handed to the handler for recycling. It returns the number of
// discarded records.
func (g *BaseGate) Disconnect(remote net.Addr) int {
	g.mu.Lock()
	_, ok := g.porters[addrKey(remote)]
	delete(g.porters, addrKey(remote))
	g.mu.Unlock()

	if ok {
		g.metrics.PortersDelta(-1)
		logrus.WithFields(logrus.Fields{
			"function": "BaseGate.Disconnect",
			"remote":   remote.String(),
		}).Info("Porter removed")
	}
	return g.engine.Discard(remote, g.LocalAddr())
}

func (g *BaseGate) succeed(dep *departure) {
	g.metrics.Send(dep.dataType.String(), metrics.SendSuccess)
	logrus.WithFields(logrus.Fields{
		"function":    "BaseGate.succeed",
		"sn":          dep.sn.String(),
		"destination": dep.destination.String(),
		"type":        dep.dataType.String(),
	}).Debug("Transaction acknowledged")

	local := g.LocalAddr()
	switch dep.dataType {
	case mtp.Command:
		g.handler.OnSendCommandSuccess(dep.sn, dep.destination, local)
	case mtp.Message:
		g.handler.OnSendMessageSuccess(dep.sn, dep.destination, local)
	}
}

func (g *BaseGate) timeout(dep *departure) {
	g.metrics.Send(dep.dataType.String(), metrics.SendTimeout)
	logrus.WithFields(logrus.Fields{
		"function":    "BaseGate.timeout",
		"sn":          dep.sn.String(),
		"destination": dep.destination.String(),
		"type":        dep.dataType.String(),
		"unacked":     dep.remaining,
	}).Info("Transaction timed out")

	local := g.LocalAddr()
	switch dep.dataType {
	case mtp.Command:
		g.handler.OnSendCommandTimeout(dep.sn, dep.destination, local)
	case mtp.Message:
		g.handler.OnSendMessageTimeout(dep.sn, dep.destination, local)
	}
}

func (g *BaseGate) isClosed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.closed
}

// Close closes the hub. Pending transactions are neither reported nor kept.
func (g *BaseGate) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	n := len(g.porters)
	g.porters = make(map[string]*Porter)
	g.mu.Unlock()

	g.metrics.PortersDelta(-n)
	return g.hub.Close()
}
