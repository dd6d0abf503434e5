package mtpgate

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/mtpgate/config"
	"github.com/opd-ai/mtpgate/gate"
	"github.com/opd-ai/mtpgate/hub"
	"github.com/opd-ai/mtpgate/metrics"
	"github.com/opd-ai/mtpgate/mtp"
	"github.com/opd-ai/mtpgate/peer"
	"github.com/opd-ai/mtpgate/reassembly"
	"github.com/opd-ai/mtpgate/stun"
)

// Node is a running MTP endpoint: one hub, one reassembly engine, a flood
// guard and an AutoGate, built from Options.
type Node struct {
	options *config.Options
	hub     gate.Hub
	engine  *reassembly.Engine
	guard   *peer.FloodGuard
	gate    *gate.AutoGate
	metrics *metrics.Collector

	mu         sync.RWMutex
	publicAddr *net.UDPAddr
}

// guarded puts the flood guard in front of the application's own
// admission check.
type guarded struct {
	peer.Handler
	guard *peer.FloodGuard
}

func (g *guarded) CheckFragment(fragment *mtp.Packet, source, destination net.Addr) bool {
	return g.guard.CheckFragment(fragment, source, destination) &&
		g.Handler.CheckFragment(fragment, source, destination)
}

// New binds a UDP hub on options.ListenAddr and builds a stopped node.
// A nil handler accepts everything.
func New(options *config.Options, handler peer.Handler) (*Node, error) {
	if options == nil {
		options = config.NewOptions()
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}
	h, err := hub.NewUDPHub(options.ListenAddr, options.QueueSize)
	if err != nil {
		return nil, err
	}
	return NewWithHub(options, h, handler)
}

// NewWithHub builds a stopped node over an existing hub, which the node
// then owns.
func NewWithHub(options *config.Options, h gate.Hub, handler peer.Handler) (*Node, error) {
	if options == nil {
		options = config.NewOptions()
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		handler = &peer.Callbacks{}
	}

	collector := metrics.New(options.MetricsNamespace)
	wrapped := &guarded{Handler: handler}
	engine := reassembly.NewEngine(reassembly.Config{
		Shards:   options.Shards,
		Expires:  options.Expires,
		Recycler: wrapped,
		Metrics:  collector,
	})
	wrapped.guard = peer.NewFloodGuard(engine, options.MaxIncomplete, collector)

	n := &Node{
		options: options,
		hub:     h,
		engine:  engine,
		guard:   wrapped.guard,
		metrics: collector,
		gate: gate.NewAutoGate(h, engine, wrapped, gate.Config{
			MaxBody:       options.MaxBody,
			SendTimeout:   options.SendTimeout,
			QueueSize:     options.QueueSize,
			PorterIdle:    options.Expires,
			Idle:          options.Idle,
			SweepInterval: options.SweepInterval,
			Metrics:       collector,
		}),
	}

	logrus.WithFields(logrus.Fields{
		"function":       "NewWithHub",
		"local_addr":     h.LocalAddr().String(),
		"max_body":       options.MaxBody,
		"max_incomplete": options.MaxIncomplete,
	}).Info("Node created")
	return n, nil
}

// Start runs the gate worker, restarting it if it already runs.
func (n *Node) Start() {
	n.gate.Start()
}

// Stop halts the gate worker. The hub stays open.
func (n *Node) Stop() {
	n.gate.Stop()
}

// IsRunning reports whether the gate worker runs.
func (n *Node) IsRunning() bool {
	return n.gate.State() == gate.Running
}

// SendCommand sends a single-packet command to destination.
func (n *Node) SendCommand(body []byte, destination net.Addr) (mtp.TransactionID, error) {
	return n.gate.SendCommand(body, destination)
}

// SendMessage sends body to destination, fragmenting it as needed.
func (n *Node) SendMessage(body []byte, destination net.Addr) (mtp.TransactionID, error) {
	return n.gate.SendMessage(body, destination)
}

// Disconnect forgets a remote peer and recycles its incomplete messages.
func (n *Node) Disconnect(remote net.Addr) int {
	return n.gate.Disconnect(remote)
}

// LocalAddr returns the bound address.
func (n *Node) LocalAddr() net.Addr {
	return n.hub.LocalAddr()
}

// Discover queries the configured STUN servers and records the public
// address. The public port is the one the STUN server saw, which matches
// the node's port only behind endpoint-independent NATs.
func (n *Node) Discover(ctx context.Context) (*net.UDPAddr, error) {
	client := stun.NewClient(n.options.STUNServers...)
	addr, err := client.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover public address: %w", err)
	}

	n.mu.Lock()
	n.publicAddr = addr
	n.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":    "Node.Discover",
		"public_addr": addr.String(),
	}).Info("Public address discovered")
	return addr, nil
}

// PublicAddr returns the last discovered public address, if any.
func (n *Node) PublicAddr() (*net.UDPAddr, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.publicAddr, n.publicAddr != nil
}

// Metrics returns the node's collectors for registration.
func (n *Node) Metrics() *metrics.Collector {
	return n.metrics
}

// Engine returns the reassembly engine.
func (n *Node) Engine() *reassembly.Engine {
	return n.engine
}

// Guard returns the flood guard in front of reassembly.
func (n *Node) Guard() *peer.FloodGuard {
	return n.guard
}

// Close stops the worker, discards incomplete inbound messages and closes
// the hub.
func (n *Node) Close() error {
	n.gate.Stop()

	if discarded := n.engine.DiscardAll(); discarded > 0 {
		logrus.WithFields(logrus.Fields{
			"function":  "Node.Close",
			"discarded": discarded,
		}).Info("Discarded incomplete messages")
	}
	err := n.gate.Close()

	logrus.WithFields(logrus.Fields{
		"function":   "Node.Close",
		"local_addr": n.hub.LocalAddr().String(),
	}).Info("Node closed")
	return err
}
