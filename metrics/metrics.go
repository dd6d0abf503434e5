// Package metrics exposes Prometheus collectors for the gate runtime and the
// reassembly engine. A nil *Collector is valid and records nothing, so
// components can be built without metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// Fragment outcomes.
const (
	FragmentAccepted  = "accepted"
	FragmentDuplicate = "duplicate"
	FragmentRejected  = "rejected"
	FragmentInvalid   = "invalid"
)

// Send outcomes.
const (
	SendSuccess = "success"
	SendTimeout = "timeout"
)

// Collector groups the counters of one node.
type Collector struct {
	datagramsReceived prometheus.Counter
	datagramsSent     prometheus.Counter
	packetsDropped    *prometheus.CounterVec
	fragments         *prometheus.CounterVec
	completed         prometheus.Counter
	expired           prometheus.Counter
	pending           prometheus.Gauge
	sends             *prometheus.CounterVec
	porters           prometheus.Gauge
}

// New creates the collectors under namespace. They are not registered.
func New(namespace string) *Collector {
	return &Collector{
		datagramsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "datagrams_received_total",
			Help:      "Datagrams pulled from the hub.",
		}),
		datagramsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "datagrams_sent_total",
			Help:      "Datagrams handed to the hub.",
		}),
		packetsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "packets_dropped_total",
			Help:      "Inbound packets dropped before delivery.",
		}, []string{"reason"}),
		fragments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reassembly",
			Name:      "fragments_total",
			Help:      "Fragments offered to the reassembly engine by outcome.",
		}, []string{"result"}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reassembly",
			Name:      "messages_completed_total",
			Help:      "Messages reassembled from fragments.",
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reassembly",
			Name:      "records_expired_total",
			Help:      "Incomplete records evicted by the sweep.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reassembly",
			Name:      "records_pending",
			Help:      "Live incomplete reassembly records.",
		}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "sends_total",
			Help:      "Outgoing transactions by data type and outcome.",
		}, []string{"type", "outcome"}),
		porters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "porters",
			Help:      "Live per-peer porters.",
		}),
	}
}

// Register registers every collector with reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	var err error
	for _, col := range c.collectors() {
		err = multierr.Append(err, reg.Register(col))
	}
	return err
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.datagramsReceived, c.datagramsSent, c.packetsDropped, c.fragments,
		c.completed, c.expired, c.pending, c.sends, c.porters,
	}
}

func (c *Collector) DatagramReceived() {
	if c != nil {
		c.datagramsReceived.Inc()
	}
}

func (c *Collector) DatagramSent() {
	if c != nil {
		c.datagramsSent.Inc()
	}
}

// PacketDropped counts an inbound packet discarded for reason.
func (c *Collector) PacketDropped(reason string) {
	if c != nil {
		c.packetsDropped.WithLabelValues(reason).Inc()
	}
}

// Fragment counts a fragment with one of the Fragment* results.
func (c *Collector) Fragment(result string) {
	if c != nil {
		c.fragments.WithLabelValues(result).Inc()
	}
}

func (c *Collector) MessageCompleted() {
	if c != nil {
		c.completed.Inc()
	}
}

// RecordsExpired counts n swept records.
func (c *Collector) RecordsExpired(n int) {
	if c != nil && n > 0 {
		c.expired.Add(float64(n))
	}
}

// PendingDelta moves the pending record gauge by delta.
func (c *Collector) PendingDelta(delta int) {
	if c != nil && delta != 0 {
		c.pending.Add(float64(delta))
	}
}

// Send counts the outcome of an outgoing transaction.
func (c *Collector) Send(dataType, outcome string) {
	if c != nil {
		c.sends.WithLabelValues(dataType, outcome).Inc()
	}
}

// PortersDelta moves the porter gauge by delta.
func (c *Collector) PortersDelta(delta int) {
	if c != nil && delta != 0 {
		c.porters.Add(float64(delta))
	}
}
