package peer

import (
	"net"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/mtpgate/metrics"
	"github.com/opd-ai/mtpgate/mtp"
)

const (
	// DefaultMaxIncomplete is the default number of incomplete transactions
	// one source may hold open.
	DefaultMaxIncomplete = 32

	// DefaultTrackedSources bounds how many sources have rejection counters.
	DefaultTrackedSources = 1024
)

// Tracker reports the reassembly state FloodGuard decides on.
// *reassembly.Engine implements it.
type Tracker interface {
	Has(sn mtp.TransactionID, source, destination net.Addr) bool
	Pending(source net.Addr) int
}

// FloodGuard admits fragments of transactions already being assembled and
// refuses to open a new transaction for a source that already has
// MaxIncomplete of them open.
type FloodGuard struct {
	tracker       Tracker
	maxIncomplete int
	metrics       *metrics.Collector
	rejected      *lru.Cache[string, *atomic.Uint64]
}

// NewFloodGuard creates a guard over tracker. A non-positive maxIncomplete
// selects DefaultMaxIncomplete.
func NewFloodGuard(tracker Tracker, maxIncomplete int, m *metrics.Collector) *FloodGuard {
	if maxIncomplete <= 0 {
		maxIncomplete = DefaultMaxIncomplete
	}
	cache, err := lru.New[string, *atomic.Uint64](DefaultTrackedSources)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &FloodGuard{
		tracker:       tracker,
		maxIncomplete: maxIncomplete,
		metrics:       m,
		rejected:      cache,
	}
}

// MaxIncomplete returns the per-source limit.
func (g *FloodGuard) MaxIncomplete() int {
	return g.maxIncomplete
}

// CheckFragment implements the admission half of Handler.
func (g *FloodGuard) CheckFragment(fragment *mtp.Packet, source, destination net.Addr) bool {
	if g.tracker.Has(fragment.SN, source, destination) {
		return true
	}
	pending := g.tracker.Pending(source)
	if pending < g.maxIncomplete {
		return true
	}

	key := source.String()
	counter, ok := g.rejected.Get(key)
	if !ok {
		counter = new(atomic.Uint64)
		if prev, found, _ := g.rejected.PeekOrAdd(key, counter); found {
			counter = prev
		}
	}
	n := counter.Add(1)
	g.metrics.Fragment(metrics.FragmentRejected)

	logrus.WithFields(logrus.Fields{
		"function":       "FloodGuard.CheckFragment",
		"source":         key,
		"sn":             fragment.SN.String(),
		"pending":        pending,
		"max_incomplete": g.maxIncomplete,
		"rejections":     n,
	}).Warn("Rejecting fragment for new transaction, source has too many incomplete messages")
	return false
}

// Rejections returns how many fragments from source were refused. Counters
// of the least recently rejected sources are forgotten first.
func (g *FloodGuard) Rejections(source net.Addr) uint64 {
	counter, ok := g.rejected.Peek(source.String())
	if !ok {
		return 0
	}
	return counter.Load()
}
