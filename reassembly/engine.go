package reassembly

import (
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/spaolacci/murmur3"

	"github.com/opd-ai/mtpgate/metrics"
	"github.com/opd-ai/mtpgate/mtp"
)

const (
	// DefaultShards is the default number of independently locked tables.
	DefaultShards = 16

	// DefaultCompletedCache bounds how many finished transactions are
	// remembered to reject late duplicates.
	DefaultCompletedCache = 4096
)

// Recycler receives the fragments of records evicted before completion.
// peer.Handler satisfies it.
type Recycler interface {
	RecycleFragments(fragments []*mtp.Packet, source, destination net.Addr)
}

// Config configures an Engine. Zero fields take defaults.
type Config struct {
	Shards         int
	Expires        time.Duration
	CompletedCache int
	Clock          clock.Clock
	Recycler       Recycler
	Metrics        *metrics.Collector
}

type pairKey struct {
	source      string
	destination string
}

type recordKey struct {
	sn   mtp.TransactionID
	pair pairKey
}

type shard struct {
	mu      sync.Mutex
	packers map[pairKey]*Packer
}

// Engine owns every live reassembly record, keyed by transaction id, source
// and destination. Records of different address pairs never mix even when
// their transaction ids collide. Engine is safe for concurrent use.
type Engine struct {
	shards    []*shard
	expires   time.Duration
	clock     clock.Clock
	recycler  Recycler
	metrics   *metrics.Collector
	completed *lru.Cache[recordKey, time.Time]

	pendingMu sync.Mutex
	pending   map[string]int
}

// NewEngine creates an engine.
func NewEngine(cfg Config) *Engine {
	if cfg.Shards <= 0 {
		cfg.Shards = DefaultShards
	}
	if cfg.Expires <= 0 {
		cfg.Expires = DefaultExpires
	}
	if cfg.CompletedCache <= 0 {
		cfg.CompletedCache = DefaultCompletedCache
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	// Only fails for a non-positive size.
	completed, _ := lru.New[recordKey, time.Time](cfg.CompletedCache)

	e := &Engine{
		shards:    make([]*shard, cfg.Shards),
		expires:   cfg.Expires,
		clock:     cfg.Clock,
		recycler:  cfg.Recycler,
		metrics:   cfg.Metrics,
		completed: completed,
		pending:   make(map[string]int),
	}
	for i := range e.shards {
		e.shards[i] = &shard{packers: make(map[pairKey]*Packer)}
	}
	return e
}

func newPairKey(source, destination net.Addr) pairKey {
	return pairKey{source: addrKey(source), destination: addrKey(destination)}
}

func (e *Engine) shardFor(k pairKey) *shard {
	h := murmur3.New32()
	h.Write([]byte(k.source))
	h.Write([]byte{0})
	h.Write([]byte(k.destination))
	return e.shards[h.Sum32()%uint32(len(e.shards))]
}

// Insert offers a packet received from source at destination.
//
// Non-fragments are returned immediately. A fragment that completes its
// transaction returns the joined message exactly once; later copies of any
// page of that transaction are rejected as duplicates for the expiry window.
// accepted is false for duplicates. Errors describe fragments that conflict
// with the record they target; they never leave partial state behind.
func (e *Engine) Insert(pkt *mtp.Packet, source, destination net.Addr) (msg *mtp.Packet, accepted bool, err error) {
	if !pkt.IsFragment() {
		return pkt, true, nil
	}

	pk := newPairKey(source, destination)
	rk := recordKey{sn: pkt.SN, pair: pk}
	sh := e.shardFor(pk)

	now := e.clock.Now()

	sh.mu.Lock()
	if e.recentlyCompleted(rk, now) {
		sh.mu.Unlock()
		e.metrics.Fragment(metrics.FragmentDuplicate)
		logDuplicate(pkt, source, "transaction already completed")
		return nil, false, nil
	}

	packer, ok := sh.packers[pk]
	if !ok {
		packer = NewPacker(source, destination, e.expires)
		sh.packers[pk] = packer
	}
	created := !packer.Has(pkt.SN)

	msg, accepted, err = packer.Insert(pkt, now)
	if msg != nil {
		e.completed.Add(rk, now.Add(e.expires))
	}
	if packer.Len() == 0 {
		delete(sh.packers, pk)
	}

	switch {
	case created && accepted && msg == nil:
		e.adjustPending(pk.source, 1)
	case !created && msg != nil:
		e.adjustPending(pk.source, -1)
	}
	sh.mu.Unlock()

	switch {
	case err != nil:
		e.metrics.Fragment(metrics.FragmentInvalid)
		logrus.WithFields(logrus.Fields{
			"function": "Engine.Insert",
			"sn":       pkt.SN.String(),
			"source":   addrKey(source),
			"error":    err.Error(),
		}).Warn("Rejected fragment")
	case !accepted:
		e.metrics.Fragment(metrics.FragmentDuplicate)
		logDuplicate(pkt, source, "offset already stored")
	default:
		e.metrics.Fragment(metrics.FragmentAccepted)
	}
	if msg != nil {
		e.metrics.MessageCompleted()
		logrus.WithFields(logrus.Fields{
			"function": "Engine.Insert",
			"sn":       msg.SN.String(),
			"source":   addrKey(source),
			"pages":    pkt.Pages,
			"size":     len(msg.Body),
		}).Debug("Message reassembled")
	}
	return msg, accepted, err
}

// recentlyCompleted reports whether rk completed within the expiry window
// of the engine clock. Stale entries are dropped on lookup.
func (e *Engine) recentlyCompleted(rk recordKey, now time.Time) bool {
	until, ok := e.completed.Get(rk)
	if !ok {
		return false
	}
	if now.After(until) {
		e.completed.Remove(rk)
		return false
	}
	return true
}

func logDuplicate(pkt *mtp.Packet, source net.Addr, reason string) {
	logrus.WithFields(logrus.Fields{
		"function": "Engine.Insert",
		"sn":       pkt.SN.String(),
		"offset":   pkt.Offset,
		"source":   addrKey(source),
		"reason":   reason,
	}).Debug("Duplicate fragment ignored")
}

// adjustPending must be called with the shard lock held.
func (e *Engine) adjustPending(source string, delta int) {
	e.pendingMu.Lock()
	n := e.pending[source] + delta
	if n <= 0 {
		delete(e.pending, source)
	} else {
		e.pending[source] = n
	}
	e.pendingMu.Unlock()
	e.metrics.PendingDelta(delta)
}

// Pending returns the number of incomplete records whose fragments came from
// source.
func (e *Engine) Pending(source net.Addr) int {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	return e.pending[addrKey(source)]
}

// Has reports whether an incomplete record exists for the triple.
func (e *Engine) Has(sn mtp.TransactionID, source, destination net.Addr) bool {
	pk := newPairKey(source, destination)
	sh := e.shardFor(pk)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	packer, ok := sh.packers[pk]
	return ok && packer.Has(sn)
}

// Len returns the number of incomplete records.
func (e *Engine) Len() int {
	n := 0
	for _, sh := range e.shards {
		sh.mu.Lock()
		for _, packer := range sh.packers {
			n += packer.Len()
		}
		sh.mu.Unlock()
	}
	return n
}

// Sweep evicts every record idle past its expiry at now and hands its
// fragments to the recycler. It returns the number of evicted records.
func (e *Engine) Sweep(now time.Time) int {
	var expired []*Arrival
	for _, sh := range e.shards {
		sh.mu.Lock()
		for pk, packer := range sh.packers {
			purged := packer.Purge(now)
			for range purged {
				e.adjustPending(pk.source, -1)
			}
			expired = append(expired, purged...)
			if packer.Len() == 0 {
				delete(sh.packers, pk)
			}
		}
		sh.mu.Unlock()
	}

	e.metrics.RecordsExpired(len(expired))
	e.recycle(expired, "expired")
	return len(expired)
}

// Discard evicts every record between source and destination, for example
// when the connection is torn down, and recycles their fragments.
func (e *Engine) Discard(source, destination net.Addr) int {
	pk := newPairKey(source, destination)
	sh := e.shardFor(pk)

	sh.mu.Lock()
	packer, ok := sh.packers[pk]
	var discarded []*Arrival
	if ok {
		discarded = packer.Discard()
		delete(sh.packers, pk)
		for range discarded {
			e.adjustPending(pk.source, -1)
		}
	}
	sh.mu.Unlock()

	e.recycle(discarded, "discarded")
	return len(discarded)
}

// DiscardAll evicts every record and recycles their fragments.
func (e *Engine) DiscardAll() int {
	var discarded []*Arrival
	for _, sh := range e.shards {
		sh.mu.Lock()
		for pk, packer := range sh.packers {
			arrivals := packer.Discard()
			for range arrivals {
				e.adjustPending(pk.source, -1)
			}
			discarded = append(discarded, arrivals...)
			delete(sh.packers, pk)
		}
		sh.mu.Unlock()
	}

	e.recycle(discarded, "discarded")
	return len(discarded)
}

// recycle runs outside every lock so recyclers may call back into the engine.
func (e *Engine) recycle(arrivals []*Arrival, reason string) {
	for _, a := range arrivals {
		logrus.WithFields(logrus.Fields{
			"function": "Engine.recycle",
			"sn":       a.SN().String(),
			"source":   addrKey(a.Source()),
			"received": a.Count(),
			"pages":    a.Pages(),
			"reason":   reason,
		}).Info("Evicting incomplete message")

		if e.recycler != nil {
			e.recycler.RecycleFragments(a.Fragments(), a.Source(), a.Destination())
		}
	}
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}
