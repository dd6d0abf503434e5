package reassembly

import (
	"net"
	"time"

	"github.com/opd-ai/mtpgate/mtp"
)

// Packer holds the live arrivals between one source and one destination.
// It is not safe for concurrent use.
type Packer struct {
	source      net.Addr
	destination net.Addr
	lifetime    time.Duration
	arrivals    map[mtp.TransactionID]*Arrival
}

// NewPacker creates an empty packer for the address pair.
func NewPacker(source, destination net.Addr, lifetime time.Duration) *Packer {
	if lifetime <= 0 {
		lifetime = DefaultExpires
	}
	return &Packer{
		source:      source,
		destination: destination,
		lifetime:    lifetime,
		arrivals:    make(map[mtp.TransactionID]*Arrival),
	}
}

// Insert offers pkt received at now.
//
// A packet that is not a fragment bypasses assembly and is returned as is.
// A fragment that completes its transaction returns the joined message and
// the record is removed. Otherwise the returned packet is nil and accepted
// reports whether the fragment was stored (false for duplicates).
func (p *Packer) Insert(pkt *mtp.Packet, now time.Time) (msg *mtp.Packet, accepted bool, err error) {
	if !pkt.IsFragment() {
		return pkt, true, nil
	}

	arrival, exists := p.arrivals[pkt.SN]
	if !exists {
		arrival, err = NewArrival(pkt, p.source, p.destination, now, p.lifetime)
		if err != nil {
			return nil, false, err
		}
		accepted = true
	} else {
		accepted, err = arrival.Insert(pkt, p.source, p.destination, now)
		if err != nil || !accepted {
			return nil, false, err
		}
	}

	if !arrival.IsCompleted() {
		p.arrivals[pkt.SN] = arrival
		return nil, true, nil
	}

	delete(p.arrivals, pkt.SN)
	msg, err = arrival.Pack()
	if err != nil {
		return nil, true, err
	}
	return msg, true, nil
}

// Purge removes and returns the arrivals expired at now.
func (p *Packer) Purge(now time.Time) []*Arrival {
	var expired []*Arrival
	for sn, arrival := range p.arrivals {
		if arrival.IsExpired(now) {
			delete(p.arrivals, sn)
			expired = append(expired, arrival)
		}
	}
	return expired
}

// Discard removes and returns every arrival.
func (p *Packer) Discard() []*Arrival {
	out := make([]*Arrival, 0, len(p.arrivals))
	for _, arrival := range p.arrivals {
		out = append(out, arrival)
	}
	clear(p.arrivals)
	return out
}

// Has reports whether a record for sn is live.
func (p *Packer) Has(sn mtp.TransactionID) bool {
	_, ok := p.arrivals[sn]
	return ok
}

// Len returns the number of live records.
func (p *Packer) Len() int {
	return len(p.arrivals)
}
