package gate

import (
	"net"
	"sync"
	"time"

	"github.com/opd-ai/mtpgate/mtp"
)

// departure tracks the acknowledgements of one outgoing transaction.
type departure struct {
	sn          mtp.TransactionID
	dataType    mtp.DataType
	destination net.Addr
	acked       []bool
	remaining   int
	expires     time.Time
}

func newDeparture(sn mtp.TransactionID, t mtp.DataType, destination net.Addr, pages int, expires time.Time) *departure {
	return &departure{
		sn:          sn,
		dataType:    t,
		destination: destination,
		acked:       make([]bool, pages),
		remaining:   pages,
		expires:     expires,
	}
}

type departureKey struct {
	sn          mtp.TransactionID
	destination string
}

func keyOf(sn mtp.TransactionID, destination net.Addr) departureKey {
	return departureKey{sn: sn, destination: addrKey(destination)}
}

type departures struct {
	mu      sync.Mutex
	pending map[departureKey]*departure
}

func newDepartures() *departures {
	return &departures{pending: make(map[departureKey]*departure)}
}

func (d *departures) add(dep *departure) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[keyOf(dep.sn, dep.destination)] = dep
}

func (d *departures) remove(sn mtp.TransactionID, destination net.Addr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, keyOf(sn, destination))
}

// ack applies a response from source. It returns the departure when the
// response completed it, and whether the response matched anything.
func (d *departures) ack(resp *mtp.Packet, source net.Addr) (done *departure, matched bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := keyOf(resp.SN, source)
	dep, ok := d.pending[key]
	if !ok {
		return nil, false
	}
	want, _ := dep.dataType.ResponseType()
	if resp.Type != want || int(resp.Pages) != len(dep.acked) {
		return nil, false
	}
	if !dep.acked[resp.Offset] {
		dep.acked[resp.Offset] = true
		dep.remaining--
	}
	if dep.remaining > 0 {
		return nil, true
	}
	delete(d.pending, key)
	return dep, true
}

// expire removes and returns the departures whose deadline passed at now.
func (d *departures) expire(now time.Time) []*departure {
	d.mu.Lock()
	defer d.mu.Unlock()

	var expired []*departure
	for key, dep := range d.pending {
		if now.After(dep.expires) {
			delete(d.pending, key)
			expired = append(expired, dep)
		}
	}
	return expired
}

func (d *departures) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func addrKey(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.Network() + "://" + a.String()
}
