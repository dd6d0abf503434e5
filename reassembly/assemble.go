package reassembly

import (
	"fmt"
	"net"

	"github.com/opd-ai/mtpgate/limits"
	"github.com/opd-ai/mtpgate/mtp"
)

// Assemble accumulates the fragments of one transaction.
type Assemble struct {
	sn          mtp.TransactionID
	pages       uint16
	source      net.Addr
	destination net.Addr
	fragments   []*mtp.Packet
	size        int
}

// NewAssemble creates a record bound to the first fragment's transaction and
// the given addresses, and stores that fragment.
func NewAssemble(first *mtp.Packet, source, destination net.Addr) (*Assemble, error) {
	if !first.IsFragment() {
		return nil, fmt.Errorf("%w: %s", ErrNotFragment, first)
	}
	a := &Assemble{
		sn:          first.SN,
		pages:       first.Pages,
		source:      source,
		destination: destination,
		fragments:   make([]*mtp.Packet, 0, initialCapacity(first.Pages)),
	}
	if _, err := a.Insert(first, source, destination); err != nil {
		return nil, err
	}
	return a, nil
}

func initialCapacity(pages uint16) int {
	if pages > 16 {
		return 16
	}
	return int(pages)
}

// Insert stores a fragment in offset order. It returns false without error
// when a fragment with the same offset is already stored.
func (a *Assemble) Insert(f *mtp.Packet, source, destination net.Addr) (bool, error) {
	if err := a.check(f, source, destination); err != nil {
		return false, err
	}

	// Fragments mostly arrive in order, so search from the tail.
	i := len(a.fragments) - 1
	for ; i >= 0; i-- {
		offset := a.fragments[i].Offset
		if offset == f.Offset {
			return false, nil
		}
		if offset < f.Offset {
			break
		}
	}

	if a.size+len(f.Body) > limits.MaxMessage {
		return false, fmt.Errorf("%w: %d bytes buffered for %s", ErrTooLarge, a.size+len(f.Body), a.sn)
	}

	a.fragments = append(a.fragments, nil)
	copy(a.fragments[i+2:], a.fragments[i+1:])
	a.fragments[i+1] = f
	a.size += len(f.Body)
	return true, nil
}

func (a *Assemble) check(f *mtp.Packet, source, destination net.Addr) error {
	if !f.IsFragment() {
		return fmt.Errorf("%w: %s", ErrNotFragment, f)
	}
	if !SameAddr(source, a.source) || !SameAddr(destination, a.destination) {
		return fmt.Errorf("%w: record %s bound to %v -> %v, fragment from %v -> %v",
			ErrAddressMismatch, a.sn, a.source, a.destination, source, destination)
	}
	if f.SN != a.sn {
		return fmt.Errorf("%w: record %s, fragment %s", ErrTransactionMismatch, a.sn, f.SN)
	}
	if f.Pages != a.pages {
		return fmt.Errorf("%w: record %s has %d pages, fragment says %d", ErrPagesMismatch, a.sn, a.pages, f.Pages)
	}
	if f.Offset >= a.pages {
		return fmt.Errorf("%w: offset %d of %d pages", ErrOffsetOutOfRange, f.Offset, a.pages)
	}
	return nil
}

// IsCompleted reports whether every page has arrived.
func (a *Assemble) IsCompleted() bool {
	return len(a.fragments) == int(a.pages)
}

// Pack joins a completed record into one Message.
func (a *Assemble) Pack() (*mtp.Packet, error) {
	return mtp.Join(a.fragments)
}

// Fragments returns the stored fragments in offset order.
func (a *Assemble) Fragments() []*mtp.Packet {
	out := make([]*mtp.Packet, len(a.fragments))
	copy(out, a.fragments)
	return out
}

func (a *Assemble) SN() mtp.TransactionID { return a.sn }
func (a *Assemble) Pages() uint16         { return a.pages }
func (a *Assemble) Count() int            { return len(a.fragments) }
func (a *Assemble) Size() int             { return a.size }
func (a *Assemble) Source() net.Addr      { return a.source }
func (a *Assemble) Destination() net.Addr { return a.destination }

// SameAddr compares two addresses by network and string form.
func SameAddr(a, b net.Addr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Network() == b.Network() && a.String() == b.String()
}

// addrKey renders an address for use as a map key.
func addrKey(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.Network() + "://" + a.String()
}
