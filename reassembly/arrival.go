package reassembly

import (
	"net"
	"time"

	"github.com/opd-ai/mtpgate/mtp"
)

// DefaultExpires is how long a record may stay idle before it is swept.
const DefaultExpires = 10 * time.Minute

// Arrival is an Assemble that expires when no fragment is accepted for its
// lifetime.
type Arrival struct {
	*Assemble
	lifetime time.Duration
	expires  time.Time
}

// NewArrival creates a record from its first fragment received at now.
func NewArrival(first *mtp.Packet, source, destination net.Addr, now time.Time, lifetime time.Duration) (*Arrival, error) {
	a, err := NewAssemble(first, source, destination)
	if err != nil {
		return nil, err
	}
	if lifetime <= 0 {
		lifetime = DefaultExpires
	}
	return &Arrival{
		Assemble: a,
		lifetime: lifetime,
		expires:  now.Add(lifetime),
	}, nil
}

// Insert stores f and, when accepted, moves the expiry to now + lifetime.
func (a *Arrival) Insert(f *mtp.Packet, source, destination net.Addr, now time.Time) (bool, error) {
	ok, err := a.Assemble.Insert(f, source, destination)
	if ok {
		a.expires = now.Add(a.lifetime)
	}
	return ok, err
}

// IsExpired reports whether now is past the expiry.
func (a *Arrival) IsExpired(now time.Time) bool {
	return now.After(a.expires)
}

// Expires returns the current expiry.
func (a *Arrival) Expires() time.Time {
	return a.expires
}
