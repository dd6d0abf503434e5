package mtp

import (
	"fmt"
	"sort"

	"github.com/opd-ai/mtpgate/limits"
)

// Split returns the packets needed to carry p when each packet body holds at
// most maxBody bytes. A Message that fits is returned unchanged; a larger one
// becomes MessageFragments sharing its transaction id. Every other data type
// must fit in a single packet. Fragment bodies are views over p.Body.
func Split(p *Packet, maxBody int) ([]*Packet, error) {
	if maxBody <= 0 {
		return nil, fmt.Errorf("%w: max body %d", ErrTooLarge, maxBody)
	}
	if len(p.Body) <= maxBody {
		return []*Packet{p}, nil
	}
	if p.Type != Message {
		return nil, fmt.Errorf("%w: %s of %d bytes exceeds %d", ErrTooLarge, p.Type, len(p.Body), maxBody)
	}
	if err := limits.ValidatePages(len(p.Body), maxBody); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTooLarge, err)
	}

	pages := limits.PagesFor(len(p.Body), maxBody)
	fragments := make([]*Packet, 0, pages)
	for i := 0; i < pages; i++ {
		start := i * maxBody
		end := start + maxBody
		if end > len(p.Body) {
			end = len(p.Body)
		}
		fragments = append(fragments, NewPacket(MessageFragment, p.SN, uint16(pages), uint16(i), p.Body[start:end:end]))
	}
	return fragments, nil
}

// Join concatenates the bodies of a complete fragment set in offset order and
// returns the resulting Message. The set must hold exactly one fragment for
// every offset in 0..pages-1.
func Join(fragments []*Packet) (*Packet, error) {
	if len(fragments) == 0 {
		return nil, fmt.Errorf("%w: no fragments", ErrMalformed)
	}

	sorted := make([]*Packet, len(fragments))
	copy(sorted, fragments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	first := sorted[0]
	if int(first.Pages) != len(sorted) {
		return nil, fmt.Errorf("%w: %d fragments for %d pages", ErrMalformed, len(sorted), first.Pages)
	}

	size := 0
	for i, f := range sorted {
		if !f.IsFragment() || f.SN != first.SN || f.Pages != first.Pages || int(f.Offset) != i {
			return nil, fmt.Errorf("%w: fragment %s does not belong at page %d", ErrMalformed, f, i)
		}
		size += len(f.Body)
	}

	body := make([]byte, 0, size)
	for _, f := range sorted {
		body = append(body, f.Body...)
	}
	return NewMessage(first.SN, body), nil
}
