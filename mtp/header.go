package mtp

import (
	"errors"
	"fmt"

	"github.com/opd-ai/mtpgate/tlv"
)

// HeaderSize is the fixed size of an encoded header.
const HeaderSize = TransactionIDSize + 1 + 2 + 2 + 4

const (
	offsetType   = TransactionIDSize
	offsetPages  = offsetType + 1
	offsetOffset = offsetPages + 2
	offsetLength = offsetOffset + 2
)

var (
	// ErrMalformed is returned for truncated or inconsistent packets.
	ErrMalformed = errors.New("mtp: malformed packet")

	// ErrTooLarge is returned when a packet cannot be carried as requested.
	ErrTooLarge = errors.New("mtp: packet too large")
)

// Header describes one packet.
type Header struct {
	SN         TransactionID
	Type       DataType
	Pages      uint16
	Offset     uint16
	BodyLength uint32
}

// IsFragment reports whether the header belongs to a MessageFragment.
func (h Header) IsFragment() bool {
	return h.Type == MessageFragment
}

// Bytes encodes the header.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	h.put(b)
	return b
}

func (h Header) put(b []byte) {
	copy(b[:TransactionIDSize], h.SN[:])
	b[offsetType] = byte(h.Type)
	tlv.PutUint16(b[offsetPages:], h.Pages)
	tlv.PutUint16(b[offsetOffset:], h.Offset)
	tlv.PutUint32(b[offsetLength:], h.BodyLength)
}

// ParseHeader decodes the header at the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, header needs %d", ErrMalformed, len(b), HeaderSize)
	}

	sn, _ := TransactionIDFromBytes(b)
	pages, _ := tlv.ReadUint16(b[offsetPages:])
	offset, _ := tlv.ReadUint16(b[offsetOffset:])
	length, _ := tlv.ReadUint32(b[offsetLength:])

	h := Header{
		SN:         sn,
		Type:       DataType(b[offsetType]),
		Pages:      pages,
		Offset:     offset,
		BodyLength: length,
	}
	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// Validate checks the page invariants of the header.
// Responses to fragments echo the fragment's pages and offset, so they follow
// the fragment rule.
func (h Header) Validate() error {
	if !h.Type.Valid() {
		return fmt.Errorf("%w: unknown data type %s", ErrMalformed, h.Type)
	}
	if h.Pages == 0 {
		return fmt.Errorf("%w: zero page count", ErrMalformed)
	}
	if h.Offset >= h.Pages {
		return fmt.Errorf("%w: offset %d outside %d pages", ErrMalformed, h.Offset, h.Pages)
	}
	if !h.IsFragment() && h.Type != MessageResponse && h.Pages != 1 {
		return fmt.Errorf("%w: %s with %d pages", ErrMalformed, h.Type, h.Pages)
	}
	return nil
}
