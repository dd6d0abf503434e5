package mtp

import (
	"fmt"
	"math"
)

// Packet is a header plus body. Packets are treated as immutable values once
// constructed.
type Packet struct {
	Header
	Body []byte
}

// NewPacket builds a packet and fills in the body length.
func NewPacket(t DataType, sn TransactionID, pages, offset uint16, body []byte) *Packet {
	return &Packet{
		Header: Header{
			SN:         sn,
			Type:       t,
			Pages:      pages,
			Offset:     offset,
			BodyLength: uint32(len(body)),
		},
		Body: body,
	}
}

// NewMessage builds a single page Message.
func NewMessage(sn TransactionID, body []byte) *Packet {
	return NewPacket(Message, sn, 1, 0, body)
}

// NewCommand builds a Command.
func NewCommand(sn TransactionID, body []byte) *Packet {
	return NewPacket(Command, sn, 1, 0, body)
}

// NewError builds an Error packet carrying body.
func NewError(sn TransactionID, body []byte) *Packet {
	return NewPacket(Error, sn, 1, 0, body)
}

// NewResponse builds the acknowledgement of p. A fragment is acknowledged
// page by page, so the response echoes its pages and offset.
func NewResponse(p *Packet) (*Packet, bool) {
	t, ok := p.Type.ResponseType()
	if !ok {
		return nil, false
	}
	return NewPacket(t, p.SN, p.Pages, p.Offset, nil), true
}

// Parse decodes a packet. The body is a view over b, not a copy.
// Bytes after the declared body length are ignored.
func Parse(b []byte) (*Packet, error) {
	h, err := ParseHeader(b)
	if err != nil {
		return nil, err
	}
	rest := b[HeaderSize:]
	if uint64(len(rest)) < uint64(h.BodyLength) {
		return nil, fmt.Errorf("%w: body wants %d bytes, %d left", ErrMalformed, h.BodyLength, len(rest))
	}
	return &Packet{
		Header: h,
		Body:   rest[:h.BodyLength:h.BodyLength],
	}, nil
}

// Bytes encodes the packet.
func (p *Packet) Bytes() ([]byte, error) {
	if uint64(len(p.Body)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: body of %d bytes", ErrTooLarge, len(p.Body))
	}
	h := p.Header
	h.BodyLength = uint32(len(p.Body))

	b := make([]byte, HeaderSize+len(p.Body))
	h.put(b)
	copy(b[HeaderSize:], p.Body)
	return b, nil
}

// Clone returns a copy of p whose body does not share memory with p.
func (p *Packet) Clone() *Packet {
	body := make([]byte, len(p.Body))
	copy(body, p.Body)
	return &Packet{Header: p.Header, Body: body}
}

// String returns a short description for logging.
func (p *Packet) String() string {
	return fmt.Sprintf("%s{sn: %s, page: %d/%d, body: %d}", p.Type, p.SN, p.Offset, p.Pages, len(p.Body))
}
