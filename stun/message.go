package stun

import (
	"errors"
	"fmt"
	"net"

	pion "github.com/pion/stun"

	"github.com/opd-ai/mtpgate/tlv"
)

const (
	// MagicCookie is the fixed value of every RFC 5389 message.
	MagicCookie = 0x2112A442

	// HeaderSize is the length of the message header.
	HeaderSize = 20

	// TransactionIDSize is the length of a STUN transaction id.
	TransactionIDSize = 12
)

var (
	ErrMalformed           = errors.New("stun: malformed message")
	ErrNoMappedAddress     = errors.New("stun: no mapped address")
	ErrErrorResponse       = errors.New("stun: error response")
	ErrTransactionMismatch = errors.New("stun: transaction id mismatch")
)

// Message types used by binding discovery.
var (
	BindingRequest = pion.BindingRequest.Value()
	BindingSuccess = pion.BindingSuccess.Value()
	BindingError   = pion.BindingError.Value()
)

// Message is a decoded STUN message.
type Message struct {
	Type          uint16
	TransactionID [TransactionIDSize]byte
	Attributes    []tlv.Field

	raw *pion.Message
}

// ParseMessage decodes b. Bytes after the declared length are ignored.
func ParseMessage(b []byte) (*Message, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(b))
	}
	typ, _ := tlv.ReadUint16(b[0:2])
	length, _ := tlv.ReadUint16(b[2:4])
	cookie, _ := tlv.ReadUint32(b[4:8])

	if cookie != MagicCookie {
		return nil, fmt.Errorf("%w: magic cookie 0x%08x", ErrMalformed, cookie)
	}
	if length%4 != 0 {
		return nil, fmt.Errorf("%w: length %d not aligned", ErrMalformed, length)
	}
	end := HeaderSize + int(length)
	if len(b) < end {
		return nil, fmt.Errorf("%w: wants %d bytes, has %d", ErrMalformed, end, len(b))
	}

	attrs, err := Codec.ParseFields(b[HeaderSize:end])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	raw := &pion.Message{Raw: append([]byte(nil), b[:end]...)}
	if err := raw.Decode(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	m := &Message{
		Type:       typ,
		Attributes: attrs,
		raw:        raw,
	}
	copy(m.TransactionID[:], b[8:HeaderSize])
	return m, nil
}

// EncodeMessage builds a message of the given type carrying attrs.
func EncodeMessage(typ uint16, id [TransactionIDSize]byte, attrs []tlv.Field) ([]byte, error) {
	body, err := Codec.EncodeFields(attrs)
	if err != nil {
		return nil, err
	}
	if len(body) > tlv.MaxValueLen {
		return nil, fmt.Errorf("%w: %d attribute bytes", tlv.ErrValueTooLarge, len(body))
	}

	b := make([]byte, HeaderSize, HeaderSize+len(body))
	tlv.PutUint16(b[0:2], typ)
	tlv.PutUint16(b[2:4], uint16(len(body)))
	tlv.PutUint32(b[4:8], MagicCookie)
	copy(b[8:HeaderSize], id[:])
	return append(b, body...), nil
}

// NewTransactionID returns a random transaction id.
func NewTransactionID() [TransactionIDSize]byte {
	return pion.NewTransactionID()
}

// Get returns the last value of tag.
func (m *Message) Get(tag tlv.Tag) (tlv.Value, bool) {
	return tlv.Get(m.Attributes, tag)
}

// MappedAddress returns the reflexive address, preferring
// XOR-MAPPED-ADDRESS over MAPPED-ADDRESS.
func (m *Message) MappedAddress() (*net.UDPAddr, error) {
	var xor pion.XORMappedAddress
	if err := xor.GetFrom(m.raw); err == nil {
		return &net.UDPAddr{IP: xor.IP, Port: xor.Port}, nil
	} else if !errors.Is(err, pion.ErrAttributeNotFound) {
		return nil, fmt.Errorf("%w: xor-mapped-address: %v", ErrMalformed, err)
	}

	var mapped pion.MappedAddress
	if err := mapped.GetFrom(m.raw); err == nil {
		return &net.UDPAddr{IP: mapped.IP, Port: mapped.Port}, nil
	} else if !errors.Is(err, pion.ErrAttributeNotFound) {
		return nil, fmt.Errorf("%w: mapped-address: %v", ErrMalformed, err)
	}
	return nil, ErrNoMappedAddress
}

// ErrorCode returns the code and reason of an error response.
func (m *Message) ErrorCode() (int, string, bool) {
	var ec pion.ErrorCodeAttribute
	if err := ec.GetFrom(m.raw); err != nil {
		return 0, "", false
	}
	return int(ec.Code), string(ec.Reason), true
}
