package tlv

import (
	"errors"
	"fmt"
)

const (
	// HeaderLen is the size of the tag and length prefix of a field.
	HeaderLen = 4

	// MaxValueLen is the largest value the two byte length can describe.
	MaxValueLen = 0xFFFF
)

var (
	ErrShortHeader   = errors.New("tlv: short field header")
	ErrShortValue    = errors.New("tlv: short field value")
	ErrMalformed     = errors.New("tlv: malformed field value")
	ErrValueTooLarge = errors.New("tlv: value too large")
)

// Codec encodes and parses field lists. The zero Codec decodes every tag as
// raw and uses no padding.
type Codec struct {
	// Registry resolves tag kinds. Nil means all raw.
	Registry *Registry
	// Padding aligns every field to a multiple of this many bytes.
	// Zero or one disables padding.
	Padding int
}

// Decode decodes length bytes of data as the value of tag. It reports false
// when data holds fewer than length bytes or a fixed-width kind receives
// fewer bytes than its width. Unknown tags decode as raw values.
func (c Codec) Decode(data []byte, tag Tag, length int) (Value, bool) {
	return decodeValue(data, tag, length, c.Registry)
}

// Decode decodes a value with an empty registry, so the result is raw.
func Decode(data []byte, tag Tag, length int) (Value, bool) {
	return decodeValue(data, tag, length, nil)
}

func decodeValue(data []byte, tag Tag, length int, reg *Registry) (Value, bool) {
	if length < 0 || length > len(data) {
		return nil, false
	}
	b := data[:length]

	switch reg.Kind(tag) {
	case KindUint8:
		v, ok := Uint8ValueFromBytes(b)
		if !ok {
			return nil, false
		}
		return v, true
	case KindUint16:
		v, ok := Uint16ValueFromBytes(b)
		if !ok {
			return nil, false
		}
		return v, true
	case KindUint32:
		v, ok := Uint32ValueFromBytes(b)
		if !ok {
			return nil, false
		}
		return v, true
	case KindMap:
		fields, err := Codec{Registry: reg.Nested(tag)}.ParseFields(b)
		if err != nil {
			return nil, false
		}
		m, err := NewMapValue(fields...)
		if err != nil {
			return nil, false
		}
		return m, true
	default:
		return NewRawValue(b), true
	}
}

// EncodeField encodes a single field. A deletion marker encodes as a field
// with zero length.
func (c Codec) EncodeField(f Field) ([]byte, error) {
	var value []byte
	if !f.IsDeletion() {
		value = f.Value.Bytes()
	}
	if len(value) > MaxValueLen {
		return nil, fmt.Errorf("%w: tag %s has %d bytes", ErrValueTooLarge, f.Tag, len(value))
	}
	return appendField(make([]byte, 0, HeaderLen+len(value)+c.Padding), f.Tag, value, c.Padding), nil
}

// EncodeFields encodes fields in list order.
func (c Codec) EncodeFields(fields []Field) ([]byte, error) {
	out := make([]byte, 0)
	for _, f := range fields {
		b, err := c.EncodeField(f)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// ParseFields decodes every field in data in wire order. A zero-length
// field of a fixed-width kind yields a deletion marker.
func (c Codec) ParseFields(data []byte) ([]Field, error) {
	fields := make([]Field, 0)
	i := 0
	for i < len(data) {
		if len(data)-i < HeaderLen {
			return nil, ErrShortHeader
		}
		tag, _ := ReadUint16(data[i:])
		length, _ := ReadUint16(data[i+2:])
		i += HeaderLen

		if len(data)-i < int(length) {
			return nil, fmt.Errorf("%w: tag %s wants %d bytes, %d left", ErrShortValue, Tag(tag), length, len(data)-i)
		}

		field, err := c.decodeField(data[i:i+int(length)], Tag(tag))
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)

		i += int(length)
		i += c.padLen(int(length))
		if i > len(data) {
			// Trailing padding of the last field may be omitted.
			i = len(data)
		}
	}
	return fields, nil
}

func (c Codec) decodeField(value []byte, tag Tag) (Field, error) {
	v, ok := decodeValue(value, tag, len(value), c.Registry)
	if ok {
		return Field{Tag: tag, Value: v}, nil
	}
	if len(value) == 0 && c.Registry.Kind(tag).fixedWidth() > 0 {
		return Field{Tag: tag}, nil
	}
	return Field{}, fmt.Errorf("%w: tag %s as %s (%d bytes)", ErrMalformed, tag, c.Registry.Kind(tag), len(value))
}

func (c Codec) padLen(n int) int {
	if c.Padding <= 1 || n%c.Padding == 0 {
		return 0
	}
	return c.Padding - n%c.Padding
}

// Get returns the last value for tag in fields. A trailing deletion marker
// hides earlier values.
func Get(fields []Field, tag Tag) (Value, bool) {
	for i := len(fields) - 1; i >= 0; i-- {
		if fields[i].Tag == tag {
			return fields[i].Value, fields[i].Value != nil
		}
	}
	return nil, false
}

func appendField(dst []byte, tag Tag, value []byte, padding int) []byte {
	var hdr [HeaderLen]byte
	PutUint16(hdr[0:2], uint16(tag))
	PutUint16(hdr[2:4], uint16(len(value)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, value...)
	if padding > 1 && len(value)%padding != 0 {
		dst = append(dst, make([]byte, padding-len(value)%padding)...)
	}
	return dst
}
