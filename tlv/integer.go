package tlv

import "encoding/binary"

// Fixed widths of the integer value kinds, in bytes.
const (
	Uint8Size  = 1
	Uint16Size = 2
	Uint32Size = 4
)

// Uint16Bytes returns the big-endian encoding of v.
func Uint16Bytes(v uint16) []byte {
	b := make([]byte, Uint16Size)
	binary.BigEndian.PutUint16(b, v)
	return b
}

// Uint32Bytes returns the big-endian encoding of v.
func Uint32Bytes(v uint32) []byte {
	b := make([]byte, Uint32Size)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// PutUint16 writes v into the first two bytes of b.
// It reports false when b is too short.
func PutUint16(b []byte, v uint16) bool {
	if len(b) < Uint16Size {
		return false
	}
	binary.BigEndian.PutUint16(b, v)
	return true
}

// PutUint32 writes v into the first four bytes of b.
// It reports false when b is too short.
func PutUint32(b []byte, v uint32) bool {
	if len(b) < Uint32Size {
		return false
	}
	binary.BigEndian.PutUint32(b, v)
	return true
}

// ReadUint8 reads the first byte of b.
func ReadUint8(b []byte) (uint8, bool) {
	if len(b) < Uint8Size {
		return 0, false
	}
	return b[0], true
}

// ReadUint16 reads a big-endian uint16 from the first two bytes of b.
// Bytes past the fixed width are ignored.
func ReadUint16(b []byte) (uint16, bool) {
	if len(b) < Uint16Size {
		return 0, false
	}
	return binary.BigEndian.Uint16(b[:Uint16Size]), true
}

// ReadUint32 reads a big-endian uint32 from the first four bytes of b.
// Bytes past the fixed width are ignored.
func ReadUint32(b []byte) (uint32, bool) {
	if len(b) < Uint32Size {
		return 0, false
	}
	return binary.BigEndian.Uint32(b[:Uint32Size]), true
}
