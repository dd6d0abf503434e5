package tlv

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Tag identifies a field.
type Tag uint16

// String returns the tag in 0x%04x form.
func (t Tag) String() string {
	return fmt.Sprintf("0x%04x", uint16(t))
}

// Kind is the decoded representation of a value.
type Kind uint8

const (
	KindRaw Kind = iota
	KindUint8
	KindUint16
	KindUint32
	KindMap
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindUint8:
		return "uint8"
	case KindUint16:
		return "uint16"
	case KindUint32:
		return "uint32"
	case KindMap:
		return "map"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// fixedWidth returns the byte width of integer kinds and 0 for the others.
func (k Kind) fixedWidth() int {
	switch k {
	case KindUint8:
		return Uint8Size
	case KindUint16:
		return Uint16Size
	case KindUint32:
		return Uint32Size
	default:
		return 0
	}
}

// Value is a decoded, immutable field value.
type Value interface {
	// Kind returns the representation of the value.
	Kind() Kind
	// Bytes returns the encoded value. The returned slice is never shared
	// with the value, so callers may modify it.
	Bytes() []byte
	// Len returns the encoded length in bytes.
	Len() int
	String() string
}

// Field pairs a tag with its value. A nil Value is a deletion marker.
type Field struct {
	Tag   Tag
	Value Value
}

// IsDeletion reports whether the field removes its tag.
func (f Field) IsDeletion() bool {
	return f.Value == nil
}

// Encode returns the encoded bytes of v. The same value always produces
// identical bytes.
func Encode(v Value) []byte {
	if v == nil {
		return nil
	}
	return v.Bytes()
}

// Equal reports whether a and b carry the same semantic content.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	if am, ok := a.(*MapValue); ok {
		bm, ok := b.(*MapValue)
		return ok && am.equal(bm)
	}
	return bytes.Equal(a.Bytes(), b.Bytes())
}

// RawValue is an opaque byte value.
type RawValue struct {
	data []byte
}

// NewRawValue copies b into a new raw value.
func NewRawValue(b []byte) RawValue {
	data := make([]byte, len(b))
	copy(data, b)
	return RawValue{data: data}
}

func (v RawValue) Kind() Kind { return KindRaw }

func (v RawValue) Bytes() []byte {
	out := make([]byte, len(v.data))
	copy(out, v.data)
	return out
}

func (v RawValue) Len() int { return len(v.data) }

func (v RawValue) String() string {
	return hex.EncodeToString(v.data)
}

// Uint8Value is a one byte unsigned integer.
type Uint8Value struct {
	v uint8
}

// NewUint8Value wraps v.
func NewUint8Value(v uint8) Uint8Value {
	return Uint8Value{v: v}
}

// Uint8ValueFromBytes reads the value from the first byte of b.
func Uint8ValueFromBytes(b []byte) (Uint8Value, bool) {
	v, ok := ReadUint8(b)
	return Uint8Value{v: v}, ok
}

func (v Uint8Value) Kind() Kind    { return KindUint8 }
func (v Uint8Value) Bytes() []byte { return []byte{v.v} }
func (v Uint8Value) Len() int      { return Uint8Size }
func (v Uint8Value) Value() uint8  { return v.v }

func (v Uint8Value) String() string {
	return strconv.FormatUint(uint64(v.v), 10)
}

// Uint16Value is a big-endian two byte integer.
type Uint16Value struct {
	v uint16
}

// NewUint16Value wraps v.
func NewUint16Value(v uint16) Uint16Value {
	return Uint16Value{v: v}
}

// Uint16ValueFromBytes reads the value from the first two bytes of b.
// Longer input is truncated to that prefix.
func Uint16ValueFromBytes(b []byte) (Uint16Value, bool) {
	v, ok := ReadUint16(b)
	return Uint16Value{v: v}, ok
}

func (v Uint16Value) Kind() Kind    { return KindUint16 }
func (v Uint16Value) Bytes() []byte { return Uint16Bytes(v.v) }
func (v Uint16Value) Len() int      { return Uint16Size }
func (v Uint16Value) Value() uint16 { return v.v }

// Int16 returns the value interpreted as two's complement.
func (v Uint16Value) Int16() int16 { return int16(v.v) }

func (v Uint16Value) String() string {
	return strconv.FormatUint(uint64(v.v), 10)
}

// Uint32Value is a big-endian four byte integer.
type Uint32Value struct {
	v uint32
}

// NewUint32Value wraps v.
func NewUint32Value(v uint32) Uint32Value {
	return Uint32Value{v: v}
}

// Uint32ValueFromBytes reads the value from the first four bytes of b.
// Longer input is truncated to that prefix.
func Uint32ValueFromBytes(b []byte) (Uint32Value, bool) {
	v, ok := ReadUint32(b)
	return Uint32Value{v: v}, ok
}

func (v Uint32Value) Kind() Kind    { return KindUint32 }
func (v Uint32Value) Bytes() []byte { return Uint32Bytes(v.v) }
func (v Uint32Value) Len() int      { return Uint32Size }
func (v Uint32Value) Value() uint32 { return v.v }

// Int32 returns the value interpreted as two's complement.
func (v Uint32Value) Int32() int32 { return int32(v.v) }

func (v Uint32Value) String() string {
	return strconv.FormatUint(uint64(v.v), 10)
}
