// Package tlv implements the Tag-Length-Value codec shared by STUN attribute
// parsing and the Message Transfer Protocol.
//
// # Wire Format
//
// Every field is encoded as a fixed four byte header followed by the value:
//
//	+--------+--------+----------------+
//	| tag(2) | len(2) | value(len)     |
//	+--------+--------+----------------+
//
// All integers are big-endian. A Codec may declare a padding boundary, in
// which case zero bytes are appended after the value so the next field starts
// on that boundary (STUN uses 4). Padding is never counted in len.
//
// # Values
//
// Decoded values are one of:
//
//   - [RawValue]: opaque bytes, also used for every unregistered tag
//   - [Uint8Value], [Uint16Value], [Uint32Value]: fixed-width integers
//   - [MapValue]: a composite built from an ordered field list
//
// Values are immutable once constructed. None of the value types expose a
// mutating method and accessors that return slices hand out copies, so a
// decoded value may be shared between goroutines without locking.
//
// # Deletion Markers
//
// A [Field] whose Value is nil marks the tag as removed. When a MapValue is
// built the tag is dropped from the lookup rather than stored with a nil
// value. On the wire a deletion marker is a zero-length field of a
// fixed-width kind.
//
// # Registries
//
// The kind of a value is not carried on the wire; a [Registry] maps tags to
// kinds. Tags missing from the registry always decode as raw values, so
// unknown attributes never cause a decode failure.
package tlv
