// Package stun reads and writes STUN messages (RFC 5389) with the tlv codec.
//
// Attributes are 4-byte aligned TLV fields; Registry knows which of them
// carry 32-bit integers. Address attributes are decoded with pion/stun so
// XOR-MAPPED-ADDRESS handling matches a widely deployed implementation.
// Client performs binding discovery against public servers.
package stun
