// Package mtp implements the Message Transfer Protocol packet format.
//
// # Wire Format
//
// Every packet starts with a fixed 25 byte big-endian header followed by the
// body:
//
//	 0                16   17      19       21             25
//	+------------------+----+-------+--------+--------------+------------+
//	| sn (16)          |type| pages | offset | body len (4) | body ...   |
//	+------------------+----+-------+--------+--------------+------------+
//
// The transaction id (sn) is opaque. It correlates every fragment of a
// message and the responses acknowledging it. Integer fields are written
// through the tlv integer codec.
//
// # Data Types
//
//	Command         0x00  request carried in one packet
//	Message         0x01  message carried in one packet
//	Error           0x0E  out-of-band error payload
//	CommandResponse 0x10  acknowledges a Command
//	MessageResponse 0x11  acknowledges a Message or one MessageFragment
//	MessageFragment 0x81  one page of a split Message
//
// A packet that is not a MessageFragment always has pages = 1 and
// offset = 0. A fragment always has offset < pages.
//
// # Body Ownership
//
// [Parse] does not copy: the Body of the returned packet is a view over the
// input buffer. Callers that reuse their read buffer must call
// [Packet.Clone] before retaining the packet.
package mtp
