// Package limits provides centralized size constants and validation functions
// for the MTP stack.
//
// # Size Hierarchy
//
//   - MaxDatagram (65507 bytes): the largest UDP payload. Hubs never hand
//     larger datagrams to the gate.
//
//   - DefaultMaxBody (1200 bytes): the default body of one MTP packet, chosen
//     so a packet plus its 25 byte header fits the IPv6 minimum MTU.
//
//   - MaxPages (65535): the page count ceiling imposed by the header field.
//
//   - MaxMessage (8MB): the absolute maximum of a reassembled message. The
//     reassembly engine refuses a fragment that would push a record past it.
//
// # Validation Functions
//
//	err := limits.ValidateDatagram(data)
//	if err != nil {
//	    // ErrMessageEmpty or ErrMessageTooLarge
//	}
package limits
