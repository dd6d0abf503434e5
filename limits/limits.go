// Package limits provides centralized size limits for the MTP stack.
// This ensures consistent validation across the codec, the reassembly engine
// and the gate runtime.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxDatagram is the largest UDP payload over IPv4 (65535 - 8 - 20).
	MaxDatagram = 65507

	// DefaultMaxBody is the default body size of a single MTP packet.
	// 1280 (IPv6 minimum MTU) - 40 (IPv6) - 8 (UDP) - 25 (MTP header) leaves
	// 1207 bytes; the default rounds down.
	DefaultMaxBody = 1200

	// MaxPages is the largest page count the two byte header field can carry.
	MaxPages = 0xFFFF

	// MaxMessage is the absolute maximum of a reassembled message.
	// This prevents memory exhaustion from a peer announcing huge transfers.
	MaxMessage = 8 * 1024 * 1024
)

var (
	// ErrMessageEmpty indicates an empty message was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("message too large")
)

// ValidateDatagram validates raw datagram data against MaxDatagram.
func ValidateDatagram(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	if len(data) > MaxDatagram {
		return fmt.Errorf("%w: datagram size %d exceeds limit %d", ErrMessageTooLarge, len(data), MaxDatagram)
	}
	return nil
}

// ValidateMessage validates an outgoing or reassembled message body against
// MaxMessage. Empty bodies are allowed: a message may carry no payload.
func ValidateMessage(body []byte) error {
	if len(body) > MaxMessage {
		return fmt.Errorf("%w: message size %d exceeds limit %d", ErrMessageTooLarge, len(body), MaxMessage)
	}
	return nil
}

// PagesFor returns the number of packets needed to carry size bytes when each
// packet holds at most maxBody bytes. An empty message still takes one page.
func PagesFor(size, maxBody int) int {
	if maxBody <= 0 || size <= 0 {
		return 1
	}
	return (size + maxBody - 1) / maxBody
}

// ValidatePages checks that a message of size bytes split into maxBody sized
// pages stays within MaxPages.
func ValidatePages(size, maxBody int) error {
	if pages := PagesFor(size, maxBody); pages > MaxPages {
		return fmt.Errorf("%w: %d pages exceeds limit %d", ErrMessageTooLarge, pages, MaxPages)
	}
	return nil
}
