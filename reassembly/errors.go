package reassembly

import "errors"

var (
	// ErrNotFragment is returned when a non-fragment packet is offered to a record.
	ErrNotFragment = errors.New("reassembly: packet is not a fragment")

	// ErrAddressMismatch is returned when a fragment's source or destination
	// differs from the addresses the record is bound to.
	ErrAddressMismatch = errors.New("reassembly: address mismatch")

	// ErrTransactionMismatch is returned when a fragment belongs to another transaction.
	ErrTransactionMismatch = errors.New("reassembly: transaction id mismatch")

	// ErrPagesMismatch is returned when a fragment declares a different page count.
	ErrPagesMismatch = errors.New("reassembly: page count mismatch")

	// ErrOffsetOutOfRange is returned when a fragment offset is not below the page count.
	ErrOffsetOutOfRange = errors.New("reassembly: offset out of range")

	// ErrTooLarge is returned when accepting a fragment would exceed limits.MaxMessage.
	ErrTooLarge = errors.New("reassembly: message too large")
)
