package mtp

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// TransactionIDSize is the width of a transaction id on the wire.
const TransactionIDSize = 16

// TransactionID correlates the fragments of one transfer and its outcome.
type TransactionID [TransactionIDSize]byte

// NewTransactionID returns a random (version 4 UUID) transaction id.
func NewTransactionID() TransactionID {
	return TransactionID(uuid.New())
}

// TransactionIDFromBytes copies the first TransactionIDSize bytes of b.
func TransactionIDFromBytes(b []byte) (TransactionID, bool) {
	var sn TransactionID
	if len(b) < TransactionIDSize {
		return sn, false
	}
	copy(sn[:], b)
	return sn, true
}

// String returns the id in lowercase hex.
func (sn TransactionID) String() string {
	return hex.EncodeToString(sn[:])
}

// IsZero reports whether sn is all zero bytes.
func (sn TransactionID) IsZero() bool {
	return sn == TransactionID{}
}

// DataType identifies what a packet carries.
type DataType byte

const (
	Command         DataType = 0x00
	Message         DataType = 0x01
	Error           DataType = 0x0E
	CommandResponse DataType = 0x10
	MessageResponse DataType = 0x11
	MessageFragment DataType = 0x81
)

// Valid reports whether t is a known data type.
func (t DataType) Valid() bool {
	switch t {
	case Command, Message, Error, CommandResponse, MessageResponse, MessageFragment:
		return true
	}
	return false
}

// IsResponse reports whether t acknowledges another packet.
func (t DataType) IsResponse() bool {
	return t == CommandResponse || t == MessageResponse
}

// ResponseType returns the data type that acknowledges t.
func (t DataType) ResponseType() (DataType, bool) {
	switch t {
	case Command:
		return CommandResponse, true
	case Message, MessageFragment:
		return MessageResponse, true
	}
	return 0, false
}

// String returns the data type name.
func (t DataType) String() string {
	switch t {
	case Command:
		return "Command"
	case Message:
		return "Message"
	case Error:
		return "Error"
	case CommandResponse:
		return "CommandResponse"
	case MessageResponse:
		return "MessageResponse"
	case MessageFragment:
		return "MessageFragment"
	default:
		return fmt.Sprintf("DataType(0x%02x)", byte(t))
	}
}
