package peer

import (
	"net"

	"github.com/opd-ai/mtpgate/mtp"
)

// Handler is the per-peer policy plugged into a gate. Implementations must be
// safe for concurrent use when the gate is shared by several workers.
type Handler interface {
	// OnSendCommandSuccess is called when the peer acknowledged a command.
	OnSendCommandSuccess(sn mtp.TransactionID, destination, source net.Addr)
	// OnSendCommandTimeout is called when a command was not acknowledged in time.
	OnSendCommandTimeout(sn mtp.TransactionID, destination, source net.Addr)
	// OnSendMessageSuccess is called when every page of a message was acknowledged.
	OnSendMessageSuccess(sn mtp.TransactionID, destination, source net.Addr)
	// OnSendMessageTimeout is called when a message was not fully acknowledged in time.
	OnSendMessageTimeout(sn mtp.TransactionID, destination, source net.Addr)

	// OnReceivedCommand delivers a command body. Returning false reports a
	// processing error to the remote side.
	OnReceivedCommand(body []byte, source, destination net.Addr) bool
	// OnReceivedMessage delivers a complete message body, reassembled if it
	// arrived in fragments. Returning false reports a processing error.
	OnReceivedMessage(body []byte, source, destination net.Addr) bool
	// OnReceivedError delivers an error payload sent by the remote side.
	OnReceivedError(body []byte, source, destination net.Addr)

	// CheckFragment decides whether a fragment may enter reassembly.
	CheckFragment(fragment *mtp.Packet, source, destination net.Addr) bool
	// RecycleFragments receives the fragments of a record evicted before it
	// completed.
	RecycleFragments(fragments []*mtp.Packet, source, destination net.Addr)
}
