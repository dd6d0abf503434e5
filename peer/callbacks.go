package peer

import (
	"net"

	"github.com/opd-ai/mtpgate/mtp"
)

// SendFunc is notified of the outcome of an outgoing transaction.
type SendFunc func(sn mtp.TransactionID, destination, source net.Addr)

// ReceiveFunc receives an inbound body and reports whether it was processed.
type ReceiveFunc func(body []byte, source, destination net.Addr) bool

// Callbacks is a Handler built from optional functions. A nil receive
// function accepts the body, a nil Guard admits every fragment and other nil
// functions are skipped.
type Callbacks struct {
	CommandSuccess SendFunc
	CommandTimeout SendFunc
	MessageSuccess SendFunc
	MessageTimeout SendFunc

	Command ReceiveFunc
	Message ReceiveFunc
	Error   func(body []byte, source, destination net.Addr)

	Guard   *FloodGuard
	Recycle func(fragments []*mtp.Packet, source, destination net.Addr)
}

var _ Handler = (*Callbacks)(nil)

func (c *Callbacks) OnSendCommandSuccess(sn mtp.TransactionID, destination, source net.Addr) {
	if c.CommandSuccess != nil {
		c.CommandSuccess(sn, destination, source)
	}
}

func (c *Callbacks) OnSendCommandTimeout(sn mtp.TransactionID, destination, source net.Addr) {
	if c.CommandTimeout != nil {
		c.CommandTimeout(sn, destination, source)
	}
}

func (c *Callbacks) OnSendMessageSuccess(sn mtp.TransactionID, destination, source net.Addr) {
	if c.MessageSuccess != nil {
		c.MessageSuccess(sn, destination, source)
	}
}

func (c *Callbacks) OnSendMessageTimeout(sn mtp.TransactionID, destination, source net.Addr) {
	if c.MessageTimeout != nil {
		c.MessageTimeout(sn, destination, source)
	}
}

func (c *Callbacks) OnReceivedCommand(body []byte, source, destination net.Addr) bool {
	if c.Command == nil {
		return true
	}
	return c.Command(body, source, destination)
}

func (c *Callbacks) OnReceivedMessage(body []byte, source, destination net.Addr) bool {
	if c.Message == nil {
		return true
	}
	return c.Message(body, source, destination)
}

func (c *Callbacks) OnReceivedError(body []byte, source, destination net.Addr) {
	if c.Error != nil {
		c.Error(body, source, destination)
	}
}

func (c *Callbacks) CheckFragment(fragment *mtp.Packet, source, destination net.Addr) bool {
	if c.Guard == nil {
		return true
	}
	return c.Guard.CheckFragment(fragment, source, destination)
}

func (c *Callbacks) RecycleFragments(fragments []*mtp.Packet, source, destination net.Addr) {
	if c.Recycle != nil {
		c.Recycle(fragments, source, destination)
	}
}
