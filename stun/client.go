package stun

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/mtpgate/tlv"
)

// DefaultServers are public STUN servers.
var DefaultServers = []string{
	"stun.l.google.com:19302",
	"stun1.l.google.com:19302",
	"stun.stunprotocol.org:3478",
	"stun.cloudflare.com:3478",
}

// Software is sent in the SOFTWARE attribute of requests.
const Software = "mtpgate"

// Client discovers the public address of this host.
type Client struct {
	servers []string
	timeout time.Duration
}

// NewClient creates a client for servers, or DefaultServers when none are given.
func NewClient(servers ...string) *Client {
	if len(servers) == 0 {
		servers = DefaultServers
	}
	c := &Client{timeout: 5 * time.Second}
	c.SetServers(servers)
	return c
}

// SetServers replaces the server list.
func (c *Client) SetServers(servers []string) {
	c.servers = make([]string, len(servers))
	copy(c.servers, servers)
}

// SetTimeout sets the per-server timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Discover asks each server in turn for the mapped address and returns the
// first answer.
func (c *Client) Discover(ctx context.Context) (*net.UDPAddr, error) {
	var lastErr error
	for _, server := range c.servers {
		addr, err := c.Query(ctx, server)
		if err == nil {
			return addr, nil
		}
		lastErr = err

		logrus.WithFields(logrus.Fields{
			"function": "Client.Discover",
			"server":   server,
			"error":    err.Error(),
		}).Warn("STUN server failed")

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("all STUN servers failed, last error: %w", lastErr)
}

// Query performs one binding request against server.
func (c *Client) Query(ctx context.Context, server string) (*net.UDPAddr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "udp", server)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to STUN server %s: %w", server, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(c.timeout))
	}

	id := NewTransactionID()
	request, err := EncodeMessage(BindingRequest, id, []tlv.Field{
		{Tag: AttrSoftware, Value: tlv.NewRawValue([]byte(Software))},
	})
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(request); err != nil {
		return nil, fmt.Errorf("failed to send STUN request: %w", err)
	}

	buf := make([]byte, 1500)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to read STUN response: %w", err)
	}

	addr, err := parseBindingResponse(buf[:n], id)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Client.Query",
		"server":      server,
		"mapped_addr": addr.String(),
	}).Debug("STUN binding succeeded")
	return addr, nil
}

func parseBindingResponse(b []byte, id [TransactionIDSize]byte) (*net.UDPAddr, error) {
	m, err := ParseMessage(b)
	if err != nil {
		return nil, err
	}
	if m.TransactionID != id {
		return nil, ErrTransactionMismatch
	}
	switch m.Type {
	case BindingSuccess:
		return m.MappedAddress()
	case BindingError:
		code, reason, _ := m.ErrorCode()
		return nil, fmt.Errorf("%w: %d %s", ErrErrorResponse, code, reason)
	default:
		return nil, fmt.Errorf("%w: unexpected message type 0x%04x", ErrMalformed, m.Type)
	}
}
