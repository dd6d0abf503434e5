package hub

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/mtpgate/limits"
)

const readTimeout = 100 * time.Millisecond

type datagram struct {
	data   []byte
	source net.Addr
}

// UDPHub is a Hub over a packet connection.
type UDPHub struct {
	conn    net.PacketConn
	inbound chan datagram
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// NewUDPHub listens on listenAddr and starts reading.
func NewUDPHub(listenAddr string, queueSize int) (*UDPHub, error) {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", listenAddr, err)
	}
	return NewUDPHubFromConn(conn, queueSize), nil
}

// NewUDPHubFromConn takes ownership of conn and starts reading.
func NewUDPHubFromConn(conn net.PacketConn, queueSize int) *UDPHub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &UDPHub{
		conn:    conn,
		inbound: make(chan datagram, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	logrus.WithFields(logrus.Fields{
		"function":   "NewUDPHub",
		"local_addr": conn.LocalAddr().String(),
		"queue_size": queueSize,
	}).Info("UDP hub listening")

	h.wg.Add(1)
	go h.readLoop()
	return h
}

func (h *UDPHub) readLoop() {
	defer h.wg.Done()
	buffer := make([]byte, limits.MaxDatagram+1)

	for {
		select {
		case <-h.ctx.Done():
			return
		default:
		}

		data, addr, err := h.readPacket(buffer)
		if err != nil {
			if h.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		h.enqueue(data, addr)
	}
}

// readPacket reads one datagram with a deadline so the loop notices Close.
func (h *UDPHub) readPacket(buffer []byte) ([]byte, net.Addr, error) {
	_ = h.conn.SetReadDeadline(time.Now().Add(readTimeout))

	n, addr, err := h.conn.ReadFrom(buffer)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, nil, err
		}
		if h.ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
			logrus.WithFields(logrus.Fields{
				"function": "UDPHub.readPacket",
				"error":    err.Error(),
			}).Warn("Read failed")
		}
		return nil, nil, err
	}

	if err := limits.ValidateDatagram(buffer[:n]); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "UDPHub.readPacket",
			"source":   addr.String(),
			"size":     n,
			"error":    err.Error(),
		}).Debug("Discarding datagram")
		return nil, nil, err
	}

	// The buffer is reused, and parsed packets keep views into the data.
	data := make([]byte, n)
	copy(data, buffer[:n])
	return data, addr, nil
}

func (h *UDPHub) enqueue(data []byte, addr net.Addr) {
	select {
	case h.inbound <- datagram{data: data, source: addr}:
	default:
		logrus.WithFields(logrus.Fields{
			"function": "UDPHub.enqueue",
			"source":   addr.String(),
			"size":     len(data),
		}).Warn("Inbound queue full, dropping datagram")
	}
}

// Send writes data to destination.
func (h *UDPHub) Send(data []byte, destination net.Addr) (int, error) {
	if h.ctx.Err() != nil {
		return 0, ErrClosed
	}
	n, err := h.conn.WriteTo(data, destination)
	if err != nil {
		return n, fmt.Errorf("send to %s: %w", destination, err)
	}
	return n, nil
}

// Receive returns the next queued datagram without blocking.
func (h *UDPHub) Receive() ([]byte, net.Addr, bool) {
	select {
	case d := <-h.inbound:
		return d.data, d.source, true
	default:
		return nil, nil, false
	}
}

// Process reports whether datagrams are waiting. Reading happens on the
// hub's own goroutine.
func (h *UDPHub) Process() bool {
	return len(h.inbound) > 0
}

// LocalAddr returns the bound address.
func (h *UDPHub) LocalAddr() net.Addr {
	return h.conn.LocalAddr()
}

// Close stops the reader and closes the connection.
func (h *UDPHub) Close() error {
	h.closeOnce.Do(func() {
		h.cancel()
		h.closeErr = h.conn.Close()
		h.wg.Wait()
	})
	return h.closeErr
}
