package gate

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/mtpgate/hub"
	"github.com/opd-ai/mtpgate/mtp"
	"github.com/opd-ai/mtpgate/peer"
	"github.com/opd-ai/mtpgate/reassembly"
)

// recorder collects handler events as strings.
type recorder struct {
	mu      sync.Mutex
	events  []string
	refuse  bool
	recycle [][]*mtp.Packet
}

func (r *recorder) add(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) handler(guard *peer.FloodGuard) *peer.Callbacks {
	return &peer.Callbacks{
		CommandSuccess: func(sn mtp.TransactionID, destination, source net.Addr) {
			r.add("command success %s", destination)
		},
		CommandTimeout: func(sn mtp.TransactionID, destination, source net.Addr) {
			r.add("command timeout %s", destination)
		},
		MessageSuccess: func(sn mtp.TransactionID, destination, source net.Addr) {
			r.add("message success %s", destination)
		},
		MessageTimeout: func(sn mtp.TransactionID, destination, source net.Addr) {
			r.add("message timeout %s", destination)
		},
		Command: func(body []byte, source, destination net.Addr) bool {
			r.add("command %s from %s", body, source)
			return !r.refuse
		},
		Message: func(body []byte, source, destination net.Addr) bool {
			r.add("message %s from %s", body, source)
			return !r.refuse
		},
		Error: func(body []byte, source, destination net.Addr) {
			r.add("error %s from %s", body, source)
		},
		Guard: guard,
		Recycle: func(fragments []*mtp.Packet, source, destination net.Addr) {
			r.mu.Lock()
			r.recycle = append(r.recycle, fragments)
			r.mu.Unlock()
			r.add("recycle %d from %s", len(fragments), source)
		},
	}
}

type node struct {
	hub    *hub.MemoryHub
	engine *reassembly.Engine
	gate   *BaseGate
	rec    *recorder
}

func newNode(t *testing.T, network *hub.MemoryNetwork, name string, clk clock.Clock, cfg Config, maxIncomplete int) *node {
	t.Helper()
	h, err := network.Listen(name, 0)
	require.NoError(t, err)

	rec := &recorder{}
	handler := rec.handler(nil)
	engine := reassembly.NewEngine(reassembly.Config{Clock: clk, Expires: time.Minute, Recycler: handler})
	if maxIncomplete > 0 {
		handler.Guard = peer.NewFloodGuard(engine, maxIncomplete, nil)
	}

	cfg.Clock = clk
	return &node{hub: h, engine: engine, gate: NewBaseGate(h, engine, handler, cfg), rec: rec}
}

func drain(gates ...*BaseGate) {
	for i := 0; i < 10; i++ {
		worked := false
		for _, g := range gates {
			if g.Process() {
				worked = true
			}
		}
		if !worked {
			return
		}
	}
}

func TestCommandRoundTrip(t *testing.T) {
	network := hub.NewMemoryNetwork()
	clk := clock.NewMock()
	a := newNode(t, network, "a", clk, Config{}, 0)
	b := newNode(t, network, "b", clk, Config{}, 0)

	_, err := a.gate.SendCommand([]byte("ping"), b.hub.LocalAddr())
	require.NoError(t, err)
	assert.Equal(t, 1, a.gate.Pending())

	drain(a.gate, b.gate)

	assert.Equal(t, []string{"command ping from a"}, b.rec.Events())
	assert.Equal(t, []string{"command success b"}, a.rec.Events())
	assert.Equal(t, 0, a.gate.Pending())
	assert.Equal(t, 1, b.gate.Porters())
}

func TestFragmentedMessage(t *testing.T) {
	network := hub.NewMemoryNetwork()
	clk := clock.NewMock()
	a := newNode(t, network, "a", clk, Config{MaxBody: 4}, 0)
	b := newNode(t, network, "b", clk, Config{}, 0)

	_, err := a.gate.SendMessage([]byte("hello, world!"), b.hub.LocalAddr())
	require.NoError(t, err)
	assert.Equal(t, 4, b.hub.Pending())

	drain(a.gate, b.gate)

	assert.Equal(t, []string{"message hello, world! from a"}, b.rec.Events())
	assert.Equal(t, []string{"message success b"}, a.rec.Events())
	assert.Equal(t, 0, b.engine.Len())
}

func TestSmallMessage(t *testing.T) {
	network := hub.NewMemoryNetwork()
	clk := clock.NewMock()
	a := newNode(t, network, "a", clk, Config{}, 0)
	b := newNode(t, network, "b", clk, Config{}, 0)

	_, err := a.gate.SendMessage(nil, b.hub.LocalAddr())
	require.NoError(t, err)
	drain(a.gate, b.gate)

	assert.Equal(t, []string{"message  from a"}, b.rec.Events())
	assert.Equal(t, []string{"message success b"}, a.rec.Events())
}

func TestRefusedCommand(t *testing.T) {
	network := hub.NewMemoryNetwork()
	clk := clock.NewMock()
	a := newNode(t, network, "a", clk, Config{SendTimeout: 10 * time.Second}, 0)
	b := newNode(t, network, "b", clk, Config{}, 0)
	b.rec.refuse = true

	_, err := a.gate.SendCommand([]byte("reboot"), b.hub.LocalAddr())
	require.NoError(t, err)
	drain(a.gate, b.gate)

	assert.Equal(t, []string{"error command refused from b"}, a.rec.Events())
	assert.Equal(t, 1, a.gate.Pending())

	clk.Add(11 * time.Second)
	a.gate.Sweep(clk.Now())
	assert.Equal(t, []string{"error command refused from b", "command timeout b"}, a.rec.Events())
	assert.Equal(t, 0, a.gate.Pending())
}

func TestRefusedFragmentedMessage(t *testing.T) {
	network := hub.NewMemoryNetwork()
	clk := clock.NewMock()
	a := newNode(t, network, "a", clk, Config{MaxBody: 4, SendTimeout: 10 * time.Second}, 0)
	b := newNode(t, network, "b", clk, Config{}, 0)
	b.rec.refuse = true

	_, err := a.gate.SendMessage([]byte("hello, world!"), b.hub.LocalAddr())
	require.NoError(t, err)
	drain(a.gate, b.gate)

	assert.Equal(t, []string{"message hello, world! from a"}, b.rec.Events())
	assert.Equal(t, []string{"error message refused from b"}, a.rec.Events())
	assert.Equal(t, 1, a.gate.Pending(), "final page stays unacknowledged")

	clk.Add(11 * time.Second)
	a.gate.Sweep(clk.Now())
	assert.Equal(t, []string{"error message refused from b", "message timeout b"}, a.rec.Events())
	assert.Equal(t, 0, a.gate.Pending())
}

func TestLostAcknowledgementTimesOut(t *testing.T) {
	network := hub.NewMemoryNetwork()
	clk := clock.NewMock()
	a := newNode(t, network, "a", clk, Config{MaxBody: 2}, 0)
	b := newNode(t, network, "b", clk, Config{}, 0)

	// Lose the acknowledgement of the last page.
	network.SetDrop(func(data []byte, source, destination net.Addr) bool {
		pkt, err := mtp.Parse(data)
		return err == nil && pkt.Type == mtp.MessageResponse && pkt.Offset == pkt.Pages-1
	})

	_, err := a.gate.SendMessage([]byte("abcdef"), b.hub.LocalAddr())
	require.NoError(t, err)
	drain(a.gate, b.gate)

	assert.Equal(t, []string{"message abcdef from a"}, b.rec.Events())
	assert.Empty(t, a.rec.Events())

	clk.Add(DefaultSendTimeout)
	assert.Equal(t, 0, a.gate.Sweep(clk.Now()))
	clk.Add(time.Millisecond)
	assert.Equal(t, 1, a.gate.Sweep(clk.Now()))
	assert.Equal(t, []string{"message timeout b"}, a.rec.Events())
}

func sendRaw(t *testing.T, from *hub.MemoryHub, to net.Addr, pkt *mtp.Packet) {
	t.Helper()
	data, err := pkt.Bytes()
	require.NoError(t, err)
	_, err = from.Send(data, to)
	require.NoError(t, err)
}

func TestFloodGuardDropsNewTransactions(t *testing.T) {
	network := hub.NewMemoryNetwork()
	clk := clock.NewMock()
	a, err := network.Listen("a", 0)
	require.NoError(t, err)
	b := newNode(t, network, "b", clk, Config{}, 1)

	first, second := mtp.NewTransactionID(), mtp.NewTransactionID()
	sendRaw(t, a, b.hub.LocalAddr(), mtp.NewPacket(mtp.MessageFragment, first, 2, 0, []byte("1")))
	sendRaw(t, a, b.hub.LocalAddr(), mtp.NewPacket(mtp.MessageFragment, second, 2, 0, []byte("2")))
	b.gate.Process()

	assert.True(t, b.engine.Has(first, a.LocalAddr(), b.hub.LocalAddr()))
	assert.False(t, b.engine.Has(second, a.LocalAddr(), b.hub.LocalAddr()))
	assert.Equal(t, 1, a.Pending(), "only the admitted fragment is acknowledged")

	// Completing the first transaction frees the slot.
	sendRaw(t, a, b.hub.LocalAddr(), mtp.NewPacket(mtp.MessageFragment, first, 2, 1, []byte("!")))
	sendRaw(t, a, b.hub.LocalAddr(), mtp.NewPacket(mtp.MessageFragment, second, 2, 0, []byte("2")))
	b.gate.Process()

	assert.Equal(t, []string{"message 1! from a"}, b.rec.Events())
	assert.True(t, b.engine.Has(second, a.LocalAddr(), b.hub.LocalAddr()))
}

func TestMalformedAndUnsolicited(t *testing.T) {
	network := hub.NewMemoryNetwork()
	clk := clock.NewMock()
	a, err := network.Listen("a", 0)
	require.NoError(t, err)
	b := newNode(t, network, "b", clk, Config{}, 0)

	_, err = a.Send([]byte{0x01, 0x02, 0x03}, b.hub.LocalAddr())
	require.NoError(t, err)
	resp, _ := mtp.NewResponse(mtp.NewCommand(mtp.NewTransactionID(), nil))
	sendRaw(t, a, b.hub.LocalAddr(), resp)

	assert.True(t, b.gate.Process())
	assert.Empty(t, b.rec.Events())
	assert.Equal(t, 0, a.Pending())
	assert.False(t, b.gate.Process())
}

func TestSweepRecyclesIncomplete(t *testing.T) {
	network := hub.NewMemoryNetwork()
	clk := clock.NewMock()
	a, err := network.Listen("a", 0)
	require.NoError(t, err)
	b := newNode(t, network, "b", clk, Config{PorterIdle: time.Hour}, 0)

	sn := mtp.NewTransactionID()
	sendRaw(t, a, b.hub.LocalAddr(), mtp.NewPacket(mtp.MessageFragment, sn, 3, 1, []byte("x")))
	b.gate.Process()
	require.True(t, b.engine.Has(sn, a.LocalAddr(), b.hub.LocalAddr()))

	clk.Add(time.Minute + time.Second)
	assert.Equal(t, 1, b.gate.Sweep(clk.Now()))
	assert.Equal(t, []string{"recycle 1 from a"}, b.rec.Events())
	assert.Equal(t, 1, b.gate.Porters())
}

func TestIdlePorterDisconnected(t *testing.T) {
	network := hub.NewMemoryNetwork()
	clk := clock.NewMock()
	a, err := network.Listen("a", 0)
	require.NoError(t, err)
	b := newNode(t, network, "b", clk, Config{PorterIdle: time.Second}, 0)

	sendRaw(t, a, b.hub.LocalAddr(), mtp.NewPacket(mtp.MessageFragment, mtp.NewTransactionID(), 2, 0, []byte("x")))
	b.gate.Process()
	require.Equal(t, 1, b.gate.Porters())
	_, ok := b.gate.Porter(a.LocalAddr())
	require.True(t, ok)

	clk.Add(2 * time.Second)
	b.gate.Sweep(clk.Now())
	assert.Equal(t, 0, b.gate.Porters())
	assert.Equal(t, 0, b.engine.Len())
	assert.Equal(t, []string{"recycle 1 from a"}, b.rec.Events())
}

func TestSendErrors(t *testing.T) {
	network := hub.NewMemoryNetwork()
	clk := clock.NewMock()
	a := newNode(t, network, "a", clk, Config{MaxBody: 8}, 0)

	_, err := a.gate.SendMessage([]byte("x"), nil)
	assert.ErrorIs(t, err, ErrNoDestination)

	_, err = a.gate.SendCommand([]byte(strings.Repeat("x", 9)), hub.MemoryAddr("b"))
	assert.ErrorIs(t, err, mtp.ErrTooLarge)

	_, err = a.gate.SendCommand([]byte("x"), hub.MemoryAddr("nobody"))
	assert.ErrorIs(t, err, hub.ErrUnreachable)
	assert.Equal(t, 0, a.gate.Pending())

	require.NoError(t, a.gate.Close())
	_, err = a.gate.SendCommand([]byte("x"), hub.MemoryAddr("b"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, a.gate.Process())
	assert.NoError(t, a.gate.Close())
}

func TestAutoGate(t *testing.T) {
	network := hub.NewMemoryNetwork()
	defer network.Close()

	newAuto := func(name string) (*AutoGate, *recorder) {
		h, err := network.Listen(name, 0)
		require.NoError(t, err)
		rec := &recorder{}
		handler := rec.handler(nil)
		engine := reassembly.NewEngine(reassembly.Config{Recycler: handler})
		return NewAutoGate(h, engine, handler, Config{MaxBody: 3, Idle: time.Millisecond}), rec
	}
	a, aRec := newAuto("a")
	b, bRec := newAuto("b")

	assert.Equal(t, Stopped, a.State())
	a.Start()
	b.Start()
	b.Start() // restarts
	assert.Equal(t, Running, a.State())
	assert.Equal(t, Running, b.State())

	_, err := a.SendMessage([]byte("over the wire"), b.LocalAddr())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(aRec.Events()) == 1 && len(bRec.Events()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"message over the wire from a"}, bRec.Events())
	assert.Equal(t, []string{"message success b"}, aRec.Events())

	a.Stop()
	assert.Equal(t, Stopped, a.State())
	a.Stop()

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	assert.Equal(t, Stopped, b.State())
}

// countingHub counts Process calls made by the gate loop.
type countingHub struct {
	*hub.MemoryHub
	processed atomic.Int32
}

func (h *countingHub) Process() bool {
	h.processed.Add(1)
	return h.MemoryHub.Process()
}

func TestAutoGateSleepsWhenIdle(t *testing.T) {
	network := hub.NewMemoryNetwork()
	defer network.Close()
	mh, err := network.Listen("a", 0)
	require.NoError(t, err)
	h := &countingHub{MemoryHub: mh}

	clk := clock.NewMock()
	handler := (&recorder{}).handler(nil)
	engine := reassembly.NewEngine(reassembly.Config{Clock: clk, Recycler: handler})
	g := NewAutoGate(h, engine, handler, Config{
		Clock:         clk,
		Idle:          100 * time.Millisecond,
		SweepInterval: time.Hour,
	})
	g.Start()
	defer g.Close()

	require.Eventually(t, func() bool {
		return h.processed.Load() >= 1
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), h.processed.Load(), "no work, so the loop waits on the idle timer")

	clk.Add(99 * time.Millisecond)
	assert.Never(t, func() bool {
		return h.processed.Load() > 1
	}, 50*time.Millisecond, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		clk.Add(time.Millisecond)
		return h.processed.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "unknown", State(7).String())
}
