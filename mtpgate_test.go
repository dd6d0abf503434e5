package mtpgate

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/mtpgate/config"
	"github.com/opd-ai/mtpgate/hub"
	"github.com/opd-ai/mtpgate/mtp"
	"github.com/opd-ai/mtpgate/peer"
)

type inbox struct {
	mu       sync.Mutex
	messages []string
	acked    []mtp.TransactionID
}

func (i *inbox) handler() *peer.Callbacks {
	return &peer.Callbacks{
		Message: func(body []byte, source, destination net.Addr) bool {
			i.mu.Lock()
			defer i.mu.Unlock()
			i.messages = append(i.messages, string(body))
			return true
		},
		MessageSuccess: func(sn mtp.TransactionID, destination, source net.Addr) {
			i.mu.Lock()
			defer i.mu.Unlock()
			i.acked = append(i.acked, sn)
		},
	}
}

func (i *inbox) snapshot() ([]string, []mtp.TransactionID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.messages...), append([]mtp.TransactionID(nil), i.acked...)
}

func testOptions() *config.Options {
	opts := config.NewOptions()
	opts.MaxBody = 16
	opts.Idle = time.Millisecond
	return opts
}

func TestNodesExchangeMessages(t *testing.T) {
	network := hub.NewMemoryNetwork()
	ha, err := network.Listen("alice", 0)
	require.NoError(t, err)
	hb, err := network.Listen("bob", 0)
	require.NoError(t, err)

	var aliceBox, bobBox inbox
	alice, err := NewWithHub(testOptions(), ha, aliceBox.handler())
	require.NoError(t, err)
	bob, err := NewWithHub(testOptions(), hb, bobBox.handler())
	require.NoError(t, err)

	alice.Start()
	bob.Start()
	assert.True(t, alice.IsRunning())

	long := strings.Repeat("0123456789", 10)
	sn, err := alice.SendMessage([]byte(long), bob.LocalAddr())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, acked := aliceBox.snapshot()
		return len(acked) == 1
	}, 2*time.Second, 5*time.Millisecond)

	messages, _ := bobBox.snapshot()
	assert.Equal(t, []string{long}, messages)
	_, acked := aliceBox.snapshot()
	assert.Equal(t, sn, acked[0])

	require.NoError(t, alice.Close())
	require.NoError(t, bob.Close())
	assert.False(t, alice.IsRunning())
}

func TestNodeGuardRejectsFlood(t *testing.T) {
	network := hub.NewMemoryNetwork()
	raw, err := network.Listen("attacker", 0)
	require.NoError(t, err)
	hv, err := network.Listen("victim", 0)
	require.NoError(t, err)

	opts := testOptions()
	opts.MaxIncomplete = 2
	victim, err := NewWithHub(opts, hv, nil)
	require.NoError(t, err)
	defer victim.Close()
	victim.Start()

	for i := 0; i < 5; i++ {
		data, err := mtp.NewPacket(mtp.MessageFragment, mtp.NewTransactionID(), 4, 0, []byte("x")).Bytes()
		require.NoError(t, err)
		_, err = raw.Send(data, victim.LocalAddr())
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		return victim.Guard().Rejections(raw.LocalAddr()) == 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, victim.Engine().Pending(raw.LocalAddr()))

	assert.Equal(t, 2, victim.Disconnect(raw.LocalAddr()))
	assert.Equal(t, 0, victim.Engine().Len())
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	opts := config.NewOptions()
	opts.MaxBody = 0
	_, err := New(opts, nil)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestNewUDP(t *testing.T) {
	opts := config.NewOptions()
	opts.ListenAddr = "127.0.0.1:0"
	node, err := New(opts, nil)
	require.NoError(t, err)

	assert.Equal(t, "udp", node.LocalAddr().Network())
	_, ok := node.PublicAddr()
	assert.False(t, ok)
	assert.NotNil(t, node.Metrics())
	require.NoError(t, node.Close())
}
