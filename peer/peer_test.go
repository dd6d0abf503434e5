package peer

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/mtpgate/mtp"
	"github.com/opd-ai/mtpgate/reassembly"
)

var (
	remote = &net.UDPAddr{IP: net.IPv4(198, 51, 100, 7), Port: 4000}
	other  = &net.UDPAddr{IP: net.IPv4(198, 51, 100, 8), Port: 4000}
	local  = &net.UDPAddr{IP: net.IPv4(192, 0, 2, 1), Port: 5000}
)

func fragment(sn mtp.TransactionID, offset uint16) *mtp.Packet {
	return mtp.NewPacket(mtp.MessageFragment, sn, 2, offset, []byte{byte(offset)})
}

// admit offers f to guard and, when admitted, to the engine, the way a gate does.
func admit(t *testing.T, g *FloodGuard, e *reassembly.Engine, f *mtp.Packet, src net.Addr) bool {
	t.Helper()
	if !g.CheckFragment(f, src, local) {
		return false
	}
	_, _, err := e.Insert(f, src, local)
	require.NoError(t, err)
	return true
}

func TestFloodGuardLimitsIncompleteTransactions(t *testing.T) {
	engine := reassembly.NewEngine(reassembly.Config{})
	guard := NewFloodGuard(engine, 2, nil)

	first, second, third := mtp.NewTransactionID(), mtp.NewTransactionID(), mtp.NewTransactionID()
	assert.True(t, admit(t, guard, engine, fragment(first, 0), remote))
	assert.True(t, admit(t, guard, engine, fragment(second, 0), remote))

	// A third transaction from the same source is refused and leaves no record.
	assert.False(t, admit(t, guard, engine, fragment(third, 0), remote))
	assert.False(t, engine.Has(third, remote, local))
	assert.Equal(t, uint64(1), guard.Rejections(remote))

	// Pages of transactions already open are still admitted.
	assert.True(t, admit(t, guard, engine, fragment(first, 1), remote))

	// With one transaction finished the rejected id starts a fresh record.
	assert.True(t, admit(t, guard, engine, fragment(third, 1), remote))
	assert.True(t, engine.Has(third, remote, local))
	assert.Equal(t, 2, engine.Pending(remote))

	// Other sources are unaffected.
	assert.True(t, admit(t, guard, engine, fragment(mtp.NewTransactionID(), 0), other))
	assert.Equal(t, uint64(0), guard.Rejections(other))
}

func TestFloodGuardDefaultLimit(t *testing.T) {
	guard := NewFloodGuard(reassembly.NewEngine(reassembly.Config{}), 0, nil)
	assert.Equal(t, DefaultMaxIncomplete, guard.MaxIncomplete())
}

func TestCallbacksDefaults(t *testing.T) {
	var c Callbacks
	sn := mtp.NewTransactionID()

	assert.True(t, c.OnReceivedCommand([]byte("x"), remote, local))
	assert.True(t, c.OnReceivedMessage([]byte("x"), remote, local))
	assert.True(t, c.CheckFragment(fragment(sn, 0), remote, local))
	assert.NotPanics(t, func() {
		c.OnSendCommandSuccess(sn, remote, local)
		c.OnSendCommandTimeout(sn, remote, local)
		c.OnSendMessageSuccess(sn, remote, local)
		c.OnSendMessageTimeout(sn, remote, local)
		c.OnReceivedError(nil, remote, local)
		c.RecycleFragments(nil, remote, local)
	})
}

func TestCallbacksDelegate(t *testing.T) {
	var got []string
	c := &Callbacks{
		MessageSuccess: func(sn mtp.TransactionID, destination, source net.Addr) {
			got = append(got, "success "+destination.String())
		},
		Message: func(body []byte, source, destination net.Addr) bool {
			got = append(got, "message "+string(body))
			return false
		},
		Error: func(body []byte, source, destination net.Addr) {
			got = append(got, "error "+string(body))
		},
	}

	c.OnSendMessageSuccess(mtp.NewTransactionID(), remote, local)
	assert.False(t, c.OnReceivedMessage([]byte("hi"), remote, local))
	c.OnReceivedError([]byte("bad"), remote, local)

	assert.Equal(t, []string{"success " + remote.String(), "message hi", "error bad"}, got)
}
