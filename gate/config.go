package gate

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/opd-ai/mtpgate/limits"
	"github.com/opd-ai/mtpgate/metrics"
	"github.com/opd-ai/mtpgate/reassembly"
)

const (
	// DefaultSendTimeout is how long an outgoing transaction waits for its
	// acknowledgements.
	DefaultSendTimeout = 30 * time.Second

	// DefaultQueueSize bounds the datagrams queued for one porter.
	DefaultQueueSize = 256

	// DefaultIdle is how long AutoGate sleeps after a pass with no work.
	DefaultIdle = 128 * time.Millisecond

	// DefaultSweepInterval is how often AutoGate sweeps expired state.
	DefaultSweepInterval = time.Second

	// DefaultPorterIdle is how long a silent porter is kept.
	DefaultPorterIdle = reassembly.DefaultExpires

	// receiveBatch bounds the datagrams pulled from the hub in one pass.
	receiveBatch = 256
)

// Config tunes a gate. Zero fields take the defaults above.
type Config struct {
	MaxBody       int
	SendTimeout   time.Duration
	QueueSize     int
	PorterIdle    time.Duration
	Idle          time.Duration
	SweepInterval time.Duration
	Clock         clock.Clock
	Metrics       *metrics.Collector
}

func (c Config) withDefaults() Config {
	if c.MaxBody <= 0 {
		c.MaxBody = limits.DefaultMaxBody
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.PorterIdle <= 0 {
		c.PorterIdle = DefaultPorterIdle
	}
	if c.Idle <= 0 {
		c.Idle = DefaultIdle
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c
}
