// Package config holds the settings of an mtpgate node and loads them from
// TOML files.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/mtpgate/gate"
	"github.com/opd-ai/mtpgate/limits"
	"github.com/opd-ai/mtpgate/mtp"
	"github.com/opd-ai/mtpgate/peer"
	"github.com/opd-ai/mtpgate/reassembly"
)

// ErrInvalid is returned for settings that cannot work.
var ErrInvalid = errors.New("invalid configuration")

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Options contains the configuration of a node.
type Options struct {
	// ListenAddr is the UDP address to bind.
	ListenAddr string
	// MaxBody is the largest body carried by one packet; longer messages
	// are fragmented.
	MaxBody int
	// Expires is how long an incomplete inbound message survives without
	// receiving a fragment.
	Expires time.Duration
	// SendTimeout is how long an outgoing transaction waits for its
	// acknowledgements.
	SendTimeout time.Duration
	// Idle is the worker sleep after a pass without work.
	Idle          time.Duration
	SweepInterval time.Duration
	// MaxIncomplete bounds the incomplete inbound messages per source.
	MaxIncomplete int
	Shards        int
	QueueSize     int

	// Discover queries STUNServers for the public address at start.
	Discover    bool
	STUNServers []string

	LogLevel  string
	LogFormat string

	// MetricsAddr enables the Prometheus endpoint when not empty.
	MetricsAddr      string
	MetricsNamespace string
}

// NewOptions returns the default options.
func NewOptions() *Options {
	return &Options{
		ListenAddr:       ":0",
		MaxBody:          limits.DefaultMaxBody,
		Expires:          reassembly.DefaultExpires,
		SendTimeout:      gate.DefaultSendTimeout,
		Idle:             gate.DefaultIdle,
		SweepInterval:    gate.DefaultSweepInterval,
		MaxIncomplete:    peer.DefaultMaxIncomplete,
		Shards:           reassembly.DefaultShards,
		QueueSize:        gate.DefaultQueueSize,
		LogLevel:         "info",
		LogFormat:        LogFormatText,
		MetricsNamespace: "mtpgate",
	}
}

// Validate checks that the options can run a node.
func (o *Options) Validate() error {
	maxBody := limits.MaxDatagram - mtp.HeaderSize
	if o.MaxBody <= 0 || o.MaxBody > maxBody {
		return fmt.Errorf("%w: max_body %d outside 1..%d", ErrInvalid, o.MaxBody, maxBody)
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"expires", o.Expires},
		{"send_timeout", o.SendTimeout},
		{"idle", o.Idle},
		{"sweep_interval", o.SweepInterval},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, d.name, d.value)
		}
	}

	counts := []struct {
		name  string
		value int
	}{
		{"max_incomplete", o.MaxIncomplete},
		{"shards", o.Shards},
		{"queue_size", o.QueueSize},
	}
	for _, c := range counts {
		if c.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalid, c.name, c.value)
		}
	}

	if o.Discover && len(o.STUNServers) == 0 {
		return fmt.Errorf("%w: discover needs stun_servers", ErrInvalid)
	}
	if _, err := logrus.ParseLevel(o.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if o.LogFormat != LogFormatText && o.LogFormat != LogFormatJSON {
		return fmt.Errorf("%w: log_format %q", ErrInvalid, o.LogFormat)
	}
	return nil
}

// ConfigureLogging applies the log level and format to the standard logrus
// logger.
func (o *Options) ConfigureLogging() error {
	level, err := logrus.ParseLevel(o.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	logrus.SetLevel(level)
	if o.LogFormat == LogFormatJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
