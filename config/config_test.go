package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOptionsDefaults(t *testing.T) {
	opts := NewOptions()
	require.NoError(t, opts.Validate())

	assert.Equal(t, ":0", opts.ListenAddr)
	assert.Equal(t, 1200, opts.MaxBody)
	assert.Equal(t, 10*time.Minute, opts.Expires)
	assert.Equal(t, 30*time.Second, opts.SendTimeout)
	assert.Equal(t, 128*time.Millisecond, opts.Idle)
	assert.Equal(t, time.Second, opts.SweepInterval)
	assert.Equal(t, 32, opts.MaxIncomplete)
	assert.Equal(t, 16, opts.Shards)
	assert.Equal(t, 256, opts.QueueSize)
	assert.Equal(t, "info", opts.LogLevel)
	assert.Empty(t, opts.MetricsAddr)
	assert.False(t, opts.Discover)
}

func TestLoadOverridesDefinedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mtpgate.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr = " 0.0.0.0:9394 "
max_body = 512
expires = "2m"
send_timeout = "5s"
max_incomplete = 4
log_level = "DEBUG"
metrics_addr = "127.0.0.1:9100"
`), 0o600))

	opts, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9394", opts.ListenAddr)
	assert.Equal(t, 512, opts.MaxBody)
	assert.Equal(t, 2*time.Minute, opts.Expires)
	assert.Equal(t, 5*time.Second, opts.SendTimeout)
	assert.Equal(t, 4, opts.MaxIncomplete)
	assert.Equal(t, "debug", opts.LogLevel)
	assert.Equal(t, "127.0.0.1:9100", opts.MetricsAddr)

	// Untouched keys keep their defaults.
	assert.Equal(t, 128*time.Millisecond, opts.Idle)
	assert.Equal(t, 16, opts.Shards)
}

func TestLoadRejects(t *testing.T) {
	tests := map[string]string{
		"zero max body":     `max_body = 0`,
		"huge max body":     `max_body = 70000`,
		"bad duration":      `expires = "soon"`,
		"negative duration": `idle = "-1s"`,
		"zero shards":       `shards = 0`,
		"bad level":         `log_level = "loud"`,
		"bad format":        `log_format = "xml"`,
		"discover no stun":  `discover = true`,
		"unknown key":       `listen = ":1"`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(data)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestParseStunServers(t *testing.T) {
	opts, err := Parse(`
discover = true
stun_servers = ["stun.example.net:3478"]
`)
	require.NoError(t, err)
	assert.True(t, opts.Discover)
	assert.Equal(t, []string{"stun.example.net:3478"}, opts.STUNServers)
}

func TestConfigureLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.GetLevel())
	defer logrus.SetFormatter(logrus.StandardLogger().Formatter)

	opts := NewOptions()
	opts.LogLevel = "warn"
	opts.LogFormat = LogFormatJSON
	require.NoError(t, opts.ConfigureLogging())
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)
}
