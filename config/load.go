package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig maps config.toml keys.
type fileConfig struct {
	ListenAddr       string   `toml:"listen_addr"`
	MaxBody          int      `toml:"max_body"`
	Expires          string   `toml:"expires"`
	SendTimeout      string   `toml:"send_timeout"`
	Idle             string   `toml:"idle"`
	SweepInterval    string   `toml:"sweep_interval"`
	MaxIncomplete    int      `toml:"max_incomplete"`
	Shards           int      `toml:"shards"`
	QueueSize        int      `toml:"queue_size"`
	Discover         bool     `toml:"discover"`
	STUNServers      []string `toml:"stun_servers"`
	LogLevel         string   `toml:"log_level"`
	LogFormat        string   `toml:"log_format"`
	MetricsAddr      string   `toml:"metrics_addr"`
	MetricsNamespace string   `toml:"metrics_namespace"`
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value.
func Load(path string) (*Options, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return apply(raw, meta)
}

// Parse reads TOML text over the defaults.
func Parse(data string) (*Options, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return apply(raw, meta)
}

func apply(raw fileConfig, meta toml.MetaData) (*Options, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown key %q", ErrInvalid, undecoded[0].String())
	}

	opts := NewOptions()
	if meta.IsDefined("listen_addr") {
		opts.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("max_body") {
		opts.MaxBody = raw.MaxBody
	}
	if meta.IsDefined("max_incomplete") {
		opts.MaxIncomplete = raw.MaxIncomplete
	}
	if meta.IsDefined("shards") {
		opts.Shards = raw.Shards
	}
	if meta.IsDefined("queue_size") {
		opts.QueueSize = raw.QueueSize
	}
	if meta.IsDefined("discover") {
		opts.Discover = raw.Discover
	}
	if meta.IsDefined("stun_servers") {
		opts.STUNServers = raw.STUNServers
	}
	if meta.IsDefined("log_level") {
		opts.LogLevel = strings.ToLower(strings.TrimSpace(raw.LogLevel))
	}
	if meta.IsDefined("log_format") {
		opts.LogFormat = strings.ToLower(strings.TrimSpace(raw.LogFormat))
	}
	if meta.IsDefined("metrics_addr") {
		opts.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("metrics_namespace") {
		opts.MetricsNamespace = strings.TrimSpace(raw.MetricsNamespace)
	}

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"expires", raw.Expires, &opts.Expires},
		{"send_timeout", raw.SendTimeout, &opts.SendTimeout},
		{"idle", raw.Idle, &opts.Idle},
		{"sweep_interval", raw.SweepInterval, &opts.SweepInterval},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.value))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, d.key, err)
		}
		*d.dst = v
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}
