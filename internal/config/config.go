// Package config defines bridge configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load(ctx) layers defaults, an optional YAML file and SSR3_* env vars.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Transport networks understood by the pipe adapter.
const (
	NetworkUnix = "unix"
	NetworkTCP  = "tcp"
	NetworkPipe = "pipe"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address for the read API, e.g. "127.0.0.1:9470".
	Addr string `koanf:"addr"`

	// PipeNetwork is one of unix, tcp or pipe (Windows named pipe).
	PipeNetwork string `koanf:"pipe_network"`

	// PipeAddress is the producer endpoint (socket path, host:port or pipe name).
	PipeAddress string `koanf:"pipe_address"`

	// ReconnectIntervalMS is the fixed delay between reconnection attempts.
	ReconnectIntervalMS int `koanf:"reconnect_interval_ms"`

	// DialTimeoutMS bounds a single connection attempt. Zero disables the bound.
	DialTimeoutMS int `koanf:"dial_timeout_ms"`

	// MaxFrameBytes caps the framing buffer while waiting for a newline.
	MaxFrameBytes int `koanf:"max_frame_bytes"`

	// QueueSize bounds the ingestion mailbox between transport and store.
	QueueSize int `koanf:"queue_size"`

	// CatalogPath optionally points at a YAML reference-data file.
	CatalogPath string `koanf:"catalog_path"`

	// WSPath is the websocket feed endpoint.
	WSPath string `koanf:"ws_path"`

	// WSWriteTimeoutMS bounds a single websocket write.
	WSWriteTimeoutMS int `koanf:"ws_write_timeout_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	network, address := defaultEndpoint()
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                "127.0.0.1:9470",
		PipeNetwork:         network,
		PipeAddress:         address,
		ReconnectIntervalMS: 2000,
		DialTimeoutMS:       5000,
		MaxFrameBytes:       1 << 20,
		QueueSize:           1024,
		CatalogPath:         "",
		WSPath:              "/ws",
		WSWriteTimeoutMS:    2000,
	}
}

func defaultEndpoint() (string, string) {
	if runtime.GOOS == "windows" {
		return NetworkPipe, `\\.\pipe\ssr3_viewer`
	}
	return NetworkUnix, "/tmp/ssr3_viewer.sock"
}

// ReconnectInterval returns the reconnect delay as a duration.
func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.ReconnectIntervalMS) * time.Millisecond
}

// DialTimeout returns the dial bound as a duration.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMS) * time.Millisecond
}

// WSWriteTimeout returns the websocket write bound as a duration.
func (c *Config) WSWriteTimeout() time.Duration {
	return time.Duration(c.WSWriteTimeoutMS) * time.Millisecond
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.PipeAddress == "":
		return fmt.Errorf("%w: pipe_address must not be empty", ErrInvalidConfig)
	case c.ReconnectIntervalMS <= 0:
		return fmt.Errorf("%w: reconnect_interval_ms must be positive", ErrInvalidConfig)
	case c.DialTimeoutMS < 0:
		return fmt.Errorf("%w: dial_timeout_ms must not be negative", ErrInvalidConfig)
	case c.MaxFrameBytes <= 0:
		return fmt.Errorf("%w: max_frame_bytes must be positive", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WSPath == "" || c.WSPath[0] != '/':
		return fmt.Errorf("%w: ws_path must start with /", ErrInvalidConfig)
	}
	switch c.PipeNetwork {
	case NetworkUnix, NetworkTCP, NetworkPipe:
	default:
		return fmt.Errorf("%w: unknown pipe_network %q", ErrInvalidConfig, c.PipeNetwork)
	}
	return nil
}
