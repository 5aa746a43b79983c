package pipe

import (
	"time"

	"github.com/okian/ssr3bridge/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithEndpoint sets the producer network (unix, tcp or pipe) and address.
func WithEndpoint(network, address string) Option {
	return func(c *Client) {
		if network != "" {
			c.network = network
		}
		if address != "" {
			c.address = address
		}
	}
}

// WithReconnectInterval sets the fixed delay between connection attempts.
func WithReconnectInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithDialTimeout bounds a single connection attempt. Zero disables the bound.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.dialTimeout = d
		}
	}
}

// WithMaxFrameBytes caps how much data is buffered while waiting for a newline.
func WithMaxFrameBytes(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxFrame = n
		}
	}
}

// WithDialer replaces the network dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the timestamp source used for events.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}
