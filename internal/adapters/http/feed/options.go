package feed

import (
	"time"

	"github.com/okian/ssr3bridge/pkg/logger"
)

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithWriteTimeout bounds a single frame write; a client that cannot keep
// up is dropped.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
