package fakeproducer

import (
	"github.com/okian/ssr3bridge/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithRegisters replaces the default address table.
func WithRegisters(regs []Register) Option {
	return func(s *Server) {
		if len(regs) > 0 {
			s.setRegisters(regs)
		}
	}
}

// WithVersion sets the version announced in hello.
func WithVersion(v string) Option {
	return func(s *Server) {
		if v != "" {
			s.version = v
		}
	}
}

// WithStatus sets the status sent after hello.
func WithStatus(active bool, mainram string) Option {
	return func(s *Server) {
		s.active = active
		s.mainram = mainram
	}
}

// WithLogger sets a custom logger for the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
