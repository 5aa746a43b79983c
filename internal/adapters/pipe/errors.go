package pipe

import "errors"

// Sentinel errors for the transport.
var (
	ErrNotConnected       = errors.New("not connected")
	ErrStopped            = errors.New("transport stopped")
	ErrFrameTooLarge      = errors.New("frame exceeds size limit")
	ErrUnsupportedNetwork = errors.New("unsupported network")
)
