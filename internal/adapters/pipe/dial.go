package pipe

import (
	"context"
	"fmt"
	"net"
)

// Dialer opens a byte stream to the producer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// NetDialer dials unix sockets and TCP through net.Dialer and Windows named
// pipes through go-winio.
type NetDialer struct {
	net.Dialer
}

// DialContext implements Dialer.
func (d *NetDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	switch network {
	case "unix", "tcp", "tcp4", "tcp6":
		return d.Dialer.DialContext(ctx, network, address)
	case "pipe":
		return dialPipe(ctx, address)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, network)
	}
}
