//go:build !windows

package pipe

import (
	"context"
	"fmt"
	"net"
)

func dialPipe(_ context.Context, _ string) (net.Conn, error) {
	return nil, fmt.Errorf("%w: named pipes require windows", ErrUnsupportedNetwork)
}
