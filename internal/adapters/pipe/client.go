// Package pipe is the producer transport. It keeps one connection to the
// memory-reading producer alive, frames its newline-delimited JSON stream and
// publishes an ordered stream of connection and message events.
//
// Reconnection uses a single fixed-interval timer; at most one timer is
// pending and at most one connection is live. Every connection gets a fresh
// id and generation, and anything produced by an older generation is
// discarded before it reaches the publisher.
package pipe

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ssr3bridge/internal/domain/model"
	"github.com/okian/ssr3bridge/internal/domain/protocol"
	"github.com/okian/ssr3bridge/pkg/logger"
	"github.com/okian/ssr3bridge/pkg/metrics"
)

const (
	defaultNetwork     = "unix"
	defaultAddress     = "/tmp/ssr3_viewer.sock"
	defaultInterval    = 2 * time.Second
	defaultDialTimeout = 5 * time.Second
	defaultMaxFrame    = 1 << 20
	readBufferSize     = 32 * 1024
)

// Publisher receives transport events in order.
type Publisher interface {
	Publish(ctx context.Context, e model.Event) error
}

// Stats is a point-in-time view of the transport.
type Stats struct {
	Connected    bool   `json:"connected"`
	ConnID       string `json:"connId,omitempty"`
	Network      string `json:"network"`
	Address      string `json:"address"`
	Dials        uint64 `json:"dials"`
	DialFailures uint64 `json:"dialFailures"`
	Frames       uint64 `json:"frames"`
	Dropped      uint64 `json:"dropped"`
}

// Client is the reconnecting producer connection.
type Client struct {
	network     string
	address     string
	dialer      Dialer
	pub         Publisher
	interval    time.Duration
	dialTimeout time.Duration
	maxFrame    int
	logger      logger.Logger
	now         func() time.Time

	// pubMu serialises publication so events of one generation never
	// interleave with the next. Lock order is pubMu then mu.
	pubMu sync.Mutex

	mu         sync.Mutex
	parent     context.Context
	stopped    bool
	gen        uint64
	conn       net.Conn
	connID     string
	dialing    bool
	cancelDial context.CancelFunc
	timer      *time.Timer
	timerSeq   uint64

	writeMu sync.Mutex

	dials    atomic.Uint64
	failures atomic.Uint64
	frames   atomic.Uint64
	dropped  atomic.Uint64
}

// New creates a disconnected client publishing to pub.
func New(pub Publisher, opts ...Option) *Client {
	c := &Client{
		network:     defaultNetwork,
		address:     defaultAddress,
		dialer:      &NetDialer{},
		pub:         pub,
		interval:    defaultInterval,
		dialTimeout: defaultDialTimeout,
		maxFrame:    defaultMaxFrame,
		logger:      logger.Get().Named("pipe"),
		now:         time.Now,
		stopped:     true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect starts connecting in the background. ctx bounds the whole session:
// when it ends the live connection is closed, Disconnected is published and
// no further attempts are made. Calling Connect while connected or while an
// attempt is in flight is a no-op.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil || c.dialing {
		return
	}
	c.parent = ctx
	c.stopped = false
	c.stopTimerLocked()
	c.startDialLocked()
}

// Disconnect cancels any pending attempt and timer and closes the live
// connection. A Disconnected event is published only if a connection was
// live. Nothing from the closed connection is published afterwards.
func (c *Client) Disconnect() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	c.stopped = true
	c.stopTimerLocked()
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	c.dialing = false
	conn, connID := c.conn, c.connID
	c.conn = nil
	c.gen++
	parent := c.parent
	c.mu.Unlock()

	if conn == nil {
		return
	}
	c.logger.Info(context.Background(), "disconnected", logger.String("conn_id", connID))
	c.teardown(parent, conn, connID)
}

// endSession closes the connection of gen once its Connect context ends.
func (c *Client) endSession(gen uint64) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	if gen != c.gen || c.conn == nil {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.stopTimerLocked()
	conn, connID := c.conn, c.connID
	c.conn = nil
	c.gen++
	parent := c.parent
	c.mu.Unlock()

	c.logger.Info(context.Background(), "session ended", logger.String("conn_id", connID))
	c.teardown(parent, conn, connID)
}

// teardown closes a connection that was just unlinked and publishes its
// Disconnected. Called with pubMu held.
func (c *Client) teardown(parent context.Context, conn net.Conn, connID string) {
	_ = conn.Close()
	metrics.RecordDisconnect()
	metrics.UpdateConnectionState(false)
	c.publish(detach(parent), model.Disconnected(connID, c.now()))
}

// Connected reports whether a connection is live.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send writes one command line to the live connection. When no connection
// is live the command is dropped and false is returned.
func (c *Client) Send(cmd protocol.Command) bool {
	name := cmd.Name()
	line, err := protocol.EncodeCommand(cmd)
	if err != nil {
		metrics.RecordCommandDropped(name, "encode")
		c.logger.Warn(context.Background(), "command encode failed", logger.String("cmd", name), logger.Error(err))
		return false
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		metrics.RecordCommandDropped(name, "not_connected")
		c.logger.Debug(context.Background(), "command dropped", logger.String("cmd", name))
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.dialTimeout > 0 {
		_ = conn.SetWriteDeadline(c.now().Add(c.dialTimeout))
	}
	if _, err := conn.Write(line); err != nil {
		metrics.RecordCommandDropped(name, "write_error")
		c.logger.Warn(context.Background(), "command write failed", logger.String("cmd", name), logger.Error(err))
		return false
	}
	metrics.RecordCommandSent(name)
	return true
}

// Stats returns transport counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	s := Stats{Connected: c.conn != nil, Network: c.network, Address: c.address}
	if s.Connected {
		s.ConnID = c.connID
	}
	c.mu.Unlock()
	s.Dials = c.dials.Load()
	s.DialFailures = c.failures.Load()
	s.Frames = c.frames.Load()
	s.Dropped = c.dropped.Load()
	return s
}

func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Client) scheduleLocked() {
	if c.stopped || c.timer != nil {
		return
	}
	if c.parent != nil && c.parent.Err() != nil {
		return
	}
	c.timerSeq++
	seq := c.timerSeq
	c.timer = time.AfterFunc(c.interval, func() { c.onTimer(seq) })
}

func (c *Client) onTimer(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.timerSeq || c.timer == nil {
		return
	}
	c.timer = nil
	if c.stopped || c.conn != nil || c.dialing {
		return
	}
	metrics.RecordReconnectAttempt()
	c.startDialLocked()
}

func (c *Client) startDialLocked() {
	c.gen++
	gen := c.gen
	connID := uuid.NewString()

	parent := c.parent
	if parent == nil {
		parent = context.Background()
	}
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.dialTimeout > 0 {
		ctx, cancel = context.WithTimeout(parent, c.dialTimeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	c.cancelDial = cancel
	c.dialing = true
	c.dials.Add(1)

	go c.dial(ctx, cancel, gen, connID)
}

func (c *Client) dial(ctx context.Context, cancel context.CancelFunc, gen uint64, connID string) {
	conn, err := c.dialer.DialContext(ctx, c.network, c.address)
	cancel()

	c.pubMu.Lock()
	c.mu.Lock()
	if gen != c.gen {
		// Cancelled or superseded; the attempt is silent.
		c.mu.Unlock()
		c.pubMu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	c.dialing = false
	c.cancelDial = nil
	parent := c.parent
	if parent == nil {
		parent = context.Background()
	}

	if err == nil && parent.Err() != nil {
		// The session ended while the dial completed.
		c.mu.Unlock()
		c.pubMu.Unlock()
		_ = conn.Close()
		return
	}
	if err != nil {
		c.scheduleLocked()
		c.mu.Unlock()
		c.failures.Add(1)
		metrics.RecordDialError()
		c.logger.Warn(ctx, "dial failed",
			logger.String("network", c.network),
			logger.String("address", c.address),
			logger.Error(err))
		c.publish(detach(parent), model.Disconnected(connID, c.now()))
		c.pubMu.Unlock()
		return
	}

	c.conn = conn
	c.connID = connID
	c.mu.Unlock()
	metrics.RecordConnect()
	metrics.UpdateConnectionState(true)
	c.logger.Info(context.Background(), "connected",
		logger.String("conn_id", connID),
		logger.String("address", c.address))
	c.publish(detach(parent), model.Connected(connID, c.now()))
	c.pubMu.Unlock()

	stop := context.AfterFunc(parent, func() { c.endSession(gen) })
	defer stop()
	c.readLoop(parent, conn, gen, connID)
}

func (c *Client) readLoop(ctx context.Context, conn net.Conn, gen uint64, connID string) {
	framer := NewFramer(c.maxFrame)
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			frames, ferr := framer.Push(buf[:n])
			if ferr != nil {
				c.dropped.Add(1)
				metrics.RecordDecodeError("oversize")
				c.logger.Warn(ctx, "frame dropped", logger.String("conn_id", connID), logger.Error(ferr))
			}
			for _, frame := range frames {
				c.handleFrame(ctx, frame, gen, connID)
			}
		}
		if err != nil {
			c.closed(conn, gen, connID, err)
			return
		}
	}
}

func (c *Client) handleFrame(ctx context.Context, frame []byte, gen uint64, connID string) {
	c.frames.Add(1)
	metrics.RecordFrame(len(frame))

	msg, err := protocol.Decode(frame)
	if err != nil {
		c.dropped.Add(1)
		reason := "malformed"
		if errors.Is(err, protocol.ErrUnknownKind) {
			reason = "unknown_kind"
		}
		metrics.RecordDecodeError(reason)
		c.logger.Warn(ctx, "frame decode failed", logger.String("reason", reason), logger.Error(err))
		return
	}
	metrics.RecordMessage(string(msg.Kind()))

	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	c.mu.Lock()
	current := c.gen
	c.mu.Unlock()
	if gen != current || ctx.Err() != nil {
		metrics.RecordStaleEvent()
		return
	}
	// Checked under pubMu: a frame that passes is delivered whole.
	c.publish(detach(ctx), model.Received(connID, msg, c.now()))
}

// closed handles a connection ending on its own. Disconnect owns the close
// when it bumped the generation first.
func (c *Client) closed(conn net.Conn, gen uint64, connID string, cause error) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.gen++
	c.scheduleLocked()
	parent := c.parent
	c.mu.Unlock()

	if errors.Is(cause, io.EOF) {
		c.logger.Info(context.Background(), "producer closed connection", logger.String("conn_id", connID))
	} else {
		c.logger.Warn(context.Background(), "connection lost", logger.String("conn_id", connID), logger.Error(cause))
	}
	c.teardown(parent, conn, connID)
}

// publish must be called with pubMu held.
func (c *Client) publish(ctx context.Context, e model.Event) {
	if c.pub == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.pub.Publish(ctx, e); err != nil {
		c.logger.Debug(ctx, "publish failed",
			logger.String("event", e.Kind.String()),
			logger.Error(err))
	}
}

// detach keeps an event deliverable once the publish decision is made, even
// if the session context ends while the publisher is blocked.
func detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
