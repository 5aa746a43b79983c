// Package feed pushes store revisions to websocket clients. A client gets a
// state frame on connect, then a change frame per published revision. When
// it falls behind by more than one revision, or keys appeared or vanished,
// it gets a fresh state frame instead.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/okian/ssr3bridge/internal/adapters/http/api"
	repository "github.com/okian/ssr3bridge/internal/adapters/repository"
	"github.com/okian/ssr3bridge/internal/domain/derive"
	"github.com/okian/ssr3bridge/pkg/logger"
	"github.com/okian/ssr3bridge/pkg/metrics"
)

const (
	defaultWriteTimeout = 2 * time.Second
	maxInboundMessage   = 512
)

// Frame types.
const (
	FrameState  = "state"
	FrameChange = "change"
)

// Source is the store side the hub reads from.
type Source interface {
	Snapshot() *repository.Snapshot
	Subscribe(ctx context.Context) <-chan uint64
	DerivedAt(snap *repository.Snapshot) derive.View
}

// Frame is one message sent to clients.
type Frame struct {
	Type     string      `json:"type"`
	Revision uint64      `json:"revision"`
	State    *api.State  `json:"state,omitempty"`
	Change   *Change     `json:"change,omitempty"`
	Derived  derive.View `json:"derived"`
}

// Change carries the values touched by one ingestion.
type Change struct {
	Connected bool                    `json:"connected"`
	Active    bool                    `json:"active"`
	LastError string                  `json:"lastError,omitempty"`
	Keys      []string                `json:"keys"`
	Values    []repository.NamedValue `json:"values"`
}

type client struct {
	id     string
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// Hub serves the websocket feed.
type Hub struct {
	src          Source
	upgrader     websocket.Upgrader
	writeTimeout time.Duration

	mu      sync.Mutex
	clients map[string]*client
	closed  bool

	logger logger.Logger
}

// New creates a hub reading from src.
func New(src Source, opts ...Option) *Hub {
	h := &Hub{
		src:          src,
		upgrader:     websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
		writeTimeout: defaultWriteTimeout,
		clients:      make(map[string]*client),
		logger:       logger.Get().Named("feed"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.cancel()
		_ = c.conn.Close()
	}
}

// ServeHTTP upgrades the request and streams frames until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug(r.Context(), "upgrade failed", logger.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &client{id: uuid.NewString(), conn: conn, cancel: cancel}
	if !h.add(c) {
		cancel()
		_ = conn.Close()
		return
	}
	defer h.remove(c)

	go h.readPump(c)
	h.writeLoop(ctx, c)
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	metrics.UpdateWSClients(len(h.clients))
	h.logger.Debug(context.Background(), "client joined", logger.String("client_id", c.id))
	return true
}

func (h *Hub) remove(c *client) {
	c.cancel()
	_ = c.conn.Close()

	h.mu.Lock()
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()
	metrics.UpdateWSClients(n)
	h.logger.Debug(context.Background(), "client left", logger.String("client_id", c.id))
}

// readPump discards inbound messages and ends the session when the peer
// goes away.
func (h *Hub) readPump(c *client) {
	defer c.cancel()
	c.conn.SetReadLimit(maxInboundMessage)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	updates := h.src.Subscribe(ctx)

	prev := h.src.Snapshot()
	if err := h.write(c, h.stateFrame(prev)); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			snap := h.src.Snapshot()
			if snap.Revision <= prev.Revision {
				continue
			}
			var frame Frame
			if snap.Revision == prev.Revision+1 && sameKeys(prev, snap) {
				frame = h.changeFrame(prev, snap)
			} else {
				frame = h.stateFrame(snap)
			}
			if err := h.write(c, frame); err != nil {
				return
			}
			prev = snap
		}
	}
}

// sameKeys reports whether a and b hold the same key set.
func sameKeys(a, b *repository.Snapshot) bool {
	if a.Len() != b.Len() {
		return false
	}
	for _, k := range a.Keys() {
		if !b.Has(k) {
			return false
		}
	}
	return true
}

func (h *Hub) write(c *client, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		h.logger.Error(context.Background(), "frame encode failed", logger.Error(err))
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			metrics.RecordWSDropped()
			h.logger.Debug(context.Background(), "client dropped",
				logger.String("client_id", c.id),
				logger.Error(err))
		}
		return err
	}
	metrics.RecordWSFrame()
	return nil
}

func (h *Hub) stateFrame(snap *repository.Snapshot) Frame {
	st := api.NewState(snap)
	return Frame{
		Type:     FrameState,
		Revision: snap.Revision,
		State:    &st,
		Derived:  h.src.DerivedAt(snap),
	}
}

// changeFrame describes the step from prev to snap. Keys are reported only
// when the step was a data ingestion.
func (h *Hub) changeFrame(prev, snap *repository.Snapshot) Frame {
	ch := &Change{
		Connected: snap.Connected,
		Active:    snap.Active,
		LastError: snap.LastError,
		Keys:      []string{},
		Values:    []repository.NamedValue{},
	}
	if !snap.LastChangedAt.Equal(prev.LastChangedAt) {
		ch.Keys = append(ch.Keys, snap.LastChanged...)
	}
	for _, k := range ch.Keys {
		if v, ok := snap.Value(k); ok {
			ch.Values = append(ch.Values, v)
		}
	}
	return Frame{
		Type:     FrameChange,
		Revision: snap.Revision,
		Change:   ch,
		Derived:  h.src.DerivedAt(snap),
	}
}
