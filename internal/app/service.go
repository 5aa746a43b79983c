// Package service wires the producer transport, the ingestion mailbox, the
// state store and the derivation layer into the read API used by the HTTP
// surface, the websocket feed and the terminal monitor.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	eventqueue "github.com/okian/ssr3bridge/internal/adapters/mq/queue"
	ingest "github.com/okian/ssr3bridge/internal/adapters/mq/worker"
	"github.com/okian/ssr3bridge/internal/adapters/pipe"
	repository "github.com/okian/ssr3bridge/internal/adapters/repository"
	"github.com/okian/ssr3bridge/internal/domain/catalog"
	"github.com/okian/ssr3bridge/internal/domain/derive"
	"github.com/okian/ssr3bridge/internal/domain/protocol"
	"github.com/okian/ssr3bridge/pkg/logger"
	"github.com/okian/ssr3bridge/pkg/metrics"
)

const (
	defaultQueueSize       = 1024
	defaultShutdownTimeout = 5 * time.Second
)

// Service implements the API dependencies for the bridge.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   *repository.MemoryStore
	queue   *eventqueue.InMemoryQueue
	worker  *ingest.InMemoryWorker
	client  *pipe.Client
	catalog catalog.Catalog
	layout  derive.Layout

	// Configuration
	queueSize       int
	autoConnect     bool
	shutdownTimeout time.Duration
	pipeOpts        []pipe.Option

	// State
	started   bool
	startedAt time.Time
	cancel    context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQueueSize sets the capacity of the ingestion mailbox.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithEndpoint sets the producer network and address.
func WithEndpoint(network, address string) Option {
	return func(s *Service) {
		s.pipeOpts = append(s.pipeOpts, pipe.WithEndpoint(network, address))
	}
}

// WithReconnectInterval sets the fixed delay between connection attempts.
func WithReconnectInterval(d time.Duration) Option {
	return func(s *Service) {
		s.pipeOpts = append(s.pipeOpts, pipe.WithReconnectInterval(d))
	}
}

// WithDialTimeout bounds a single connection attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.pipeOpts = append(s.pipeOpts, pipe.WithDialTimeout(d))
	}
}

// WithMaxFrameBytes caps the transport framing buffer.
func WithMaxFrameBytes(n int) Option {
	return func(s *Service) {
		s.pipeOpts = append(s.pipeOpts, pipe.WithMaxFrameBytes(n))
	}
}

// WithDialer replaces the transport dialer.
func WithDialer(d pipe.Dialer) Option {
	return func(s *Service) {
		s.pipeOpts = append(s.pipeOpts, pipe.WithDialer(d))
	}
}

// WithCatalog sets the reference data used by the derivations.
func WithCatalog(c catalog.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithLayout overrides the slot keys read by the derivations.
func WithLayout(l derive.Layout) Option {
	return func(s *Service) {
		s.layout = l
	}
}

// WithAutoConnect controls whether Start connects to the producer.
func WithAutoConnect(enabled bool) Option {
	return func(s *Service) {
		s.autoConnect = enabled
	}
}

// WithShutdownTimeout bounds how long Stop waits for the mailbox to drain.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration. The store exists
// from construction so reads work before Start.
func New(opts ...Option) *Service {
	s := &Service{
		store:           repository.NewMemoryStore(),
		catalog:         catalog.New(),
		layout:          derive.DefaultLayout(),
		queueSize:       defaultQueueSize,
		autoConnect:     true,
		shutdownTimeout: defaultShutdownTimeout,
		logger:          nil, // Will be replaced when service starts
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start creates the mailbox, starts the ingestion worker and, unless
// disabled, connects to the producer. The components outlive ctx's
// deadline; Stop ends them.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting bridge service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.worker = ingest.NewInMemoryWorker(s.queue, s.store)
	go s.worker.Run(runCtx)

	s.client = pipe.New(s.queue, s.pipeOpts...)
	if s.autoConnect {
		s.client.Connect(runCtx)
	}

	s.started = true
	s.startedAt = time.Now()
	stats := s.client.Stats()
	s.logger.Info(ctx, "bridge service started",
		logger.Int("queueSize", s.queueSize),
		logger.String("network", stats.Network),
		logger.String("address", stats.Address),
		logger.Bool("autoConnect", s.autoConnect),
	)

	return nil
}

// Stop disconnects from the producer, drains the mailbox into the store and
// stops the worker.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping bridge service...")

	// Disconnect first so its event is applied before the queue closes.
	if s.client != nil {
		s.client.Disconnect()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.worker != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
		if err := s.worker.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(ctx, "worker shutdown", logger.Error(err))
		}
		cancel()
	}
	if s.cancel != nil {
		s.cancel()
	}

	s.started = false
	s.logger.Info(ctx, "bridge service stopped")
}

// Connect starts connecting to the producer if not already connected.
func (s *Service) Connect(ctx context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client != nil {
		s.client.Connect(ctx)
	}
}

// Disconnect closes the producer connection and stops reconnecting.
func (s *Service) Disconnect() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client != nil {
		s.client.Disconnect()
	}
}

// Snapshot returns the current immutable state.
func (s *Service) Snapshot() *repository.Snapshot {
	return s.store.Snapshot()
}

// Subscribe returns a channel of published revisions; see repository.Store.
func (s *Service) Subscribe(ctx context.Context) <-chan uint64 {
	return s.store.Subscribe(ctx)
}

// Value returns the named value for key.
func (s *Service) Value(ctx context.Context, key string) (repository.NamedValue, error) {
	v, ok := s.store.Snapshot().Value(key)
	if !ok {
		return repository.NamedValue{}, fmt.Errorf("%w: %s", repository.ErrNotFound, key)
	}
	return v, nil
}

// Number returns key's value as an unsigned integer.
func (s *Service) Number(ctx context.Context, key string) (uint64, error) {
	v, err := s.Value(ctx, key)
	if err != nil {
		return 0, err
	}
	n, ok := v.Number()
	if !ok {
		return 0, fmt.Errorf("%w: %s is not numeric", repository.ErrNotFound, key)
	}
	return n, nil
}

// Connected reports whether the store has seen a live producer connection.
func (s *Service) Connected() bool { return s.store.Snapshot().Connected }

// Active reports whether the producer sees an instrumented target.
func (s *Service) Active() bool { return s.store.Snapshot().Active }

// LastChanged returns the keys changed by the most recent data message.
func (s *Service) LastChanged() []string {
	return append([]string(nil), s.store.Snapshot().LastChanged...)
}

// Derived computes the derivation view for the current snapshot.
func (s *Service) Derived(ctx context.Context) derive.View {
	snap := s.store.Snapshot()
	return s.derive(snap)
}

// DerivedAt computes the derivation view for snap.
func (s *Service) DerivedAt(snap *repository.Snapshot) derive.View {
	return s.derive(snap)
}

func (s *Service) derive(snap *repository.Snapshot) derive.View {
	v := derive.Compute(snap, snap.Latch, s.catalog, s.layout)
	v.Revision = snap.Revision
	return v
}

// Send forwards a command to the producer. It reports false when the
// command was dropped because no connection is live.
func (s *Service) Send(ctx context.Context, cmd protocol.Command) bool {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		metrics.RecordCommandDropped(cmd.Name(), "not_started")
		return false
	}
	sent := client.Send(cmd)
	if sent {
		s.logger.Debug(ctx, "command sent", logger.String("cmd", cmd.Name()))
	}
	return sent
}

// Refresh asks the producer for a full snapshot.
func (s *Service) Refresh(ctx context.Context) bool {
	return s.Send(ctx, protocol.Refresh{})
}

// Ping asks the producer for a pong.
func (s *Service) Ping(ctx context.Context) bool {
	return s.Send(ctx, protocol.Ping{})
}

// Reset drops every held value, the change tracking and the latch. It
// returns the revision the reset published.
func (s *Service) Reset(ctx context.Context) uint64 {
	rev := s.store.Reset(ctx)
	if s.logger != nil {
		s.logger.Info(ctx, "state reset", logger.Uint64("revision", rev))
	}
	return rev
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	snap := s.store.Snapshot()
	stats := map[string]interface{}{
		"started":         s.started,
		"queueSize":       s.queueSize,
		"keys":            s.store.Count(ctx),
		"revision":        snap.Revision,
		"connected":       snap.Connected,
		"active":          snap.Active,
		"subsystem":       snap.Subsystem,
		"producerVersion": snap.ProducerVersion,
		"latch":           snap.Latch.Phase().String(),
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
		stats["transport"] = s.client.Stats()

		metrics.UpdateQueueDepth(queueLen)
	}

	return stats
}
