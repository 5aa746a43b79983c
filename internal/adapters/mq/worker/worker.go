package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/ssr3bridge/internal/adapters/repository"
	"github.com/okian/ssr3bridge/internal/domain/model"
	"github.com/okian/ssr3bridge/pkg/logger"
	"github.com/okian/ssr3bridge/pkg/metrics"
)

// Event abstracts what the worker reads off the queue.
type Event = model.Event

// Applier merges one event into the canonical state.
type Applier interface {
	Apply(ctx context.Context, e model.Event) (repository.Change, error)
}

// Queue defines how the worker receives events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker applies events in queue order.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is drained.
	Run(ctx context.Context)

	// Shutdown waits for Run to return. Close the queue first so the
	// remaining events are applied; when ctx ends first the loop is stopped.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker is the only writer of the store.
type InMemoryWorker struct {
	queue   Queue
	applier Applier
	name    string

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		applier:  applier,
		name:     "ingest",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "ingest" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	eventChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if err := w.processEvent(ctx, event); err != nil {
				w.logger.Error(ctx, "error applying event", logger.Error(err))
			}
		}
	}
}

// Shutdown waits for the loop to finish.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
	}

	w.stopOnce.Do(func() { close(w.shutdown) })
	w.logger.Warn(ctx, "shutdown timed out")
	return fmt.Errorf("shutdown timed out: %w", ctx.Err())
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) processEvent(ctx context.Context, event Event) error { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	change, err := w.applier.Apply(ctx, event)
	if err != nil {
		metrics.RecordErrorByComponent("worker", "apply_error")
		return fmt.Errorf("apply %s event from %s: %w", event.Kind, event.ConnID, err)
	}

	if !event.ReceivedAt.IsZero() {
		metrics.RecordIngestLatency(float64(time.Since(event.ReceivedAt).Microseconds()) / 1000)
	}

	if change.LatchMoved() {
		w.logger.Info(ctx, "level lock moved",
			logger.String("from", change.LatchFrom.String()),
			logger.String("to", change.LatchTo.String()),
			logger.Uint64("revision", change.Revision),
		)
	}
	if len(change.Keys) > 0 {
		w.logger.Debug(ctx, "values changed",
			logger.Strings("keys", change.Keys),
			logger.Uint64("revision", change.Revision),
		)
	}
	return nil
}
