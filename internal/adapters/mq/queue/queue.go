// Package queue is the single-writer mailbox between the transport and the
// ingestion worker.
//
// Events leave the queue in the order they were enqueued. Enqueue blocks
// while the queue is full instead of dropping, since a lost delta would
// corrupt change tracking.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/ssr3bridge/internal/domain/model"
	"github.com/okian/ssr3bridge/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Event represents the payload type flowing through the queue.
type Event = model.Event

// Queue provides blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an event, waiting for room while the queue is full.
	// It returns ErrStopped after Close and ctx.Err() when ctx ends first.
	Enqueue(ctx context.Context, e Event) error

	// Dequeue returns a channel that will receive events as they become available.
	// The channel is closed after Close once buffered events are handed out.
	// Only one consumer may dequeue at a time.
	Dequeue(ctx context.Context) <-chan Event

	// Len returns the current number of queued events.
	Len(ctx context.Context) int

	// Close stops accepting events.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events   chan Event
	capacity int
	done     chan struct{}
	once     sync.Once
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(q)
	}

	q.events = make(chan Event, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueDepth(0)

	return q
}

// Publish adapts the queue to the transport's publisher contract.
func (q *InMemoryQueue) Publish(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	return q.Enqueue(ctx, e)
}

// Enqueue adds an event to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	if q.IsClosed() {
		metrics.RecordQueueEnqueueError("closed")
		return ErrStopped
	}

	select {
	case q.events <- e:
		metrics.UpdateQueueDepth(len(q.events))
		return nil
	case <-q.done:
		metrics.RecordQueueEnqueueError("closed")
		return ErrStopped
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError("context_cancelled")
		return fmt.Errorf("enqueue: %w", ctx.Err())
	}
}

// Dequeue returns a channel that will receive events as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		forward := func(e Event) bool { //nolint:gocritic // hugeParam
			select {
			case out <- e:
				metrics.UpdateQueueDepth(len(q.events))
				return true
			case <-ctx.Done():
				return false
			}
		}
		for {
			select {
			case e := <-q.events:
				if !forward(e) {
					return
				}
			case <-q.done:
				for {
					select {
					case e := <-q.events:
						if !forward(e) {
							return
						}
					default:
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued events.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	size := len(q.events)
	metrics.UpdateQueueDepth(size)
	return size
}

// Close stops accepting events. Buffered events are still delivered.
func (q *InMemoryQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}
