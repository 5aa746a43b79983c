package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/ssr3bridge/internal/adapters/mq/queue"
	worker "github.com/okian/ssr3bridge/internal/adapters/mq/worker"
	"github.com/okian/ssr3bridge/internal/adapters/repository"
	model "github.com/okian/ssr3bridge/internal/domain/model"
	"github.com/okian/ssr3bridge/internal/domain/protocol"
	logging "github.com/okian/ssr3bridge/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	eventChan chan queue.Event
}

func newMockQueue() *mockQueue {
	return &mockQueue{eventChan: make(chan queue.Event, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Event {
	return mq.eventChan
}

type mockApplier struct {
	mu      sync.Mutex
	applied []model.Event
	err     error
}

func (m *mockApplier) Apply(ctx context.Context, e model.Event) (repository.Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return repository.Change{}, m.err
	}
	m.applied = append(m.applied, e)
	return repository.Change{Revision: uint64(len(m.applied))}, nil
}

func (m *mockApplier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.applied)
}

func delta(key, value string) model.Event {
	return model.Received("c1", protocol.Delta{Data: map[string]protocol.Entry{key: {Value: value, Size: len(value) / 2}}}, time.Now())
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading a real queue into a store", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		store := repository.NewMemoryStore()
		w := worker.NewInMemoryWorker(q, store, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go w.Run(ctx)

		convey.Convey("When events are enqueued and the queue is closed", func() {
			convey.So(q.Enqueue(ctx, model.Connected("c1", time.Now())), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, delta("ZENY", "01")), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, delta("ZENY", "02")), convey.ShouldBeNil)
			convey.So(q.Close(), convey.ShouldBeNil)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()
			err := w.Shutdown(shutdownCtx)

			convey.Convey("Then every event is applied in order", func() {
				convey.So(err, convey.ShouldBeNil)
				snap := store.Snapshot()
				convey.So(snap.Connected, convey.ShouldBeTrue)
				convey.So(snap.Revision, convey.ShouldEqual, 3)
				v, _ := snap.Value("ZENY")
				convey.So(v.Value, convey.ShouldEqual, "02")
			})
		})
	})

	convey.Convey("Given a worker whose store rejects events", t, func() {
		_ = logging.Init()

		mq := newMockQueue()
		applier := &mockApplier{err: errors.New("boom")}
		w := worker.NewInMemoryWorker(mq, applier)
		ctx, cancel := context.WithCancel(context.Background())
		convey.Reset(cancel)

		go w.Run(ctx)

		convey.Convey("When an event fails", func() {
			mq.eventChan <- delta("A", "01")
			applier.mu.Lock()
			applier.err = nil
			applier.mu.Unlock()
			mq.eventChan <- delta("A", "02")
			time.Sleep(50 * time.Millisecond)

			convey.Convey("Then the loop keeps going", func() {
				convey.So(applier.count(), convey.ShouldBeBetweenOrEqual, 1, 2)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			cancel()

			convey.Convey("Then the worker stops", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					convey.So("worker did not stop", convey.ShouldBeEmpty)
				}
			})
		})

		convey.Convey("When shutdown times out", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer shutdownCancel()
			err := w.Shutdown(shutdownCtx)

			convey.Convey("Then it reports the timeout and stops the loop", func() {
				convey.So(err, convey.ShouldNotBeNil)
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					convey.So("worker did not stop", convey.ShouldBeEmpty)
				}
			})
		})
	})
}
