package repository

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/ssr3bridge/internal/domain/levellock"
	"github.com/okian/ssr3bridge/internal/domain/model"
	"github.com/okian/ssr3bridge/internal/domain/protocol"
	"github.com/okian/ssr3bridge/pkg/metrics"
)

type latchKeys struct {
	intensity string
	confirm1  string
	confirm2  string
}

func (k latchKeys) touched(keys []string) bool {
	for _, key := range keys {
		if key == k.intensity || key == k.confirm1 || key == k.confirm2 {
			return true
		}
	}
	return false
}

// MemoryStore is a copy-on-write Store. Writers are serialised by mu; readers
// load the published snapshot without locking.
type MemoryStore struct {
	mu        sync.Mutex
	snapshot  atomic.Pointer[Snapshot]
	now       func() time.Time
	latchKeys latchKeys

	subMu sync.Mutex
	subs  map[chan uint64]struct{}
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		now: time.Now,
		latchKeys: latchKeys{
			intensity: protocol.KeyNoiseRate,
			confirm1:  protocol.KeyConfirm1,
			confirm2:  protocol.KeyConfirm2,
		},
		subs: make(map[chan uint64]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot.Store(&Snapshot{values: map[string]NamedValue{}})
	return s
}

// Snapshot implements Store.
func (s *MemoryStore) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context) int {
	return s.snapshot.Load().Len()
}

// Apply implements Store.
func (s *MemoryStore) Apply(ctx context.Context, e model.Event) (Change, error) { //nolint:gocritic // hugeParam: Event is passed by value through the queue
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.snapshot.Load()
	next := *prev
	now := e.ReceivedAt
	if now.IsZero() {
		now = s.now()
	}

	var changed []string
	switch e.Kind {
	case model.EventConnected:
		next.Connected = true
	case model.EventDisconnected:
		next.Connected = false
		next.Active = false
	case model.EventMessage:
		var err error
		changed, err = applyMessage(&next, prev, e.Message, now)
		if err != nil {
			return Change{}, err
		}
		if s.latchKeys.touched(protocol.Keys(e.Message)) {
			s.advanceLatch(&next, prev)
		}
	default:
		return Change{}, fmt.Errorf("%w: kind %d", ErrUnknownEvent, e.Kind)
	}

	next.Revision = prev.Revision + 1
	s.publish(&next)

	change := Change{
		Revision:  next.Revision,
		Keys:      changed,
		LatchFrom: prev.Latch.Phase(),
		LatchTo:   next.Latch.Phase(),
	}
	s.record(&next, change)
	return change, nil
}

// applyMessage merges m into next. next shares prev's maps until replaced.
func applyMessage(next, prev *Snapshot, m protocol.Message, now time.Time) ([]string, error) {
	next.LastReceivedAt = now

	switch msg := m.(type) {
	case protocol.Hello:
		next.ProducerVersion = msg.Version
	case protocol.Pong:
	case protocol.Full:
		values := make(map[string]NamedValue, len(msg.Data))
		var changed []string
		for key, entry := range msg.Data {
			v := NamedValue{Key: key, Value: entry.Value, Address: entry.Address, Size: entry.Size, LastChanged: now}
			if old, ok := prev.values[key]; ok {
				if old.Value == entry.Value {
					v.LastChanged = old.LastChanged
				} else {
					changed = append(changed, key)
				}
			}
			values[key] = v
		}
		next.values = values
		if len(changed) > 0 {
			sort.Strings(changed)
			next.LastChanged = changed
			next.LastChangedAt = now
		}
		return changed, nil
	case protocol.Delta:
		values := maps.Clone(prev.values)
		changed := make([]string, 0, len(msg.Data))
		for key, entry := range msg.Data {
			if old, ok := values[key]; ok {
				old.Value = protocol.Refit(entry.Value, old.Size)
				if len(old.Value) != 2*old.Size {
					old.Size = len(old.Value) / 2
				}
				old.LastChanged = now
				values[key] = old
			} else {
				values[key] = NamedValue{Key: key, Value: entry.Value, Size: entry.Size, LastChanged: now}
			}
			changed = append(changed, key)
		}
		sort.Strings(changed)
		next.values = values
		next.LastChanged = changed
		next.LastChangedAt = now
		return changed, nil
	case protocol.Status:
		next.Active = msg.GameActive
		if msg.Mainram != "" {
			next.Subsystem = msg.Mainram
		}
	case protocol.Error:
		next.LastError = fmt.Sprintf("[%s] %s", msg.Code, msg.Msg)
		metrics.RecordProducerError()
	default:
		return nil, fmt.Errorf("%w: message %T", ErrUnknownEvent, m)
	}
	return nil, nil
}

// advanceLatch runs the level-lock transition once all three registers are known.
func (s *MemoryStore) advanceLatch(next, prev *Snapshot) {
	k := s.latchKeys
	if !next.Has(k.intensity) || !next.Has(k.confirm1) || !next.Has(k.confirm2) {
		return
	}
	next.Latch = levellock.Next(prev.Latch, levellock.Reading{
		Confirm1:      next.Int(k.confirm1),
		Confirm2:      next.Int(k.confirm2),
		Intensity:     next.Int(k.intensity),
		PrevIntensity: prev.Int(k.intensity),
	})
}

// Reset implements Store.
func (s *MemoryStore) Reset(ctx context.Context) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.snapshot.Load()
	next := *prev
	next.values = map[string]NamedValue{}
	next.LastChanged = nil
	next.LastChangedAt = time.Time{}
	next.Latch = levellock.State{}
	next.Revision = prev.Revision + 1
	s.publish(&next)
	s.record(&next, Change{Revision: next.Revision, LatchFrom: prev.Latch.Phase(), LatchTo: levellock.Free})
	return next.Revision
}

// Subscribe implements Store.
func (s *MemoryStore) Subscribe(ctx context.Context) <-chan uint64 {
	ch := make(chan uint64, 1)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	go func() {
		<-ctx.Done()
		s.subMu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.subMu.Unlock()
	}()
	return ch
}

// publish stores next and wakes subscribers. Called with mu held.
func (s *MemoryStore) publish(next *Snapshot) {
	s.snapshot.Store(next)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- next.Revision:
		default:
			// Replace the unread revision with the newest one.
			select {
			case <-ch:
			default:
			}
			ch <- next.Revision
		}
	}
}

func (s *MemoryStore) record(next *Snapshot, c Change) {
	metrics.UpdateStoreKeys(next.Len())
	metrics.UpdateStoreRevision(next.Revision)
	metrics.UpdateProducerActive(next.Active)
	if c.Keys != nil {
		metrics.RecordChangedKeys(len(c.Keys))
	}
	if c.LatchMoved() {
		metrics.RecordLatchTransition(c.LatchTo.String())
	}
	metrics.UpdateLatchPhase(int(c.LatchTo))
}
