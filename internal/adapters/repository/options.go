package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithClock sets the time source used when an event carries no timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLatchKeys sets the keys read by the level-lock latch.
func WithLatchKeys(intensity, confirm1, confirm2 string) Option {
	return func(s *MemoryStore) {
		if intensity != "" && confirm1 != "" && confirm2 != "" {
			s.latchKeys = latchKeys{intensity: intensity, confirm1: confirm1, confirm2: confirm2}
		}
	}
}
