// Package repository holds the canonical state reconciled from the producer
// stream.
package repository

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/okian/ssr3bridge/internal/domain/levellock"
	"github.com/okian/ssr3bridge/internal/domain/model"
)

// NamedValue is one producer value. Value is upper-case hex, 2*Size digits.
type NamedValue struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Address     string    `json:"address"`
	Size        int       `json:"size"`
	LastChanged time.Time `json:"lastChanged"`
}

// Number decodes the hex value.
func (v NamedValue) Number() (uint64, bool) {
	n, err := strconv.ParseUint(v.Value, 16, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Snapshot is an immutable view of the store at one revision.
// It must not be modified by callers.
type Snapshot struct {
	values map[string]NamedValue

	Revision        uint64
	Connected       bool
	Active          bool
	Subsystem       string
	ProducerVersion string
	LastError       string
	LastChanged     []string // sorted
	LastChangedAt   time.Time
	LastReceivedAt  time.Time
	Latch           levellock.State
}

// Value returns the named value for key.
func (s *Snapshot) Value(key string) (NamedValue, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Hex returns the raw hex text of key's value.
func (s *Snapshot) Hex(key string) (string, bool) {
	v, ok := s.values[key]
	return v.Value, ok
}

// Number returns the integer form of key's value.
func (s *Snapshot) Number(key string) (uint64, bool) {
	v, ok := s.values[key]
	if !ok {
		return 0, false
	}
	return v.Number()
}

// Int is Number narrowed to int, 0 when the key is unknown.
func (s *Snapshot) Int(key string) int {
	n, _ := s.Number(key)
	return int(n) //nolint:gosec // producer values are at most 4 bytes
}

// Has reports whether key is present.
func (s *Snapshot) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Keys returns all keys, sorted.
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns all named values ordered by key.
func (s *Snapshot) Values() []NamedValue {
	out := make([]NamedValue, 0, len(s.values))
	for _, k := range s.Keys() {
		out = append(out, s.values[k])
	}
	return out
}

// Len returns the number of values.
func (s *Snapshot) Len() int { return len(s.values) }

// Changed reports whether key is in the last-changed set.
func (s *Snapshot) Changed(key string) bool {
	i := sort.SearchStrings(s.LastChanged, key)
	return i < len(s.LastChanged) && s.LastChanged[i] == key
}

// Change describes the effect of one Apply.
type Change struct {
	Revision uint64
	// Keys changed by this ingestion; empty for non-data events and for a
	// full snapshot that changed nothing.
	Keys      []string
	LatchFrom levellock.Phase
	LatchTo   levellock.Phase
}

// LatchMoved reports whether the level-lock phase changed.
func (c Change) LatchMoved() bool { return c.LatchFrom != c.LatchTo }

// Store provides ordered writes and consistent reads of the canonical state.
type Store interface {
	// Apply merges one transport event. Calls must be serialised by the caller.
	Apply(ctx context.Context, e model.Event) (Change, error)

	// Snapshot returns the current immutable snapshot.
	Snapshot() *Snapshot

	// Subscribe returns a channel that receives the latest revision after
	// every publication. Slow readers only see the newest revision.
	// The channel is closed when ctx is done.
	Subscribe(ctx context.Context) <-chan uint64

	// Reset drops every value, the change tracking and the latch, and
	// returns the revision it published.
	Reset(ctx context.Context) uint64

	// Count returns the number of held values.
	Count(ctx context.Context) int
}
