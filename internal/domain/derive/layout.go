// Package derive computes domain views from a store snapshot: the merged
// rezon effect, the noise card hand and the locked finalize level. Every
// function is pure over its inputs.
package derive

import (
	"strconv"

	"github.com/okian/ssr3bridge/internal/domain/protocol"
)

// Source is the read side of a snapshot.
type Source interface {
	Hex(key string) (string, bool)
}

// Layout names the keys the derivations read.
type Layout struct {
	// RezonSlots in ascending priority; the last non-nil override wins.
	RezonSlots     []string
	NoiseCardSlots []string
	Intensity      string
}

// DefaultLayout is brothers 1 to 6 followed by the player's own rezon, the
// five noise card slots and the noise rate register.
func DefaultLayout() Layout {
	l := Layout{Intensity: protocol.KeyNoiseRate}
	for i := 1; i <= protocol.BrotherSlots; i++ {
		l.RezonSlots = append(l.RezonSlots, protocol.BrotherRezonKey(i))
	}
	l.RezonSlots = append(l.RezonSlots, protocol.KeyMyRezon)
	for i := 1; i <= protocol.NoiseCardSlots; i++ {
		l.NoiseCardSlots = append(l.NoiseCardSlots, protocol.NoiseCardKey(i))
	}
	return l
}

func number(src Source, key string) (int, bool) {
	h, ok := src.Hex(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, false
	}
	return int(n), true
}
