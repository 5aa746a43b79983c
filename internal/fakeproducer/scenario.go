package fakeproducer

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/ssr3bridge/internal/domain/levellock"
	"github.com/okian/ssr3bridge/internal/domain/noiselevel"
	"github.com/okian/ssr3bridge/internal/domain/protocol"
)

// Step is one scripted register update.
type Step struct {
	Values map[string]uint64
	Pause  time.Duration
}

// LevelLockScript returns the register updates the game performs when the
// folder finalize screen opens at level and the noise rate is latched:
// the confirmation registers settle, the intensity register holds the rate,
// then the intensity drops to zero.
func LevelLockScript(level, rate int, pause time.Duration) ([]Step, error) {
	if level < noiselevel.MinLevel || level > noiselevel.MaxLevel {
		return nil, fmt.Errorf("level %d out of range", level)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("rate %d must be positive", rate)
	}
	intensity := uint64(rate * levellock.Divisor)
	return []Step{
		{Values: map[string]uint64{protocol.KeyNoiseRate: intensity}, Pause: pause},
		{Values: map[string]uint64{
			protocol.KeyConfirm1: uint64(level),
			protocol.KeyConfirm2: uint64(level),
		}, Pause: pause},
		{Values: map[string]uint64{protocol.KeyNoiseRate: 0}, Pause: pause},
	}, nil
}

// ReleaseScript closes the finalize screen.
func ReleaseScript(pause time.Duration) []Step {
	return []Step{{Values: map[string]uint64{
		protocol.KeyConfirm1: 0,
		protocol.KeyConfirm2: 0,
	}, Pause: pause}}
}

// Play applies steps in order, pausing after each.
func (s *Server) Play(ctx context.Context, steps []Step) error {
	for _, st := range steps {
		s.SetMany(st.Values)
		if st.Pause <= 0 {
			continue
		}
		t := time.NewTimer(st.Pause)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}
