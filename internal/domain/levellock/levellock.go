// Package levellock implements the latch that freezes the finalize level once
// the folder confirmation screen is left with a captured noise rate.
package levellock

// Divisor scales a raw intensity reading to a noise rate.
const Divisor = 10

// Phase is the externally visible latch state.
type Phase int

const (
	Free Phase = iota
	Captured
	Locked
)

func (p Phase) String() string {
	switch p {
	case Free:
		return "FREE"
	case Captured:
		return "CAPTURED"
	case Locked:
		return "LOCKED"
	default:
		return "UNKNOWN"
	}
}

// State is the latch memory. The zero value is Free.
type State struct {
	CapturedRate int  `json:"capturedRate"`
	HasRate      bool `json:"hasRate"`
	Finalized    bool `json:"finalized"`
}

// Phase derives the phase from the stored scalars.
func (s State) Phase() Phase {
	switch {
	case s.Finalized:
		return Locked
	case s.HasRate:
		return Captured
	default:
		return Free
	}
}

// Rate returns the captured rate and whether one is held.
func (s State) Rate() (int, bool) { return s.CapturedRate, s.HasRate }

// Reading is the set of register values one ingestion observed.
// PrevIntensity is the intensity before that ingestion.
type Reading struct {
	Confirm1      int
	Confirm2      int
	Intensity     int
	PrevIntensity int
}

func (r Reading) confirmed() bool {
	return r.Confirm1 == r.Confirm2 && r.Confirm1 >= 1 && r.Confirm1 <= 12
}

// Next applies one reading to s. Rules are checked in order; the first that
// matches decides the result.
func Next(s State, r Reading) State {
	// Both registers cleared: the only way back to Free.
	if r.Confirm1 == 0 && r.Confirm2 == 0 {
		return State{}
	}
	if s.Finalized {
		return s
	}
	if r.confirmed() && r.Intensity != 0 {
		return State{CapturedRate: r.Intensity / Divisor, HasRate: true}
	}
	if !s.HasRate {
		return s
	}
	if r.Intensity == 0 {
		if r.PrevIntensity != 0 && r.PrevIntensity/Divisor == s.CapturedRate {
			return State{CapturedRate: s.CapturedRate, HasRate: true, Finalized: true}
		}
		return s
	}
	if r.Intensity/Divisor != s.CapturedRate {
		return State{}
	}
	return s
}
