// Package catalog is the boundary to the static dictionaries that translate
// raw slot values into rezon cards and noise cards, and hand names into the
// tokens a hand grants. The dictionaries themselves are reference data
// supplied by the caller.
package catalog

import (
	"strings"
)

// Suit of a noise card. Joker carries no rank.
type Suit string

const (
	Spade   Suit = "spade"
	Heart   Suit = "heart"
	Diamond Suit = "diamond"
	Club    Suit = "club"
	Joker   Suit = "joker"
)

// Valid reports whether s is one of the five suits.
func (s Suit) Valid() bool {
	switch s {
	case Spade, Heart, Diamond, Club, Joker:
		return true
	}
	return false
}

// EffectKind names one effect token.
type EffectKind string

// Known effect tokens. Count tokens add their Amount; flag tokens set a flag.
const (
	EffectHPPlus       EffectKind = "hp_plus"
	EffectAttackPlus   EffectKind = "attack_plus"
	EffectRapidPlus    EffectKind = "rapid_plus"
	EffectChargePlus   EffectKind = "charge_plus"
	EffectSuperArmor   EffectKind = "super_armor"
	EffectFloatShoes   EffectKind = "float_shoes"
	EffectUndershirt   EffectKind = "undershirt"
	EffectFirstBarrier EffectKind = "first_barrier"
)

// Valid reports whether k is a known token.
func (k EffectKind) Valid() bool {
	switch k {
	case EffectHPPlus, EffectAttackPlus, EffectRapidPlus, EffectChargePlus,
		EffectSuperArmor, EffectFloatShoes, EffectUndershirt, EffectFirstBarrier:
		return true
	}
	return false
}

// Effect is one token of a card or hand effect list.
type Effect struct {
	Kind   EffectKind `yaml:"kind" json:"kind"`
	Amount int        `yaml:"amount,omitempty" json:"amount,omitempty"`
}

// Rezon is the aggregate entry a rezon slot maps to. Pointer fields are
// override fields; nil means the card does not set them.
type Rezon struct {
	Name         *string        `yaml:"name" json:"name,omitempty"`
	ChargeShot   *string        `yaml:"charge_shot" json:"chargeShot,omitempty"`
	FField       *string        `yaml:"f_field" json:"fField,omitempty"`
	FBarrier     *string        `yaml:"f_barrier" json:"fBarrier,omitempty"`
	AccessLv     int            `yaml:"access_lv" json:"accessLv"`
	FinalizeTurn int            `yaml:"finalize_turn" json:"finalizeTurn"`
	AttackStar   map[string]int `yaml:"attack_star" json:"attackStar,omitempty"`
}

// NoiseCard is the entry a noise card slot maps to. Rank is 0 for a joker.
type NoiseCard struct {
	Name    string   `yaml:"name" json:"name"`
	Suit    Suit     `yaml:"suit" json:"suit"`
	Rank    int      `yaml:"rank" json:"rank,omitempty"`
	Effects []Effect `yaml:"effects" json:"effects,omitempty"`
}

// Ranked reports whether the card carries a rank.
func (c NoiseCard) Ranked() bool { return c.Suit != Joker && c.Rank >= 1 && c.Rank <= 13 }

// Catalog resolves raw hex slot values and hand names.
type Catalog interface {
	Rezon(hex string) (Rezon, bool)
	NoiseCard(hex string) (NoiseCard, bool)
	// HandEffects returns the tokens granted by hand, nil when none.
	HandEffects(hand string) []Effect
}

// Map is an in-memory Catalog. Card keys are hex values compared
// case-insensitively and without leading zeros; hand keys are hand names.
type Map struct {
	Rezons     map[string]Rezon     `yaml:"rezon"`
	NoiseCards map[string]NoiseCard `yaml:"noise_cards"`
	Hands      map[string][]Effect  `yaml:"hand_effects"`
}

// New returns an empty catalog.
func New() *Map {
	return &Map{Rezons: map[string]Rezon{}, NoiseCards: map[string]NoiseCard{}, Hands: map[string][]Effect{}}
}

// AddRezon registers a rezon entry under hex.
func (m *Map) AddRezon(hex string, r Rezon) *Map {
	if m.Rezons == nil {
		m.Rezons = map[string]Rezon{}
	}
	m.Rezons[canonical(hex)] = r
	return m
}

// AddNoiseCard registers a noise card under hex.
func (m *Map) AddNoiseCard(hex string, c NoiseCard) *Map {
	if m.NoiseCards == nil {
		m.NoiseCards = map[string]NoiseCard{}
	}
	m.NoiseCards[canonical(hex)] = c
	return m
}

// AddHandEffects registers the tokens granted by hand.
func (m *Map) AddHandEffects(hand string, effects ...Effect) *Map {
	if m.Hands == nil {
		m.Hands = map[string][]Effect{}
	}
	m.Hands[hand] = effects
	return m
}

// Rezon implements Catalog.
func (m *Map) Rezon(hex string) (Rezon, bool) {
	if m == nil {
		return Rezon{}, false
	}
	r, ok := m.Rezons[canonical(hex)]
	return r, ok
}

// NoiseCard implements Catalog.
func (m *Map) NoiseCard(hex string) (NoiseCard, bool) {
	if m == nil {
		return NoiseCard{}, false
	}
	c, ok := m.NoiseCards[canonical(hex)]
	return c, ok
}

// HandEffects implements Catalog.
func (m *Map) HandEffects(hand string) []Effect {
	if m == nil {
		return nil
	}
	return m.Hands[hand]
}

// Len returns the number of rezon and noise card entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Rezons) + len(m.NoiseCards)
}

func canonical(hex string) string {
	s := strings.TrimLeft(strings.ToUpper(strings.TrimSpace(hex)), "0")
	if s == "" {
		return "0"
	}
	return s
}
