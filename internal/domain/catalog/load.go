package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML catalog of the form
//
//	rezon:
//	  "0012": {name: ..., access_lv: 1, attack_star: {fire: 1}}
//	noise_cards:
//	  "0003": {name: ..., suit: spade, rank: 10, effects: [{kind: hp_plus, amount: 50}]}
//	hand_effects:
//	  full_house: [{kind: hp_plus, amount: 100}, {kind: undershirt}]
func LoadFile(path string) (*Map, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	return Parse(b)
}

// Parse decodes a YAML catalog document.
func Parse(b []byte) (*Map, error) {
	var raw Map
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	m := New()
	for k, r := range raw.Rezons {
		m.AddRezon(k, r)
	}
	for k, c := range raw.NoiseCards {
		if !c.Suit.Valid() {
			return nil, fmt.Errorf("%w: noise card %s: unknown suit %q", ErrLoad, k, c.Suit)
		}
		if c.Suit == Joker && c.Rank != 0 {
			return nil, fmt.Errorf("%w: noise card %s: joker cannot have a rank", ErrLoad, k)
		}
		if c.Suit != Joker && (c.Rank < 1 || c.Rank > 13) {
			return nil, fmt.Errorf("%w: noise card %s: rank %d out of range", ErrLoad, k, c.Rank)
		}
		if err := checkEffects("noise card "+k, c.Effects); err != nil {
			return nil, err
		}
		m.AddNoiseCard(k, c)
	}
	for hand, effects := range raw.Hands {
		if err := checkEffects("hand "+hand, effects); err != nil {
			return nil, err
		}
		m.AddHandEffects(hand, effects...)
	}
	return m, nil
}

func checkEffects(owner string, effects []Effect) error {
	for _, e := range effects {
		if !e.Kind.Valid() {
			return fmt.Errorf("%w: %s: unknown effect %q", ErrLoad, owner, e.Kind)
		}
	}
	return nil
}
