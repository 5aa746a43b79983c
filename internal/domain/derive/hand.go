package derive

import (
	"slices"
	"sort"

	"github.com/okian/ssr3bridge/internal/domain/catalog"
)

// Hand is a noise card combination.
type Hand string

const (
	HandNone               Hand = "none"
	HandRoyalStraightFlush Hand = "royal_straight_flush"
	HandStraightFlush      Hand = "straight_flush"
	HandSpadeFlush         Hand = "spade_flush"
	HandHeartFlush         Hand = "heart_flush"
	HandDiamondFlush       Hand = "diamond_flush"
	HandClubFlush          Hand = "club_flush"
	HandStraight           Hand = "straight"
	HandFiveCard           Hand = "five_card"
	HandFourCard           Hand = "four_card"
	HandFullHouse          Hand = "full_house"
	HandThreeCard          Hand = "three_card"
	HandTwoPair            Hand = "two_pair"
)

// HandSize is the number of cards a flush or straight needs.
const HandSize = 5

var royalRanks = []int{1, 10, 11, 12, 13}

var flushBySuit = map[catalog.Suit]Hand{
	catalog.Spade:   HandSpadeFlush,
	catalog.Heart:   HandHeartFlush,
	catalog.Diamond: HandDiamondFlush,
	catalog.Club:    HandClubFlush,
}

// EffectTotals accumulates effect tokens.
type EffectTotals struct {
	HPPlus       int  `json:"hpPlus"`
	AttackPlus   int  `json:"attackPlus"`
	RapidPlus    int  `json:"rapidPlus"`
	ChargePlus   int  `json:"chargePlus"`
	SuperArmor   bool `json:"superArmor"`
	FloatShoes   bool `json:"floatShoes"`
	Undershirt   bool `json:"undershirt"`
	FirstBarrier bool `json:"firstBarrier"`
}

// Apply adds one token. Unknown kinds are ignored.
func (t *EffectTotals) Apply(e catalog.Effect) {
	switch e.Kind {
	case catalog.EffectHPPlus:
		t.HPPlus += e.Amount
	case catalog.EffectAttackPlus:
		t.AttackPlus += e.Amount
	case catalog.EffectRapidPlus:
		t.RapidPlus += e.Amount
	case catalog.EffectChargePlus:
		t.ChargePlus += e.Amount
	case catalog.EffectSuperArmor:
		t.SuperArmor = true
	case catalog.EffectFloatShoes:
		t.FloatShoes = true
	case catalog.EffectUndershirt:
		t.Undershirt = true
	case catalog.EffectFirstBarrier:
		t.FirstBarrier = true
	}
}

// HandResult is the classification of the noise card slots.
type HandResult struct {
	Hand    Hand                `json:"hand"`
	Cards   []catalog.NoiseCard `json:"cards"`
	Effects EffectTotals        `json:"effects"`
}

// Classify returns the first matching hand in precedence order.
func Classify(cards []catalog.NoiseCard) Hand {
	ranks := rankedValues(cards)

	if len(cards) == HandSize {
		if suit, ok := commonSuit(cards); ok {
			if slices.Equal(ranks, royalRanks) {
				return HandRoyalStraightFlush
			}
			if len(ranks) == HandSize && consecutive(ranks) {
				return HandStraightFlush
			}
			if h, ok := flushBySuit[suit]; ok {
				return h
			}
		}
		if len(ranks) >= 2 && consecutive(ranks) {
			return HandStraight
		}
	}

	switch counts := multiplicities(ranks); {
	case slices.Equal(counts, []int{5}):
		return HandFiveCard
	case slices.Equal(counts, []int{4, 1}):
		return HandFourCard
	case slices.Equal(counts, []int{3, 2}):
		return HandFullHouse
	case slices.Equal(counts, []int{3, 1, 1}):
		return HandThreeCard
	case slices.Equal(counts, []int{2, 2, 1}):
		return HandTwoPair
	}
	return HandNone
}

// DetectHand classifies cards and totals their effects: each card's own
// tokens first, then the tokens cat lists for the hand.
func DetectHand(cards []catalog.NoiseCard, cat catalog.Catalog) HandResult {
	res := HandResult{Hand: Classify(cards), Cards: cards}
	if res.Cards == nil {
		res.Cards = []catalog.NoiseCard{}
	}
	for _, c := range cards {
		for _, e := range c.Effects {
			res.Effects.Apply(e)
		}
	}
	if res.Hand == HandNone || cat == nil {
		return res
	}
	for _, e := range cat.HandEffects(string(res.Hand)) {
		res.Effects.Apply(e)
	}
	return res
}

// NoiseHand resolves the noise card slots of layout and classifies them.
// Empty slots and unknown values are skipped.
func NoiseHand(src Source, cat catalog.Catalog, layout Layout) HandResult {
	var cards []catalog.NoiseCard
	for _, slot := range layout.NoiseCardSlots {
		hex, ok := src.Hex(slot)
		if !ok {
			continue
		}
		c, ok := cat.NoiseCard(hex)
		if !ok {
			continue
		}
		cards = append(cards, c)
	}
	return DetectHand(cards, cat)
}

func commonSuit(cards []catalog.NoiseCard) (catalog.Suit, bool) {
	if len(cards) == 0 {
		return "", false
	}
	s := cards[0].Suit
	for _, c := range cards[1:] {
		if c.Suit != s {
			return "", false
		}
	}
	return s, true
}

func rankedValues(cards []catalog.NoiseCard) []int {
	var ranks []int
	for _, c := range cards {
		if c.Ranked() {
			ranks = append(ranks, c.Rank)
		}
	}
	sort.Ints(ranks)
	return ranks
}

// consecutive reports whether sorted ranks step by exactly one.
func consecutive(sorted []int) bool {
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1]+1 {
			return false
		}
	}
	return len(sorted) > 0
}

// multiplicities returns how often each rank occurs, largest first.
func multiplicities(ranks []int) []int {
	byRank := map[int]int{}
	for _, r := range ranks {
		byRank[r]++
	}
	counts := make([]int, 0, len(byRank))
	for _, n := range byRank {
		counts = append(counts, n)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))
	return counts
}
