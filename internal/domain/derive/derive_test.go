package derive_test

import (
	"testing"

	"github.com/okian/ssr3bridge/internal/domain/catalog"
	"github.com/okian/ssr3bridge/internal/domain/derive"
	"github.com/okian/ssr3bridge/internal/domain/levellock"
	"github.com/okian/ssr3bridge/internal/domain/protocol"
	. "github.com/smartystreets/goconvey/convey"
)

type values map[string]string

func (v values) Hex(key string) (string, bool) {
	h, ok := v[key]
	return h, ok
}

func str(s string) *string { return &s }

func card(s catalog.Suit, rank int) catalog.NoiseCard {
	return catalog.NoiseCard{Suit: s, Rank: rank}
}

func TestMergeRezon(t *testing.T) {
	Convey("Given rezon cards in the catalog", t, func() {
		cat := catalog.New().
			AddRezon("01", catalog.Rezon{Name: str("A"), AccessLv: 1, AttackStar: map[string]int{"fire": 1}}).
			AddRezon("02", catalog.Rezon{ChargeShot: str("X"), AccessLv: 2, FinalizeTurn: 1, AttackStar: map[string]int{"fire": 2, "aqua": 1}}).
			AddRezon("03", catalog.Rezon{Name: str("C")})
		layout := derive.DefaultLayout()

		Convey("When a low slot has a null override and a higher slot a value", func() {
			src := values{"BRO1_REZON": "0001", "MY_REZON": "0002"}
			got := derive.MergeRezon(src, cat, layout)

			Convey("Then the value wins", func() {
				So(*got.ChargeShot, ShouldEqual, "X")
				So(*got.Name, ShouldEqual, "A")
			})
		})

		Convey("When a higher slot has a null override", func() {
			src := values{"BRO1_REZON": "0002", "MY_REZON": "0001"}
			got := derive.MergeRezon(src, cat, layout)

			Convey("Then the earlier value is not erased", func() {
				So(*got.ChargeShot, ShouldEqual, "X")
			})
		})

		Convey("When several slots set the same override", func() {
			src := values{"BRO2_REZON": "0001", "BRO6_REZON": "0003"}
			got := derive.MergeRezon(src, cat, layout)

			Convey("Then the highest priority slot wins", func() {
				So(*got.Name, ShouldEqual, "C")
				So(got.Sources, ShouldResemble, []string{"BRO2_REZON", "BRO6_REZON"})
			})
		})

		Convey("When counters are spread over slots", func() {
			src := values{"BRO1_REZON": "0001", "BRO3_REZON": "0002", "BRO4_REZON": "0002", "MY_REZON": "00FF"}
			got := derive.MergeRezon(src, cat, layout)

			Convey("Then they are summed and unknown values ignored", func() {
				So(got.AccessLv, ShouldEqual, 5)
				So(got.FinalizeTurn, ShouldEqual, 2)
				So(got.AttackStar, ShouldResemble, map[string]int{"fire": 5, "aqua": 2})
				So(got.Sources, ShouldHaveLength, 3)
			})
		})

		Convey("When nothing is equipped", func() {
			got := derive.MergeRezon(values{}, cat, layout)

			Convey("Then the totals are empty", func() {
				So(got.Name, ShouldBeNil)
				So(got.AccessLv, ShouldEqual, 0)
				So(got.AttackStar, ShouldBeEmpty)
			})
		})

		Convey("When merging entries directly", func() {
			got := derive.MergeEntries([]catalog.Rezon{{Name: str("X")}, {Name: nil, AccessLv: 1}})
			So(*got.Name, ShouldEqual, "X")
			So(got.AccessLv, ShouldEqual, 1)
		})
	})
}

func TestClassify(t *testing.T) {
	Convey("Given noise card combinations", t, func() {
		S, H, D, C, J := catalog.Spade, catalog.Heart, catalog.Diamond, catalog.Club, catalog.Joker

		cases := []struct {
			name  string
			cards []catalog.NoiseCard
			want  derive.Hand
		}{
			{"royal", []catalog.NoiseCard{card(H, 1), card(H, 10), card(H, 11), card(H, 12), card(H, 13)}, derive.HandRoyalStraightFlush},
			{"straight flush", []catalog.NoiseCard{card(S, 2), card(S, 3), card(S, 4), card(S, 5), card(S, 6)}, derive.HandStraightFlush},
			{"spade flush", []catalog.NoiseCard{card(S, 2), card(S, 9), card(S, 4), card(S, 5), card(S, 6)}, derive.HandSpadeFlush},
			{"heart flush", []catalog.NoiseCard{card(H, 2), card(H, 9), card(H, 4), card(H, 5), card(H, 6)}, derive.HandHeartFlush},
			{"diamond flush", []catalog.NoiseCard{card(D, 1), card(D, 1), card(D, 4), card(D, 5), card(D, 6)}, derive.HandDiamondFlush},
			{"club flush", []catalog.NoiseCard{card(C, 7), card(C, 9), card(C, 4), card(C, 5), card(C, 6)}, derive.HandClubFlush},
			{"straight", []catalog.NoiseCard{card(S, 7), card(H, 8), card(D, 9), card(C, 10), card(S, 11)}, derive.HandStraight},
			{"straight with joker", []catalog.NoiseCard{card(S, 7), card(H, 8), card(J, 0), card(C, 9), card(S, 10)}, derive.HandStraight},
			{"five card", []catalog.NoiseCard{card(S, 4), card(H, 4), card(D, 4), card(C, 4), card(S, 4)}, derive.HandFiveCard},
			{"four card", []catalog.NoiseCard{card(S, 4), card(H, 4), card(D, 4), card(C, 4), card(S, 9)}, derive.HandFourCard},
			{"full house", []catalog.NoiseCard{card(S, 4), card(H, 4), card(D, 4), card(C, 9), card(S, 9)}, derive.HandFullHouse},
			{"three card", []catalog.NoiseCard{card(S, 4), card(H, 4), card(D, 4), card(C, 9), card(S, 2)}, derive.HandThreeCard},
			{"two pair", []catalog.NoiseCard{card(S, 4), card(H, 4), card(D, 9), card(C, 9), card(S, 2)}, derive.HandTwoPair},
			{"one pair", []catalog.NoiseCard{card(S, 4), card(H, 4), card(D, 9), card(C, 1), card(S, 2)}, derive.HandNone},
			{"all jokers", []catalog.NoiseCard{card(J, 0), card(J, 0), card(J, 0), card(J, 0), card(J, 0)}, derive.HandNone},
			{"four cards in a run", []catalog.NoiseCard{card(S, 2), card(S, 3), card(S, 4), card(S, 5)}, derive.HandNone},
			{"three of a kind with a pair short", []catalog.NoiseCard{card(S, 4), card(H, 4), card(D, 4), card(J, 0), card(S, 2)}, derive.HandNone},
			{"empty", nil, derive.HandNone},
		}

		for _, c := range cases {
			Convey("Then "+c.name+" is classified", func() {
				So(derive.Classify(c.cards), ShouldEqual, c.want)
			})
		}
	})
}

func TestDetectHand(t *testing.T) {
	Convey("Given cards carrying their own effects", t, func() {
		cards := []catalog.NoiseCard{
			{Suit: catalog.Spade, Rank: 4, Effects: []catalog.Effect{{Kind: catalog.EffectHPPlus, Amount: 20}}},
			{Suit: catalog.Heart, Rank: 4, Effects: []catalog.Effect{{Kind: catalog.EffectAttackPlus, Amount: 1}}},
			{Suit: catalog.Diamond, Rank: 4},
			{Suit: catalog.Club, Rank: 9},
			{Suit: catalog.Spade, Rank: 9},
		}
		cat := catalog.New().AddHandEffects(string(derive.HandFullHouse),
			catalog.Effect{Kind: catalog.EffectHPPlus, Amount: 100},
			catalog.Effect{Kind: catalog.EffectUndershirt},
		)

		Convey("When detecting the hand", func() {
			res := derive.DetectHand(cards, cat)

			Convey("Then card and hand tokens are both applied", func() {
				So(res.Hand, ShouldEqual, derive.HandFullHouse)
				So(res.Effects.HPPlus, ShouldEqual, 120)
				So(res.Effects.AttackPlus, ShouldEqual, 1)
				So(res.Effects.Undershirt, ShouldBeTrue)
				So(res.Effects.SuperArmor, ShouldBeFalse)
			})

			Convey("And repeated detection gives the same result", func() {
				So(derive.DetectHand(cards, cat), ShouldResemble, res)
			})
		})

		Convey("When the catalog lists no tokens for the hand", func() {
			res := derive.DetectHand(cards, catalog.New())

			Convey("Then only the card tokens apply", func() {
				So(res.Hand, ShouldEqual, derive.HandFullHouse)
				So(res.Effects.HPPlus, ShouldEqual, 20)
				So(res.Effects.Undershirt, ShouldBeFalse)
			})
		})

		Convey("When no card is present", func() {
			res := derive.DetectHand(nil, cat)

			Convey("Then no tokens apply", func() {
				So(res.Hand, ShouldEqual, derive.HandNone)
				So(res.Effects, ShouldResemble, derive.EffectTotals{})
				So(res.Cards, ShouldBeEmpty)
			})
		})
	})

	Convey("Given noise card slots in a snapshot", t, func() {
		cat := catalog.New()
		for i, r := range []int{2, 3, 4, 5, 6} {
			cat.AddNoiseCard(protocol.FormatValue(uint64(i+1), 2), catalog.NoiseCard{Suit: catalog.Club, Rank: r})
		}
		cat.AddHandEffects(string(derive.HandStraightFlush), catalog.Effect{Kind: catalog.EffectHPPlus, Amount: 200})
		src := values{"NOISE_CARD1": "0001", "NOISE_CARD2": "0002", "NOISE_CARD3": "0003", "NOISE_CARD4": "0004", "NOISE_CARD5": "0005"}

		Convey("Then the hand is read from the layout slots", func() {
			res := derive.NoiseHand(src, cat, derive.DefaultLayout())
			So(res.Hand, ShouldEqual, derive.HandStraightFlush)
			So(res.Effects.HPPlus, ShouldEqual, 200)
		})

		Convey("Then an empty slot breaks the five card hands", func() {
			delete(src, "NOISE_CARD5")
			res := derive.NoiseHand(src, cat, derive.DefaultLayout())
			So(res.Hand, ShouldEqual, derive.HandNone)
			So(res.Cards, ShouldHaveLength, 4)
		})
	})
}

func TestLevels(t *testing.T) {
	Convey("Given a rezon access level modifier", t, func() {
		cat := catalog.New().AddRezon("01", catalog.Rezon{AccessLv: 2})
		layout := derive.DefaultLayout()
		src := values{"MY_REZON": "0001", protocol.KeyNoiseRate: "1964"} // 6500

		Convey("When the latch is free", func() {
			_, ok := derive.EffectiveLevel(src, levellock.State{}, cat, layout)

			Convey("Then there is no effective level", func() {
				So(ok, ShouldBeFalse)
			})

			Convey("And the free-running level follows the live register", func() {
				So(derive.FreeRunningLevel(src, cat, layout), ShouldEqual, 8)
			})
		})

		Convey("When the latch is locked at rate 650", func() {
			latch := levellock.State{CapturedRate: 650, HasRate: true, Finalized: true}
			lvl, ok := derive.EffectiveLevel(src, latch, cat, layout)

			Convey("Then the captured rate plus the modifier is used", func() {
				So(ok, ShouldBeTrue)
				So(lvl, ShouldEqual, 8)
			})

			Convey("And the view reports it", func() {
				v := derive.Compute(src, latch, cat, layout)
				So(v.Phase, ShouldEqual, "LOCKED")
				So(*v.EffectiveLevel, ShouldEqual, 8)
				So(v.Level(), ShouldEqual, 8)
				So(v.Range.Min, ShouldEqual, 800)
				So(v.Rezon.AccessLv, ShouldEqual, 2)
			})
		})

		Convey("When the latch is only captured", func() {
			latch := levellock.State{CapturedRate: 100, HasRate: true}
			v := derive.Compute(src, latch, cat, layout)

			Convey("Then the view falls back to the free-running level", func() {
				So(v.EffectiveLevel, ShouldBeNil)
				So(v.Phase, ShouldEqual, "CAPTURED")
				So(v.Level(), ShouldEqual, v.FreeRunningLevel)
			})
		})

		Convey("When the modifier pushes past the ceiling", func() {
			latch := levellock.State{CapturedRate: 1000, HasRate: true, Finalized: true}
			lvl, _ := derive.EffectiveLevel(src, latch, cat, layout)
			So(lvl, ShouldEqual, 12)
			So(derive.Compute(src, latch, cat, layout).Range.Over, ShouldBeTrue)
		})
	})
}
