package levellock_test

import (
	"testing"

	"github.com/okian/ssr3bridge/internal/domain/levellock"
	"github.com/smartystreets/goconvey/convey"
)

func TestNext(t *testing.T) {
	convey.Convey("Given a free latch", t, func() {
		s := levellock.State{}
		convey.So(s.Phase(), convey.ShouldEqual, levellock.Free)

		convey.Convey("When the confirm registers agree and intensity is 650", func() {
			s = levellock.Next(s, levellock.Reading{Confirm1: 5, Confirm2: 5, Intensity: 650})

			convey.Convey("Then the rate 65 is captured", func() {
				convey.So(s.Phase(), convey.ShouldEqual, levellock.Captured)
				rate, ok := s.Rate()
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(rate, convey.ShouldEqual, 65)
			})

			convey.Convey("And intensity drops to zero", func() {
				s = levellock.Next(s, levellock.Reading{Confirm1: 5, Confirm2: 5, Intensity: 0, PrevIntensity: 650})

				convey.Convey("Then the latch locks with rate 65", func() {
					convey.So(s.Phase(), convey.ShouldEqual, levellock.Locked)
					convey.So(s.CapturedRate, convey.ShouldEqual, 65)
				})

				convey.Convey("And later intensity changes are ignored", func() {
					s = levellock.Next(s, levellock.Reading{Confirm1: 5, Confirm2: 5, Intensity: 900, PrevIntensity: 0})
					convey.So(s.Phase(), convey.ShouldEqual, levellock.Locked)
					convey.So(s.CapturedRate, convey.ShouldEqual, 65)

					s = levellock.Next(s, levellock.Reading{Confirm1: 3, Confirm2: 7, Intensity: 300, PrevIntensity: 900})
					convey.So(s.Phase(), convey.ShouldEqual, levellock.Locked)
				})

				convey.Convey("And both registers return to zero", func() {
					s = levellock.Next(s, levellock.Reading{Confirm1: 0, Confirm2: 0, Intensity: 0})

					convey.Convey("Then the latch is free again", func() {
						convey.So(s.Phase(), convey.ShouldEqual, levellock.Free)
						_, ok := s.Rate()
						convey.So(ok, convey.ShouldBeFalse)
					})
				})
			})

			convey.Convey("And intensity drops to zero from a different previous value", func() {
				s = levellock.Next(s, levellock.Reading{Confirm1: 5, Confirm2: 5, Intensity: 0, PrevIntensity: 700})

				convey.Convey("Then it stays captured", func() {
					convey.So(s.Phase(), convey.ShouldEqual, levellock.Captured)
				})
			})

			convey.Convey("And the registers disagree while intensity moves to another rate", func() {
				s = levellock.Next(s, levellock.Reading{Confirm1: 5, Confirm2: 6, Intensity: 720, PrevIntensity: 650})

				convey.Convey("Then the capture is invalidated", func() {
					convey.So(s.Phase(), convey.ShouldEqual, levellock.Free)
				})
			})

			convey.Convey("And the registers disagree while intensity stays in the same rate", func() {
				s = levellock.Next(s, levellock.Reading{Confirm1: 5, Confirm2: 6, Intensity: 655, PrevIntensity: 650})

				convey.Convey("Then it stays captured", func() {
					convey.So(s.Phase(), convey.ShouldEqual, levellock.Captured)
				})
			})

			convey.Convey("And the confirmed intensity changes", func() {
				s = levellock.Next(s, levellock.Reading{Confirm1: 5, Confirm2: 5, Intensity: 700, PrevIntensity: 650})

				convey.Convey("Then the new rate is captured", func() {
					convey.So(s.CapturedRate, convey.ShouldEqual, 70)
				})
			})
		})

		convey.Convey("When the registers are out of range", func() {
			s = levellock.Next(s, levellock.Reading{Confirm1: 13, Confirm2: 13, Intensity: 650})
			convey.So(s.Phase(), convey.ShouldEqual, levellock.Free)
		})

		convey.Convey("When intensity is zero on a free latch", func() {
			s = levellock.Next(s, levellock.Reading{Confirm1: 5, Confirm2: 5, Intensity: 0, PrevIntensity: 650})
			convey.So(s.Phase(), convey.ShouldEqual, levellock.Free)
		})
	})

	convey.Convey("Given phase names", t, func() {
		convey.So(levellock.Free.String(), convey.ShouldEqual, "FREE")
		convey.So(levellock.Captured.String(), convey.ShouldEqual, "CAPTURED")
		convey.So(levellock.Locked.String(), convey.ShouldEqual, "LOCKED")
	})
}
