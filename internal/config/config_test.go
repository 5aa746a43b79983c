package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/ssr3bridge/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, "127.0.0.1:9470")
			convey.So(cfg.ReconnectInterval(), convey.ShouldEqual, 2*time.Second)
			convey.So(cfg.DialTimeout(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.MaxFrameBytes, convey.ShouldEqual, 1<<20)
			convey.So(cfg.WSPath, convey.ShouldEqual, "/ws")
			convey.So(cfg.PipeAddress, convey.ShouldNotBeEmpty)
		})

		convey.Convey("Then the defaults should validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with invalid fields", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":         func(c *config.Config) { c.Addr = "" },
			"empty pipe address": func(c *config.Config) { c.PipeAddress = "" },
			"zero reconnect":     func(c *config.Config) { c.ReconnectIntervalMS = 0 },
			"negative dial":      func(c *config.Config) { c.DialTimeoutMS = -1 },
			"zero frame cap":     func(c *config.Config) { c.MaxFrameBytes = 0 },
			"zero queue":         func(c *config.Config) { c.QueueSize = 0 },
			"relative ws path":   func(c *config.Config) { c.WSPath = "ws" },
			"unknown network":    func(c *config.Config) { c.PipeNetwork = "udp" },
		}

		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)

			convey.Convey("Then "+name+" should be rejected", func() {
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
