package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/ssr3bridge/internal/adapters/pipe"
	service "github.com/okian/ssr3bridge/internal/app"
	"github.com/okian/ssr3bridge/internal/domain/catalog"
	"github.com/okian/ssr3bridge/internal/domain/protocol"
	"github.com/okian/ssr3bridge/internal/fakeproducer"
	. "github.com/smartystreets/goconvey/convey"
)

const waitFor = 3 * time.Second

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(waitFor)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func startProducer(ctx context.Context) (*fakeproducer.Server, error) {
	srv := fakeproducer.New()
	if err := srv.Listen(ctx, "tcp", "127.0.0.1:0"); err != nil {
		return nil, err
	}
	if !eventually(func() bool { return srv.Addr() != nil }) {
		return nil, context.DeadlineExceeded
	}
	return srv, nil
}

func testCatalog() *catalog.Map {
	lv := func(s string) *string { return &s }
	return catalog.New().
		AddRezon("1", catalog.Rezon{Name: lv("Pegasus"), AccessLv: 1}).
		AddRezon("2", catalog.Rezon{Name: lv("Leo"), AccessLv: 2})
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service connected to a fake producer", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		srv, err := startProducer(ctx)
		So(err, ShouldBeNil)
		defer func() {
			_ = srv.Close()
			srv.Wait()
		}()

		svc := service.New(
			service.WithEndpoint("tcp", srv.Addr().String()),
			service.WithReconnectInterval(50*time.Millisecond),
			service.WithCatalog(testCatalog()),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		So(eventually(func() bool { return svc.Snapshot().Has(protocol.KeyZeny) }), ShouldBeTrue)

		Convey("Then the greeting populates the store", func() {
			snap := svc.Snapshot()
			So(snap.Connected, ShouldBeTrue)
			So(snap.Active, ShouldBeTrue)
			So(snap.ProducerVersion, ShouldEqual, "1.0")
			So(snap.Subsystem, ShouldEqual, "nds")

			n, err := svc.Number(ctx, protocol.KeyZeny)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1000)
		})

		Convey("When a write command is sent", func() {
			So(svc.Send(ctx, protocol.Write{Target: protocol.KeyZeny, Value: 4242}), ShouldBeTrue)

			Convey("Then the delta updates the value and change set", func() {
				So(eventually(func() bool {
					n, _ := svc.Number(ctx, protocol.KeyZeny)
					return n == 4242
				}), ShouldBeTrue)
				So(svc.LastChanged(), ShouldResemble, []string{protocol.KeyZeny})

				v, err := svc.Value(ctx, protocol.KeyZeny)
				So(err, ShouldBeNil)
				So(v.Value, ShouldEqual, "00001092")
				So(v.Size, ShouldEqual, 4)
			})
		})

		Convey("When the level-lock sequence plays", func() {
			srv.SetMany(map[string]uint64{protocol.KeyMyRezon: 2})
			steps, err := fakeproducer.LevelLockScript(6, 650, 0)
			So(err, ShouldBeNil)
			So(srv.Play(ctx, steps), ShouldBeNil)

			Convey("Then the derived level is locked", func() {
				So(eventually(func() bool { return svc.Derived(ctx).EffectiveLevel != nil }), ShouldBeTrue)
				v := svc.Derived(ctx)
				So(v.Phase, ShouldEqual, "LOCKED")
				So(*v.EffectiveLevel, ShouldEqual, 8)
				So(v.Rezon.AccessLv, ShouldEqual, 2)
				So(v.Revision, ShouldEqual, svc.Snapshot().Revision)
			})

			Convey("And releasing the screen frees it", func() {
				So(eventually(func() bool { return svc.Derived(ctx).EffectiveLevel != nil }), ShouldBeTrue)
				So(srv.Play(ctx, fakeproducer.ReleaseScript(0)), ShouldBeNil)
				So(eventually(func() bool { return svc.Derived(ctx).EffectiveLevel == nil }), ShouldBeTrue)
			})
		})

		Convey("When the producer reports an error", func() {
			srv.SendError("read_failed", "mainram lost")

			Convey("Then it is kept as the last error", func() {
				So(eventually(func() bool { return svc.Snapshot().LastError != "" }), ShouldBeTrue)
				So(svc.Snapshot().LastError, ShouldEqual, "[read_failed] mainram lost")
			})
		})

		Convey("When the producer drops the connection", func() {
			srv.DropConnections()

			Convey("Then the bridge reconnects and refreshes", func() {
				So(eventually(func() bool {
					return svc.GetStats()["transport"].(pipe.Stats).Dials >= 2
				}), ShouldBeTrue)
				So(eventually(svc.Connected), ShouldBeTrue)
				So(eventually(func() bool { return svc.Ping(ctx) }), ShouldBeTrue)
			})
		})
	})
}
