package fakeproducer

import (
	"bufio"
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/ssr3bridge/internal/domain/protocol"
	"github.com/okian/ssr3bridge/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type session struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func start(t *testing.T, opts ...Option) (*Server, *session) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(opts...)
	require.NoError(t, srv.Listen(ctx, "tcp", "127.0.0.1:0"))
	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second, time.Millisecond)
	t.Cleanup(func() {
		cancel()
		_ = srv.Close()
		srv.Wait()
	})

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return srv, &session{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (s *session) next() protocol.Message {
	s.t.Helper()
	_ = s.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := s.r.ReadBytes('\n')
	require.NoError(s.t, err)
	m, err := protocol.Decode(line)
	require.NoError(s.t, err)
	return m
}

func (s *session) send(cmd protocol.Command) {
	s.t.Helper()
	b, err := protocol.EncodeCommand(cmd)
	require.NoError(s.t, err)
	_, err = s.conn.Write(b)
	require.NoError(s.t, err)
}

func (s *session) greeting() protocol.Full {
	s.t.Helper()
	hello, ok := s.next().(protocol.Hello)
	require.True(s.t, ok)
	assert.Equal(s.t, "1.0", hello.Version)
	assert.Equal(s.t, len(DefaultRegisters()), hello.Addresses)

	status, ok := s.next().(protocol.Status)
	require.True(s.t, ok)
	assert.True(s.t, status.GameActive)

	full, ok := s.next().(protocol.Full)
	require.True(s.t, ok)
	return full
}

func TestServer_Greeting(t *testing.T) {
	_, s := start(t)
	full := s.greeting()

	zeny := full.Data[protocol.KeyZeny]
	assert.Equal(t, "000003E8", zeny.Value)
	assert.Equal(t, 4, zeny.Size)
	assert.Equal(t, "02000000", zeny.Address)
	assert.Len(t, full.Data, len(DefaultRegisters()))
	assert.Equal(t, "00", full.Data[protocol.KeyConfirm1].Value)
}

func TestServer_WriteBroadcastsDelta(t *testing.T) {
	srv, s := start(t)
	s.greeting()

	s.send(protocol.Write{Target: protocol.KeyZeny, Value: 99999})
	delta, ok := s.next().(protocol.Delta)
	require.True(t, ok)
	require.Len(t, delta.Data, 1)
	assert.Equal(t, "0001869F", delta.Data[protocol.KeyZeny].Value)

	v, ok := srv.Value(protocol.KeyZeny)
	require.True(t, ok)
	assert.EqualValues(t, 99999, v)
	assert.Equal(t, []protocol.Command{protocol.Write{Target: protocol.KeyZeny, Value: 99999}}, srv.Commands())
}

func TestServer_WriteUnknownTarget(t *testing.T) {
	_, s := start(t)
	s.greeting()

	s.send(protocol.Write{Target: "NOPE", Value: 1})
	e, ok := s.next().(protocol.Error)
	require.True(t, ok)
	assert.Equal(t, "unknown_target", e.Code)
}

func TestServer_PingRefreshSetVersion(t *testing.T) {
	_, s := start(t)
	s.greeting()

	s.send(protocol.Ping{})
	pong, ok := s.next().(protocol.Pong)
	require.True(t, ok)
	assert.Positive(t, pong.TS)

	s.send(protocol.Refresh{})
	_, ok = s.next().(protocol.Full)
	assert.True(t, ok)

	s.send(protocol.SetVersion{Target: "us"})
	hello, ok := s.next().(protocol.Hello)
	require.True(t, ok)
	assert.Equal(t, "us", hello.Version)
	_, ok = s.next().(protocol.Full)
	assert.True(t, ok)
}

func TestServer_SetManyMasksAndSkipsUnchanged(t *testing.T) {
	srv, s := start(t)
	s.greeting()

	assert.False(t, srv.SetMany(map[string]uint64{protocol.KeyZeny: 1000, "UNKNOWN": 3}))
	assert.True(t, srv.SetMany(map[string]uint64{protocol.KeyConfirm1: 0x1FF}))

	delta, ok := s.next().(protocol.Delta)
	require.True(t, ok)
	assert.Equal(t, "FF", delta.Data[protocol.KeyConfirm1].Value)
}

func TestServer_DropConnections(t *testing.T) {
	srv, s := start(t)
	s.greeting()
	require.Eventually(t, func() bool { return srv.Peers() == 1 }, time.Second, time.Millisecond)

	srv.DropConnections()
	_ = s.conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err := s.r.ReadByte()
	assert.Error(t, err)
	assert.Zero(t, srv.Peers())
}

func TestLevelLockScript(t *testing.T) {
	steps, err := LevelLockScript(7, 650, 0)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.EqualValues(t, 6500, steps[0].Values[protocol.KeyNoiseRate])
	assert.EqualValues(t, 7, steps[1].Values[protocol.KeyConfirm2])
	assert.EqualValues(t, 0, steps[2].Values[protocol.KeyNoiseRate])

	_, err = LevelLockScript(13, 650, 0)
	assert.Error(t, err)
	_, err = LevelLockScript(3, 0, 0)
	assert.Error(t, err)
}

func TestServer_Play(t *testing.T) {
	srv, s := start(t)
	s.greeting()

	steps, err := LevelLockScript(4, 400, 0)
	require.NoError(t, err)
	require.NoError(t, srv.Play(context.Background(), steps))

	for range steps {
		_, ok := s.next().(protocol.Delta)
		assert.True(t, ok)
	}
	v, _ := srv.Value(protocol.KeyConfirm1)
	assert.EqualValues(t, 4, v)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, srv.Play(ctx, ReleaseScript(time.Second)), context.Canceled)
}
