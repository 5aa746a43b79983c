package feed_test

import (
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/ssr3bridge/internal/adapters/http/feed"
	repository "github.com/okian/ssr3bridge/internal/adapters/repository"
	"github.com/okian/ssr3bridge/internal/domain/catalog"
	"github.com/okian/ssr3bridge/internal/domain/derive"
	"github.com/okian/ssr3bridge/internal/domain/model"
	"github.com/okian/ssr3bridge/internal/domain/protocol"
	"github.com/okian/ssr3bridge/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type source struct {
	*repository.MemoryStore
	cat catalog.Catalog
}

func (s source) DerivedAt(snap *repository.Snapshot) derive.View {
	v := derive.Compute(snap, snap.Latch, s.cat, derive.DefaultLayout())
	v.Revision = snap.Revision
	return v
}

func newSource(t *testing.T) source {
	t.Helper()
	store := repository.NewMemoryStore()
	ctx := context.Background()
	_, err := store.Apply(ctx, model.Connected("c1", t0))
	require.NoError(t, err)
	_, err = store.Apply(ctx, model.Received("c1", protocol.Full{Data: map[string]protocol.Entry{
		protocol.KeyZeny:      {Value: "000003E8", Address: "02000000", Size: 4},
		protocol.KeyNoiseRate: {Value: "00000000", Address: "02000008", Size: 4},
	}}, t0))
	require.NoError(t, err)
	return source{MemoryStore: store, cat: catalog.New()}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) feed.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f feed.Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestHub_StateFrameOnConnect(t *testing.T) {
	src := newSource(t)
	hub := feed.New(src)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	f := readFrame(t, conn)

	assert.Equal(t, feed.FrameState, f.Type)
	assert.Equal(t, src.Snapshot().Revision, f.Revision)
	require.NotNil(t, f.State)
	assert.True(t, f.State.Connected)
	assert.Len(t, f.State.Values, 2)
	assert.Equal(t, "FREE", f.Derived.Phase)
	assert.Equal(t, f.Revision, f.Derived.Revision)
}

func TestHub_ChangeFrameAfterDelta(t *testing.T) {
	src := newSource(t)
	hub := feed.New(src)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	first := readFrame(t, conn)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	_, err := src.Apply(context.Background(), model.Received("c1", protocol.Delta{Data: map[string]protocol.Entry{
		protocol.KeyZeny: {Value: "000007D0"},
	}}, t0.Add(time.Second)))
	require.NoError(t, err)

	f := readFrame(t, conn)
	assert.Equal(t, feed.FrameChange, f.Type)
	assert.Equal(t, first.Revision+1, f.Revision)
	require.NotNil(t, f.Change)
	assert.Equal(t, []string{protocol.KeyZeny}, f.Change.Keys)
	require.Len(t, f.Change.Values, 1)
	assert.Equal(t, "000007D0", f.Change.Values[0].Value)
	assert.Nil(t, f.State)
}

func TestHub_ConnectionChangeCarriesNoKeys(t *testing.T) {
	src := newSource(t)
	hub := feed.New(src)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	readFrame(t, conn)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	_, err := src.Apply(context.Background(), model.Disconnected("c1", t0.Add(time.Second)))
	require.NoError(t, err)

	f := readFrame(t, conn)
	assert.Equal(t, feed.FrameChange, f.Type)
	require.NotNil(t, f.Change)
	assert.False(t, f.Change.Connected)
	assert.Empty(t, f.Change.Keys)
}

func TestHub_ResetSendsState(t *testing.T) {
	src := newSource(t)
	hub := feed.New(src)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	readFrame(t, conn)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	src.Reset(context.Background())

	f := readFrame(t, conn)
	assert.Equal(t, feed.FrameState, f.Type)
	require.NotNil(t, f.State)
	assert.Empty(t, f.State.Values)
}

func TestHub_ClientLeaves(t *testing.T) {
	src := newSource(t)
	hub := feed.New(src)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	readFrame(t, conn)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	src := newSource(t)
	hub := feed.New(src)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	readFrame(t, conn)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		defer late.Close()
		require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err = late.ReadMessage()
		assert.Error(t, err, "a closed hub must not stream to new clients")
	}
}
