package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citygrid/trafficsim/internal/storage"
	"github.com/citygrid/trafficsim/pkg/core"
	"github.com/citygrid/trafficsim/pkg/streaming"
)

// Compile-time interface check.
var _ storage.Backend = (*Backend)(nil)

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and acks start_run/end_run.
func testServer(t *testing.T) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.setSecret(r.URL.Query().Get("secret"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if env.Type == streaming.TypeStartRun || env.Type == streaming.TypeEndRun {
				ack := streaming.AckMessage{Type: streaming.TypeAck, For: env.Type}
				data, _ := json.Marshal(ack)
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	secret   string
	messages []streaming.Envelope
}

func (m *messageLog) setSecret(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = s
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStartAndEndRun(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "test"}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	run := core.Run{ID: "ws-run", Seed: 4, GridSize: 24}
	require.NoError(t, b.StartRun(run))
	require.NoError(t, b.EndRun(core.RunSummary{Run: run, Ticks: 10, Finished: true}))

	msgs := ml.all()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, streaming.TypeStartRun, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndRun, msgs[len(msgs)-1].Type)

	var got core.Run
	require.NoError(t, msgs[0].Decode(&got))
	assert.Equal(t, run.ID, got.ID)

	ml.mu.Lock()
	assert.Equal(t, "test", ml.secret)
	ml.mu.Unlock()

	b.conn.mu.Lock()
	assert.Nil(t, b.conn.startMsg)
	b.conn.mu.Unlock()
}

func TestSnapshotsEndWithFinalTick(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	run := core.Run{ID: "ws-run"}
	require.NoError(t, b.StartRun(run))
	for tick := uint64(1); tick <= 50; tick++ {
		require.NoError(t, b.PublishSnapshot(core.Snapshot{RunID: run.ID, Tick: tick, Running: true}))
	}
	require.NoError(t, b.EndRun(core.RunSummary{Run: run, Ticks: 50}))

	msgs := ml.all()
	require.NotEmpty(t, msgs)
	assert.Equal(t, streaming.TypeEndRun, msgs[len(msgs)-1].Type)

	var ticks []uint64
	for _, m := range msgs {
		if m.Type != streaming.TypeSnapshot {
			continue
		}
		var s core.Snapshot
		require.NoError(t, m.Decode(&s))
		ticks = append(ticks, s.Tick)
	}
	require.NotEmpty(t, ticks)
	assert.Equal(t, uint64(50), ticks[len(ticks)-1])
	for i := 1; i < len(ticks); i++ {
		assert.Greater(t, ticks[i], ticks[i-1])
	}
	assert.Equal(t, uint64(50), uint64(len(ticks))+b.Superseded())
}

func TestSendSnapshot_KeepsNewest(t *testing.T) {
	c := newConnection(slog.Default())

	c.sendSnapshot([]byte("1"))
	c.sendSnapshot([]byte("2"))
	c.sendSnapshot([]byte("3"))

	assert.Equal(t, uint64(2), c.superseded.Load())
	assert.True(t, c.hasLatest())
	assert.Equal(t, []byte("3"), c.latest)
	assert.Len(t, c.wake, 1)

	// no socket: the write is a no-op and the slot is emptied
	assert.True(t, c.flushLatest(nil))
	assert.False(t, c.hasLatest())
}

func TestInit_DialFailure(t *testing.T) {
	b := New(Config{URL: "ws://127.0.0.1:1/none"}, nil)
	assert.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestInit_InvalidURL(t *testing.T) {
	b := New(Config{URL: "://bad"}, nil)
	assert.ErrorContains(t, b.Init(), "invalid websocket URL")
}

func TestClose_Twice(t *testing.T) {
	srv, _ := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestEndRun_TimesOutAfterClose(t *testing.T) {
	srv, _ := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	require.NoError(t, b.Close())

	done := make(chan error, 1)
	go func() { done <- b.EndRun(core.RunSummary{}) }()

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "connection closed")
	case <-time.After(2 * time.Second):
		t.Fatal("EndRun did not return after Close")
	}
}

func TestReconnectReplaysStartRun(t *testing.T) {
	var (
		mu    sync.Mutex
		conns int
	)
	second := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			if n == 1 {
				// ack the first start_run, then drop the connection
				data, _ := json.Marshal(streaming.AckMessage{Type: streaming.TypeAck, For: env.Type})
				_ = c.WriteMessage(ws.TextMessage, data)
				return
			}
			second.add(env)
		}
	}))
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartRun(core.Run{ID: "flaky"}))
	// publish while the client waits to redial
	require.Eventually(t, func() bool { return b.conn.current() == nil }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, b.PublishSnapshot(core.Snapshot{RunID: "flaky", Tick: 1}))

	assert.Eventually(t, func() bool {
		msgs := second.all()
		return len(msgs) >= 2 && msgs[len(msgs)-1].Type == streaming.TypeSnapshot
	}, 5*time.Second, 20*time.Millisecond)

	msgs := second.all()
	assert.Equal(t, streaming.TypeStartRun, msgs[0].Type, "header comes first on the new connection")
}
