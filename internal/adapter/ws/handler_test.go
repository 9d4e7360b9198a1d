package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/neo-risk-service/internal/broadcast"
	"github.com/couchcryptid/neo-risk-service/internal/domain"
	"github.com/couchcryptid/neo-risk-service/internal/observability"
)

const testOrigin = "http://localhost:3000"

// echoChat records posts and republishes them like the chat service does.
type echoChat struct {
	mu    sync.Mutex
	bus   *broadcast.Bus
	posts []domain.ChatMessage
}

func (c *echoChat) Post(_ context.Context, m domain.ChatMessage) (domain.ChatMessage, error) {
	c.mu.Lock()
	m.ID = int64(len(c.posts) + 1)
	c.posts = append(c.posts, m)
	c.mu.Unlock()
	c.bus.Publish(broadcast.Envelope{Type: broadcast.TypeChat, Payload: m})
	return m, nil
}

func (c *echoChat) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.posts)
}

type wsFixture struct {
	bus     *broadcast.Bus
	chat    *echoChat
	handler *Handler
	server  *httptest.Server
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := broadcast.NewBus(8, observability.NewMetricsForTesting(), logger)
	chat := &echoChat{bus: bus}
	h := NewHandler(bus, chat, []string{testOrigin}, logger)
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return &wsFixture{bus: bus, chat: chat, handler: h, server: srv}
}

func (f *wsFixture) dial(t *testing.T, origin string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(f.server.URL, "http"), header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *wsFixture) waitSubscribers(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.bus.Len() == n }, 2*time.Second, 10*time.Millisecond)
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestHandler_PushesHazardEvents(t *testing.T) {
	fx := newWSFixture(t)
	conn := fx.dial(t, testOrigin)
	fx.waitSubscribers(t, 1)

	fx.bus.Publish(broadcast.Envelope{Type: broadcast.TypeHazard, Payload: domain.HazardEvent{
		Title:     "NASA ALERT: HAZARDOUS OBJECT",
		Message:   "Asteroid (2019 HZ4) approaching Earth.",
		Timestamp: "2026-10-15T09:00:00Z",
		Severity:  "critical",
		ObjectID:  "2453309",
	}})

	f := readFrame(t, conn)
	assert.Equal(t, "system_alert", f.Type)
	assert.JSONEq(t, `{
		"title": "NASA ALERT: HAZARDOUS OBJECT",
		"message": "Asteroid (2019 HZ4) approaching Earth.",
		"timestamp": "2026-10-15T09:00:00Z",
		"severity": "critical"
	}`, string(f.Payload))
}

func TestHandler_SendMessageReachesEveryClient(t *testing.T) {
	fx := newWSFixture(t)
	sender := fx.dial(t, testOrigin)
	other := fx.dial(t, "")
	fx.waitSubscribers(t, 2)

	require.NoError(t, sender.WriteJSON(map[string]any{
		"type":    "send_message",
		"payload": map[string]string{"user": "vera", "text": "meteor shower tonight", "timestamp": "21:04"},
	}))

	for _, conn := range []*websocket.Conn{sender, other} {
		f := readFrame(t, conn)
		assert.Equal(t, "receive_message", f.Type)

		var m domain.ChatMessage
		require.NoError(t, json.Unmarshal(f.Payload, &m))
		assert.Equal(t, "vera", m.User)
		assert.Equal(t, "meteor shower tonight", m.Text)
		assert.Equal(t, "21:04", m.Timestamp)
	}
}

func TestHandler_IgnoresMalformedFrames(t *testing.T) {
	fx := newWSFixture(t)
	conn := fx.dial(t, testOrigin)
	fx.waitSubscribers(t, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "join_room", "payload": "x"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "send_message", "payload": 42}))
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "send_message",
		"payload": map[string]string{"user": "vera", "text": "still here"},
	}))

	f := readFrame(t, conn)
	assert.Equal(t, "receive_message", f.Type)
	assert.Contains(t, string(f.Payload), "still here")
	assert.Equal(t, 1, fx.chat.count())
}

func TestHandler_DisconnectUnsubscribes(t *testing.T) {
	fx := newWSFixture(t)
	conn := fx.dial(t, testOrigin)
	fx.waitSubscribers(t, 1)

	require.NoError(t, conn.Close())
	fx.waitSubscribers(t, 0)
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	fx := newWSFixture(t)

	header := http.Header{"Origin": {"http://evil.test"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(fx.server.URL, "http"), header)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, fx.bus.Len())
}

func TestHandler_CloseSendsGoingAway(t *testing.T) {
	fx := newWSFixture(t)
	conn := fx.dial(t, testOrigin)
	fx.waitSubscribers(t, 1)

	fx.handler.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	fx.waitSubscribers(t, 0)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{testOrigin})

	req := httptest.NewRequest(http.MethodGet, "http://api.test/ws", nil)
	assert.True(t, check(req), "no origin header")

	req.Header.Set("Origin", testOrigin)
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://api.test")
	assert.True(t, check(req), "same host")

	req.Header.Set("Origin", "http://evil.test")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
