// Package ws bridges the broadcast bus to browser clients over WebSocket.
// Every connection is one bus subscriber; inbound send_message frames are
// handed to the chat service.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/couchcryptid/neo-risk-service/internal/broadcast"
	"github.com/couchcryptid/neo-risk-service/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10

	typeSendMessage = "send_message"
)

// Hub hands out bus subscriptions.
type Hub interface {
	Subscribe() *broadcast.Subscription
	Unsubscribe(sub *broadcast.Subscription)
}

// ChatPoster accepts messages sent by clients.
type ChatPoster interface {
	Post(ctx context.Context, m domain.ChatMessage) (domain.ChatMessage, error)
}

// inbound is a client frame. Payload is decoded according to Type.
type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type sendMessagePayload struct {
	User      string `json:"user"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Handler upgrades requests to WebSocket connections.
type Handler struct {
	hub      Hub
	chat     ChatPoster
	upgrader websocket.Upgrader
	logger   *slog.Logger

	shutdown  chan struct{}
	closeOnce sync.Once
}

// NewHandler creates a WebSocket handler accepting browser origins listed in
// allowedOrigins ("*" allows any).
func NewHandler(hub Hub, chat ChatPoster, allowedOrigins []string, logger *slog.Logger) *Handler {
	return &Handler{
		hub:  hub,
		chat: chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger:   logger,
		shutdown: make(chan struct{}),
	}
}

// Close asks every open connection to close. New connections are refused.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.shutdown) })
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.shutdown:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	sub := h.hub.Subscribe()
	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		h.hub.Unsubscribe(sub)
		conn.Close()
	}()

	h.logger.Info("client connected", "subscription", sub.ID, "remote_addr", r.RemoteAddr)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		h.readPump(ctx, conn, sub)
	}()

	h.writePump(conn, sub, readDone)
	h.logger.Info("client disconnected", "subscription", sub.ID)
}

// readPump consumes client frames until the connection fails.
func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, sub *broadcast.Subscription) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", "subscription", sub.ID, "error", err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("ignoring malformed frame", "subscription", sub.ID, "error", err)
			continue
		}
		h.dispatch(ctx, sub, msg)
	}
}

func (h *Handler) dispatch(ctx context.Context, sub *broadcast.Subscription, msg inbound) {
	switch msg.Type {
	case typeSendMessage:
		var p sendMessagePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.logger.Debug("ignoring malformed send_message", "subscription", sub.ID, "error", err)
			return
		}
		if _, err := h.chat.Post(ctx, domain.ChatMessage{User: p.User, Text: p.Text, Timestamp: p.Timestamp}); err != nil {
			h.logger.Warn("chat message rejected", "subscription", sub.ID, "error", err)
		}
	default:
		h.logger.Debug("ignoring unknown frame type", "subscription", sub.ID, "type", msg.Type)
	}
}

// writePump is the connection's only writer.
func (h *Handler) writePump(conn *websocket.Conn, sub *broadcast.Subscription, readDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				writeClose(conn)
				return
			}
			if err := conn.WriteJSON(env); err != nil {
				h.logger.Debug("websocket write failed", "subscription", sub.ID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-h.shutdown:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			writeClose(conn)
			return
		case <-readDone:
			return
		}
	}
}

func writeClose(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

// originChecker allows requests without an Origin header (non-browser
// clients), same-host origins, and the configured list.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] || set[origin] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}
