// Package chat relays community messages between connected clients. Unlike
// hazard events, messages are persisted before they are broadcast so that
// late joiners can fetch the history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/couchcryptid/neo-risk-service/internal/broadcast"
	"github.com/couchcryptid/neo-risk-service/internal/domain"
)

// ErrEmptyMessage is returned for a message without text.
var ErrEmptyMessage = errors.New("message text is empty")

// maxTextLen caps a message in characters; longer text is truncated.
const maxTextLen = 2000

// MessageStore persists chat history.
type MessageStore interface {
	SaveMessage(ctx context.Context, m domain.ChatMessage) (domain.ChatMessage, error)
	RecentMessages(ctx context.Context, limit int) ([]domain.ChatMessage, error)
}

// Publisher fans an envelope out to connected clients.
type Publisher interface {
	Publish(env broadcast.Envelope) int
}

// Service stores and broadcasts chat messages.
type Service struct {
	store        MessageStore
	bus          Publisher
	historyLimit int
	logger       *slog.Logger
}

// NewService creates a chat service returning at most historyLimit messages
// from Recent.
func NewService(store MessageStore, bus Publisher, historyLimit int, logger *slog.Logger) *Service {
	return &Service{store: store, bus: bus, historyLimit: historyLimit, logger: logger}
}

// Post persists m and then broadcasts it as a receive_message envelope. A
// message that fails to persist is not broadcast.
func (s *Service) Post(ctx context.Context, m domain.ChatMessage) (domain.ChatMessage, error) {
	m.Text = strings.TrimSpace(m.Text)
	if m.Text == "" {
		return domain.ChatMessage{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(m.Text) > maxTextLen {
		m.Text = string([]rune(m.Text)[:maxTextLen])
	}
	m.User = strings.TrimSpace(m.User)
	if m.User == "" {
		m.User = "Anonymous"
	}

	saved, err := s.store.SaveMessage(ctx, m)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("save chat message: %w", err)
	}

	n := s.bus.Publish(broadcast.Envelope{Type: broadcast.TypeChat, Payload: saved})
	s.logger.Debug("chat message relayed", "message_id", saved.ID, "recipients", n)
	return saved, nil
}

// Recent returns the latest messages, oldest first.
func (s *Service) Recent(ctx context.Context) ([]domain.ChatMessage, error) {
	msgs, err := s.store.RecentMessages(ctx, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	return msgs, nil
}
