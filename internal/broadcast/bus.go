// Package broadcast fans envelopes out to every connected subscriber on a
// single global topic. Delivery is best effort: there is no replay for late
// subscribers and a subscriber whose buffer is full misses the envelope.
package broadcast

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/couchcryptid/neo-risk-service/internal/observability"
)

// Envelope types carried on the bus.
const (
	TypeHazard = "system_alert"
	TypeChat   = "receive_message"
)

// Envelope is the unit of delivery. Payload is opaque to the bus.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Subscription is one receiver's view of the bus. C is closed on Unsubscribe.
type Subscription struct {
	ID uuid.UUID
	C  <-chan Envelope

	ch chan Envelope
}

// Bus is a non-blocking publish/subscribe fan-out.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]*Subscription
	buffer      int
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewBus creates a bus whose subscribers each buffer up to buffer envelopes.
func NewBus(buffer int, metrics *observability.Metrics, logger *slog.Logger) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{
		subscribers: make(map[uuid.UUID]*Subscription),
		buffer:      buffer,
		metrics:     metrics,
		logger:      logger,
	}
}

// Subscribe registers a new receiver. It only sees envelopes published after
// this call returns.
func (b *Bus) Subscribe() *Subscription {
	ch := make(chan Envelope, b.buffer)
	sub := &Subscription{ID: uuid.New(), C: ch, ch: ch}

	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	n := len(b.subscribers)
	b.mu.Unlock()

	b.metrics.BusSubscribers.Set(float64(n))
	b.logger.Debug("subscriber joined", "subscription", sub.ID, "subscribers", n)
	return sub
}

// Unsubscribe removes the receiver and closes its channel. Calling it more
// than once is a no-op.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if _, ok := b.subscribers[sub.ID]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subscribers, sub.ID)
	close(sub.ch)
	n := len(b.subscribers)
	b.mu.Unlock()

	b.metrics.BusSubscribers.Set(float64(n))
	b.logger.Debug("subscriber left", "subscription", sub.ID, "subscribers", n)
}

// Publish delivers env to every current subscriber without blocking and
// returns how many received it.
func (b *Bus) Publish(env Envelope) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for id, sub := range b.subscribers {
		select {
		case sub.ch <- env:
			delivered++
		default:
			b.metrics.BusDropped.Inc()
			b.logger.Warn("subscriber buffer full, dropping envelope",
				"subscription", id,
				"type", env.Type,
			)
		}
	}
	b.metrics.BusPublished.WithLabelValues(env.Type).Inc()
	return delivered
}

// Len reports the current number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
