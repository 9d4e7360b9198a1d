package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/neo-risk-service/internal/broadcast"
	"github.com/couchcryptid/neo-risk-service/internal/domain"
	"github.com/couchcryptid/neo-risk-service/internal/observability"
)

const (
	maxWriteAttempts = 3
	initialBackoff   = 200 * time.Millisecond
	maxBackoff       = 5 * time.Second
)

// messageWriter is the subset of *kafkago.Writer the relay uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Subscriber hands out bus subscriptions.
type Subscriber interface {
	Subscribe() *broadcast.Subscription
	Unsubscribe(sub *broadcast.Subscription)
}

// Relay mirrors hazard events from the broadcast bus to a Kafka topic. It
// is an ordinary bus subscriber, so a slow or unreachable broker only ever
// costs the relay its own buffered events.
type Relay struct {
	writer  messageWriter
	bus     Subscriber
	sub     *broadcast.Subscription
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewRelay creates a relay producing to topic. It subscribes immediately, so
// every hazard event published after this call is a candidate for mirroring.
func NewRelay(brokers []string, topic string, bus Subscriber, metrics *observability.Metrics, logger *slog.Logger) *Relay {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newRelay(w, bus, metrics, logger)
}

func newRelay(w messageWriter, bus Subscriber, metrics *observability.Metrics, logger *slog.Logger) *Relay {
	return &Relay{
		writer:  w,
		bus:     bus,
		sub:     bus.Subscribe(),
		metrics: metrics,
		logger:  logger,
	}
}

// Run forwards hazard events until ctx is cancelled or the subscription is
// closed. Other envelope types are ignored.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("kafka relay started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("kafka relay stopping", "reason", ctx.Err())
			return nil
		case env, ok := <-r.sub.C:
			if !ok {
				return nil
			}
			if env.Type != broadcast.TypeHazard {
				continue
			}
			event, ok := env.Payload.(domain.HazardEvent)
			if !ok {
				r.logger.Warn("unexpected hazard payload", "payload_type", fmt.Sprintf("%T", env.Payload))
				continue
			}
			r.forward(ctx, event)
		}
	}
}

// forward writes one event, retrying with exponential backoff. The event is
// dropped after maxWriteAttempts failures.
func (r *Relay) forward(ctx context.Context, event domain.HazardEvent) {
	msg, err := serializeToMessage(event)
	if err != nil {
		r.metrics.ProduceErrors.Inc()
		r.logger.Error("serialize hazard event failed", "error", err)
		return
	}

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		err := r.writer.WriteMessages(ctx, msg)
		if err == nil {
			r.metrics.MessagesProduced.Inc()
			r.logger.Debug("hazard event mirrored", "object_id", event.ObjectID)
			return
		}
		if ctx.Err() != nil || attempt == maxWriteAttempts {
			r.metrics.ProduceErrors.Inc()
			r.logger.Error("hazard event not mirrored", "object_id", event.ObjectID, "attempts", attempt, "error", err)
			return
		}
		r.logger.Warn("kafka write failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		if !sleepWithContext(ctx, backoff) {
			r.metrics.ProduceErrors.Inc()
			return
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

// Close unsubscribes from the bus and flushes the producer.
func (r *Relay) Close() error {
	r.bus.Unsubscribe(r.sub)
	return r.writer.Close()
}

// hazardMessage is the Kafka wire form of a hazard event. Unlike the client
// payload it names the object.
type hazardMessage struct {
	ObjectID   string `json:"object_id"`
	ObjectName string `json:"object_name"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
	Severity   string `json:"severity"`
}

// serializeToMessage marshals a HazardEvent into a Kafka message keyed by
// object id.
func serializeToMessage(event domain.HazardEvent) (kafkago.Message, error) {
	data, err := json.Marshal(hazardMessage{
		ObjectID:   event.ObjectID,
		ObjectName: event.ObjectName,
		Title:      event.Title,
		Message:    event.Message,
		Timestamp:  event.Timestamp,
		Severity:   event.Severity,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize hazard event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ObjectID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(broadcast.TypeHazard)},
			{Key: "severity", Value: []byte(event.Severity)},
			{Key: "detected_at", Value: []byte(event.Timestamp)},
		},
	}, nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
