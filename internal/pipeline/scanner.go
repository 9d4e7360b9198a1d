package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/neo-risk-service/internal/broadcast"
	"github.com/couchcryptid/neo-risk-service/internal/domain"
	"github.com/couchcryptid/neo-risk-service/internal/observability"
)

// Publisher fans an envelope out to connected clients without blocking.
type Publisher interface {
	Publish(env broadcast.Envelope) int
}

// AlertWriter persists alert rules.
type AlertWriter interface {
	CreateAlert(ctx context.Context, a domain.Alert) (domain.Alert, error)
}

// OwnerResolver names the user scan-created alerts belong to.
type OwnerResolver interface {
	DefaultOwner(ctx context.Context) (domain.User, error)
}

// AlertStore is what the scanner needs from persistence.
type AlertStore interface {
	AlertWriter
	OwnerResolver
}

// ScanResult is the terminal state of one scan cycle.
type ScanResult string

const (
	ScanSkipped  ScanResult = "skipped"
	ScanNoHazard ScanResult = "no_hazard"
	ScanAlerted  ScanResult = "alerted"
)

// ScanOutcome reports what a cycle did. Event is set when a hazard event was
// published; Alert is set only when the alert write also succeeded.
type ScanOutcome struct {
	Result ScanResult
	Event  *domain.HazardEvent
	Alert  *domain.Alert
}

// Scanner runs the daily hazard scan.
type Scanner struct {
	feed      FeedClient
	bus       Publisher
	store     AlertStore
	schedule  Schedule
	threshold int
	onStart   bool
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// ScannerConfig holds the scan settings.
type ScannerConfig struct {
	Schedule       Schedule
	AlertThreshold int
	// RunOnStart runs one cycle as soon as Run is called.
	RunOnStart bool
}

// NewScanner creates a Scanner.
func NewScanner(feed FeedClient, bus Publisher, store AlertStore, cfg ScannerConfig, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Scanner {
	return &Scanner{
		feed:      feed,
		bus:       bus,
		store:     store,
		schedule:  cfg.Schedule,
		threshold: cfg.AlertThreshold,
		onStart:   cfg.RunOnStart,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
	}
}

// ScanOnce runs a single cycle over today's window. Feed failures skip the
// cycle without falling back. When hazardous objects are present, the first
// one in feed order is published as a hazard event and then recorded as an
// alert for the default owner. Alert write failures are logged and do not
// undo the broadcast.
func (s *Scanner) ScanOnce(ctx context.Context) ScanOutcome {
	outcome := s.scan(ctx)
	s.metrics.ScanCycles.WithLabelValues(string(outcome.Result)).Inc()
	s.metrics.LastScanTimestamp.Set(float64(s.clock.Now().Unix()))
	return outcome
}

func (s *Scanner) scan(ctx context.Context) ScanOutcome {
	today := s.clock.Now().In(s.schedule.location())

	raws, err := s.feed.FetchWindow(ctx, today, today)
	if err != nil {
		s.logger.Warn("daily scan skipped", "date", today.Format(time.DateOnly), "error", err)
		return ScanOutcome{Result: ScanSkipped}
	}

	hazard, found := firstHazard(raws)
	if !found {
		s.logger.Info("daily scan complete, no hazardous objects",
			"date", today.Format(time.DateOnly), "objects", len(raws))
		return ScanOutcome{Result: ScanNoHazard}
	}

	event := domain.NewHazardEvent(hazard, s.clock.Now())
	n := s.bus.Publish(broadcast.Envelope{Type: broadcast.TypeHazard, Payload: event})
	s.metrics.HazardEvents.Inc()
	s.logger.Warn("hazardous object detected",
		"object_id", hazard.ID,
		"object_name", hazard.Name,
		"risk_score", hazard.RiskScore,
		"recipients", n,
	)

	outcome := ScanOutcome{Result: ScanAlerted, Event: &event}
	if alert, ok := s.recordAlert(ctx, hazard); ok {
		outcome.Alert = &alert
	}
	return outcome
}

// firstHazard scores every object and returns the first officially
// hazardous one in feed order.
func firstHazard(raws []domain.RawObject) (domain.Asteroid, bool) {
	for _, raw := range raws {
		a := domain.Assess(raw)
		if a.Hazardous {
			return a, true
		}
	}
	return domain.Asteroid{}, false
}

func (s *Scanner) recordAlert(ctx context.Context, hazard domain.Asteroid) (domain.Alert, bool) {
	owner, err := s.store.DefaultOwner(ctx)
	if err != nil {
		outcome := "error"
		if errors.Is(err, domain.ErrNotFound) {
			outcome = "no_owner"
		}
		s.metrics.AlertWrites.WithLabelValues(outcome).Inc()
		s.logger.Warn("hazard alert not recorded, owner lookup failed", "object_name", hazard.Name, "error", err)
		return domain.Alert{}, false
	}

	alert, err := s.store.CreateAlert(ctx, domain.Alert{
		Name:      domain.HazardAlertName(hazard.Name),
		Threshold: s.threshold,
		Enabled:   true,
		UserID:    owner.ID,
	})
	if err != nil {
		s.metrics.AlertWrites.WithLabelValues("error").Inc()
		s.logger.Error("hazard alert write failed", "object_name", hazard.Name, "user_id", owner.ID, "error", err)
		return domain.Alert{}, false
	}

	s.metrics.AlertWrites.WithLabelValues("success").Inc()
	s.logger.Info("hazard alert recorded", "alert_id", alert.ID, "user_id", owner.ID, "name", alert.Name)
	return alert, true
}
