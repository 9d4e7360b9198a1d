package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/neo-risk-service/internal/domain"
	"github.com/couchcryptid/neo-risk-service/internal/observability"
)

// FeedClient fetches raw objects whose close approaches fall in a date window.
// Failures wrap domain.ErrFeedUnavailable.
type FeedClient interface {
	FetchWindow(ctx context.Context, start, end time.Time) ([]domain.RawObject, error)
}

// Source tells where a listing's records came from.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// Listing is the result of an on-demand listing.
type Listing struct {
	Asteroids []domain.Asteroid
	Source    Source
}

// Lister serves the scored upcoming-approach list. It has no side effects
// beyond logging and metrics.
type Lister struct {
	feed      FeedClient
	lookahead int
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewLister creates a Lister fetching today through today+lookaheadDays (UTC).
func NewLister(feed FeedClient, lookaheadDays int, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Lister {
	return &Lister{
		feed:      feed,
		lookahead: lookaheadDays,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
	}
}

// ListAsteroids returns every object in the window, normalized and scored in
// feed order. It never fails: when the feed is unavailable or reports
// nothing, the fallback dataset is returned instead.
func (l *Lister) ListAsteroids(ctx context.Context) Listing {
	start := l.clock.Now().UTC()
	end := start.AddDate(0, 0, l.lookahead)

	raws, err := l.feed.FetchWindow(ctx, start, end)
	switch {
	case err != nil:
		l.logger.Warn("feed unavailable, serving fallback dataset", "error", err)
		return l.fallback()
	case len(raws) == 0:
		l.logger.Warn("feed window is empty, serving fallback dataset",
			"start", start.Format(time.DateOnly), "end", end.Format(time.DateOnly))
		return l.fallback()
	}

	asteroids := make([]domain.Asteroid, len(raws))
	for i, raw := range raws {
		asteroids[i] = domain.Assess(raw)
	}

	l.metrics.AsteroidsServed.WithLabelValues(string(SourceLive)).Add(float64(len(asteroids)))
	l.logger.Info("asteroids listed", "source", SourceLive, "count", len(asteroids))
	return Listing{Asteroids: asteroids, Source: SourceLive}
}

func (l *Lister) fallback() Listing {
	asteroids := domain.Fallback()
	l.metrics.AsteroidsServed.WithLabelValues(string(SourceFallback)).Add(float64(len(asteroids)))
	return Listing{Asteroids: asteroids, Source: SourceFallback}
}
