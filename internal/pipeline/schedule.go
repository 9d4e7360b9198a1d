package pipeline

import (
	"context"
	"fmt"
	"time"
)

// Schedule is a fixed daily wall-clock trigger.
type Schedule struct {
	Hour     int
	Minute   int
	Location *time.Location // nil means UTC
}

func (s Schedule) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func (s Schedule) String() string {
	return fmt.Sprintf("%02d:%02d %s", s.Hour, s.Minute, s.location())
}

// NextTrigger returns the first trigger strictly after now.
func (s Schedule) NextTrigger(now time.Time) time.Time {
	local := now.In(s.location())
	y, m, d := local.Date()
	next := time.Date(y, m, d, s.Hour, s.Minute, 0, 0, s.location())
	if !next.After(now) {
		next = time.Date(y, m, d+1, s.Hour, s.Minute, 0, 0, s.location())
	}
	return next
}

// Run executes ScanOnce at every trigger until ctx is cancelled. Cycle
// failures never stop the loop.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("scanner started", "scan_at", s.schedule.String(), "run_on_start", s.onStart)
	s.metrics.ScannerRunning.Set(1)
	defer s.metrics.ScannerRunning.Set(0)

	if s.onStart {
		s.ScanOnce(ctx)
	}

	for {
		now := s.clock.Now()
		next := s.schedule.NextTrigger(now)
		s.logger.Debug("next scan scheduled", "at", next)

		timer := s.clock.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scanner stopping", "reason", ctx.Err())
			return nil
		case <-timer.Chan():
		}

		if ctx.Err() != nil {
			return nil
		}
		s.ScanOnce(ctx)
	}
}
