package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
	"github.com/robfig/cron/v3"
)

// TimeoutStore moves expired pending bookings to timedout
type TimeoutStore interface {
	MarkTimedOut(ctx context.Context, now time.Time) ([]int64, error)
}

// EventPublisher publishes lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, name string, payload any) error
}

// SweepConfig holds expiry sweep configuration
type SweepConfig struct {
	Logger   *slog.Logger
	Store    TimeoutStore
	Events   EventPublisher
	Schedule string
	Now      func() time.Time
}

// Sweeper periodically times out pending bookings nobody accepted in time
type Sweeper struct {
	logger   *slog.Logger
	store    TimeoutStore
	events   EventPublisher
	schedule string
	now      func() time.Time
	cron     *cron.Cron
}

// NewSweeper validates the cron schedule and creates a Sweeper
func NewSweeper(cfg *SweepConfig) (*Sweeper, error) {
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.Schedule, err)
	}

	s := &Sweeper{
		logger:   cfg.Logger,
		store:    cfg.Store,
		events:   cfg.Events,
		schedule: cfg.Schedule,
		now:      cfg.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Start runs the sweep on its schedule until ctx is canceled
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("Expiry sweep failed",
				slog.String("error", err.Error()),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Expiry sweep scheduled",
		slog.String("schedule", s.schedule),
	)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("Expiry sweep stopped")
	return nil
}

// Sweep times out expired bookings once and publishes a job.timedout event for
// each. It returns the number of bookings timed out.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.store.MarkTimedOut(ctx, now)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		payload := map[string]any{
			"job_id":    id,
			"status":    domain.JobStatusTimedOut,
			"timed_out": now.UTC(),
		}
		if err := s.events.Publish(ctx, domain.EventJobTimedOut, payload); err != nil {
			s.logger.Warn("Failed to publish timeout event",
				slog.Int64("job_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return len(ids), nil
}
