// Package notify routes lifecycle events to push, SMS and email recipients.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
	"github.com/cuongbtq/booking-be/internal/booking/eligibility"
	"github.com/cuongbtq/booking-be/internal/booking/timeutil"
	"golang.org/x/sync/errgroup"
)

// Sender delivers notifications over concrete channels
type Sender interface {
	SendEmail(ctx context.Context, to, name, subject, template string, data map[string]any) error
	SendSMS(ctx context.Context, to, message string) error
	SendPush(ctx context.Context, users []domain.User, jobID int64, kind domain.NotificationType, message string, delay time.Duration) error
}

// Directory lists the translators a broadcast may reach
type Directory interface {
	ListTranslators(ctx context.Context) ([]domain.User, error)
}

// Outcome is the soft result of a send. Error is set instead of failing the caller.
type Outcome struct {
	Success string `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failed reports whether the send failed
func (o Outcome) Failed() bool {
	return o.Error != ""
}

// Config holds dispatcher dependencies
type Config struct {
	Sender      Sender
	Directory   Directory
	Filter      *eligibility.Filter
	NightWindow timeutil.NightWindow
	Logger      *slog.Logger
	Concurrency int
	Now         func() time.Time
}

// Dispatcher fans notifications out to recipients, honouring their push preferences
type Dispatcher struct {
	sender      Sender
	directory   Directory
	filter      *eligibility.Filter
	night       timeutil.NightWindow
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(cfg *Config) *Dispatcher {
	d := &Dispatcher{
		sender:      cfg.Sender,
		directory:   cfg.Directory,
		filter:      cfg.Filter,
		night:       cfg.NightWindow,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
		now:         cfg.Now,
	}
	if d.filter == nil {
		d.filter = eligibility.NewFilter(nil)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.concurrency <= 0 {
		d.concurrency = 8
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Email sends one email. Failures are logged and reported in the outcome.
func (d *Dispatcher) Email(ctx context.Context, to, name, subject, template string, data map[string]any) Outcome {
	if err := d.sender.SendEmail(ctx, to, name, subject, template, data); err != nil {
		return d.soft("email", err, slog.String("template", template))
	}
	return Outcome{Success: "Email sent"}
}

// SMS sends one text message. Failures are logged and reported in the outcome.
func (d *Dispatcher) SMS(ctx context.Context, to, message string) Outcome {
	if err := d.sender.SendSMS(ctx, to, message); err != nil {
		return d.soft("sms", err)
	}
	return Outcome{Success: "SMS sent"}
}

// NeedsPush reports whether the user wants push notifications at all
func NeedsPush(user *domain.User) bool {
	return !user.Meta.PushDisabled
}

// PushDelay returns how long a push to the user should be held back at time t
func (d *Dispatcher) PushDelay(user *domain.User, t time.Time) time.Duration {
	if !user.Meta.NightTimeMuted {
		return 0
	}
	return d.night.Remaining(t)
}

// Push sends a push to specific users, skipping those who disabled push and
// delaying those muted during the night.
func (d *Dispatcher) Push(ctx context.Context, jobID int64, users []domain.User, kind domain.NotificationType, message string) Outcome {
	now := d.now()
	batches := make(map[time.Duration][]domain.User)
	for i := range users {
		if !NeedsPush(&users[i]) {
			continue
		}
		delay := d.PushDelay(&users[i], now)
		batches[delay] = append(batches[delay], users[i])
	}

	if len(batches) == 0 {
		return Outcome{Success: "No recipients"}
	}

	for delay, batch := range batches {
		if err := d.sender.SendPush(ctx, batch, jobID, kind, message, delay); err != nil {
			return d.soft("push", err, slog.Int64("job_id", jobID))
		}
	}
	return Outcome{Success: "Push sent"}
}

// Recipients returns the active translators eligible for the job, minus exclude
func (d *Dispatcher) Recipients(ctx context.Context, job *domain.Job, exclude int64) ([]domain.User, error) {
	translators, err := d.directory.ListTranslators(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list translators: %w", err)
	}

	recipients := make([]domain.User, 0, len(translators))
	for i := range translators {
		t := &translators[i]
		if t.ID == exclude {
			continue
		}
		if job.Immediate && t.Meta.EmergencyMuted {
			continue
		}
		if !d.filter.Eligible(t, job) {
			continue
		}
		recipients = append(recipients, *t)
	}
	return recipients, nil
}

// Broadcast pushes a job to every eligible translator. Recipients who are muted at
// night form a delayed batch; both batches are sent concurrently.
func (d *Dispatcher) Broadcast(ctx context.Context, job *domain.Job, message string, exclude int64) Outcome {
	recipients, err := d.Recipients(ctx, job, exclude)
	if err != nil {
		return d.soft("push", err, slog.Int64("job_id", job.ID))
	}

	now := d.now()
	var immediate, delayed []domain.User
	var delay time.Duration
	for i := range recipients {
		if !NeedsPush(&recipients[i]) {
			continue
		}
		if wait := d.PushDelay(&recipients[i], now); wait > 0 {
			delayed = append(delayed, recipients[i])
			delay = wait
			continue
		}
		immediate = append(immediate, recipients[i])
	}

	g, gctx := errgroup.WithContext(ctx)
	if len(immediate) > 0 {
		g.Go(func() error {
			return d.sender.SendPush(gctx, immediate, job.ID, domain.NotificationNewJob, message, 0)
		})
	}
	if len(delayed) > 0 {
		g.Go(func() error {
			return d.sender.SendPush(gctx, delayed, job.ID, domain.NotificationNewJob, message, delay)
		})
	}
	if err := g.Wait(); err != nil {
		return d.soft("push", err, slog.Int64("job_id", job.ID))
	}

	d.logger.Info("Job broadcast to translators",
		slog.Int64("job_id", job.ID),
		slog.Int("immediate", len(immediate)),
		slog.Int("delayed", len(delayed)),
	)
	return Outcome{Success: "Push sent"}
}

// BroadcastSMS texts every eligible translator that has a phone number
func (d *Dispatcher) BroadcastSMS(ctx context.Context, job *domain.Job, message string) Outcome {
	recipients, err := d.Recipients(ctx, job, 0)
	if err != nil {
		return d.soft("sms", err, slog.Int64("job_id", job.ID))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, r := range recipients {
		if r.Phone == "" {
			continue
		}
		phone := r.Phone
		g.Go(func() error {
			return d.sender.SendSMS(gctx, phone, message)
		})
	}
	if err := g.Wait(); err != nil {
		return d.soft("sms", err, slog.Int64("job_id", job.ID))
	}
	return Outcome{Success: "SMS sent"}
}

func (d *Dispatcher) soft(channel string, err error, attrs ...any) Outcome {
	args := append([]any{slog.String("channel", channel), slog.Any("error", err)}, attrs...)
	d.logger.Warn("Notification send failed", args...)
	return Outcome{Error: err.Error()}
}
