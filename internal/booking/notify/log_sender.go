package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
)

// LogSender writes notifications to the log instead of delivering them. It is
// used when the API runs without a broker.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new LogSender
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendEmail(ctx context.Context, to, name, subject, template string, _ map[string]any) error {
	s.logger.InfoContext(ctx, "Email not delivered",
		slog.String("to", to),
		slog.String("name", name),
		slog.String("subject", subject),
		slog.String("template", template),
	)
	return nil
}

func (s *LogSender) SendSMS(ctx context.Context, to, message string) error {
	s.logger.InfoContext(ctx, "SMS not delivered",
		slog.String("to", to),
		slog.Int("length", len(message)),
	)
	return nil
}

func (s *LogSender) SendPush(ctx context.Context, users []domain.User, jobID int64, kind domain.NotificationType, _ string, delay time.Duration) error {
	s.logger.InfoContext(ctx, "Push not delivered",
		slog.Int64("job_id", jobID),
		slog.String("kind", string(kind)),
		slog.Int("recipients", len(users)),
		slog.Duration("delay", delay),
	)
	return nil
}
