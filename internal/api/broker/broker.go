// Package broker queues notification tasks and lifecycle events on RabbitMQ.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
	"github.com/cuongbtq/booking-be/internal/booking/lifecycle"
	"github.com/cuongbtq/booking-be/internal/booking/notify"
	workerdomain "github.com/cuongbtq/booking-be/internal/worker/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the subset of the RabbitMQ client the broker needs
type Publisher interface {
	PublishWithRetry(ctx context.Context, routingKey string, msg amqp.Publishing) error
	PublishDelayed(ctx context.Context, msg amqp.Publishing, delay time.Duration) error
	IsConnected() bool
}

// Broker hands notifications to the worker service instead of sending them inline
type Broker struct {
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

var (
	_ notify.Sender      = (*Broker)(nil)
	_ lifecycle.EventBus = (*Broker)(nil)
)

// NewBroker creates a new Broker
func NewBroker(publisher Publisher, logger *slog.Logger) *Broker {
	return &Broker{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// HealthCheck fails while the RabbitMQ connection is down
func (b *Broker) HealthCheck(_ context.Context) error {
	if !b.publisher.IsConnected() {
		return fmt.Errorf("rabbitmq health check failed: not connected")
	}
	return nil
}

func (b *Broker) SendEmail(ctx context.Context, to, name, subject, template string, data map[string]any) error {
	return b.enqueue(ctx, &workerdomain.Task{
		Channel: workerdomain.ChannelEmail,
		JobID:   jobIDFrom(data),
		Email: &workerdomain.EmailTask{
			To:       to,
			Name:     name,
			Subject:  subject,
			Template: template,
			Data:     data,
		},
	}, 0)
}

func (b *Broker) SendSMS(ctx context.Context, to, message string) error {
	return b.enqueue(ctx, &workerdomain.Task{
		Channel: workerdomain.ChannelSMS,
		SMS:     &workerdomain.SMSTask{To: to, Message: message},
	}, 0)
}

// SendPush queues one push task for every user with a registered device.
// Users without a token are skipped.
func (b *Broker) SendPush(ctx context.Context, users []domain.User, jobID int64, kind domain.NotificationType, message string, delay time.Duration) error {
	recipients := make([]workerdomain.PushRecipient, 0, len(users))
	for _, u := range users {
		if u.Meta.PushToken == "" {
			continue
		}
		recipients = append(recipients, workerdomain.PushRecipient{UserID: u.ID, Token: u.Meta.PushToken})
	}
	if len(recipients) == 0 {
		b.logger.Debug("No push recipients with a device token",
			slog.Int64("job_id", jobID),
			slog.Int("users", len(users)),
		)
		return nil
	}

	return b.enqueue(ctx, &workerdomain.Task{
		Channel: workerdomain.ChannelPush,
		JobID:   jobID,
		Push: &workerdomain.PushTask{
			Recipients: recipients,
			Kind:       string(kind),
			Message:    message,
		},
	}, delay)
}

// Publish sends a lifecycle event to the exchange under "event.<name>"
func (b *Broker) Publish(ctx context.Context, name string, payload any) error {
	event := workerdomain.Event{
		EventID:    uuid.NewString(),
		Name:       name,
		OccurredAt: b.now().UTC(),
		Payload:    payload,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType: "application/json",
		MessageId:   event.EventID,
		Type:        name,
		Timestamp:   event.OccurredAt,
		Body:        body,
	}
	if err := b.publisher.PublishWithRetry(ctx, workerdomain.EventRoutingPrefix+name, msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", name, err)
	}
	return nil
}

func (b *Broker) enqueue(ctx context.Context, task *workerdomain.Task, delay time.Duration) error {
	task.TaskID = uuid.NewString()
	task.CreatedAt = b.now().UTC()

	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	msg := amqp.Publishing{
		ContentType: "application/json",
		MessageId:   task.TaskID,
		Type:        string(task.Channel),
		Timestamp:   task.CreatedAt,
		Body:        body,
	}

	if delay > 0 && task.Channel == workerdomain.ChannelPush {
		err = b.publisher.PublishDelayed(ctx, msg, delay)
	} else {
		err = b.publisher.PublishWithRetry(ctx, task.Channel.RoutingKey(), msg)
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue %s task: %w", task.Channel, err)
	}

	b.logger.Debug("Notification task queued",
		slog.String("task_id", task.TaskID),
		slog.String("channel", string(task.Channel)),
		slog.Int64("job_id", task.JobID),
		slog.Duration("delay", delay),
	)
	return nil
}

func jobIDFrom(data map[string]any) int64 {
	if p, ok := data["job"].(domain.JobPayload); ok {
		return p.JobID
	}
	return 0
}
