package broker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
	workerdomain "github.com/cuongbtq/booking-be/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	routingKey string
	delay      time.Duration
	msg        amqp.Publishing
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
	down bool
}

func (f *fakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.down
}

func (f *fakePublisher) PublishWithRetry(_ context.Context, routingKey string, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{routingKey: routingKey, msg: msg})
	return nil
}

func (f *fakePublisher) PublishDelayed(_ context.Context, msg amqp.Publishing, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{routingKey: "delay", delay: delay, msg: msg})
	return nil
}

func newTestBroker() (*Broker, *fakePublisher) {
	pub := &fakePublisher{}
	b := NewBroker(pub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	b.now = func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) }
	return b, pub
}

func decodeTask(t *testing.T, msg amqp.Publishing) workerdomain.Task {
	t.Helper()
	var task workerdomain.Task
	require.NoError(t, json.Unmarshal(msg.Body, &task))
	return task
}

func TestBroker_SendEmail(t *testing.T) {
	b, pub := newTestBroker()

	data := map[string]any{"job": domain.JobPayload{JobID: 7}}
	require.NoError(t, b.SendEmail(context.Background(), "anna@example.com", "Anna", "Booking #7", domain.TemplateJobCreated, data))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, workerdomain.RoutingKeyEmail, pub.sent[0].routingKey)

	task := decodeTask(t, pub.sent[0].msg)
	assert.Equal(t, pub.sent[0].msg.MessageId, task.TaskID)
	assert.Equal(t, workerdomain.ChannelEmail, task.Channel)
	assert.Equal(t, int64(7), task.JobID)
	require.NotNil(t, task.Email)
	assert.Equal(t, "anna@example.com", task.Email.To)
	assert.Equal(t, domain.TemplateJobCreated, task.Email.Template)
	assert.NoError(t, task.Validate())
}

func TestBroker_SendPush(t *testing.T) {
	users := []domain.User{
		{ID: 1, Meta: domain.UserMeta{PushToken: "100"}},
		{ID: 2},
		{ID: 3, Meta: domain.UserMeta{PushToken: "300"}},
	}

	t.Run("immediate push goes to the push key", func(t *testing.T) {
		b, pub := newTestBroker()
		require.NoError(t, b.SendPush(context.Background(), users, 9, domain.NotificationNewJob, "new job", 0))

		require.Len(t, pub.sent, 1)
		assert.Equal(t, workerdomain.RoutingKeyPush, pub.sent[0].routingKey)

		task := decodeTask(t, pub.sent[0].msg)
		require.NotNil(t, task.Push)
		assert.Equal(t, []workerdomain.PushRecipient{{UserID: 1, Token: "100"}, {UserID: 3, Token: "300"}}, task.Push.Recipients)
		assert.Equal(t, string(domain.NotificationNewJob), task.Push.Kind)
	})

	t.Run("delayed push goes through the delay queue", func(t *testing.T) {
		b, pub := newTestBroker()
		require.NoError(t, b.SendPush(context.Background(), users, 9, domain.NotificationNewJob, "new job", 8*time.Hour))

		require.Len(t, pub.sent, 1)
		assert.Equal(t, "delay", pub.sent[0].routingKey)
		assert.Equal(t, 8*time.Hour, pub.sent[0].delay)
	})

	t.Run("no tokens means nothing queued", func(t *testing.T) {
		b, pub := newTestBroker()
		require.NoError(t, b.SendPush(context.Background(), []domain.User{{ID: 2}}, 9, domain.NotificationNewJob, "new job", 0))
		assert.Empty(t, pub.sent)
	})
}

func TestBroker_Publish(t *testing.T) {
	b, pub := newTestBroker()

	require.NoError(t, b.Publish(context.Background(), domain.EventJobAccepted, map[string]int64{"job_id": 4}))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, "event.job.accepted", pub.sent[0].routingKey)
	assert.Equal(t, domain.EventJobAccepted, pub.sent[0].msg.Type)

	var event struct {
		EventID string           `json:"event_id"`
		Name    string           `json:"name"`
		Payload map[string]int64 `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(pub.sent[0].msg.Body, &event))
	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, domain.EventJobAccepted, event.Name)
	assert.Equal(t, int64(4), event.Payload["job_id"])
}

func TestBroker_PublisherErrorIsWrapped(t *testing.T) {
	b, pub := newTestBroker()
	pub.err = errors.New("channel closed")

	err := b.SendSMS(context.Background(), "+4670000000", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, pub.err)
	assert.Contains(t, err.Error(), "failed to enqueue sms task")
}

func TestBroker_HealthCheck(t *testing.T) {
	b, pub := newTestBroker()
	assert.NoError(t, b.HealthCheck(context.Background()))

	pub.mu.Lock()
	pub.down = true
	pub.mu.Unlock()
	assert.Error(t, b.HealthCheck(context.Background()))
}
