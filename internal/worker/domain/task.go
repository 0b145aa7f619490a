package domain

import (
	"fmt"
	"time"
)

// Channel is the medium a notification task is delivered over
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// Task is a single notification delivery queued on RabbitMQ
type Task struct {
	TaskID    string     `json:"task_id"`
	Channel   Channel    `json:"channel"`
	JobID     int64      `json:"job_id,omitempty"`
	Email     *EmailTask `json:"email,omitempty"`
	SMS       *SMSTask   `json:"sms,omitempty"`
	Push      *PushTask  `json:"push,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// EmailTask is a templated email
type EmailTask struct {
	To       string         `json:"to"`
	Name     string         `json:"name"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}

// SMSTask is a text message
type SMSTask struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// PushTask is one push message for a batch of devices
type PushTask struct {
	Recipients []PushRecipient `json:"recipients"`
	Kind       string          `json:"kind"`
	Message    string          `json:"message"`
}

// PushRecipient identifies a device by its user and token
type PushRecipient struct {
	UserID int64  `json:"user_id"`
	Token  string `json:"token"`
}

// Recipient returns a printable destination for delivery logs
func (t *Task) Recipient() string {
	switch t.Channel {
	case ChannelEmail:
		if t.Email != nil {
			return t.Email.To
		}
	case ChannelSMS:
		if t.SMS != nil {
			return t.SMS.To
		}
	case ChannelPush:
		if t.Push != nil {
			return fmt.Sprintf("%d devices", len(t.Push.Recipients))
		}
	}
	return ""
}

// Validate checks that the body matching Channel is present
func (t *Task) Validate() error {
	switch t.Channel {
	case ChannelEmail:
		if t.Email == nil || t.Email.To == "" {
			return fmt.Errorf("%w: email task without recipient", ErrInvalidPayload)
		}
	case ChannelSMS:
		if t.SMS == nil || t.SMS.To == "" {
			return fmt.Errorf("%w: sms task without recipient", ErrInvalidPayload)
		}
	case ChannelPush:
		if t.Push == nil || len(t.Push.Recipients) == 0 {
			return fmt.Errorf("%w: push task without recipients", ErrInvalidPayload)
		}
	default:
		return fmt.Errorf("%w: unknown channel %q", ErrInvalidPayload, t.Channel)
	}
	return nil
}

// RoutingKey returns the routing key tasks on this channel are published under
func (c Channel) RoutingKey() string {
	switch c {
	case ChannelEmail:
		return RoutingKeyEmail
	case ChannelSMS:
		return RoutingKeySMS
	default:
		return RoutingKeyPush
	}
}

// Event is the envelope lifecycle events are published in
type Event struct {
	EventID    string    `json:"event_id"`
	Name       string    `json:"name"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}
