// Package notifytest provides an in-memory notify.Sender for tests.
package notifytest

import (
	"context"
	"sync"
	"time"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
)

// Email is a captured email
type Email struct {
	To       string
	Name     string
	Subject  string
	Template string
	Data     map[string]any
}

// SMS is a captured text message
type SMS struct {
	To      string
	Message string
}

// Push is a captured push batch
type Push struct {
	UserIDs []int64
	JobID   int64
	Kind    domain.NotificationType
	Message string
	Delay   time.Duration
}

// Sender records every send. Set the Err fields to make a channel fail.
type Sender struct {
	mu       sync.Mutex
	Emails   []Email
	Texts    []SMS
	Pushes   []Push
	EmailErr error
	SMSErr   error
	PushErr  error
}

func (s *Sender) SendEmail(_ context.Context, to, name, subject, template string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EmailErr != nil {
		return s.EmailErr
	}
	s.Emails = append(s.Emails, Email{To: to, Name: name, Subject: subject, Template: template, Data: data})
	return nil
}

func (s *Sender) SendSMS(_ context.Context, to, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SMSErr != nil {
		return s.SMSErr
	}
	s.Texts = append(s.Texts, SMS{To: to, Message: message})
	return nil
}

func (s *Sender) SendPush(_ context.Context, users []domain.User, jobID int64, kind domain.NotificationType, message string, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PushErr != nil {
		return s.PushErr
	}
	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	s.Pushes = append(s.Pushes, Push{UserIDs: ids, JobID: jobID, Kind: kind, Message: message, Delay: delay})
	return nil
}

// EmailsTo returns the captured emails for one address
func (s *Sender) EmailsTo(to string) []Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Email
	for _, e := range s.Emails {
		if e.To == to {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of captured sends over all channels
func (s *Sender) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Emails) + len(s.Texts) + len(s.Pushes)
}

// Reset drops captured sends
func (s *Sender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Emails = nil
	s.Texts = nil
	s.Pushes = nil
}
