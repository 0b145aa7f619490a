package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cuongbtq/booking-be/internal/worker/domain"
)

// SMSConfig holds HTTP SMS gateway settings
type SMSConfig struct {
	URL     string
	APIKey  string
	Sender  string
	Timeout time.Duration
}

// SMSGateway posts text messages to an HTTP gateway
type SMSGateway struct {
	cfg    SMSConfig
	client *http.Client
}

// NewSMSGateway creates a new SMSGateway
func NewSMSGateway(cfg *SMSConfig) *SMSGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMSGateway{
		cfg:    *cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type smsRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}

func (g *SMSGateway) Deliver(ctx context.Context, task *domain.Task) error {
	if task.SMS == nil {
		return fmt.Errorf("%w: missing sms body", domain.ErrInvalidPayload)
	}

	body, err := json.Marshal(smsRequest{From: g.cfg.Sender, To: task.SMS.To, Message: task.SMS.Message})
	if err != nil {
		return fmt.Errorf("failed to marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return domain.NewRetryableError(fmt.Errorf("sms gateway request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return domain.NewRetryableError(err)
	}
	return err
}
