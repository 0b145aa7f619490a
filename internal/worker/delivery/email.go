// Package delivery holds the channel providers the worker sends notifications through.
package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"text/template"

	"github.com/cuongbtq/booking-be/internal/worker/domain"
)

// SMTPConfig holds SMTP relay settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer renders email tasks and relays them over SMTP
type Mailer struct {
	addr     string
	from     string
	auth     smtp.Auth
	sendMail sendMailFunc
	body     *template.Template
}

var bodyTemplate = template.Must(template.New("body").Parse(`Hello {{.Name}},
{{with .Data.job}}
Booking #{{.job_id}}, {{.due_date}} {{.due_time}}, {{.duration}} min.
{{end}}{{with .Data.session_time}}Session time: {{.}}
{{end}}{{with .Data.message}}
{{.}}
{{end}}
-- {{.Template}}
`))

// NewMailer creates a new Mailer
func NewMailer(cfg *SMTPConfig) *Mailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &Mailer{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from:     cfg.From,
		auth:     auth,
		sendMail: smtp.SendMail,
		body:     bodyTemplate,
	}
}

func (m *Mailer) Deliver(ctx context.Context, task *domain.Task) error {
	if task.Email == nil {
		return fmt.Errorf("%w: missing email body", domain.ErrInvalidPayload)
	}
	if err := ctx.Err(); err != nil {
		return domain.NewRetryableError(err)
	}

	msg, err := m.render(task.Email)
	if err != nil {
		return err
	}

	if err := m.sendMail(m.addr, m.auth, m.from, []string{task.Email.To}, msg); err != nil {
		var protoErr *textproto.Error
		if errors.As(err, &protoErr) && protoErr.Code >= 500 {
			return fmt.Errorf("smtp rejected message: %w", err)
		}
		return domain.NewRetryableError(fmt.Errorf("smtp send failed: %w", err))
	}
	return nil
}

func (m *Mailer) render(e *domain.EmailTask) ([]byte, error) {
	var body bytes.Buffer
	if err := m.body.Execute(&body, e); err != nil {
		return nil, fmt.Errorf("failed to render email body: %w", err)
	}

	to := e.To
	if e.Name != "" {
		to = fmt.Sprintf("%q <%s>", e.Name, e.To)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", e.Subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body.String(), "\n", "\r\n"))
	return msg.Bytes(), nil
}
