package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/cuongbtq/booking-be/internal/worker/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramPush delivers push tasks as Telegram messages. A recipient's device
// token is its Telegram chat id.
type TelegramPush struct {
	bot    botSender
	logger *slog.Logger
}

// NewTelegramPush creates a new TelegramPush
func NewTelegramPush(token string, logger *slog.Logger) (*TelegramPush, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &TelegramPush{bot: bot, logger: logger}, nil
}

// Deliver sends to every recipient. It only reports a retryable failure when no
// recipient was reached, so a retry never duplicates a delivered message.
func (p *TelegramPush) Deliver(ctx context.Context, task *domain.Task) error {
	if task.Push == nil {
		return fmt.Errorf("%w: missing push body", domain.ErrInvalidPayload)
	}

	var (
		sent int
		errs []error
	)
	for _, r := range task.Push.Recipients {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		chatID, err := strconv.ParseInt(r.Token, 10, 64)
		if err != nil {
			p.logger.Warn("Skipping push recipient with invalid chat id",
				slog.Int64("user_id", r.UserID),
				slog.String("task_id", task.TaskID),
			)
			continue
		}

		msg := tgbotapi.NewMessage(chatID, task.Push.Message)
		if _, err := p.bot.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", r.UserID, err))
			continue
		}
		sent++
	}

	if len(errs) == 0 {
		return nil
	}
	if sent == 0 {
		return domain.NewRetryableError(errors.Join(errs...))
	}

	p.logger.Warn("Push partially delivered",
		slog.String("task_id", task.TaskID),
		slog.Int("sent", sent),
		slog.Int("failed", len(errs)),
		slog.Any("error", errors.Join(errs...)),
	)
	return nil
}
