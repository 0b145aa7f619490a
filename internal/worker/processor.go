package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/booking-be/internal/worker/domain"
)

// processTask records the attempt, delivers the task and stores the outcome
func (w *Worker) processTask(ctx context.Context, msg *TaskMessage) error {
	task := msg.Task

	w.logger.Info("Processing task",
		slog.String("task_id", task.TaskID),
		slog.String("channel", string(task.Channel)),
		slog.Int64("job_id", task.JobID),
	)

	attempt, err := w.store.BeginDelivery(ctx, task)
	if err != nil {
		if errors.Is(err, domain.ErrTaskAlreadyDelivered) {
			// redelivery of a sent task, drop it
			return nil
		}
		return domain.NewRetryableError(fmt.Errorf("failed to record delivery: %w", err))
	}

	provider, ok := w.providers[task.Channel]
	if !ok {
		err := fmt.Errorf("%w: %s", domain.ErrNoProvider, task.Channel)
		w.finish(ctx, task.TaskID, domain.DeliveryStatusSkipped, err)
		return err
	}

	taskCtx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	defer cancel()

	if err := provider.Deliver(taskCtx, task); err != nil {
		w.finish(ctx, task.TaskID, domain.DeliveryStatusFailed, err)

		var retryable *domain.RetryableError
		if !errors.As(err, &retryable) {
			return fmt.Errorf("delivery failed: %w", err)
		}
		if attempt >= w.maxAttempts {
			w.logger.Warn("Task exceeded max attempts",
				slog.String("task_id", task.TaskID),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", w.maxAttempts),
			)
			return fmt.Errorf("%w: %v", domain.ErrMaxRetriesExceeded, err)
		}
		return err
	}

	w.finish(ctx, task.TaskID, domain.DeliveryStatusDelivered, nil)
	w.logger.Info("Task delivered",
		slog.String("task_id", task.TaskID),
		slog.String("channel", string(task.Channel)),
		slog.Int("attempt", attempt),
	)
	return nil
}

func (w *Worker) finish(ctx context.Context, taskID, status string, cause error) {
	var msg string
	if cause != nil {
		msg = cause.Error()
	}
	if err := w.store.FinishDelivery(ctx, taskID, status, msg); err != nil {
		w.logger.Error("Failed to update delivery status",
			slog.String("task_id", taskID),
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
	}
}
