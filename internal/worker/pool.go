package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/booking-be/internal/worker/domain"
)

// Acknowledger settles deliveries by tag. *amqp.Channel satisfies it.
type Acknowledger interface {
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple bool, requeue bool) error
}

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg, ok := <-w.tasksChan:
			if !ok {
				return
			}

			err := w.processTask(ctx, msg)

			channel := w.rabbitClient.GetChannel()
			if channel == nil {
				w.logger.Error("Failed to get RabbitMQ channel for ACK/NACK",
					slog.String("worker_name", workerName),
					slog.String("task_id", msg.Task.TaskID),
				)
				continue
			}
			w.settle(channel, workerName, msg, err)
		}
	}
}

// settle ACKs a processed task or NACKs it, requeueing only retryable failures
func (w *Worker) settle(ack Acknowledger, workerName string, msg *TaskMessage, err error) {
	if err == nil {
		if ackErr := ack.Ack(msg.DeliveryTag, false); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("worker_name", workerName),
				slog.String("task_id", msg.Task.TaskID),
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	w.logger.Error("Task processing failed",
		slog.String("worker_name", workerName),
		slog.String("task_id", msg.Task.TaskID),
		slog.String("channel", string(msg.Task.Channel)),
		slog.String("error", err.Error()),
	)

	requeue := shouldRequeue(err)
	if nackErr := ack.Nack(msg.DeliveryTag, false, requeue); nackErr != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("worker_name", workerName),
			slog.String("task_id", msg.Task.TaskID),
			slog.String("error", nackErr.Error()),
		)
		return
	}

	w.logger.Info("Message NACKed",
		slog.String("worker_name", workerName),
		slog.String("task_id", msg.Task.TaskID),
		slog.Bool("requeue", requeue),
	)
}

// shouldRequeue determines if a task should be requeued based on the error type
func shouldRequeue(err error) bool {
	if errors.Is(err, domain.ErrMaxRetriesExceeded) {
		return false
	}
	if errors.Is(err, domain.ErrInvalidPayload) || errors.Is(err, domain.ErrNoProvider) {
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
