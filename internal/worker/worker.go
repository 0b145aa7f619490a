package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/booking-be/internal/worker/domain"
	"github.com/cuongbtq/booking-be/shared/rabbitmq"
	"github.com/google/uuid"
)

// DeliveryStore records delivery attempts
type DeliveryStore interface {
	BeginDelivery(ctx context.Context, task *domain.Task) (int, error)
	FinishDelivery(ctx context.Context, taskID, status, errorMsg string) error
}

// Provider delivers tasks over one channel. Transient failures are returned
// wrapped in domain.RetryableError.
type Provider interface {
	Deliver(ctx context.Context, task *domain.Task) error
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Store         DeliveryStore
	RabbitClient  *rabbitmq.Client
	Providers     map[domain.Channel]Provider
	Concurrency   int
	PrefetchCount int
	TaskTimeout   time.Duration
	MaxAttempts   int
	QueueName     string
}

// Worker consumes notification tasks and hands them to channel providers
type Worker struct {
	logger            *slog.Logger
	store             DeliveryStore
	rabbitClient      *rabbitmq.Client
	providers         map[domain.Channel]Provider
	workerID          string
	concurrency       int
	prefetchCount     int
	taskTimeout       time.Duration
	maxAttempts       int
	rabbitMQQueueName string
	tasksChan         chan *TaskMessage
	wg                sync.WaitGroup
	stopChan          chan struct{}
	stopOnce          sync.Once
}

// TaskMessage is a decoded task together with its delivery tag
type TaskMessage struct {
	Task        *domain.Task
	DeliveryTag uint64
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	w := &Worker{
		logger:            cfg.Logger,
		store:             cfg.Store,
		rabbitClient:      cfg.RabbitClient,
		providers:         cfg.Providers,
		workerID:          "worker-" + uuid.NewString()[:8],
		concurrency:       cfg.Concurrency,
		prefetchCount:     cfg.PrefetchCount,
		taskTimeout:       cfg.TaskTimeout,
		maxAttempts:       cfg.MaxAttempts,
		rabbitMQQueueName: cfg.QueueName,
		stopChan:          make(chan struct{}),
	}
	if w.concurrency <= 0 {
		w.concurrency = 1
	}
	if w.prefetchCount <= 0 {
		w.prefetchCount = w.concurrency
	}
	if w.taskTimeout <= 0 {
		w.taskTimeout = 30 * time.Second
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = 3
	}
	w.tasksChan = make(chan *TaskMessage, w.concurrency)
	return w
}

// Start consumes tasks until ctx is canceled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("task_timeout", w.taskTimeout),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	w.logger.Info("Worker context canceled, stopping...")
	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
