package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/booking-be/internal/worker/domain"
	"github.com/jmoiron/sqlx"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// BeginDelivery records a delivery attempt for the task and returns the attempt
// number. A task already delivered returns ErrTaskAlreadyDelivered.
func (s *Storage) BeginDelivery(ctx context.Context, task *domain.Task) (int, error) {
	query := `
		INSERT INTO notification_deliveries (task_id, channel, job_id, recipient, status, attempts)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (task_id) DO UPDATE
		SET attempts = notification_deliveries.attempts + 1,
		    status = EXCLUDED.status,
		    updated_at = NOW()
		WHERE notification_deliveries.status <> $6
		RETURNING attempts
	`

	jobID := sql.NullInt64{Int64: task.JobID, Valid: task.JobID != 0}

	var attempts int
	err := s.db.QueryRowContext(ctx, query,
		task.TaskID,
		string(task.Channel),
		jobID,
		task.Recipient(),
		domain.DeliveryStatusPending,
		domain.DeliveryStatusDelivered,
	).Scan(&attempts)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Task already delivered",
				slog.String("task_id", task.TaskID),
			)
			return 0, domain.ErrTaskAlreadyDelivered
		}
		return 0, fmt.Errorf("failed to record delivery attempt: %w", err)
	}

	return attempts, nil
}

// FinishDelivery stores the final status of a delivery attempt
func (s *Storage) FinishDelivery(ctx context.Context, taskID, status, errorMsg string) error {
	query := `
		UPDATE notification_deliveries
		SET status = $1,
		    error_message = $2,
		    updated_at = NOW()
		WHERE task_id = $3
	`

	if _, err := s.db.ExecContext(ctx, query, status, errorMsg, taskID); err != nil {
		return fmt.Errorf("failed to update delivery status: %w", err)
	}

	s.logger.Info("Delivery status updated",
		slog.String("task_id", taskID),
		slog.String("status", status),
	)

	return nil
}

// MarkTimedOut moves every pending booking whose expiry has passed to timedout
// and returns the affected booking ids.
func (s *Storage) MarkTimedOut(ctx context.Context, now time.Time) ([]int64, error) {
	query := `
		UPDATE jobs
		SET status = 'timedout',
		    updated_at = $1
		WHERE status = 'pending'
		  AND will_expire_at <= $1
		RETURNING id
	`

	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, query, now); err != nil {
		return nil, fmt.Errorf("failed to mark expired jobs: %w", err)
	}

	if len(ids) > 0 {
		s.logger.Info("Expired bookings timed out",
			slog.Int("count", len(ids)),
		)
	}

	return ids, nil
}
