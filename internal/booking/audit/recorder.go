// Package audit keeps the append-only trail of administrative job edits.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Dimensions tracked by an administrative update
const (
	DimensionTranslator = "translator"
	DimensionDue        = "due"
	DimensionLanguage   = "language"
	DimensionStatus     = "status"
)

// Change is one edited dimension of a job
type Change struct {
	Dimension string `json:"dimension"`
	Old       string `json:"old"`
	New       string `json:"new"`
}

// Record is written once per update call, even when Changes is empty
type Record struct {
	ActorID   int64     `json:"actor_id"`
	ActorName string    `json:"actor_name"`
	JobID     int64     `json:"job_id"`
	Changes   []Change  `json:"changes"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder appends audit records. Implementations never update or delete.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// LogRecorder writes records as structured log lines
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder creates a new LogRecorder
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(ctx context.Context, rec Record) error {
	changes := make([]any, 0, len(rec.Changes))
	for _, c := range rec.Changes {
		changes = append(changes, slog.Group(c.Dimension,
			slog.String("old", c.Old),
			slog.String("new", c.New),
		))
	}

	r.logger.InfoContext(ctx, "Booking updated",
		slog.Int64("job_id", rec.JobID),
		slog.Int64("actor_id", rec.ActorID),
		slog.String("actor_name", rec.ActorName),
		slog.Int("change_count", len(rec.Changes)),
		slog.Group("changes", changes...),
	)
	return nil
}

// PostgresRecorder inserts records into job_audit_logs
type PostgresRecorder struct {
	db sqlx.ExecerContext
}

// NewPostgresRecorder creates a recorder on a database handle or transaction
func NewPostgresRecorder(db sqlx.ExecerContext) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (r *PostgresRecorder) Record(ctx context.Context, rec Record) error {
	changes := rec.Changes
	if changes == nil {
		changes = []Change{}
	}
	payload, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("failed to marshal audit changes: %w", err)
	}

	const query = `
		INSERT INTO job_audit_logs (job_id, actor_id, actor_name, changes, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, rec.JobID, rec.ActorID, rec.ActorName, payload, rec.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// MultiRecorder fans a record out to every sink. All sinks are attempted.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, rec Record) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
