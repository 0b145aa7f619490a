// Package storage is the PostgreSQL implementation of the lifecycle data store.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
	"github.com/cuongbtq/booking-be/internal/booking/eligibility"
	"github.com/cuongbtq/booking-be/internal/booking/lifecycle"
	"github.com/cuongbtq/booking-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Schema creates every table the services use
//
//go:embed schema.sql
var Schema string

// Storage implements lifecycle.DataStore on PostgreSQL
type Storage struct {
	db     sqlx.ExtContext
	pg     *postgresql.Client
	logger *slog.Logger
}

var _ lifecycle.DataStore = (*Storage)(nil)

// NewStorage creates a new Storage
func NewStorage(pg *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{
		db:     pg.GetDB(),
		pg:     pg,
		logger: logger,
	}
}

// inTx runs fn on a transactional copy of the storage. Nested calls reuse the
// surrounding transaction.
func (s *Storage) inTx(ctx context.Context, fn func(tx *Storage) error) error {
	if s.pg == nil {
		return fn(s)
	}
	return s.pg.InTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&Storage{db: tx, logger: s.logger})
	})
}

func (s *Storage) Atomic(ctx context.Context, fn func(tx lifecycle.DataStore) error) error {
	return s.inTx(ctx, func(tx *Storage) error { return fn(tx) })
}

func (s *Storage) FindJob(ctx context.Context, id int64) (*domain.Job, error) {
	var row jobRow
	err := sqlx.GetContext(ctx, s.db, &row, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("job", id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	job := row.toDomain()
	return &job, nil
}

func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			customer_id, from_language_id, job_type, status, immediate,
			gender, certified, min_translator_level, due, duration,
			customer_phone_type, customer_physical_type, town, address, instructions,
			user_email, reference, admin_comments, flagged, manually_handled, by_admin,
			ignore_expiring, ignore_expired, session_time, end_at, withdraw_at, will_expire_at,
			specific_translator_id, blocked_translator_ids, created_at, updated_at
		) VALUES (
			:customer_id, :from_language_id, :job_type, :status, :immediate,
			:gender, :certified, :min_translator_level, :due, :duration,
			:customer_phone_type, :customer_physical_type, :town, :address, :instructions,
			:user_email, :reference, :admin_comments, :flagged, :manually_handled, :by_admin,
			:ignore_expiring, :ignore_expired, :session_time, :end_at, :withdraw_at, :will_expire_at,
			:specific_translator_id, :blocked_translator_ids, :created_at, :updated_at
		) RETURNING id
	`

	rows, err := sqlx.NamedQueryContext(ctx, s.db, query, newJobRow(job))
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return fmt.Errorf("failed to create job: no id returned")
	}
	if err := rows.Scan(&job.ID); err != nil {
		return fmt.Errorf("failed to scan job id: %w", err)
	}
	return rows.Err()
}

func (s *Storage) SaveJob(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE jobs SET
			from_language_id = :from_language_id,
			job_type = :job_type,
			status = :status,
			immediate = :immediate,
			gender = :gender,
			certified = :certified,
			min_translator_level = :min_translator_level,
			due = :due,
			duration = :duration,
			customer_phone_type = :customer_phone_type,
			customer_physical_type = :customer_physical_type,
			town = :town,
			address = :address,
			instructions = :instructions,
			user_email = :user_email,
			reference = :reference,
			admin_comments = :admin_comments,
			flagged = :flagged,
			manually_handled = :manually_handled,
			by_admin = :by_admin,
			ignore_expiring = :ignore_expiring,
			ignore_expired = :ignore_expired,
			session_time = :session_time,
			end_at = :end_at,
			withdraw_at = :withdraw_at,
			will_expire_at = :will_expire_at,
			specific_translator_id = :specific_translator_id,
			blocked_translator_ids = :blocked_translator_ids,
			created_at = :created_at,
			updated_at = :updated_at
		WHERE id = :id
	`

	result, err := sqlx.NamedExecContext(ctx, s.db, query, newJobRow(job))
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return domain.NewNotFoundError("job", job.ID)
	}
	return nil
}

func (s *Storage) FindUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *Storage) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (s *Storage) findUser(ctx context.Context, query string, key any) (*domain.User, error) {
	var row userRow
	if err := sqlx.GetContext(ctx, s.db, &row, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", key)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user := row.toDomain()
	return &user, nil
}

func (s *Storage) ListTranslators(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 AND active ORDER BY id`
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, domain.RoleTranslator); err != nil {
		return nil, fmt.Errorf("failed to list translators: %w", err)
	}

	users := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toDomain())
	}
	return users, nil
}

func (s *Storage) FindAssignment(ctx context.Context, jobID int64, criteria lifecycle.AssignmentCriteria) (*domain.Assignment, error) {
	var where string
	switch criteria {
	case lifecycle.AssignmentCurrent:
		where = "cancel_at IS NULL"
	case lifecycle.AssignmentUncompleted:
		where = "cancel_at IS NULL AND completed_at IS NULL"
	case lifecycle.AssignmentCompleted:
		where = "completed_at IS NOT NULL"
	default:
		return nil, fmt.Errorf("unknown assignment criteria %d", criteria)
	}

	var row assignmentRow
	query := `SELECT ` + assignmentColumns + ` FROM translator_jobs WHERE job_id = $1 AND ` + where + ` ORDER BY id DESC LIMIT 1`
	if err := sqlx.GetContext(ctx, s.db, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	a := row.toDomain()
	return &a, nil
}

func (s *Storage) CreateAssignment(ctx context.Context, a *domain.Assignment) error {
	query := `
		INSERT INTO translator_jobs (job_id, translator_id, created_at, cancel_at, completed_at, completed_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := sqlx.GetContext(ctx, s.db, &a.ID, query,
		a.JobID, a.TranslatorID, a.CreatedAt,
		nullTime(a.CancelAt), nullTime(a.CompletedAt), nullInt64(a.CompletedBy),
	)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

func (s *Storage) SaveAssignment(ctx context.Context, a *domain.Assignment) error {
	query := `
		UPDATE translator_jobs
		SET cancel_at = $1, completed_at = $2, completed_by = $3
		WHERE id = $4
	`
	_, err := s.db.ExecContext(ctx, query, nullTime(a.CancelAt), nullTime(a.CompletedAt), nullInt64(a.CompletedBy), a.ID)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	return nil
}

func (s *Storage) DeleteAssignment(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM translator_jobs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	return nil
}

// ClaimJob locks the job row, then inserts the assignment only if the job is
// still pending with no current assignment. The partial unique index on
// translator_jobs backs the check up.
func (s *Storage) ClaimJob(ctx context.Context, jobID, translatorID int64, at time.Time) (*domain.Assignment, bool, error) {
	var (
		claimed *domain.Assignment
		ok      bool
	)

	err := s.inTx(ctx, func(tx *Storage) error {
		var status string
		err := sqlx.GetContext(ctx, tx.db, &status, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, jobID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NewNotFoundError("job", jobID)
			}
			return fmt.Errorf("failed to lock job: %w", err)
		}
		if domain.JobStatus(status) != domain.JobStatusPending {
			return nil
		}

		var taken bool
		err = sqlx.GetContext(ctx, tx.db, &taken,
			`SELECT EXISTS (SELECT 1 FROM translator_jobs WHERE job_id = $1 AND cancel_at IS NULL)`, jobID)
		if err != nil {
			return fmt.Errorf("failed to check current assignment: %w", err)
		}
		if taken {
			return nil
		}

		// ON CONFLICT keeps the transaction usable if the partial unique index fires
		a := &domain.Assignment{JobID: jobID, TranslatorID: translatorID, CreatedAt: at}
		err = sqlx.GetContext(ctx, tx.db, &a.ID, `
			INSERT INTO translator_jobs (job_id, translator_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
			RETURNING id
		`, jobID, translatorID, at)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to create assignment: %w", err)
		}

		_, err = tx.db.ExecContext(ctx,
			`UPDATE jobs SET status = $1, updated_at = $2 WHERE id = $3`,
			domain.JobStatusAssigned, at, jobID)
		if err != nil {
			return fmt.Errorf("failed to mark job assigned: %w", err)
		}

		claimed, ok = a, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if !ok {
		s.logger.Warn("Failed to claim job - already claimed or not pending",
			slog.Int64("job_id", jobID),
			slog.Int64("translator_id", translatorID),
		)
	}
	return claimed, ok, nil
}

// LockTranslator takes a transaction-scoped advisory lock keyed by the
// translator id. It only serialises when called inside Atomic.
func (s *Storage) LockTranslator(ctx context.Context, translatorID int64) error {
	if _, err := s.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, translatorID); err != nil {
		return fmt.Errorf("failed to lock translator: %w", err)
	}
	return nil
}

func (s *Storage) HasOverlappingAssignment(ctx context.Context, translatorID int64, start, end time.Time, excludeJobID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM translator_jobs tj
			JOIN jobs j ON j.id = tj.job_id
			WHERE tj.translator_id = $1
			  AND tj.cancel_at IS NULL
			  AND tj.completed_at IS NULL
			  AND j.id <> $2
			  AND j.status IN ($3, $4)
			  AND j.due < $5
			  AND $6 < j.due + make_interval(mins => j.duration)
		)
	`
	var busy bool
	err := sqlx.GetContext(ctx, s.db, &busy, query,
		translatorID, excludeJobID, domain.JobStatusAssigned, domain.JobStatusStarted, end, start)
	if err != nil {
		return false, fmt.Errorf("failed to check overlapping assignments: %w", err)
	}
	return busy, nil
}

func (s *Storage) QueryPendingJobsFor(ctx context.Context, criteria eligibility.Criteria) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = $1
		  AND job_type = $2
		  AND from_language_id = ANY($3)
		ORDER BY id
	`
	var rows []jobRow
	err := sqlx.SelectContext(ctx, s.db, &rows, query,
		criteria.Status, criteria.JobType, pq.Int64Array(criteria.LanguageIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending jobs: %w", err)
	}
	return toDomainJobs(rows), nil
}

func (s *Storage) ListCustomerJobs(ctx context.Context, customerID int64, q lifecycle.JobQuery) ([]domain.Job, error) {
	return s.listJobs(ctx, `FROM jobs j WHERE j.customer_id = $1`, customerID, q)
}

func (s *Storage) ListTranslatorJobs(ctx context.Context, translatorID int64, q lifecycle.JobQuery) ([]domain.Job, error) {
	from := `
		FROM jobs j
		JOIN translator_jobs tj ON tj.job_id = j.id AND tj.cancel_at IS NULL
		WHERE tj.translator_id = $1`
	return s.listJobs(ctx, from, translatorID, q)
}

func (s *Storage) listJobs(ctx context.Context, from string, ownerID int64, q lifecycle.JobQuery) ([]domain.Job, error) {
	query := `SELECT ` + prefixed("j", jobColumns) + ` ` + from
	args := []interface{}{ownerID}
	argIdx := 2

	statuses := make([]string, len(q.Statuses))
	for i, st := range q.Statuses {
		statuses[i] = string(st)
	}
	query += fmt.Sprintf(" AND j.status = ANY($%d)", argIdx)
	args = append(args, pq.StringArray(statuses))
	argIdx++

	order := "ASC"
	cmp := ">"
	if q.Descending {
		order, cmp = "DESC", "<"
	}

	if q.After != nil {
		query += fmt.Sprintf(" AND (j.due, j.id) %s ($%d, $%d)", cmp, argIdx, argIdx+1)
		args = append(args, time.UnixMicro(q.After.Due).UTC(), q.After.JobID)
		argIdx += 2
	}

	query += fmt.Sprintf(" ORDER BY j.due %s, j.id %s", order, order)

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, q.Limit)
	}

	var rows []jobRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return toDomainJobs(rows), nil
}

func (s *Storage) LanguageName(ctx context.Context, id int64) (string, error) {
	var name string
	if err := sqlx.GetContext(ctx, s.db, &name, `SELECT name FROM languages WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.NewNotFoundError("language", id)
		}
		return "", fmt.Errorf("failed to get language: %w", err)
	}
	return name, nil
}

func (s *Storage) FindDistance(ctx context.Context, jobID int64) (*domain.Distance, error) {
	var d struct {
		JobID    int64  `db:"job_id"`
		Distance string `db:"distance"`
		Time     string `db:"time"`
	}
	err := sqlx.GetContext(ctx, s.db, &d, `SELECT job_id, distance, time FROM distances WHERE job_id = $1`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get distance: %w", err)
	}
	return &domain.Distance{JobID: d.JobID, Distance: d.Distance, Time: d.Time}, nil
}

func (s *Storage) SaveDistance(ctx context.Context, d *domain.Distance) error {
	query := `
		INSERT INTO distances (job_id, distance, time)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id) DO UPDATE SET distance = EXCLUDED.distance, time = EXCLUDED.time
	`
	if _, err := s.db.ExecContext(ctx, query, d.JobID, d.Distance, d.Time); err != nil {
		return fmt.Errorf("failed to save distance: %w", err)
	}
	return nil
}
