//go:build integration

package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
	"github.com/cuongbtq/booking-be/internal/booking/eligibility"
	"github.com/cuongbtq/booking-be/internal/booking/lifecycle"
	"github.com/cuongbtq/booking-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// newTestStorage starts a Postgres 16 container, or reuses BOOKING_TEST_PG_DSN
// when set, and applies the schema.
func newTestStorage(t *testing.T) (*Storage, *postgresql.Client) {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv("BOOKING_TEST_PG_DSN")
	if dsn == "" {
		pgC, err := postgres.Run(ctx,
			"postgres:16",
			postgres.WithDatabase("booking"),
			postgres.WithUsername("booking"),
			postgres.WithPassword("booking"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
		t.Cleanup(func() { _ = testcontainers.TerminateContainer(pgC) })

		dsn, err = pgC.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pg, err := postgresql.NewClient(&postgresql.Config{DSN: dsn, MaxOpenConns: 20}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Close() })

	require.NoError(t, pg.ApplySchema(ctx, Schema))
	_, err = pg.GetDB().ExecContext(ctx,
		`TRUNCATE job_audit_logs, distances, translator_jobs, jobs, users, languages RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	_, err = pg.GetDB().ExecContext(ctx, `
		INSERT INTO languages (name) VALUES ('Swedish'), ('Arabic');
		INSERT INTO users (name, email, role, customer_type) VALUES ('Anna', 'anna@example.com', 'customer', 'paid');
		INSERT INTO users (name, email, role, translator_type, language_ids) VALUES
			('Tom', 'tom@example.com', 'translator', 'professional', '{1,2}'),
			('Ola', 'ola@example.com', 'translator', 'professional', '{1}');
	`)
	require.NoError(t, err)

	return NewStorage(pg, logger), pg
}

func newPendingJob(due time.Time) *domain.Job {
	now := due.Add(-48 * time.Hour)
	return &domain.Job{
		CustomerID:     1,
		FromLanguageID: 1,
		JobType:        domain.JobTypePaid,
		Status:         domain.JobStatusPending,
		Due:            due,
		Duration:       60,
		WillExpireAt:   due,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestStorage_CreateAndFindJob(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	due := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	job := newPendingJob(due)
	gender := domain.GenderFemale
	job.Gender = &gender
	job.BlockedTranslatorIDs = []int64{3}

	require.NoError(t, s.CreateJob(ctx, job))
	require.NotZero(t, job.ID)

	got, err := s.FindJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, got.Status)
	assert.True(t, got.Due.Equal(due))
	require.NotNil(t, got.Gender)
	assert.Equal(t, domain.GenderFemale, *got.Gender)
	assert.Equal(t, []int64{3}, got.BlockedTranslatorIDs)

	_, err = s.FindJob(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStorage_ClaimJobIsExclusive(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	job := newPendingJob(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, s.CreateJob(ctx, job))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []int64
	)
	for _, translatorID := range []int64{2, 3, 2, 3, 2, 3} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, ok, err := s.ClaimJob(ctx, job.ID, id, time.Now())
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins = append(wins, id)
				mu.Unlock()
			}
		}(translatorID)
	}
	wg.Wait()

	require.Len(t, wins, 1)

	got, err := s.FindJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusAssigned, got.Status)

	a, err := s.FindAssignment(ctx, job.ID, lifecycle.AssignmentCurrent)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, wins[0], a.TranslatorID)
}

func TestStorage_AtomicRollsBack(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	job := newPendingJob(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, s.CreateJob(ctx, job))

	err := s.Atomic(ctx, func(tx lifecycle.DataStore) error {
		job.Status = domain.JobStatusTimedOut
		if err := tx.SaveJob(ctx, job); err != nil {
			return err
		}
		return domain.NewValidationError("status", "forced")
	})
	require.Error(t, err)

	got, err := s.FindJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, got.Status)
}

func TestStorage_HasOverlappingAssignment(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	due := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	job := newPendingJob(due)
	require.NoError(t, s.CreateJob(ctx, job))
	_, ok, err := s.ClaimJob(ctx, job.ID, 2, due.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	tests := []struct {
		name  string
		start time.Time
		want  bool
	}{
		{"same window", due, true},
		{"starts inside", due.Add(30 * time.Minute), true},
		{"ends at start", due.Add(-time.Hour), false},
		{"starts at end", due.Add(time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			busy, err := s.HasOverlappingAssignment(ctx, 2, tt.start, tt.start.Add(time.Hour), 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, busy)
		})
	}

	busy, err := s.HasOverlappingAssignment(ctx, 2, due, due.Add(time.Hour), job.ID)
	require.NoError(t, err)
	assert.False(t, busy, "job itself is excluded")
}

func TestStorage_LockTranslatorSerialisesOverlappingClaims(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	due := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	first := newPendingJob(due)
	second := newPendingJob(due.Add(30 * time.Minute))
	for _, j := range []*domain.Job{first, second} {
		require.NoError(t, s.CreateJob(ctx, j))
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		claims []int64
		busy   int
	)
	start := make(chan struct{})
	for _, job := range []*domain.Job{first, second} {
		wg.Add(1)
		go func(job *domain.Job) {
			defer wg.Done()
			<-start
			err := s.Atomic(ctx, func(tx lifecycle.DataStore) error {
				if err := tx.LockTranslator(ctx, 2); err != nil {
					return err
				}
				overlap, err := tx.HasOverlappingAssignment(ctx, 2, job.Due, job.End(), job.ID)
				if err != nil {
					return err
				}
				if overlap {
					mu.Lock()
					busy++
					mu.Unlock()
					return nil
				}
				// widen the window between the check and the insert
				time.Sleep(200 * time.Millisecond)
				_, ok, err := tx.ClaimJob(ctx, job.ID, 2, time.Now())
				if err != nil {
					return err
				}
				if ok {
					mu.Lock()
					claims = append(claims, job.ID)
					mu.Unlock()
				}
				return nil
			})
			assert.NoError(t, err)
		}(job)
	}
	close(start)
	wg.Wait()

	require.Len(t, claims, 1)
	assert.Equal(t, 1, busy)

	var current int
	err := sqlx.GetContext(ctx, s.db, &current,
		`SELECT COUNT(*) FROM translator_jobs WHERE translator_id = 2 AND cancel_at IS NULL`)
	require.NoError(t, err)
	assert.Equal(t, 1, current)
}

func TestStorage_QueryPendingJobsFor(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	due := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	swedish := newPendingJob(due)
	arabic := newPendingJob(due)
	arabic.FromLanguageID = 2
	for _, j := range []*domain.Job{swedish, arabic} {
		require.NoError(t, s.CreateJob(ctx, j))
	}

	jobs, err := s.QueryPendingJobsFor(ctx, eligibility.Criteria{
		JobType:     domain.JobTypePaid,
		LanguageIDs: []int64{2},
		Status:      domain.JobStatusPending,
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, arabic.ID, jobs[0].ID)
}

func TestStorage_ListCustomerJobsKeyset(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		j := newPendingJob(base.Add(time.Duration(i) * time.Hour))
		j.Status = domain.JobStatusCompleted
		require.NoError(t, s.CreateJob(ctx, j))
	}

	q := lifecycle.JobQuery{
		Statuses:   []domain.JobStatus{domain.JobStatusCompleted},
		Descending: true,
		Limit:      2,
	}
	first, err := s.ListCustomerJobs(ctx, 1, q)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, []int64{5, 4}, []int64{first[0].ID, first[1].ID})

	last := first[len(first)-1]
	q.After = &domain.HistoryCursor{Due: last.Due.UnixMicro(), JobID: last.ID}
	second, err := s.ListCustomerJobs(ctx, 1, q)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, []int64{3, 2}, []int64{second[0].ID, second[1].ID})
}

func TestStorage_DistanceUpsert(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	job := newPendingJob(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, s.CreateJob(ctx, job))

	d, err := s.FindDistance(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, d)

	require.NoError(t, s.SaveDistance(ctx, &domain.Distance{JobID: job.ID, Distance: "12km", Time: "20m"}))
	require.NoError(t, s.SaveDistance(ctx, &domain.Distance{JobID: job.ID, Distance: "14km", Time: "25m"}))

	d, err = s.FindDistance(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "14km", d.Distance)
	assert.Equal(t, "25m", d.Time)
}

func TestStorage_FindUserByEmailAndLanguage(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	u, err := s.FindUserByEmail(ctx, "TOM@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTranslator, u.Role)
	assert.Equal(t, []int64{1, 2}, u.Meta.LanguageIDs)

	translators, err := s.ListTranslators(ctx)
	require.NoError(t, err)
	assert.Len(t, translators, 2)

	name, err := s.LanguageName(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Arabic", name)
}
