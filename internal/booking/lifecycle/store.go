package lifecycle

import (
	"context"
	"time"

	"github.com/cuongbtq/booking-be/internal/booking/audit"
	"github.com/cuongbtq/booking-be/internal/booking/domain"
	"github.com/cuongbtq/booking-be/internal/booking/eligibility"
)

// AssignmentCriteria selects which assignment row of a job FindAssignment returns
type AssignmentCriteria int

const (
	// AssignmentCurrent is the row with no cancel_at
	AssignmentCurrent AssignmentCriteria = iota
	// AssignmentUncompleted is the current row that has not been completed
	AssignmentUncompleted
	// AssignmentCompleted is the most recently completed row
	AssignmentCompleted
)

// JobQuery narrows a customer or translator job listing. Jobs are ordered by
// (due, id), descending when Descending is set. After is an exclusive keyset bound.
type JobQuery struct {
	Statuses   []domain.JobStatus
	Descending bool
	After      *domain.HistoryCursor
	Limit      int
}

// DataStore is the persistence the engine needs. Find* methods return a
// *domain.NotFoundError for missing jobs and users, and nil for missing
// assignments or distances.
type DataStore interface {
	FindJob(ctx context.Context, id int64) (*domain.Job, error)
	SaveJob(ctx context.Context, job *domain.Job) error
	CreateJob(ctx context.Context, job *domain.Job) error

	FindUser(ctx context.Context, id int64) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListTranslators(ctx context.Context) ([]domain.User, error)

	FindAssignment(ctx context.Context, jobID int64, criteria AssignmentCriteria) (*domain.Assignment, error)
	CreateAssignment(ctx context.Context, a *domain.Assignment) error
	SaveAssignment(ctx context.Context, a *domain.Assignment) error
	DeleteAssignment(ctx context.Context, id int64) error

	// ClaimJob inserts an assignment and marks the job assigned, but only if
	// the job is still pending and has no current assignment. ok is false when
	// the claim lost.
	ClaimJob(ctx context.Context, jobID, translatorID int64, at time.Time) (a *domain.Assignment, ok bool, err error)
	// LockTranslator serialises schedule checks for one translator until the
	// surrounding Atomic call returns.
	LockTranslator(ctx context.Context, translatorID int64) error
	// HasOverlappingAssignment reports whether the translator holds a current
	// assignment on another open job whose booked window overlaps [start, end).
	HasOverlappingAssignment(ctx context.Context, translatorID int64, start, end time.Time, excludeJobID int64) (bool, error)

	QueryPendingJobsFor(ctx context.Context, criteria eligibility.Criteria) ([]domain.Job, error)
	ListCustomerJobs(ctx context.Context, customerID int64, q JobQuery) ([]domain.Job, error)
	ListTranslatorJobs(ctx context.Context, translatorID int64, q JobQuery) ([]domain.Job, error)

	LanguageName(ctx context.Context, id int64) (string, error)
	FindDistance(ctx context.Context, jobID int64) (*domain.Distance, error)
	SaveDistance(ctx context.Context, d *domain.Distance) error

	// Atomic runs fn against a transactional view of the store. Any error
	// returned by fn rolls every write back.
	Atomic(ctx context.Context, fn func(tx DataStore) error) error
}

// EventBus publishes lifecycle events to external consumers
type EventBus interface {
	Publish(ctx context.Context, name string, payload any) error
}

// Event is the payload published for every lifecycle event
type Event struct {
	Job         domain.JobPayload `json:"job"`
	ActorID     int64             `json:"actor_id,omitempty"`
	UserID      int64             `json:"user_id,omitempty"`
	SessionTime string            `json:"session_time,omitempty"`
	Changes     []audit.Change    `json:"changes,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}
