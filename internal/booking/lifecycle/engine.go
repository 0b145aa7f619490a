// Package lifecycle implements the job state machine: creation, acceptance,
// cancellation, completion and administrative edits.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/booking-be/internal/booking/audit"
	"github.com/cuongbtq/booking-be/internal/booking/domain"
	"github.com/cuongbtq/booking-be/internal/booking/eligibility"
	"github.com/cuongbtq/booking-be/internal/booking/notify"
	"github.com/cuongbtq/booking-be/internal/booking/timeutil"
)

const (
	// DefaultCancelWindow is how long before due a translator may still hand a job back
	DefaultCancelWindow = 24 * time.Hour
	// DefaultImmediateLead is how far ahead an immediate booking is scheduled
	DefaultImmediateLead = 5 * time.Minute
	// HistoryPageSize is the number of jobs per history page
	HistoryPageSize = 15
)

// Config holds the engine's collaborators and policies
type Config struct {
	Store         DataStore
	Dispatcher    *notify.Dispatcher
	Events        EventBus
	Audit         audit.Recorder
	Filter        *eligibility.Filter
	Expiry        timeutil.ExpiryPolicy
	CancelWindow  time.Duration
	ImmediateLead time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

// Engine runs lifecycle operations. Mutations of one job are serialised; side
// effects run after the mutation committed and the job lock was released.
type Engine struct {
	store         DataStore
	dispatcher    *notify.Dispatcher
	events        EventBus
	audit         audit.Recorder
	filter        *eligibility.Filter
	expiry        timeutil.ExpiryPolicy
	cancelWindow  time.Duration
	immediateLead time.Duration
	logger        *slog.Logger
	now           func() time.Time

	locks   *keyedMutex
	pending sync.WaitGroup
}

// NewEngine creates a new Engine
func NewEngine(cfg *Config) *Engine {
	e := &Engine{
		store:         cfg.Store,
		dispatcher:    cfg.Dispatcher,
		events:        cfg.Events,
		audit:         cfg.Audit,
		filter:        cfg.Filter,
		expiry:        cfg.Expiry,
		cancelWindow:  cfg.CancelWindow,
		immediateLead: cfg.ImmediateLead,
		logger:        cfg.Logger,
		now:           cfg.Now,
		locks:         newKeyedMutex(),
	}
	if e.filter == nil {
		e.filter = eligibility.NewFilter(nil)
	}
	if e.expiry.ImmediateThreshold == 0 {
		e.expiry = timeutil.DefaultExpiryPolicy
	}
	if e.cancelWindow == 0 {
		e.cancelWindow = DefaultCancelWindow
	}
	if e.immediateLead == 0 {
		e.immediateLead = DefaultImmediateLead
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// effect is a side effect queued by a mutation
type effect func(ctx context.Context)

// mutate runs fn under the job's lock and then hands the returned effects to
// the background dispatcher.
func (e *Engine) mutate(ctx context.Context, jobID int64, fn func() ([]effect, error)) error {
	effects, err := func() ([]effect, error) {
		unlock := e.locks.Lock(jobID)
		defer unlock()
		return fn()
	}()
	if err != nil {
		return err
	}
	e.dispatch(ctx, effects)
	return nil
}

func (e *Engine) dispatch(ctx context.Context, effects []effect) {
	if len(effects) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		for _, fx := range effects {
			fx(ctx)
		}
	}()
}

// Drain blocks until every queued side effect has run
func (e *Engine) Drain() {
	e.pending.Wait()
}

func (e *Engine) publish(name string, ev Event) effect {
	return func(ctx context.Context) {
		if e.events == nil {
			return
		}
		ev.OccurredAt = e.now()
		if err := e.events.Publish(ctx, name, ev); err != nil {
			e.logger.Warn("Failed to publish event",
				slog.String("event", name),
				slog.Int64("job_id", ev.Job.JobID),
				slog.Any("error", err),
			)
		}
	}
}

func (e *Engine) email(to *domain.User, address, subject, template string, data map[string]any) effect {
	return func(ctx context.Context) {
		if address == "" {
			return
		}
		e.dispatcher.Email(ctx, address, to.Name, subject, template, data)
	}
}

func (e *Engine) push(jobID int64, users []domain.User, kind domain.NotificationType, message string) effect {
	return func(ctx context.Context) {
		e.dispatcher.Push(ctx, jobID, users, kind, message)
	}
}

func (e *Engine) broadcast(job domain.Job, message string, exclude int64) effect {
	return func(ctx context.Context) {
		e.dispatcher.Broadcast(ctx, &job, message, exclude)
	}
}

// GetJob returns a job by id
func (e *Engine) GetJob(ctx context.Context, jobID int64) (*domain.Job, error) {
	return e.store.FindJob(ctx, jobID)
}

// GetPotentialJobs lists the pending jobs the translator may accept, ordered by id
func (e *Engine) GetPotentialJobs(ctx context.Context, translatorID int64) ([]domain.Job, error) {
	translator, err := e.store.FindUser(ctx, translatorID)
	if err != nil {
		return nil, err
	}
	return e.potentialJobs(ctx, translator)
}

func (e *Engine) potentialJobs(ctx context.Context, translator *domain.User) ([]domain.Job, error) {
	if !translator.IsTranslator() {
		return []domain.Job{}, nil
	}

	jobs, err := e.store.QueryPendingJobsFor(ctx, eligibility.CriteriaFor(translator))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending jobs: %w", err)
	}
	return e.filter.Apply(translator, jobs), nil
}

// GetUsersJobs lists a user's open jobs split into emergency and normal bookings
func (e *Engine) GetUsersJobs(ctx context.Context, userID int64) (*domain.UsersJobs, error) {
	user, err := e.store.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &domain.UsersJobs{
		User:          user,
		UserType:      user.Role,
		EmergencyJobs: []domain.Job{},
		NormalJobs:    []domain.Job{},
	}

	q := JobQuery{Statuses: domain.ActiveStatuses}
	var jobs []domain.Job
	switch {
	case user.IsCustomer():
		jobs, err = e.store.ListCustomerJobs(ctx, user.ID, q)
	case user.IsTranslator():
		jobs, err = e.store.ListTranslatorJobs(ctx, user.ID, q)
	default:
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	for _, job := range jobs {
		if job.Immediate {
			result.EmergencyJobs = append(result.EmergencyJobs, job)
		} else {
			result.NormalJobs = append(result.NormalJobs, job)
		}
	}
	return result, nil
}

// GetUsersJobsHistory returns one page of a user's finished jobs, newest first
func (e *Engine) GetUsersJobsHistory(ctx context.Context, userID int64, cursor *domain.HistoryCursor) (*domain.JobHistory, error) {
	user, err := e.store.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &domain.JobHistory{
		User:     user,
		UserType: user.Role,
		Jobs:     []domain.Job{},
	}

	q := JobQuery{
		Statuses:   domain.HistoricStatuses,
		Descending: true,
		After:      cursor,
		Limit:      HistoryPageSize + 1,
	}
	var jobs []domain.Job
	switch {
	case user.IsCustomer():
		jobs, err = e.store.ListCustomerJobs(ctx, user.ID, q)
	case user.IsTranslator():
		jobs, err = e.store.ListTranslatorJobs(ctx, user.ID, q)
	default:
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list job history: %w", err)
	}

	if len(jobs) > HistoryPageSize {
		jobs = jobs[:HistoryPageSize]
		last := jobs[len(jobs)-1]
		result.NextCursor = &domain.HistoryCursor{Due: last.Due.UnixMicro(), JobID: last.ID}
	}
	result.Jobs = append(result.Jobs, jobs...)
	return result, nil
}

// IgnoreExpiring hides a job from the expiring-bookings list
func (e *Engine) IgnoreExpiring(ctx context.Context, jobID int64) (domain.Result, error) {
	return e.setFlag(ctx, jobID, func(j *domain.Job) { j.Ignore = true })
}

// IgnoreExpired hides a job from the expired-bookings list
func (e *Engine) IgnoreExpired(ctx context.Context, jobID int64) (domain.Result, error) {
	return e.setFlag(ctx, jobID, func(j *domain.Job) { j.IgnoreExpired = true })
}

func (e *Engine) setFlag(ctx context.Context, jobID int64, set func(j *domain.Job)) (domain.Result, error) {
	err := e.mutate(ctx, jobID, func() ([]effect, error) {
		job, err := e.store.FindJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		set(job)
		job.UpdatedAt = e.now()
		if err := e.store.SaveJob(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to save job: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		return domain.Result{}, err
	}
	return domain.Success("Changes saved"), nil
}

// UpdateDistanceFeed stores travel details and admin bookkeeping for a job
func (e *Engine) UpdateDistanceFeed(ctx context.Context, cmd domain.DistanceFeedCommand) (domain.Result, error) {
	if cmd.Flagged && cmd.AdminComment == "" {
		return domain.Result{}, domain.NewValidationError("admin_comment", "is required when flagging a booking")
	}

	err := e.mutate(ctx, cmd.JobID, func() ([]effect, error) {
		job, err := e.store.FindJob(ctx, cmd.JobID)
		if err != nil {
			return nil, err
		}

		return nil, e.store.Atomic(ctx, func(tx DataStore) error {
			if cmd.Distance != "" || cmd.Time != "" {
				d, err := tx.FindDistance(ctx, job.ID)
				if err != nil {
					return fmt.Errorf("failed to find distance: %w", err)
				}
				if d == nil {
					d = &domain.Distance{JobID: job.ID}
				}
				if cmd.Distance != "" {
					d.Distance = cmd.Distance
				}
				if cmd.Time != "" {
					d.Time = cmd.Time
				}
				if err := tx.SaveDistance(ctx, d); err != nil {
					return fmt.Errorf("failed to save distance: %w", err)
				}
			}

			job.AdminComments = cmd.AdminComment
			if cmd.SessionTime != "" {
				job.SessionTime = cmd.SessionTime
			}
			job.Flagged = cmd.Flagged
			job.ManuallyHandled = cmd.ManuallyHandled
			job.ByAdmin = cmd.ByAdmin
			job.UpdatedAt = e.now()
			if err := tx.SaveJob(ctx, job); err != nil {
				return fmt.Errorf("failed to save job: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return domain.Result{}, err
	}
	return domain.Success("Record updated"), nil
}

// ResendNotifications pushes the job to every eligible translator again
func (e *Engine) ResendNotifications(ctx context.Context, jobID int64) (notify.Outcome, error) {
	job, err := e.store.FindJob(ctx, jobID)
	if err != nil {
		return notify.Outcome{}, err
	}
	msg, err := e.newJobMessage(ctx, job)
	if err != nil {
		return notify.Outcome{}, err
	}
	return e.dispatcher.Broadcast(ctx, job, msg, 0), nil
}

// ResendSMSNotifications texts the job to every eligible translator
func (e *Engine) ResendSMSNotifications(ctx context.Context, jobID int64) (notify.Outcome, error) {
	job, err := e.store.FindJob(ctx, jobID)
	if err != nil {
		return notify.Outcome{}, err
	}
	msg, err := e.newJobMessage(ctx, job)
	if err != nil {
		return notify.Outcome{}, err
	}
	return e.dispatcher.BroadcastSMS(ctx, job, msg), nil
}
