package lifecycle_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/booking-be/internal/booking/audit"
	"github.com/cuongbtq/booking-be/internal/booking/domain"
	"github.com/cuongbtq/booking-be/internal/booking/lifecycle"
	"github.com/cuongbtq/booking-be/internal/booking/memstore"
	"github.com/cuongbtq/booking-be/internal/booking/notify"
	"github.com/cuongbtq/booking-be/internal/booking/notify/notifytest"
	"github.com/cuongbtq/booking-be/internal/booking/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	customerID    int64 = 1
	translatorA   int64 = 10
	translatorB   int64 = 11
	volunteerID   int64 = 20
	adminID       int64 = 99
	customerEmail       = "customer@example.com"
)

type publishedEvent struct {
	name  string
	event lifecycle.Event
}

type recordingBus struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (b *recordingBus) Publish(_ context.Context, name string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{name: name, event: payload.(lifecycle.Event)})
	return nil
}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.name)
	}
	return out
}

func (b *recordingBus) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

type recordingAudit struct {
	mu      sync.Mutex
	records []audit.Record
}

func (r *recordingAudit) Record(_ context.Context, rec audit.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

type fixture struct {
	store  *memstore.Store
	sender *notifytest.Sender
	bus    *recordingBus
	audit  *recordingAudit
	engine *lifecycle.Engine
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:  memstore.New(),
		sender: &notifytest.Sender{},
		bus:    &recordingBus{},
		audit:  &recordingAudit{},
		now:    time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f.store.AddLanguage(1, "Swedish")
	f.store.AddLanguage(2, "Arabic")
	f.store.AddUser(domain.User{
		ID: customerID, Name: "Customer", Email: customerEmail, Role: domain.RoleCustomer,
		Meta: domain.UserMeta{CustomerType: domain.JobTypePaid, Town: "Göteborg", Address: "Storgatan 1"},
	})
	for _, id := range []int64{translatorA, translatorB} {
		f.store.AddUser(domain.User{
			ID: id, Name: "Translator", Email: emailFor(id), Phone: "+4670", Role: domain.RoleTranslator,
			Meta: domain.UserMeta{
				TranslatorType:  domain.TranslatorTypeProfessional,
				TranslatorLevel: domain.LevelCertified,
				Town:            "Göteborg",
				LanguageIDs:     []int64{1, 2},
			},
		})
	}
	f.store.AddUser(domain.User{
		ID: volunteerID, Name: "Volunteer", Email: emailFor(volunteerID), Role: domain.RoleTranslator,
		Meta: domain.UserMeta{TranslatorType: domain.TranslatorTypeVolunteer, Town: "Göteborg", LanguageIDs: []int64{1}},
	})
	f.store.AddUser(domain.User{ID: adminID, Name: "Admin", Email: "admin@example.com", Role: domain.RoleAdmin})

	dispatcher := notify.NewDispatcher(&notify.Config{
		Sender:      f.sender,
		Directory:   f.store,
		NightWindow: timeutil.DefaultNightWindow,
		Logger:      logger,
		Now:         clock,
	})
	f.engine = lifecycle.NewEngine(&lifecycle.Config{
		Store:      f.store,
		Dispatcher: dispatcher,
		Events:     f.bus,
		Audit:      f.audit,
		Logger:     logger,
		Now:        clock,
	})
	return f
}

func emailFor(id int64) string {
	switch id {
	case translatorA:
		return "a@example.com"
	case translatorB:
		return "b@example.com"
	default:
		return "volunteer@example.com"
	}
}

func (f *fixture) createJob(t *testing.T, lead time.Duration) *domain.Job {
	t.Helper()
	job, err := f.engine.CreateJob(context.Background(), customerID, domain.CreateJobCommand{
		FromLanguageID: 1,
		Due:            f.now.Add(lead),
		Duration:       60,
	})
	require.NoError(t, err)
	return job
}

func (f *fixture) settle() {
	f.engine.Drain()
	f.sender.Reset()
	f.bus.reset()
}

func (f *fixture) assign(t *testing.T, jobID, translatorID int64) {
	t.Helper()
	res, err := f.engine.AcceptJob(context.Background(), jobID, translatorID)
	require.NoError(t, err)
	require.True(t, res.Succeeded(), res.Message)
	f.settle()
}

func (f *fixture) setStatus(t *testing.T, jobID int64, status domain.JobStatus) {
	t.Helper()
	ctx := context.Background()
	job, err := f.store.FindJob(ctx, jobID)
	require.NoError(t, err)
	job.Status = status
	require.NoError(t, f.store.SaveJob(ctx, job))
}

func (f *fixture) job(t *testing.T, jobID int64) *domain.Job {
	t.Helper()
	job, err := f.store.FindJob(context.Background(), jobID)
	require.NoError(t, err)
	return job
}

func TestCreateJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := f.createJob(t, 48*time.Hour)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, domain.JobTypePaid, job.JobType)
	assert.Equal(t, f.now.Add(16*time.Hour), job.WillExpireAt)

	immediate, err := f.engine.CreateJob(ctx, customerID, domain.CreateJobCommand{
		FromLanguageID: 1, Immediate: true, Duration: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, f.now.Add(5*time.Minute), immediate.Due)
	assert.Equal(t, immediate.Due, immediate.WillExpireAt)
	assert.Equal(t, "yes", immediate.CustomerPhoneType)

	_, err = f.engine.CreateJob(ctx, customerID, domain.CreateJobCommand{
		FromLanguageID: 1, Due: f.now.Add(-time.Minute), Duration: 30,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.engine.CreateJob(ctx, translatorA, domain.CreateJobCommand{
		FromLanguageID: 1, Due: f.now.Add(time.Hour), Duration: 30,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	f.engine.Drain()
	assert.Contains(t, f.bus.names(), domain.EventJobCreated)
}

func TestStoreJobEmail_ConfirmsAndBroadcasts(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 48*time.Hour)
	f.settle()

	saved, err := f.engine.StoreJobEmail(context.Background(), domain.StoreJobEmailCommand{
		JobID:      job.ID,
		UserEmail:  "booking@example.com",
		Reference:  "REF-1",
		HasAddress: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Storgatan 1", saved.Address)
	assert.Equal(t, "Göteborg", saved.Town)

	f.engine.Drain()
	emails := f.sender.EmailsTo("booking@example.com")
	require.Len(t, emails, 1)
	assert.Equal(t, domain.TemplateJobCreated, emails[0].Template)

	require.Len(t, f.sender.Pushes, 1)
	assert.Equal(t, []int64{translatorA, translatorB}, f.sender.Pushes[0].UserIDs)
	assert.Equal(t, domain.NotificationNewJob, f.sender.Pushes[0].Kind)
}

func TestAcceptJob_Success(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 48*time.Hour)
	other := f.createJob(t, 72*time.Hour)
	f.settle()

	res, err := f.engine.AcceptJob(context.Background(), job.ID, translatorA)
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	require.NotNil(t, res.Job)
	assert.Equal(t, domain.JobStatusAssigned, res.Job.Status)
	require.Len(t, res.PotentialJobs, 1)
	assert.Equal(t, other.ID, res.PotentialJobs[0].ID)

	assert.Equal(t, domain.JobStatusAssigned, f.job(t, job.ID).Status)
	assignments := f.store.Assignments(job.ID)
	require.Len(t, assignments, 1)
	assert.Equal(t, translatorA, assignments[0].TranslatorID)

	f.engine.Drain()
	emails := f.sender.EmailsTo(customerEmail)
	require.Len(t, emails, 1)
	assert.Equal(t, domain.TemplateJobAccepted, emails[0].Template)
	assert.Empty(t, f.sender.Pushes)
	assert.Equal(t, []string{domain.EventJobAccepted}, f.bus.names())
}

func TestAcceptJobWithID_PushesCustomer(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 48*time.Hour)
	f.settle()

	res, err := f.engine.AcceptJobWithID(context.Background(), job.ID, translatorA)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	f.engine.Drain()
	require.Len(t, f.sender.Pushes, 1)
	assert.Equal(t, []int64{customerID}, f.sender.Pushes[0].UserIDs)
	assert.Equal(t, domain.NotificationJobAccepted, f.sender.Pushes[0].Kind)
}

func TestAcceptJob_ConcurrentAttemptsAreExclusive(t *testing.T) {
	for run := 0; run < 20; run++ {
		f := newFixture(t)
		job := f.createJob(t, 48*time.Hour)

		var wg sync.WaitGroup
		results := make([]domain.AcceptResult, 2)
		errs := make([]error, 2)
		for i, id := range []int64{translatorA, translatorB} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = f.engine.AcceptJob(context.Background(), job.ID, id)
			}()
		}
		wg.Wait()

		wins := 0
		for i := range results {
			require.NoError(t, errs[i])
			if results[i].Succeeded() {
				wins++
			} else {
				assert.Equal(t, domain.ResultFail, results[i].Status)
			}
		}
		assert.Equal(t, 1, wins)
		assert.Len(t, f.store.Assignments(job.ID), 1)
		f.engine.Drain()
	}
}

func TestAcceptJob_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	taken := f.createJob(t, 48*time.Hour)
	f.assign(t, taken.ID, translatorA)

	res, err := f.engine.AcceptJob(ctx, taken.ID, translatorB)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultFail, res.Status)
	assert.Len(t, f.store.Assignments(taken.ID), 1)

	res, err = f.engine.AcceptJob(ctx, f.createJob(t, 72*time.Hour).ID, volunteerID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultFail, res.Status, "volunteers cannot take paid work")

	_, err = f.engine.AcceptJob(ctx, 999, translatorA)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.engine.Drain()
	assert.Zero(t, f.sender.Count())
}

func TestAcceptJob_OverlappingBookingConflicts(t *testing.T) {
	f := newFixture(t)
	first := f.createJob(t, 48*time.Hour)
	f.assign(t, first.ID, translatorA)

	clash, err := f.engine.CreateJob(context.Background(), customerID, domain.CreateJobCommand{
		FromLanguageID: 1,
		Due:            first.Due.Add(30 * time.Minute),
		Duration:       60,
	})
	require.NoError(t, err)
	f.settle()

	res, err := f.engine.AcceptJob(context.Background(), clash.ID, translatorA)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)

	var conflict *domain.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, clash.ID, conflict.JobID)
	assert.Equal(t, domain.ResultFail, res.Status)
	assert.Equal(t, domain.JobStatusPending, f.job(t, clash.ID).Status)
	assert.Empty(t, f.store.Assignments(clash.ID))
}

func TestAcceptJob_ConcurrentOverlappingJobsOneTranslator(t *testing.T) {
	for run := 0; run < 20; run++ {
		f := newFixture(t)
		first := f.createJob(t, 48*time.Hour)
		second := f.createJob(t, 48*time.Hour+30*time.Minute)
		f.settle()

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wins := make([]bool, 2)
		for i, job := range []*domain.Job{first, second} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := f.engine.AcceptJob(context.Background(), job.ID, translatorA)
				errs[i], wins[i] = err, res.Succeeded()
			}()
		}
		wg.Wait()

		require.NotEqual(t, wins[0], wins[1], "exactly one accept wins")
		for i := range errs {
			if wins[i] {
				assert.NoError(t, errs[i])
			} else {
				assert.ErrorIs(t, errs[i], domain.ErrConflict)
			}
		}
		assert.Len(t, append(f.store.Assignments(first.ID), f.store.Assignments(second.ID)...), 1)
		f.engine.Drain()
	}
}

func TestGetPotentialJobs_VolunteerNeverSeesPaidJobs(t *testing.T) {
	f := newFixture(t)
	f.createJob(t, 48*time.Hour)

	jobs, err := f.engine.GetPotentialJobs(context.Background(), volunteerID)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	jobs, err = f.engine.GetPotentialJobs(context.Background(), translatorA)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestCancelJob_ByCustomer(t *testing.T) {
	tests := []struct {
		name   string
		lead   time.Duration
		assign bool
		want   domain.JobStatus
	}{
		{name: "ten hours ahead", lead: 10 * time.Hour, want: domain.JobStatusWithdrawBefore24},
		{name: "just under a day", lead: 24*time.Hour - time.Minute, want: domain.JobStatusWithdrawBefore24},
		{name: "exactly a day", lead: 24 * time.Hour, want: domain.JobStatusWithdrawAfter24},
		{name: "two days ahead with translator", lead: 48 * time.Hour, assign: true, want: domain.JobStatusWithdrawAfter24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			job := f.createJob(t, tt.lead)
			if tt.assign {
				f.assign(t, job.ID, translatorA)
			}
			f.settle()

			res, err := f.engine.CancelJob(context.Background(), job.ID, customerID)
			require.NoError(t, err)
			assert.True(t, res.Succeeded())

			got := f.job(t, job.ID)
			assert.Equal(t, tt.want, got.Status)
			require.NotNil(t, got.WithdrawAt)
			assert.Equal(t, f.now, *got.WithdrawAt)

			f.engine.Drain()
			assert.Equal(t, []string{domain.EventJobCancelled}, f.bus.names())
			if tt.assign {
				require.Len(t, f.sender.Pushes, 1)
				assert.Equal(t, []int64{translatorA}, f.sender.Pushes[0].UserIDs)
				assert.Equal(t, domain.NotificationJobCancelled, f.sender.Pushes[0].Kind)
			} else {
				assert.Empty(t, f.sender.Pushes)
			}
		})
	}
}

func TestCancelJob_ByTranslatorTooLate(t *testing.T) {
	for _, lead := range []time.Duration{10 * time.Hour, 24 * time.Hour} {
		f := newFixture(t)
		job := f.createJob(t, lead)
		f.assign(t, job.ID, translatorA)

		res, err := f.engine.CancelJob(context.Background(), job.ID, translatorA)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrTooLateToCancel)
		assert.Equal(t, domain.ResultFail, res.Status)

		assert.Equal(t, domain.JobStatusAssigned, f.job(t, job.ID).Status)
		assert.Len(t, f.store.Assignments(job.ID), 1)
		f.engine.Drain()
		assert.Zero(t, f.sender.Count())
	}
}

func TestCancelJob_ByTranslatorReopens(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 48*time.Hour)
	f.assign(t, job.ID, translatorA)
	f.now = f.now.Add(time.Hour)

	res, err := f.engine.CancelJob(context.Background(), job.ID, translatorA)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	got := f.job(t, job.ID)
	assert.Equal(t, domain.JobStatusPending, got.Status)
	assert.Equal(t, f.now, got.CreatedAt)
	assert.Equal(t, timeutil.WillExpireAt(got.Due, f.now), got.WillExpireAt)
	assert.Empty(t, f.store.Assignments(job.ID))

	f.engine.Drain()
	assert.Equal(t, []string{domain.EventJobReopened}, f.bus.names())
	require.Len(t, f.sender.Pushes, 2)
	assert.Equal(t, []int64{customerID}, f.sender.Pushes[0].UserIDs)
	assert.Equal(t, domain.NotificationJobCancelled, f.sender.Pushes[0].Kind)
	assert.Equal(t, []int64{translatorB}, f.sender.Pushes[1].UserIDs, "the cancelling translator is not re-notified")
}

func TestCancelJob_TranslatorNotAssigned(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 48*time.Hour)
	f.assign(t, job.ID, translatorA)

	res, err := f.engine.CancelJob(context.Background(), job.ID, translatorB)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultFail, res.Status)
	assert.Equal(t, domain.JobStatusAssigned, f.job(t, job.ID).Status)
}

func TestCancelJob_TerminalJob(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 48*time.Hour)
	f.setStatus(t, job.ID, domain.JobStatusCompleted)

	res, err := f.engine.CancelJob(context.Background(), job.ID, customerID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultFail, res.Status)
	assert.Equal(t, domain.JobStatusCompleted, f.job(t, job.ID).Status)
}

func TestEndJob_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 2*time.Hour)
	f.assign(t, job.ID, translatorA)
	f.setStatus(t, job.ID, domain.JobStatusStarted)
	f.now = job.Due.Add(75*time.Minute + 30*time.Second)

	res, err := f.engine.EndJob(context.Background(), job.ID, translatorA)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	got := f.job(t, job.ID)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Equal(t, "1:15:30", got.SessionTime)
	require.NotNil(t, got.EndAt)

	assignments := f.store.Assignments(job.ID)
	require.Len(t, assignments, 1)
	require.NotNil(t, assignments[0].CompletedAt)
	require.NotNil(t, assignments[0].CompletedBy)
	assert.Equal(t, translatorA, *assignments[0].CompletedBy)

	f.engine.Drain()
	customerMail := f.sender.EmailsTo(customerEmail)
	require.Len(t, customerMail, 1)
	assert.Equal(t, "invoice", customerMail[0].Data["for"])
	translatorMail := f.sender.EmailsTo(emailFor(translatorA))
	require.Len(t, translatorMail, 1)
	assert.Equal(t, "payout", translatorMail[0].Data["for"])

	f.bus.mu.Lock()
	require.Len(t, f.bus.events, 1)
	assert.Equal(t, domain.EventSessionEnded, f.bus.events[0].name)
	assert.Equal(t, customerID, f.bus.events[0].event.UserID, "translator ended, customer is the other party")
	f.bus.mu.Unlock()
	f.settle()

	f.now = f.now.Add(time.Hour)
	res, err = f.engine.EndJob(context.Background(), job.ID, customerID)
	require.NoError(t, err)
	assert.True(t, res.Succeeded())

	f.engine.Drain()
	assert.Zero(t, f.sender.Count())
	assert.Empty(t, f.bus.names())
	assert.Equal(t, got.EndAt, f.job(t, job.ID).EndAt)
	assert.Equal(t, assignments, f.store.Assignments(job.ID))
}

func TestUpdateJob_NoChanges(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 48*time.Hour)
	f.assign(t, job.ID, translatorA)

	res, err := f.engine.UpdateJob(context.Background(), job.ID, domain.UpdateJobCommand{
		TranslatorID:   translatorA,
		Due:            job.Due,
		FromLanguageID: job.FromLanguageID,
		Status:         domain.JobStatusAssigned,
	}, adminID)
	require.NoError(t, err)
	assert.True(t, res.Succeeded())

	f.engine.Drain()
	require.Len(t, f.audit.records, 1)
	assert.Empty(t, f.audit.records[0].Changes)
	assert.Equal(t, adminID, f.audit.records[0].ActorID)
	assert.Zero(t, f.sender.Count())
	assert.Empty(t, f.bus.names())
	assert.Len(t, f.store.Assignments(job.ID), 1)
}

func TestUpdateJob_PastDueSendsNothing(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 48*time.Hour)
	f.assign(t, job.ID, translatorA)

	_, err := f.engine.UpdateJob(context.Background(), job.ID, domain.UpdateJobCommand{
		TranslatorEmail: emailFor(translatorB),
		Due:             f.now.Add(-2 * time.Hour),
		FromLanguageID:  2,
		Status:          domain.JobStatusCompleted,
	}, adminID)
	require.NoError(t, err)

	f.engine.Drain()
	require.Len(t, f.audit.records, 1)
	dims := make([]string, 0, 4)
	for _, c := range f.audit.records[0].Changes {
		dims = append(dims, c.Dimension)
	}
	assert.Equal(t, []string{audit.DimensionTranslator, audit.DimensionDue, audit.DimensionLanguage, audit.DimensionStatus}, dims)
	assert.Zero(t, f.sender.Count())
	assert.Empty(t, f.bus.names())

	got := f.job(t, job.ID)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Equal(t, int64(2), got.FromLanguageID)
}

func TestUpdateJob_ReassignsTranslator(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 48*time.Hour)
	f.assign(t, job.ID, translatorA)

	_, err := f.engine.UpdateJob(context.Background(), job.ID, domain.UpdateJobCommand{
		TranslatorEmail: emailFor(translatorB),
		Due:             job.Due,
		FromLanguageID:  job.FromLanguageID,
	}, adminID)
	require.NoError(t, err)

	assignments := f.store.Assignments(job.ID)
	require.Len(t, assignments, 2)
	assert.Equal(t, translatorA, assignments[0].TranslatorID)
	require.NotNil(t, assignments[0].CancelAt)
	assert.Equal(t, translatorB, assignments[1].TranslatorID)
	assert.Nil(t, assignments[1].CancelAt)

	f.engine.Drain()
	require.Len(t, f.audit.records, 1)
	assert.Equal(t, []audit.Change{{
		Dimension: audit.DimensionTranslator,
		Old:       emailFor(translatorA),
		New:       emailFor(translatorB),
	}}, f.audit.records[0].Changes)

	require.Len(t, f.sender.EmailsTo(customerEmail), 1)
	assert.Equal(t, domain.TemplateTranslatorChanged, f.sender.EmailsTo(customerEmail)[0].Template)
	require.Len(t, f.sender.EmailsTo(emailFor(translatorA)), 1)
	assert.Equal(t, domain.TemplateTranslatorRemoved, f.sender.EmailsTo(emailFor(translatorA))[0].Template)
	require.Len(t, f.sender.EmailsTo(emailFor(translatorB)), 1)
	assert.Equal(t, domain.TemplateTranslatorAdded, f.sender.EmailsTo(emailFor(translatorB))[0].Template)
	assert.Equal(t, []string{domain.EventJobUpdated}, f.bus.names())
}

func TestUpdateJob_DueAndLanguageNotifyIndependently(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 48*time.Hour)
	f.assign(t, job.ID, translatorA)

	_, err := f.engine.UpdateJob(context.Background(), job.ID, domain.UpdateJobCommand{
		Due:            job.Due.Add(time.Hour),
		FromLanguageID: 2,
	}, adminID)
	require.NoError(t, err)

	f.engine.Drain()
	templates := func(to string) []string {
		var out []string
		for _, e := range f.sender.EmailsTo(to) {
			out = append(out, e.Template)
		}
		return out
	}
	assert.Equal(t, []string{domain.TemplateDateChanged, domain.TemplateLanguageChanged}, templates(customerEmail))
	assert.Equal(t, []string{domain.TemplateDateChanged, domain.TemplateLanguageChanged}, templates(emailFor(translatorA)))
	assert.Equal(t, "Arabic", f.audit.records[0].Changes[1].New)
}

func TestUpdateJob_Validation(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 48*time.Hour)
	ctx := context.Background()

	_, err := f.engine.UpdateJob(ctx, job.ID, domain.UpdateJobCommand{FromLanguageID: 1}, adminID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.engine.UpdateJob(ctx, job.ID, domain.UpdateJobCommand{
		Due: job.Due, FromLanguageID: 1, Status: domain.JobStatusStarted,
	}, adminID)
	assert.ErrorIs(t, err, domain.ErrValidation, "pending cannot jump to started")

	_, err = f.engine.UpdateJob(ctx, job.ID, domain.UpdateJobCommand{
		TranslatorEmail: "nobody@example.com", Due: job.Due, FromLanguageID: 1,
	}, adminID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.engine.Drain()
	assert.Empty(t, f.audit.records)
}

func TestUpdateJob_BackToPendingReleasesAssignment(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 48*time.Hour)
	f.assign(t, job.ID, translatorA)
	f.now = f.now.Add(time.Hour)
	ctx := context.Background()

	_, err := f.engine.UpdateJob(ctx, job.ID, domain.UpdateJobCommand{
		Due:            job.Due,
		FromLanguageID: job.FromLanguageID,
		Status:         domain.JobStatusPending,
	}, adminID)
	require.NoError(t, err)

	got := f.job(t, job.ID)
	assert.Equal(t, domain.JobStatusPending, got.Status)
	assert.Equal(t, f.now, got.CreatedAt)
	assert.Equal(t, timeutil.DefaultExpiryPolicy.WillExpireAt(job.Due, f.now), got.WillExpireAt)
	assert.Empty(t, f.store.Assignments(job.ID))

	jobs, err := f.engine.GetPotentialJobs(ctx, translatorB)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)

	res, err := f.engine.AcceptJob(ctx, job.ID, translatorB)
	require.NoError(t, err)
	assert.True(t, res.Succeeded(), res.Message)
}

func TestUpdateJob_TranslatorOnPendingJobAssigns(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 48*time.Hour)
	f.settle()
	ctx := context.Background()

	_, err := f.engine.UpdateJob(ctx, job.ID, domain.UpdateJobCommand{
		TranslatorID:   translatorA,
		Due:            job.Due,
		FromLanguageID: job.FromLanguageID,
	}, adminID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusAssigned, f.job(t, job.ID).Status)
	assignments := f.store.Assignments(job.ID)
	require.Len(t, assignments, 1)
	assert.Equal(t, translatorA, assignments[0].TranslatorID)

	jobs, err := f.engine.GetPotentialJobs(ctx, translatorB)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	f.engine.Drain()
	require.Len(t, f.audit.records, 1)
	assert.Equal(t, []audit.Change{
		{Dimension: audit.DimensionTranslator, Old: "", New: emailFor(translatorA)},
		{Dimension: audit.DimensionStatus, Old: string(domain.JobStatusPending), New: string(domain.JobStatusAssigned)},
	}, f.audit.records[0].Changes)
}

func TestUpdateJob_PendingWithNewTranslatorRejected(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 48*time.Hour)
	f.assign(t, job.ID, translatorA)

	_, err := f.engine.UpdateJob(context.Background(), job.ID, domain.UpdateJobCommand{
		TranslatorID:   translatorB,
		Due:            job.Due,
		FromLanguageID: job.FromLanguageID,
		Status:         domain.JobStatusPending,
	}, adminID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, domain.JobStatusAssigned, f.job(t, job.ID).Status)
	assert.Len(t, f.store.Assignments(job.ID), 1)
}

func TestUpdateJob_StampsTerminalTimes(t *testing.T) {
	tests := []struct {
		status   domain.JobStatus
		endAt    bool
		withdraw bool
	}{
		{domain.JobStatusCompleted, true, false},
		{domain.JobStatusWithdrawBefore24, false, true},
		{domain.JobStatusWithdrawAfter24, false, true},
		{domain.JobStatusTimedOut, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			f := newFixture(t)
			job := f.createJob(t, 48*time.Hour)
			f.assign(t, job.ID, translatorA)

			_, err := f.engine.UpdateJob(context.Background(), job.ID, domain.UpdateJobCommand{
				Due:            job.Due,
				FromLanguageID: job.FromLanguageID,
				Status:         tt.status,
			}, adminID)
			require.NoError(t, err)

			got := f.job(t, job.ID)
			assert.Equal(t, tt.status, got.Status)
			if tt.endAt {
				require.NotNil(t, got.EndAt)
				assert.Equal(t, f.now, *got.EndAt)
			} else {
				assert.Nil(t, got.EndAt)
			}
			if tt.withdraw {
				require.NotNil(t, got.WithdrawAt)
				assert.Equal(t, f.now, *got.WithdrawAt)
			} else {
				assert.Nil(t, got.WithdrawAt)
			}
		})
	}
}

func TestIgnoreFlags(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 48*time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := f.engine.IgnoreExpiring(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, res.Succeeded())
		res, err = f.engine.IgnoreExpired(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, res.Succeeded())
	}

	got := f.job(t, job.ID)
	assert.True(t, got.Ignore)
	assert.True(t, got.IgnoreExpired)

	_, err := f.engine.IgnoreExpiring(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.engine.IgnoreExpired(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateDistanceFeed(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 48*time.Hour)
	ctx := context.Background()

	_, err := f.engine.UpdateDistanceFeed(ctx, domain.DistanceFeedCommand{JobID: job.ID, Flagged: true})
	assert.ErrorIs(t, err, domain.ErrValidation)

	res, err := f.engine.UpdateDistanceFeed(ctx, domain.DistanceFeedCommand{
		JobID:        job.ID,
		Distance:     "12 km",
		Time:         "25 min",
		AdminComment: "late",
		Flagged:      true,
		ByAdmin:      true,
	})
	require.NoError(t, err)
	assert.True(t, res.Succeeded())

	d, err := f.store.FindDistance(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "12 km", d.Distance)

	_, err = f.engine.UpdateDistanceFeed(ctx, domain.DistanceFeedCommand{JobID: job.ID, Time: "30 min"})
	require.NoError(t, err)
	d, err = f.store.FindDistance(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "12 km", d.Distance)
	assert.Equal(t, "30 min", d.Time)

	got := f.job(t, job.ID)
	assert.False(t, got.Flagged)
	assert.False(t, got.ByAdmin)
}

func TestResendNotifications(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 48*time.Hour)
	f.settle()

	out, err := f.engine.ResendNotifications(context.Background(), job.ID)
	require.NoError(t, err)
	assert.False(t, out.Failed())
	require.Len(t, f.sender.Pushes, 1)

	out, err = f.engine.ResendSMSNotifications(context.Background(), job.ID)
	require.NoError(t, err)
	assert.False(t, out.Failed())
	assert.Len(t, f.sender.Texts, 2)

	f.sender.SMSErr = errors.New("gateway down")
	out, err = f.engine.ResendSMSNotifications(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "gateway down", out.Error)
}

func TestGetUsersJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	later := f.createJob(t, 72*time.Hour)
	sooner := f.createJob(t, 48*time.Hour)
	urgent, err := f.engine.CreateJob(ctx, customerID, domain.CreateJobCommand{FromLanguageID: 1, Immediate: true, Duration: 30})
	require.NoError(t, err)
	done := f.createJob(t, 96*time.Hour)
	f.setStatus(t, done.ID, domain.JobStatusCompleted)
	f.assign(t, sooner.ID, translatorA)

	jobs, err := f.engine.GetUsersJobs(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, jobs.UserType)
	require.Len(t, jobs.EmergencyJobs, 1)
	assert.Equal(t, urgent.ID, jobs.EmergencyJobs[0].ID)
	require.Len(t, jobs.NormalJobs, 2)
	assert.Equal(t, sooner.ID, jobs.NormalJobs[0].ID)
	assert.Equal(t, later.ID, jobs.NormalJobs[1].ID)

	jobs, err = f.engine.GetUsersJobs(ctx, translatorA)
	require.NoError(t, err)
	assert.Empty(t, jobs.EmergencyJobs)
	require.Len(t, jobs.NormalJobs, 1)
	assert.Equal(t, sooner.ID, jobs.NormalJobs[0].ID)

	jobs, err = f.engine.GetUsersJobs(ctx, adminID)
	require.NoError(t, err)
	assert.Empty(t, jobs.NormalJobs)
}

func TestGetUsersJobsHistory_Pages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		job := f.createJob(t, time.Duration(i+1)*time.Hour)
		f.setStatus(t, job.ID, domain.JobStatusCompleted)
	}

	first, err := f.engine.GetUsersJobsHistory(ctx, customerID, nil)
	require.NoError(t, err)
	require.Len(t, first.Jobs, lifecycle.HistoryPageSize)
	require.NotNil(t, first.NextCursor)
	assert.Equal(t, int64(20), first.Jobs[0].ID, "newest due first")

	second, err := f.engine.GetUsersJobsHistory(ctx, customerID, first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.Jobs, 5)
	assert.Nil(t, second.NextCursor)
	assert.Equal(t, int64(5), second.Jobs[0].ID)
	assert.Equal(t, int64(1), second.Jobs[4].ID)
}
