// Package memstore is an in-memory lifecycle.DataStore for tests and local runs.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
	"github.com/cuongbtq/booking-be/internal/booking/eligibility"
	"github.com/cuongbtq/booking-be/internal/booking/lifecycle"
)

type state struct {
	jobs             map[int64]domain.Job
	users            map[int64]domain.User
	assignments      map[int64]domain.Assignment
	distances        map[int64]domain.Distance
	languages        map[int64]string
	nextJobID        int64
	nextAssignmentID int64
}

func (s *state) clone() *state {
	c := &state{
		jobs:             make(map[int64]domain.Job, len(s.jobs)),
		users:            make(map[int64]domain.User, len(s.users)),
		assignments:      make(map[int64]domain.Assignment, len(s.assignments)),
		distances:        make(map[int64]domain.Distance, len(s.distances)),
		languages:        make(map[int64]string, len(s.languages)),
		nextJobID:        s.nextJobID,
		nextAssignmentID: s.nextAssignmentID,
	}
	for k, v := range s.jobs {
		c.jobs[k] = copyJob(v)
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.assignments {
		c.assignments[k] = v
	}
	for k, v := range s.distances {
		c.distances[k] = v
	}
	for k, v := range s.languages {
		c.languages[k] = v
	}
	return c
}

// Store keeps everything in maps behind one mutex. Atomic holds the mutex for
// the whole callback and restores a snapshot when the callback fails.
type Store struct {
	mu *sync.RWMutex
	st *state
	// inTx is set on the view handed to Atomic callbacks, which already hold mu
	inTx bool
}

var _ lifecycle.DataStore = (*Store)(nil)

// New creates an empty Store
func New() *Store {
	return &Store{
		mu: &sync.RWMutex{},
		st: &state{
			jobs:        make(map[int64]domain.Job),
			users:       make(map[int64]domain.User),
			assignments: make(map[int64]domain.Assignment),
			distances:   make(map[int64]domain.Distance),
			languages:   make(map[int64]string),
		},
	}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) rlock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// AddUser inserts or replaces a user
func (s *Store) AddUser(u domain.User) {
	defer s.lock()()
	s.st.users[u.ID] = u
}

// AddLanguage registers a language name
func (s *Store) AddLanguage(id int64, name string) {
	defer s.lock()()
	s.st.languages[id] = name
}

// Assignments returns every assignment row of a job, oldest first
func (s *Store) Assignments(jobID int64) []domain.Assignment {
	defer s.rlock()()
	var out []domain.Assignment
	for _, a := range s.st.assignments {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b domain.Assignment) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *Store) FindJob(_ context.Context, id int64) (*domain.Job, error) {
	defer s.rlock()()
	j, ok := s.st.jobs[id]
	if !ok {
		return nil, domain.NewNotFoundError("job", id)
	}
	c := copyJob(j)
	return &c, nil
}

func (s *Store) SaveJob(_ context.Context, job *domain.Job) error {
	defer s.lock()()
	if _, ok := s.st.jobs[job.ID]; !ok {
		return domain.NewNotFoundError("job", job.ID)
	}
	s.st.jobs[job.ID] = copyJob(*job)
	return nil
}

func (s *Store) CreateJob(_ context.Context, job *domain.Job) error {
	defer s.lock()()
	s.st.nextJobID++
	job.ID = s.st.nextJobID
	s.st.jobs[job.ID] = copyJob(*job)
	return nil
}

func (s *Store) FindUser(_ context.Context, id int64) (*domain.User, error) {
	defer s.rlock()()
	u, ok := s.st.users[id]
	if !ok {
		return nil, domain.NewNotFoundError("user", id)
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	defer s.rlock()()
	for _, u := range s.st.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, domain.NewNotFoundError("user", email)
}

func (s *Store) ListTranslators(_ context.Context) ([]domain.User, error) {
	defer s.rlock()()
	var out []domain.User
	for _, u := range s.st.users {
		if u.IsTranslator() {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b domain.User) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) FindAssignment(_ context.Context, jobID int64, criteria lifecycle.AssignmentCriteria) (*domain.Assignment, error) {
	defer s.rlock()()
	var found *domain.Assignment
	for _, a := range s.st.assignments {
		if a.JobID != jobID || !matches(a, criteria) {
			continue
		}
		if found == nil || a.ID > found.ID {
			a := a
			found = &a
		}
	}
	return found, nil
}

func matches(a domain.Assignment, criteria lifecycle.AssignmentCriteria) bool {
	switch criteria {
	case lifecycle.AssignmentCurrent:
		return a.CancelAt == nil
	case lifecycle.AssignmentUncompleted:
		return a.CancelAt == nil && a.CompletedAt == nil
	case lifecycle.AssignmentCompleted:
		return a.CompletedAt != nil
	default:
		return false
	}
}

func (s *Store) CreateAssignment(_ context.Context, a *domain.Assignment) error {
	defer s.lock()()
	s.st.nextAssignmentID++
	a.ID = s.st.nextAssignmentID
	s.st.assignments[a.ID] = *a
	return nil
}

func (s *Store) SaveAssignment(_ context.Context, a *domain.Assignment) error {
	defer s.lock()()
	if _, ok := s.st.assignments[a.ID]; !ok {
		return domain.NewNotFoundError("assignment", a.ID)
	}
	s.st.assignments[a.ID] = *a
	return nil
}

func (s *Store) DeleteAssignment(_ context.Context, id int64) error {
	defer s.lock()()
	delete(s.st.assignments, id)
	return nil
}

func (s *Store) ClaimJob(_ context.Context, jobID, translatorID int64, at time.Time) (*domain.Assignment, bool, error) {
	defer s.lock()()
	job, ok := s.st.jobs[jobID]
	if !ok {
		return nil, false, domain.NewNotFoundError("job", jobID)
	}
	if job.Status != domain.JobStatusPending {
		return nil, false, nil
	}
	for _, a := range s.st.assignments {
		if a.JobID == jobID && a.CancelAt == nil {
			return nil, false, nil
		}
	}

	s.st.nextAssignmentID++
	a := domain.Assignment{ID: s.st.nextAssignmentID, JobID: jobID, TranslatorID: translatorID, CreatedAt: at}
	s.st.assignments[a.ID] = a

	job.Status = domain.JobStatusAssigned
	job.UpdatedAt = at
	s.st.jobs[jobID] = job
	return &a, true, nil
}

// LockTranslator is a no-op; Atomic already holds the store-wide lock.
func (s *Store) LockTranslator(context.Context, int64) error { return nil }

func (s *Store) HasOverlappingAssignment(_ context.Context, translatorID int64, start, end time.Time, excludeJobID int64) (bool, error) {
	defer s.rlock()()
	for _, a := range s.st.assignments {
		if a.TranslatorID != translatorID || a.JobID == excludeJobID || a.CancelAt != nil || a.CompletedAt != nil {
			continue
		}
		job, ok := s.st.jobs[a.JobID]
		if !ok || (job.Status != domain.JobStatusAssigned && job.Status != domain.JobStatusStarted) {
			continue
		}
		if job.Due.Before(end) && start.Before(job.End()) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) QueryPendingJobsFor(_ context.Context, criteria eligibility.Criteria) ([]domain.Job, error) {
	defer s.rlock()()
	var out []domain.Job
	for _, j := range s.st.jobs {
		if j.Status != criteria.Status || j.JobType != criteria.JobType {
			continue
		}
		if !slices.Contains(criteria.LanguageIDs, j.FromLanguageID) {
			continue
		}
		out = append(out, copyJob(j))
	}
	slices.SortFunc(out, func(a, b domain.Job) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) ListCustomerJobs(_ context.Context, customerID int64, q lifecycle.JobQuery) ([]domain.Job, error) {
	defer s.rlock()()
	return s.list(q, func(j domain.Job) bool { return j.CustomerID == customerID }), nil
}

func (s *Store) ListTranslatorJobs(_ context.Context, translatorID int64, q lifecycle.JobQuery) ([]domain.Job, error) {
	defer s.rlock()()
	held := make(map[int64]struct{})
	for _, a := range s.st.assignments {
		if a.TranslatorID == translatorID && a.CancelAt == nil {
			held[a.JobID] = struct{}{}
		}
	}
	return s.list(q, func(j domain.Job) bool {
		_, ok := held[j.ID]
		return ok
	}), nil
}

func (s *Store) list(q lifecycle.JobQuery, keep func(j domain.Job) bool) []domain.Job {
	out := []domain.Job{}
	for _, j := range s.st.jobs {
		if !keep(j) || !slices.Contains(q.Statuses, j.Status) {
			continue
		}
		if q.After != nil && !afterCursor(j, q.After, q.Descending) {
			continue
		}
		out = append(out, copyJob(j))
	}

	slices.SortFunc(out, func(a, b domain.Job) int {
		c := a.Due.Compare(b.Due)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if q.Descending {
			return -c
		}
		return c
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func afterCursor(j domain.Job, c *domain.HistoryCursor, descending bool) bool {
	due := j.Due.UnixMicro()
	if descending {
		return due < c.Due || (due == c.Due && j.ID < c.JobID)
	}
	return due > c.Due || (due == c.Due && j.ID > c.JobID)
}

func (s *Store) LanguageName(_ context.Context, id int64) (string, error) {
	defer s.rlock()()
	name, ok := s.st.languages[id]
	if !ok {
		return "", domain.NewNotFoundError("language", id)
	}
	return name, nil
}

func (s *Store) FindDistance(_ context.Context, jobID int64) (*domain.Distance, error) {
	defer s.rlock()()
	d, ok := s.st.distances[jobID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s *Store) SaveDistance(_ context.Context, d *domain.Distance) error {
	defer s.lock()()
	s.st.distances[d.JobID] = *d
	return nil
}

func (s *Store) Atomic(_ context.Context, fn func(tx lifecycle.DataStore) error) error {
	defer s.lock()()
	snapshot := s.st.clone()

	view := &Store{mu: s.mu, st: s.st, inTx: true}
	if err := fn(view); err != nil {
		*s.st = *snapshot
		return err
	}
	return nil
}

func copyJob(j domain.Job) domain.Job {
	j.BlockedTranslatorIDs = slices.Clone(j.BlockedTranslatorIDs)
	return j
}
