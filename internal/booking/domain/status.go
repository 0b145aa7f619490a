package domain

import "fmt"

// JobStatus is the lifecycle state of a booking.
type JobStatus string

// Job status constants
const (
	JobStatusPending          JobStatus = "pending"
	JobStatusAssigned         JobStatus = "assigned"
	JobStatusStarted          JobStatus = "started"
	JobStatusCompleted        JobStatus = "completed"
	JobStatusWithdrawBefore24 JobStatus = "withdrawbefore24"
	JobStatusWithdrawAfter24  JobStatus = "withdrawafter24"
	JobStatusTimedOut         JobStatus = "timedout"
)

// transitions lists every allowed move out of a status. Terminal statuses map to nil.
var transitions = map[JobStatus][]JobStatus{
	JobStatusPending: {
		JobStatusAssigned,
		JobStatusWithdrawBefore24,
		JobStatusWithdrawAfter24,
		JobStatusTimedOut,
	},
	JobStatusAssigned: {
		JobStatusPending,
		JobStatusStarted,
		JobStatusCompleted,
		JobStatusWithdrawBefore24,
		JobStatusWithdrawAfter24,
		JobStatusTimedOut,
	},
	JobStatusStarted: {
		JobStatusCompleted,
		JobStatusWithdrawBefore24,
		JobStatusWithdrawAfter24,
		JobStatusTimedOut,
	},
	JobStatusCompleted:        nil,
	JobStatusWithdrawBefore24: nil,
	JobStatusWithdrawAfter24:  nil,
	JobStatusTimedOut:         nil,
}

// ActiveStatuses are the statuses shown in a user's current job list.
var ActiveStatuses = []JobStatus{JobStatusPending, JobStatusAssigned, JobStatusStarted}

// HistoricStatuses are the statuses shown in a user's job history.
var HistoricStatuses = []JobStatus{
	JobStatusCompleted,
	JobStatusWithdrawBefore24,
	JobStatusWithdrawAfter24,
	JobStatusTimedOut,
}

// ParseJobStatus validates a raw status string.
func ParseJobStatus(s string) (JobStatus, error) {
	status := JobStatus(s)
	if _, ok := transitions[status]; !ok {
		return "", NewValidationError("status", fmt.Sprintf("unknown job status %q", s))
	}
	return status, nil
}

// IsTerminal reports whether no transition leaves the status.
func (s JobStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s JobStatus) String() string {
	return string(s)
}
