package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
	"github.com/cuongbtq/booking-be/internal/booking/timeutil"
)

// EndJob completes a started session. Jobs that are not started are left
// untouched and reported as success, so repeated calls are harmless.
func (e *Engine) EndJob(ctx context.Context, jobID, actorID int64) (domain.Result, error) {
	var result domain.Result
	err := e.mutate(ctx, jobID, func() ([]effect, error) {
		job, err := e.store.FindJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status != domain.JobStatusStarted {
			result = domain.Success("Session already ended.")
			return nil, nil
		}

		assignment, err := e.store.FindAssignment(ctx, job.ID, AssignmentUncompleted)
		if err != nil {
			return nil, fmt.Errorf("failed to find assignment: %w", err)
		}
		if assignment == nil {
			return nil, domain.NewNotFoundError("assignment", job.ID)
		}

		customer, err := e.store.FindUser(ctx, job.CustomerID)
		if err != nil {
			return nil, err
		}
		translator, err := e.store.FindUser(ctx, assignment.TranslatorID)
		if err != nil {
			return nil, err
		}

		now := e.now()
		job.SessionTime = timeutil.SessionTime(job.Due, now)
		job.EndAt = &now
		job.Status = domain.JobStatusCompleted
		job.UpdatedAt = now
		assignment.CompletedAt = &now
		assignment.CompletedBy = &actorID

		err = e.store.Atomic(ctx, func(tx DataStore) error {
			if err := tx.SaveJob(ctx, job); err != nil {
				return fmt.Errorf("failed to save job: %w", err)
			}
			if err := tx.SaveAssignment(ctx, assignment); err != nil {
				return fmt.Errorf("failed to save assignment: %w", err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		other := customer
		if actorID == customer.ID {
			other = translator
		}

		e.logger.Info("Session ended",
			slog.Int64("job_id", job.ID),
			slog.Int64("actor_id", actorID),
			slog.String("session_time", job.SessionTime),
		)
		result = domain.Success("Session ended.")

		sessionText := timeutil.SessionTimeText(job.SessionTime)
		subject := jobSubject("Session summary", job)
		return []effect{
			e.publish(domain.EventSessionEnded, Event{
				Job:         domain.NewJobPayload(job, customer),
				ActorID:     actorID,
				UserID:      other.ID,
				SessionTime: job.SessionTime,
			}),
			e.email(customer, job.ContactEmail(customer), subject, domain.TemplateSessionEnded,
				emailData(job, customer, customer, map[string]any{"session_time": sessionText, "for": "invoice"})),
			e.email(translator, translator.Email, subject, domain.TemplateSessionEnded,
				emailData(job, customer, translator, map[string]any{"session_time": sessionText, "for": "payout"})),
		}, nil
	})
	if err != nil {
		return domain.Result{}, err
	}
	return result, nil
}
