package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
)

// CancelJob withdraws a booking on behalf of its customer, or hands it back to
// the pool on behalf of the assigned translator or an operator.
func (e *Engine) CancelJob(ctx context.Context, jobID, actorID int64) (domain.Result, error) {
	actor, err := e.store.FindUser(ctx, actorID)
	if err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	err = e.mutate(ctx, jobID, func() ([]effect, error) {
		job, err := e.store.FindJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status.IsTerminal() {
			result = domain.Fail("Booking can no longer be cancelled.")
			return nil, nil
		}

		switch {
		case actor.IsCustomer():
			if job.CustomerID != actor.ID {
				result = domain.Fail("You can only cancel your own bookings.")
				return nil, nil
			}
			return e.withdraw(ctx, job, actor, &result)
		case actor.IsTranslator(), actor.IsAdmin():
			return e.reopen(ctx, job, actor, &result)
		default:
			result = domain.Fail("You are not allowed to cancel this booking.")
			return nil, nil
		}
	})
	return result, err
}

func (e *Engine) withdraw(ctx context.Context, job *domain.Job, customer *domain.User, result *domain.Result) ([]effect, error) {
	now := e.now()

	status := domain.JobStatusWithdrawAfter24
	if job.Due.Sub(now) < 24*time.Hour {
		status = domain.JobStatusWithdrawBefore24
	}

	current, err := e.store.FindAssignment(ctx, job.ID, AssignmentCurrent)
	if err != nil {
		return nil, fmt.Errorf("failed to find assignment: %w", err)
	}

	job.Status = status
	job.WithdrawAt = &now
	job.UpdatedAt = now
	if err := e.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	e.logger.Info("Job withdrawn by customer",
		slog.Int64("job_id", job.ID),
		slog.String("status", string(status)),
	)
	*result = domain.Success("Booking cancelled.")

	effects := []effect{
		e.publish(domain.EventJobCancelled, Event{Job: domain.NewJobPayload(job, customer), ActorID: customer.ID}),
	}
	if current != nil {
		translator, err := e.store.FindUser(ctx, current.TranslatorID)
		if err != nil {
			return nil, err
		}
		lang, err := e.store.LanguageName(ctx, job.FromLanguageID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve language: %w", err)
		}
		effects = append(effects, e.push(job.ID, []domain.User{*translator},
			domain.NotificationJobCancelled, customerCancelledMessage(job, lang)))
	}
	return effects, nil
}

func (e *Engine) reopen(ctx context.Context, job *domain.Job, actor *domain.User, result *domain.Result) ([]effect, error) {
	current, err := e.store.FindAssignment(ctx, job.ID, AssignmentCurrent)
	if err != nil {
		return nil, fmt.Errorf("failed to find assignment: %w", err)
	}
	if current == nil {
		*result = domain.Fail("Booking has no interpreter to cancel.")
		return nil, nil
	}
	if actor.IsTranslator() && current.TranslatorID != actor.ID {
		*result = domain.Fail("You are not assigned to this booking.")
		return nil, nil
	}
	if !job.Status.CanTransition(domain.JobStatusPending) {
		*result = domain.Fail("Booking has already started and cannot be handed back.")
		return nil, nil
	}

	now := e.now()
	if job.Due.Sub(now) <= e.cancelWindow {
		*result = domain.Fail("You must cancel this booking through support.")
		return nil, &domain.TooLateToCancelError{JobID: job.ID, Window: e.cancelWindow}
	}

	customer, err := e.store.FindUser(ctx, job.CustomerID)
	if err != nil {
		return nil, err
	}
	lang, err := e.store.LanguageName(ctx, job.FromLanguageID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve language: %w", err)
	}

	msg, err := e.newJobMessage(ctx, job)
	if err != nil {
		return nil, err
	}

	job.Status = domain.JobStatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	job.WillExpireAt = e.expiry.WillExpireAt(job.Due, now)

	err = e.store.Atomic(ctx, func(tx DataStore) error {
		if err := tx.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
		if err := tx.DeleteAssignment(ctx, current.ID); err != nil {
			return fmt.Errorf("failed to delete assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Job reopened after translator cancellation",
		slog.Int64("job_id", job.ID),
		slog.Int64("translator_id", current.TranslatorID),
		slog.Int64("actor_id", actor.ID),
		slog.Time("will_expire_at", job.WillExpireAt),
	)
	*result = domain.Success("Booking cancelled.")

	return []effect{
		e.push(job.ID, []domain.User{*customer}, domain.NotificationJobCancelled, translatorCancelledMessage(job, lang)),
		e.publish(domain.EventJobReopened, Event{
			Job:     domain.NewJobPayload(job, customer),
			ActorID: actor.ID,
			UserID:  current.TranslatorID,
		}),
		e.broadcast(*job, msg, current.TranslatorID),
	}, nil
}
