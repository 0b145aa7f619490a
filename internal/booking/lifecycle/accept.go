package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
)

var errLostClaim = errors.New("claim lost")

// AcceptJob lets a translator take a pending job from their potential-job list
func (e *Engine) AcceptJob(ctx context.Context, jobID, translatorID int64) (domain.AcceptResult, error) {
	return e.accept(ctx, jobID, translatorID, false)
}

// AcceptJobWithID accepts a job opened from a notification and also pushes the customer
func (e *Engine) AcceptJobWithID(ctx context.Context, jobID, translatorID int64) (domain.AcceptResult, error) {
	return e.accept(ctx, jobID, translatorID, true)
}

func (e *Engine) accept(ctx context.Context, jobID, translatorID int64, pushCustomer bool) (domain.AcceptResult, error) {
	translator, err := e.store.FindUser(ctx, translatorID)
	if err != nil {
		return domain.AcceptResult{}, err
	}
	if !translator.IsTranslator() {
		return domain.AcceptResult{}, domain.NewValidationError("user", "only translators can accept bookings")
	}

	var (
		result   domain.AcceptResult
		conflict error
	)
	err = e.mutate(ctx, jobID, func() ([]effect, error) {
		job, err := e.store.FindJob(ctx, jobID)
		if err != nil {
			return nil, err
		}

		if job.Status != domain.JobStatusPending {
			result.Result = domain.Fail("Booking is already accepted by another translator. Please choose another booking.")
			return nil, nil
		}
		if !e.filter.Eligible(translator, job) {
			result.Result = domain.Fail("You are not qualified for this booking.")
			return nil, nil
		}

		now := e.now()
		err = e.store.Atomic(ctx, func(tx DataStore) error {
			if err := tx.LockTranslator(ctx, translator.ID); err != nil {
				return fmt.Errorf("failed to lock translator: %w", err)
			}
			busy, err := tx.HasOverlappingAssignment(ctx, translator.ID, job.Due, job.End(), job.ID)
			if err != nil {
				return fmt.Errorf("failed to check translator schedule: %w", err)
			}
			if busy {
				return &domain.ConflictError{JobID: job.ID, TranslatorID: translator.ID, Due: job.Due}
			}

			_, ok, err := tx.ClaimJob(ctx, job.ID, translator.ID, now)
			if err != nil {
				return fmt.Errorf("failed to claim job: %w", err)
			}
			if !ok {
				return errLostClaim
			}
			return nil
		})

		switch {
		case errors.Is(err, domain.ErrConflict):
			conflict = err
			result.Result = domain.Fail("You already have a booking at this time. This booking was not accepted.")
			return nil, nil
		case errors.Is(err, errLostClaim):
			e.logger.Info("Job claim lost",
				slog.Int64("job_id", job.ID),
				slog.Int64("translator_id", translator.ID),
			)
			result.Result = domain.Fail("Booking is already accepted by another translator. Please choose another booking.")
			return nil, nil
		case err != nil:
			return nil, err
		}

		job.Status = domain.JobStatusAssigned
		job.UpdatedAt = now

		customer, err := e.store.FindUser(ctx, job.CustomerID)
		if err != nil {
			return nil, err
		}
		lang, err := e.store.LanguageName(ctx, job.FromLanguageID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve language: %w", err)
		}

		e.logger.Info("Job accepted",
			slog.Int64("job_id", job.ID),
			slog.Int64("translator_id", translator.ID),
		)

		accepted := *job
		result.Result = domain.Success(fmt.Sprintf("Booking for %s interpreter, %dmin, %s accepted.",
			lang, job.Duration, formatDue(job.Due)))
		result.Job = &accepted

		effects := []effect{
			e.email(customer, job.ContactEmail(customer),
				jobSubject("Booking accepted", job),
				domain.TemplateJobAccepted,
				emailData(job, customer, customer, map[string]any{"translator": translator.Name})),
			e.publish(domain.EventJobAccepted, Event{
				Job:     domain.NewJobPayload(job, customer),
				ActorID: translator.ID,
				UserID:  customer.ID,
			}),
		}
		if pushCustomer {
			effects = append(effects, e.push(job.ID, []domain.User{*customer},
				domain.NotificationJobAccepted, acceptedPushMessage(job, lang)))
		}
		return effects, nil
	})
	if err != nil {
		return domain.AcceptResult{}, err
	}

	potential, err := e.potentialJobs(ctx, translator)
	if err != nil {
		return domain.AcceptResult{}, err
	}
	result.PotentialJobs = potential
	return result, conflict
}
