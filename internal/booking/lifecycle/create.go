package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
)

// CreateJob books a new job for a customer. Immediate jobs are scheduled a few
// minutes ahead and are phone sessions.
func (e *Engine) CreateJob(ctx context.Context, customerID int64, cmd domain.CreateJobCommand) (*domain.Job, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	customer, err := e.store.FindUser(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !customer.IsCustomer() {
		return nil, domain.NewValidationError("user", "only customers can create bookings")
	}

	now := e.now()
	job := &domain.Job{
		CustomerID:           customer.ID,
		FromLanguageID:       cmd.FromLanguageID,
		Immediate:            cmd.Immediate,
		Gender:               cmd.Gender,
		Certified:            cmd.Certified,
		Due:                  cmd.Due,
		Duration:             cmd.Duration,
		CustomerPhoneType:    cmd.CustomerPhoneType,
		CustomerPhysicalType: cmd.CustomerPhysicalType,
		SpecificTranslatorID: cmd.SpecificTranslatorID,
		JobType:              customer.Meta.CustomerType,
		Status:               domain.JobStatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if job.JobType == "" {
		job.JobType = domain.JobTypeUnpaid
	}

	if cmd.Immediate {
		job.Due = now.Add(e.immediateLead)
		job.CustomerPhoneType = "yes"
	} else if !cmd.Due.After(now) {
		return nil, domain.NewValidationError("due", "cannot create a booking in the past")
	}
	job.WillExpireAt = e.expiry.WillExpireAt(job.Due, now)

	if err := e.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	e.logger.Info("Job created",
		slog.Int64("job_id", job.ID),
		slog.Int64("customer_id", customer.ID),
		slog.Bool("immediate", job.Immediate),
		slog.Time("will_expire_at", job.WillExpireAt),
	)

	e.dispatch(ctx, []effect{
		e.publish(domain.EventJobCreated, Event{Job: domain.NewJobPayload(job, customer), ActorID: customer.ID}),
	})
	return job, nil
}

// StoreJobEmail completes a freshly created booking with its contact details,
// confirms it to the customer and offers it to every eligible translator.
func (e *Engine) StoreJobEmail(ctx context.Context, cmd domain.StoreJobEmailCommand) (*domain.Job, error) {
	var saved domain.Job
	err := e.mutate(ctx, cmd.JobID, func() ([]effect, error) {
		job, err := e.store.FindJob(ctx, cmd.JobID)
		if err != nil {
			return nil, err
		}
		customer, err := e.store.FindUser(ctx, job.CustomerID)
		if err != nil {
			return nil, err
		}

		job.UserEmail = cmd.UserEmail
		job.Reference = cmd.Reference
		if cmd.HasAddress {
			job.Address = firstNonEmpty(cmd.Address, customer.Meta.Address)
			job.Instructions = firstNonEmpty(cmd.Instructions, customer.Meta.Instructions)
			job.Town = firstNonEmpty(cmd.Town, customer.Meta.Town)
		}
		job.UpdatedAt = e.now()

		if err := e.store.SaveJob(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to save job: %w", err)
		}

		msg, err := e.newJobMessage(ctx, job)
		if err != nil {
			return nil, err
		}

		saved = *job
		return []effect{
			e.email(customer, job.ContactEmail(customer),
				jobSubject("Booking received", job),
				domain.TemplateJobCreated,
				emailData(job, customer, customer, nil)),
			e.broadcast(*job, msg, 0),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
