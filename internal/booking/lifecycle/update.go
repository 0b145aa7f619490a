package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/booking-be/internal/booking/audit"
	"github.com/cuongbtq/booking-be/internal/booking/domain"
)

// translatorChange is the outcome of the translator dimension of an update
type translatorChange struct {
	changed bool
	old     *domain.User
	new     *domain.User
	cancel  *domain.Assignment
	create  *domain.Assignment
}

// UpdateJob applies an administrative edit. Every call is audited once; change
// notifications go out only while the job's due time is still ahead.
func (e *Engine) UpdateJob(ctx context.Context, jobID int64, cmd domain.UpdateJobCommand, actorID int64) (domain.Result, error) {
	if err := cmd.Validate(); err != nil {
		return domain.Result{}, err
	}
	actor, err := e.store.FindUser(ctx, actorID)
	if err != nil {
		return domain.Result{}, err
	}

	var rec audit.Record
	err = e.mutate(ctx, jobID, func() ([]effect, error) {
		job, err := e.store.FindJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		customer, err := e.store.FindUser(ctx, job.CustomerID)
		if err != nil {
			return nil, err
		}

		now := e.now()
		var changes []audit.Change

		tc, err := e.diffTranslator(ctx, job, cmd, now)
		if err != nil {
			return nil, err
		}
		if tc.changed {
			changes = append(changes, audit.Change{
				Dimension: audit.DimensionTranslator,
				Old:       emailOf(tc.old),
				New:       emailOf(tc.new),
			})
		}

		oldDue := job.Due
		dueChanged := !cmd.Due.Equal(job.Due)
		if dueChanged {
			changes = append(changes, audit.Change{
				Dimension: audit.DimensionDue,
				Old:       formatDue(oldDue),
				New:       formatDue(cmd.Due),
			})
			job.Due = cmd.Due
			if job.Status == domain.JobStatusPending {
				job.WillExpireAt = e.expiry.WillExpireAt(job.Due, job.CreatedAt)
			}
		}

		oldLanguage := job.FromLanguageID
		langChanged := cmd.FromLanguageID != job.FromLanguageID
		if langChanged {
			oldName, err := e.store.LanguageName(ctx, oldLanguage)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve language: %w", err)
			}
			newName, err := e.store.LanguageName(ctx, cmd.FromLanguageID)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve language: %w", err)
			}
			changes = append(changes, audit.Change{Dimension: audit.DimensionLanguage, Old: oldName, New: newName})
			job.FromLanguageID = cmd.FromLanguageID
		}

		if cmd.Status != "" && cmd.Status != job.Status {
			if !job.Status.CanTransition(cmd.Status) {
				return nil, domain.NewValidationError("status",
					fmt.Sprintf("cannot move a %s booking to %s", job.Status, cmd.Status))
			}
			changes = append(changes, audit.Change{
				Dimension: audit.DimensionStatus,
				Old:       string(job.Status),
				New:       string(cmd.Status),
			})
			switch cmd.Status {
			case domain.JobStatusPending:
				if tc.create != nil {
					return nil, domain.NewValidationError("status", "a booking with an interpreter cannot be pending")
				}
				job.CreatedAt = now
				job.WillExpireAt = e.expiry.WillExpireAt(job.Due, now)
			case domain.JobStatusCompleted:
				job.EndAt = &now
			case domain.JobStatusWithdrawBefore24, domain.JobStatusWithdrawAfter24:
				job.WithdrawAt = &now
			}
			job.Status = cmd.Status
		}

		// pending jobs are claimable, so they never carry a current assignment
		var release *domain.Assignment
		if job.Status == domain.JobStatusPending {
			if tc.create != nil {
				changes = append(changes, audit.Change{
					Dimension: audit.DimensionStatus,
					Old:       string(job.Status),
					New:       string(domain.JobStatusAssigned),
				})
				job.Status = domain.JobStatusAssigned
			} else {
				release, err = e.store.FindAssignment(ctx, job.ID, AssignmentCurrent)
				if err != nil {
					return nil, fmt.Errorf("failed to find assignment: %w", err)
				}
			}
		}

		job.AdminComments = cmd.AdminComments
		job.Reference = cmd.Reference
		job.UpdatedAt = now

		err = e.store.Atomic(ctx, func(tx DataStore) error {
			if release != nil {
				if err := tx.DeleteAssignment(ctx, release.ID); err != nil {
					return fmt.Errorf("failed to delete assignment: %w", err)
				}
			}
			if tc.cancel != nil {
				if err := tx.SaveAssignment(ctx, tc.cancel); err != nil {
					return fmt.Errorf("failed to cancel assignment: %w", err)
				}
			}
			if tc.create != nil {
				if err := tx.CreateAssignment(ctx, tc.create); err != nil {
					return fmt.Errorf("failed to create assignment: %w", err)
				}
			}
			if err := tx.SaveJob(ctx, job); err != nil {
				return fmt.Errorf("failed to save job: %w", err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		rec = audit.Record{
			ActorID:   actor.ID,
			ActorName: actor.Name,
			JobID:     job.ID,
			Changes:   changes,
			CreatedAt: now,
		}

		if len(changes) == 0 || !job.Due.After(now) {
			return nil, nil
		}
		return e.changeNotifications(ctx, job, customer, tc, dueChanged, oldDue, langChanged, changes)
	})
	if err != nil {
		return domain.Result{}, err
	}

	if e.audit != nil {
		if err := e.audit.Record(ctx, rec); err != nil {
			e.logger.Error("Failed to record audit log",
				slog.Int64("job_id", jobID),
				slog.Any("error", err),
			)
		}
	}
	return domain.Success("Updated"), nil
}

// diffTranslator resolves the requested translator and plans the assignment
// rows needed to make them current.
func (e *Engine) diffTranslator(ctx context.Context, job *domain.Job, cmd domain.UpdateJobCommand, now time.Time) (translatorChange, error) {
	var tc translatorChange

	var requested *domain.User
	var err error
	switch {
	case cmd.TranslatorID != 0:
		requested, err = e.store.FindUser(ctx, cmd.TranslatorID)
	case cmd.TranslatorEmail != "":
		requested, err = e.store.FindUserByEmail(ctx, cmd.TranslatorEmail)
	default:
		return tc, nil
	}
	if err != nil {
		return tc, err
	}
	if !requested.IsTranslator() {
		return tc, domain.NewValidationError("translator", "user is not a translator")
	}

	current, err := e.store.FindAssignment(ctx, job.ID, AssignmentCurrent)
	if err != nil {
		return tc, fmt.Errorf("failed to find assignment: %w", err)
	}
	if current == nil {
		current, err = e.store.FindAssignment(ctx, job.ID, AssignmentCompleted)
		if err != nil {
			return tc, fmt.Errorf("failed to find assignment: %w", err)
		}
	}

	if current != nil && current.TranslatorID == requested.ID {
		return tc, nil
	}

	tc.changed = true
	tc.new = requested
	tc.create = &domain.Assignment{JobID: job.ID, TranslatorID: requested.ID, CreatedAt: now}
	if current != nil {
		tc.old, err = e.store.FindUser(ctx, current.TranslatorID)
		if err != nil {
			return tc, err
		}
		if current.CancelAt == nil {
			cancelled := *current
			cancelled.CancelAt = &now
			tc.cancel = &cancelled
		}
	}
	return tc, nil
}

func (e *Engine) changeNotifications(
	ctx context.Context,
	job *domain.Job,
	customer *domain.User,
	tc translatorChange,
	dueChanged bool,
	oldDue time.Time,
	langChanged bool,
	changes []audit.Change,
) ([]effect, error) {
	var current *domain.User
	if tc.changed {
		current = tc.new
	} else {
		a, err := e.store.FindAssignment(ctx, job.ID, AssignmentCurrent)
		if err != nil {
			return nil, fmt.Errorf("failed to find assignment: %w", err)
		}
		if a != nil {
			current, err = e.store.FindUser(ctx, a.TranslatorID)
			if err != nil {
				return nil, err
			}
		}
	}

	customerEmail := job.ContactEmail(customer)
	effects := []effect{
		e.publish(domain.EventJobUpdated, Event{Job: domain.NewJobPayload(job, customer), Changes: changes}),
	}

	if dueChanged {
		subject := jobSubject("Booking date changed", job)
		extra := map[string]any{"old_time": formatDue(oldDue)}
		effects = append(effects, e.email(customer, customerEmail, subject, domain.TemplateDateChanged,
			emailData(job, customer, customer, extra)))
		if current != nil {
			effects = append(effects, e.email(current, current.Email, subject, domain.TemplateDateChanged,
				emailData(job, customer, current, extra)))
		}
	}

	if tc.changed {
		subject := jobSubject("Interpreter changed", job)
		effects = append(effects, e.email(customer, customerEmail, subject, domain.TemplateTranslatorChanged,
			emailData(job, customer, customer, nil)))
		if tc.old != nil {
			effects = append(effects, e.email(tc.old, tc.old.Email, subject, domain.TemplateTranslatorRemoved,
				emailData(job, customer, tc.old, nil)))
		}
		effects = append(effects, e.email(tc.new, tc.new.Email, subject, domain.TemplateTranslatorAdded,
			emailData(job, customer, tc.new, nil)))
	}

	if langChanged {
		subject := jobSubject("Booking language changed", job)
		effects = append(effects, e.email(customer, customerEmail, subject, domain.TemplateLanguageChanged,
			emailData(job, customer, customer, nil)))
		if current != nil {
			effects = append(effects, e.email(current, current.Email, subject, domain.TemplateLanguageChanged,
				emailData(job, customer, current, nil)))
		}
	}
	return effects, nil
}

func emailOf(u *domain.User) string {
	if u == nil {
		return ""
	}
	return u.Email
}
