package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
)

// dueLayout is how due times appear in subjects, messages and audit entries
const dueLayout = "2006-01-02 15:04"

func (e *Engine) newJobMessage(ctx context.Context, job *domain.Job) (string, error) {
	lang, err := e.store.LanguageName(ctx, job.FromLanguageID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve language: %w", err)
	}
	if job.Immediate {
		return fmt.Sprintf("New emergency booking for %s interpreter %dmin", lang, job.Duration), nil
	}
	return fmt.Sprintf("New booking for %s interpreter %dmin %s", lang, job.Duration, job.Due.Format(dueLayout)), nil
}

func jobSubject(prefix string, job *domain.Job) string {
	return fmt.Sprintf("%s #%d", prefix, job.ID)
}

func acceptedPushMessage(job *domain.Job, lang string) string {
	return fmt.Sprintf("Your booking for %s interpreter, %dmin, %s has been accepted",
		lang, job.Duration, job.Due.Format(dueLayout))
}

func customerCancelledMessage(job *domain.Job, lang string) string {
	return fmt.Sprintf("The customer cancelled the booking for %s interpreter, %dmin, %s",
		lang, job.Duration, job.Due.Format(dueLayout))
}

func translatorCancelledMessage(job *domain.Job, lang string) string {
	return fmt.Sprintf("Your interpreter cancelled the booking for %s, %s. We are looking for a new interpreter",
		lang, job.Due.Format(dueLayout))
}

func emailData(job *domain.Job, customer *domain.User, user *domain.User, extra map[string]any) map[string]any {
	data := map[string]any{
		"user": user.Name,
		"job":  domain.NewJobPayload(job, customer),
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

func formatDue(t time.Time) string {
	return t.Format(dueLayout)
}
