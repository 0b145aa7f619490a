package domain

import "time"

// Event names published on the event bus
const (
	EventJobCreated   = "job.created"
	EventJobAccepted  = "job.accepted"
	EventJobCancelled = "job.cancelled"
	EventJobReopened  = "job.reopened"
	EventJobUpdated   = "job.updated"
	EventJobTimedOut  = "job.timedout"
	EventSessionEnded = "session.ended"
)

// NotificationType is the push category seen by mobile clients
type NotificationType string

const (
	NotificationNewJob       NotificationType = "suitable_job"
	NotificationJobAccepted  NotificationType = "job_accepted"
	NotificationJobCancelled NotificationType = "job_cancelled"
)

// Email template keys
const (
	TemplateJobCreated        = "emails.job-created"
	TemplateJobAccepted       = "emails.job-accepted"
	TemplateSessionEnded      = "emails.session-ended"
	TemplateDateChanged       = "emails.job-changed-date"
	TemplateTranslatorChanged = "emails.job-changed-translator-customer"
	TemplateTranslatorRemoved = "emails.job-changed-translator-old-translator"
	TemplateTranslatorAdded   = "emails.job-changed-translator-new-translator"
	TemplateLanguageChanged   = "emails.job-changed-lang"
)

// JobPayload is the flattened job broadcast to translators and event consumers
type JobPayload struct {
	JobID                int64     `json:"job_id"`
	FromLanguageID       int64     `json:"from_language_id"`
	Immediate            bool      `json:"immediate"`
	Duration             int       `json:"duration"`
	Status               JobStatus `json:"status"`
	Gender               string    `json:"gender,omitempty"`
	Certified            string    `json:"certified,omitempty"`
	Due                  time.Time `json:"due"`
	DueDate              string    `json:"due_date"`
	DueTime              string    `json:"due_time"`
	JobType              JobType   `json:"job_type"`
	CustomerPhoneType    string    `json:"customer_phone_type"`
	CustomerPhysicalType string    `json:"customer_physical_type"`
	CustomerTown         string    `json:"customer_town"`
	CustomerType         JobType   `json:"customer_type"`
	JobFor               []string  `json:"job_for"`
}

// NewJobPayload flattens a job for broadcasting
func NewJobPayload(job *Job, customer *User) JobPayload {
	p := JobPayload{
		JobID:                job.ID,
		FromLanguageID:       job.FromLanguageID,
		Immediate:            job.Immediate,
		Duration:             job.Duration,
		Status:               job.Status,
		Due:                  job.Due,
		DueDate:              job.Due.Format(time.DateOnly),
		DueTime:              job.Due.Format(time.TimeOnly),
		JobType:              job.JobType,
		CustomerPhoneType:    job.CustomerPhoneType,
		CustomerPhysicalType: job.CustomerPhysicalType,
		CustomerTown:         job.Town,
		JobFor:               []string{},
	}
	if customer != nil {
		p.CustomerType = customer.Meta.CustomerType
	}

	if job.Gender != nil {
		p.Gender = string(*job.Gender)
		switch *job.Gender {
		case GenderMale:
			p.JobFor = append(p.JobFor, "Man")
		case GenderFemale:
			p.JobFor = append(p.JobFor, "Woman")
		}
	}

	if job.Certified != nil {
		p.Certified = string(*job.Certified)
		switch *job.Certified {
		case CertificationBoth:
			p.JobFor = append(p.JobFor, "Approved interpreter", "Authorized interpreter")
		case CertificationYes:
			p.JobFor = append(p.JobFor, "Authorized interpreter")
		case CertificationHealth:
			p.JobFor = append(p.JobFor, "Health care interpreter")
		case CertificationLaw, CertificationNLaw:
			p.JobFor = append(p.JobFor, "Legal interpreter")
		default:
			p.JobFor = append(p.JobFor, string(*job.Certified))
		}
	}

	return p
}
