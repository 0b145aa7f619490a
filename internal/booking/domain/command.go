package domain

import "time"

// CreateJobCommand carries a customer's booking request
type CreateJobCommand struct {
	FromLanguageID       int64
	Immediate            bool
	Due                  time.Time
	Duration             int
	Gender               *Gender
	Certified            *Certification
	CustomerPhoneType    string
	CustomerPhysicalType string
	SpecificTranslatorID *int64
}

// Validate checks fields that do not depend on the clock
func (c CreateJobCommand) Validate() error {
	if c.FromLanguageID <= 0 {
		return NewValidationError("from_language_id", "is required")
	}
	if c.Duration <= 0 {
		return NewValidationError("duration", "must be greater than 0")
	}
	if !c.Immediate && c.Due.IsZero() {
		return NewValidationError("due", "is required for scheduled bookings")
	}
	if c.Gender != nil && *c.Gender != GenderMale && *c.Gender != GenderFemale {
		return NewValidationError("gender", "must be male or female")
	}
	if c.Certified != nil {
		switch *c.Certified {
		case CertificationNormal, CertificationBoth, CertificationYes,
			CertificationHealth, CertificationLaw, CertificationNLaw:
		default:
			return NewValidationError("certified", "unknown certification")
		}
	}
	return nil
}

// StoreJobEmailCommand sets the contact details of a freshly created job
type StoreJobEmailCommand struct {
	JobID        int64
	UserEmail    string
	Reference    string
	HasAddress   bool
	Address      string
	Instructions string
	Town         string
}

// UpdateJobCommand is an administrative edit of a job
type UpdateJobCommand struct {
	TranslatorID    int64
	TranslatorEmail string
	Due             time.Time
	FromLanguageID  int64
	Status          JobStatus
	AdminComments   string
	Reference       string
}

// Validate checks the command before any job is loaded
func (c UpdateJobCommand) Validate() error {
	if c.Due.IsZero() {
		return NewValidationError("due", "is required")
	}
	if c.FromLanguageID <= 0 {
		return NewValidationError("from_language_id", "is required")
	}
	if c.Status != "" {
		if _, err := ParseJobStatus(string(c.Status)); err != nil {
			return err
		}
	}
	return nil
}

// DistanceFeedCommand updates travel and admin bookkeeping fields of a job
type DistanceFeedCommand struct {
	JobID           int64
	Distance        string
	Time            string
	SessionTime     string
	AdminComment    string
	Flagged         bool
	ManuallyHandled bool
	ByAdmin         bool
}
