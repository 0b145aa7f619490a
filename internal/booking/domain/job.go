package domain

import "time"

// JobType is the billing category of a job
type JobType string

const (
	JobTypePaid   JobType = "paid"
	JobTypeRWS    JobType = "rws"
	JobTypeUnpaid JobType = "unpaid"
)

// Gender is a translator attribute and an optional job requirement
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Certification is an optional job requirement on the translator's level
type Certification string

const (
	CertificationNormal Certification = "normal"
	CertificationBoth   Certification = "both"
	CertificationYes    Certification = "yes"
	CertificationHealth Certification = "n_health"
	CertificationLaw    Certification = "law"
	CertificationNLaw   Certification = "n_law"
)

// Job is an interpretation request posted by a customer
type Job struct {
	ID                   int64
	CustomerID           int64
	FromLanguageID       int64
	JobType              JobType
	Status               JobStatus
	Immediate            bool
	Gender               *Gender
	Certified            *Certification
	MinTranslatorLevel   *TranslatorLevel
	Due                  time.Time
	Duration             int
	CustomerPhoneType    string
	CustomerPhysicalType string
	Town                 string
	Address              string
	Instructions         string
	UserEmail            string
	Reference            string
	AdminComments        string
	Flagged              bool
	ManuallyHandled      bool
	ByAdmin              bool
	Ignore               bool
	IgnoreExpired        bool
	SessionTime          string
	EndAt                *time.Time
	WithdrawAt           *time.Time
	WillExpireAt         time.Time
	SpecificTranslatorID *int64
	BlockedTranslatorIDs []int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// End returns the end of the booked window
func (j *Job) End() time.Time {
	return j.Due.Add(time.Duration(j.Duration) * time.Minute)
}

// RequiresPresence reports whether the job cannot fall back to a phone session
func (j *Job) RequiresPresence() bool {
	phoneAllowed := j.CustomerPhoneType != "" && j.CustomerPhoneType != "no"
	return j.CustomerPhysicalType == "yes" && !phoneAllowed
}

// ContactEmail is the job-level email override or the customer's address
func (j *Job) ContactEmail(customer *User) string {
	if j.UserEmail != "" {
		return j.UserEmail
	}
	return customer.Email
}

// Assignment links a translator to a job. Reassignment keeps old rows with CancelAt set.
type Assignment struct {
	ID           int64
	JobID        int64
	TranslatorID int64
	CreatedAt    time.Time
	CancelAt     *time.Time
	CompletedAt  *time.Time
	CompletedBy  *int64
}

// IsCurrent reports whether the assignment has not been cancelled
func (a *Assignment) IsCurrent() bool {
	return a.CancelAt == nil
}

// IsCompleted reports whether the current assignment was completed
func (a *Assignment) IsCompleted() bool {
	return a.CancelAt == nil && a.CompletedAt != nil
}

// Distance is the travel record kept for a job
type Distance struct {
	JobID    int64
	Distance string
	Time     string
}
