package dto

import (
	"time"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
)

type CreateJobRequest struct {
	FromLanguageID       int64     `json:"from_language_id" binding:"required"`
	Immediate            bool      `json:"immediate"`
	Due                  time.Time `json:"due"`
	Duration             int       `json:"duration" binding:"required"`
	Gender               string    `json:"gender"`
	Certified            string    `json:"certified"`
	CustomerPhoneType    string    `json:"customer_phone_type"`
	CustomerPhysicalType string    `json:"customer_physical_type"`
	SpecificTranslatorID *int64    `json:"specific_translator_id"`
}

// Command converts the request, leaving empty enums unset
func (r *CreateJobRequest) Command() domain.CreateJobCommand {
	cmd := domain.CreateJobCommand{
		FromLanguageID:       r.FromLanguageID,
		Immediate:            r.Immediate,
		Due:                  r.Due,
		Duration:             r.Duration,
		CustomerPhoneType:    r.CustomerPhoneType,
		CustomerPhysicalType: r.CustomerPhysicalType,
		SpecificTranslatorID: r.SpecificTranslatorID,
	}
	if r.Gender != "" {
		g := domain.Gender(r.Gender)
		cmd.Gender = &g
	}
	if r.Certified != "" {
		c := domain.Certification(r.Certified)
		cmd.Certified = &c
	}
	return cmd
}

type StoreJobEmailRequest struct {
	UserEmail    string  `json:"user_email"`
	Reference    string  `json:"reference"`
	Address      *string `json:"address"`
	Instructions string  `json:"instructions"`
	Town         string  `json:"town"`
}

type UpdateJobRequest struct {
	TranslatorID    int64     `json:"translator_id"`
	TranslatorEmail string    `json:"translator_email"`
	Due             time.Time `json:"due" binding:"required"`
	FromLanguageID  int64     `json:"from_language_id" binding:"required"`
	Status          string    `json:"status"`
	AdminComments   string    `json:"admin_comments"`
	Reference       string    `json:"reference"`
}

type DistanceFeedRequest struct {
	Distance        string `json:"distance"`
	Time            string `json:"time"`
	SessionTime     string `json:"session_time"`
	AdminComment    string `json:"admin_comment"`
	Flagged         bool   `json:"flagged"`
	ManuallyHandled bool   `json:"manually_handled"`
	ByAdmin         bool   `json:"by_admin"`
}

type HistoryRequest struct {
	Cursor string `form:"cursor"`
}

type ResultResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type AcceptResponse struct {
	ResultResponse
	Job           *JobDTO  `json:"job,omitempty"`
	PotentialJobs []JobDTO `json:"potential_jobs"`
}

type UsersJobsResponse struct {
	UserType      string   `json:"user_type"`
	EmergencyJobs []JobDTO `json:"emergency_jobs"`
	NormalJobs    []JobDTO `json:"normal_jobs"`
}

type HistoryResponse struct {
	UserType   string   `json:"user_type"`
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	ID                   int64    `json:"id"`
	CustomerID           int64    `json:"user_id"`
	FromLanguageID       int64    `json:"from_language_id"`
	JobType              string   `json:"job_type"`
	Status               string   `json:"status"`
	Immediate            bool     `json:"immediate"`
	Gender               string   `json:"gender,omitempty"`
	Certified            string   `json:"certified,omitempty"`
	Due                  string   `json:"due"`
	Duration             int      `json:"duration"`
	CustomerPhoneType    string   `json:"customer_phone_type"`
	CustomerPhysicalType string   `json:"customer_physical_type"`
	Town                 string   `json:"town,omitempty"`
	Address              string   `json:"address,omitempty"`
	Instructions         string   `json:"instructions,omitempty"`
	UserEmail            string   `json:"user_email,omitempty"`
	Reference            string   `json:"reference,omitempty"`
	AdminComments        string   `json:"admin_comments,omitempty"`
	SessionTime          string   `json:"session_time,omitempty"`
	Flagged              bool     `json:"flagged"`
	ManuallyHandled      bool     `json:"manually_handled"`
	ByAdmin              bool     `json:"by_admin"`
	Ignore               bool     `json:"ignore"`
	IgnoreExpired        bool     `json:"ignore_expired"`
	WillExpireAt         string   `json:"will_expire_at"`
	EndAt                string   `json:"end_at,omitempty"`
	WithdrawAt           string   `json:"withdraw_at,omitempty"`
	BlockedTranslatorIDs []int64  `json:"blocked_translator_ids,omitempty"`
	JobFor               []string `json:"job_for"`
	CreatedAt            string   `json:"created_at"`
	UpdatedAt            string   `json:"updated_at"`
}

func NewResultResponse(r domain.Result) ResultResponse {
	return ResultResponse{Status: string(r.Status), Message: r.Message}
}

func NewJobDTO(j *domain.Job) JobDTO {
	d := JobDTO{
		ID:                   j.ID,
		CustomerID:           j.CustomerID,
		FromLanguageID:       j.FromLanguageID,
		JobType:              string(j.JobType),
		Status:               string(j.Status),
		Immediate:            j.Immediate,
		Due:                  j.Due.Format(time.RFC3339),
		Duration:             j.Duration,
		CustomerPhoneType:    j.CustomerPhoneType,
		CustomerPhysicalType: j.CustomerPhysicalType,
		Town:                 j.Town,
		Address:              j.Address,
		Instructions:         j.Instructions,
		UserEmail:            j.UserEmail,
		Reference:            j.Reference,
		AdminComments:        j.AdminComments,
		SessionTime:          j.SessionTime,
		Flagged:              j.Flagged,
		ManuallyHandled:      j.ManuallyHandled,
		ByAdmin:              j.ByAdmin,
		Ignore:               j.Ignore,
		IgnoreExpired:        j.IgnoreExpired,
		WillExpireAt:         j.WillExpireAt.Format(time.RFC3339),
		BlockedTranslatorIDs: j.BlockedTranslatorIDs,
		JobFor:               domain.NewJobPayload(j, nil).JobFor,
		CreatedAt:            j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            j.UpdatedAt.Format(time.RFC3339),
	}
	if j.Gender != nil {
		d.Gender = string(*j.Gender)
	}
	if j.Certified != nil {
		d.Certified = string(*j.Certified)
	}
	if j.EndAt != nil {
		d.EndAt = j.EndAt.Format(time.RFC3339)
	}
	if j.WithdrawAt != nil {
		d.WithdrawAt = j.WithdrawAt.Format(time.RFC3339)
	}
	return d
}

func NewJobDTOs(jobs []domain.Job) []JobDTO {
	out := make([]JobDTO, len(jobs))
	for i := range jobs {
		out[i] = NewJobDTO(&jobs[i])
	}
	return out
}
