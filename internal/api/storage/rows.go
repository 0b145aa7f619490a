package storage

import (
	"database/sql"
	"time"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
	"github.com/lib/pq"
)

const jobColumns = `
	id, customer_id, from_language_id, job_type, status, immediate,
	gender, certified, min_translator_level, due, duration,
	customer_phone_type, customer_physical_type, town, address, instructions,
	user_email, reference, admin_comments, flagged, manually_handled, by_admin,
	ignore_expiring, ignore_expired, session_time, end_at, withdraw_at, will_expire_at,
	specific_translator_id, blocked_translator_ids, created_at, updated_at`

type jobRow struct {
	ID                   int64          `db:"id"`
	CustomerID           int64          `db:"customer_id"`
	FromLanguageID       int64          `db:"from_language_id"`
	JobType              string         `db:"job_type"`
	Status               string         `db:"status"`
	Immediate            bool           `db:"immediate"`
	Gender               sql.NullString `db:"gender"`
	Certified            sql.NullString `db:"certified"`
	MinTranslatorLevel   sql.NullString `db:"min_translator_level"`
	Due                  time.Time      `db:"due"`
	Duration             int            `db:"duration"`
	CustomerPhoneType    string         `db:"customer_phone_type"`
	CustomerPhysicalType string         `db:"customer_physical_type"`
	Town                 string         `db:"town"`
	Address              string         `db:"address"`
	Instructions         string         `db:"instructions"`
	UserEmail            string         `db:"user_email"`
	Reference            string         `db:"reference"`
	AdminComments        string         `db:"admin_comments"`
	Flagged              bool           `db:"flagged"`
	ManuallyHandled      bool           `db:"manually_handled"`
	ByAdmin              bool           `db:"by_admin"`
	IgnoreExpiring       bool           `db:"ignore_expiring"`
	IgnoreExpired        bool           `db:"ignore_expired"`
	SessionTime          string         `db:"session_time"`
	EndAt                sql.NullTime   `db:"end_at"`
	WithdrawAt           sql.NullTime   `db:"withdraw_at"`
	WillExpireAt         time.Time      `db:"will_expire_at"`
	SpecificTranslatorID sql.NullInt64  `db:"specific_translator_id"`
	BlockedTranslatorIDs pq.Int64Array  `db:"blocked_translator_ids"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

func newJobRow(j *domain.Job) jobRow {
	r := jobRow{
		ID:                   j.ID,
		CustomerID:           j.CustomerID,
		FromLanguageID:       j.FromLanguageID,
		JobType:              string(j.JobType),
		Status:               string(j.Status),
		Immediate:            j.Immediate,
		Due:                  j.Due,
		Duration:             j.Duration,
		CustomerPhoneType:    j.CustomerPhoneType,
		CustomerPhysicalType: j.CustomerPhysicalType,
		Town:                 j.Town,
		Address:              j.Address,
		Instructions:         j.Instructions,
		UserEmail:            j.UserEmail,
		Reference:            j.Reference,
		AdminComments:        j.AdminComments,
		Flagged:              j.Flagged,
		ManuallyHandled:      j.ManuallyHandled,
		ByAdmin:              j.ByAdmin,
		IgnoreExpiring:       j.Ignore,
		IgnoreExpired:        j.IgnoreExpired,
		SessionTime:          j.SessionTime,
		EndAt:                nullTime(j.EndAt),
		WithdrawAt:           nullTime(j.WithdrawAt),
		WillExpireAt:         j.WillExpireAt,
		BlockedTranslatorIDs: pq.Int64Array(j.BlockedTranslatorIDs),
		CreatedAt:            j.CreatedAt,
		UpdatedAt:            j.UpdatedAt,
	}
	if r.BlockedTranslatorIDs == nil {
		r.BlockedTranslatorIDs = pq.Int64Array{}
	}
	if j.Gender != nil {
		r.Gender = sql.NullString{String: string(*j.Gender), Valid: true}
	}
	if j.Certified != nil {
		r.Certified = sql.NullString{String: string(*j.Certified), Valid: true}
	}
	if j.MinTranslatorLevel != nil {
		r.MinTranslatorLevel = sql.NullString{String: string(*j.MinTranslatorLevel), Valid: true}
	}
	if j.SpecificTranslatorID != nil {
		r.SpecificTranslatorID = sql.NullInt64{Int64: *j.SpecificTranslatorID, Valid: true}
	}
	return r
}

func (r jobRow) toDomain() domain.Job {
	j := domain.Job{
		ID:                   r.ID,
		CustomerID:           r.CustomerID,
		FromLanguageID:       r.FromLanguageID,
		JobType:              domain.JobType(r.JobType),
		Status:               domain.JobStatus(r.Status),
		Immediate:            r.Immediate,
		Due:                  r.Due,
		Duration:             r.Duration,
		CustomerPhoneType:    r.CustomerPhoneType,
		CustomerPhysicalType: r.CustomerPhysicalType,
		Town:                 r.Town,
		Address:              r.Address,
		Instructions:         r.Instructions,
		UserEmail:            r.UserEmail,
		Reference:            r.Reference,
		AdminComments:        r.AdminComments,
		Flagged:              r.Flagged,
		ManuallyHandled:      r.ManuallyHandled,
		ByAdmin:              r.ByAdmin,
		Ignore:               r.IgnoreExpiring,
		IgnoreExpired:        r.IgnoreExpired,
		SessionTime:          r.SessionTime,
		EndAt:                timePtr(r.EndAt),
		WithdrawAt:           timePtr(r.WithdrawAt),
		WillExpireAt:         r.WillExpireAt,
		BlockedTranslatorIDs: []int64(r.BlockedTranslatorIDs),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	if r.Gender.Valid {
		g := domain.Gender(r.Gender.String)
		j.Gender = &g
	}
	if r.Certified.Valid {
		c := domain.Certification(r.Certified.String)
		j.Certified = &c
	}
	if r.MinTranslatorLevel.Valid {
		l := domain.TranslatorLevel(r.MinTranslatorLevel.String)
		j.MinTranslatorLevel = &l
	}
	if r.SpecificTranslatorID.Valid {
		id := r.SpecificTranslatorID.Int64
		j.SpecificTranslatorID = &id
	}
	return j
}

const userColumns = `
	id, name, email, phone, role, translator_type, customer_type, gender,
	translator_level, town, towns, language_ids, address, instructions,
	push_disabled, night_time_muted, emergency_muted, push_token`

type userRow struct {
	ID              int64          `db:"id"`
	Name            string         `db:"name"`
	Email           string         `db:"email"`
	Phone           string         `db:"phone"`
	Role            string         `db:"role"`
	TranslatorType  string         `db:"translator_type"`
	CustomerType    string         `db:"customer_type"`
	Gender          string         `db:"gender"`
	TranslatorLevel string         `db:"translator_level"`
	Town            string         `db:"town"`
	Towns           pq.StringArray `db:"towns"`
	LanguageIDs     pq.Int64Array  `db:"language_ids"`
	Address         string         `db:"address"`
	Instructions    string         `db:"instructions"`
	PushDisabled    bool           `db:"push_disabled"`
	NightTimeMuted  bool           `db:"night_time_muted"`
	EmergencyMuted  bool           `db:"emergency_muted"`
	PushToken       string         `db:"push_token"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:    r.ID,
		Name:  r.Name,
		Email: r.Email,
		Phone: r.Phone,
		Role:  domain.Role(r.Role),
		Meta: domain.UserMeta{
			TranslatorType:  domain.TranslatorType(r.TranslatorType),
			CustomerType:    domain.JobType(r.CustomerType),
			Gender:          domain.Gender(r.Gender),
			TranslatorLevel: domain.TranslatorLevel(r.TranslatorLevel),
			Town:            r.Town,
			Towns:           []string(r.Towns),
			LanguageIDs:     []int64(r.LanguageIDs),
			Address:         r.Address,
			Instructions:    r.Instructions,
			PushDisabled:    r.PushDisabled,
			NightTimeMuted:  r.NightTimeMuted,
			EmergencyMuted:  r.EmergencyMuted,
			PushToken:       r.PushToken,
		},
	}
}

const assignmentColumns = `id, job_id, translator_id, created_at, cancel_at, completed_at, completed_by`

type assignmentRow struct {
	ID           int64         `db:"id"`
	JobID        int64         `db:"job_id"`
	TranslatorID int64         `db:"translator_id"`
	CreatedAt    time.Time     `db:"created_at"`
	CancelAt     sql.NullTime  `db:"cancel_at"`
	CompletedAt  sql.NullTime  `db:"completed_at"`
	CompletedBy  sql.NullInt64 `db:"completed_by"`
}

func (r assignmentRow) toDomain() domain.Assignment {
	a := domain.Assignment{
		ID:           r.ID,
		JobID:        r.JobID,
		TranslatorID: r.TranslatorID,
		CreatedAt:    r.CreatedAt,
		CancelAt:     timePtr(r.CancelAt),
		CompletedAt:  timePtr(r.CompletedAt),
	}
	if r.CompletedBy.Valid {
		by := r.CompletedBy.Int64
		a.CompletedBy = &by
	}
	return a
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func toDomainJobs(rows []jobRow) []domain.Job {
	jobs := make([]domain.Job, 0, len(rows))
	for _, r := range rows {
		jobs = append(jobs, r.toDomain())
	}
	return jobs
}
