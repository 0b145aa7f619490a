package eligibility

import (
	"testing"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func translator(tt domain.TranslatorType) *domain.User {
	return &domain.User{
		ID:   100,
		Role: domain.RoleTranslator,
		Meta: domain.UserMeta{
			TranslatorType:  tt,
			Gender:          domain.GenderFemale,
			TranslatorLevel: domain.LevelCertified,
			Town:            "Göteborg",
			LanguageIDs:     []int64{1, 2},
		},
	}
}

func pendingJob(id int64, jobType domain.JobType) domain.Job {
	return domain.Job{
		ID:             id,
		FromLanguageID: 1,
		JobType:        jobType,
		Status:         domain.JobStatusPending,
		Town:           "Göteborg",
	}
}

func TestFilter_Eligible(t *testing.T) {
	f := NewFilter([]TownPair{{JobTown: "Mölndal", TranslatorTown: "Göteborg"}})

	tests := []struct {
		name   string
		user   *domain.User
		mutate func(j *domain.Job)
		want   bool
	}{
		{
			name: "matching paid job for professional",
			user: translator(domain.TranslatorTypeProfessional),
			want: true,
		},
		{
			name:   "volunteer never sees paid job",
			user:   translator(domain.TranslatorTypeVolunteer),
			mutate: func(j *domain.Job) {},
			want:   false,
		},
		{
			name:   "not pending",
			user:   translator(domain.TranslatorTypeProfessional),
			mutate: func(j *domain.Job) { j.Status = domain.JobStatusAssigned },
			want:   false,
		},
		{
			name:   "language not spoken",
			user:   translator(domain.TranslatorTypeProfessional),
			mutate: func(j *domain.Job) { j.FromLanguageID = 9 },
			want:   false,
		},
		{
			name:   "gender mismatch",
			user:   translator(domain.TranslatorTypeProfessional),
			mutate: func(j *domain.Job) { j.Gender = ptr(domain.GenderMale) },
			want:   false,
		},
		{
			name:   "gender match",
			user:   translator(domain.TranslatorTypeProfessional),
			mutate: func(j *domain.Job) { j.Gender = ptr(domain.GenderFemale) },
			want:   true,
		},
		{
			name:   "law certification required",
			user:   translator(domain.TranslatorTypeProfessional),
			mutate: func(j *domain.Job) { j.Certified = ptr(domain.CertificationLaw) },
			want:   false,
		},
		{
			name:   "minimum level satisfied",
			user:   translator(domain.TranslatorTypeProfessional),
			mutate: func(j *domain.Job) { j.MinTranslatorLevel = ptr(domain.LevelReadCourses) },
			want:   true,
		},
		{
			name: "on-site job in another town",
			user: translator(domain.TranslatorTypeProfessional),
			mutate: func(j *domain.Job) {
				j.CustomerPhysicalType = "yes"
				j.Town = "Malmö"
			},
			want: false,
		},
		{
			name: "on-site job in same town ignores case",
			user: translator(domain.TranslatorTypeProfessional),
			mutate: func(j *domain.Job) {
				j.CustomerPhysicalType = "yes"
				j.CustomerPhoneType = "no"
				j.Town = "GÖTEBORG"
			},
			want: true,
		},
		{
			name: "on-site job with town override",
			user: translator(domain.TranslatorTypeProfessional),
			mutate: func(j *domain.Job) {
				j.CustomerPhysicalType = "yes"
				j.Town = "mölndal"
			},
			want: true,
		},
		{
			name: "on-site job with phone fallback ignores town",
			user: translator(domain.TranslatorTypeProfessional),
			mutate: func(j *domain.Job) {
				j.CustomerPhysicalType = "yes"
				j.CustomerPhoneType = "yes"
				j.Town = "Malmö"
			},
			want: true,
		},
		{
			name:   "targeted at another translator",
			user:   translator(domain.TranslatorTypeProfessional),
			mutate: func(j *domain.Job) { j.SpecificTranslatorID = ptr(int64(7)) },
			want:   false,
		},
		{
			name:   "targeted at this translator",
			user:   translator(domain.TranslatorTypeProfessional),
			mutate: func(j *domain.Job) { j.SpecificTranslatorID = ptr(int64(100)) },
			want:   true,
		},
		{
			name:   "translator blocked",
			user:   translator(domain.TranslatorTypeProfessional),
			mutate: func(j *domain.Job) { j.BlockedTranslatorIDs = []int64{3, 100} },
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := pendingJob(1, domain.JobTypePaid)
			if tt.mutate != nil {
				tt.mutate(&job)
			}
			assert.Equal(t, tt.want, f.Eligible(tt.user, &job))
		})
	}
}

func TestFilter_Apply_OrdersByID(t *testing.T) {
	f := NewFilter(nil)
	jobs := []domain.Job{
		pendingJob(30, domain.JobTypeUnpaid),
		pendingJob(10, domain.JobTypeUnpaid),
		pendingJob(20, domain.JobTypePaid),
		pendingJob(5, domain.JobTypeUnpaid),
	}

	got := f.Apply(translator(domain.TranslatorTypeVolunteer), jobs)

	ids := make([]int64, len(got))
	for i, j := range got {
		ids[i] = j.ID
	}
	assert.Equal(t, []int64{5, 10, 30}, ids)
}

func TestCriteriaFor(t *testing.T) {
	user := translator(domain.TranslatorTypeRWS)
	c := CriteriaFor(user)

	assert.Equal(t, domain.JobTypeRWS, c.JobType)
	assert.Equal(t, []int64{1, 2}, c.LanguageIDs)
	assert.Equal(t, domain.JobStatusPending, c.Status)

	user.Meta.LanguageIDs[0] = 99
	assert.Equal(t, int64(1), c.LanguageIDs[0], "criteria must not alias the profile")
}
