// Package eligibility decides which pending jobs a translator may see and accept.
package eligibility

import (
	"slices"
	"strings"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
	"golang.org/x/text/cases"
)

// TownPair allows translators living in TranslatorTown to take on-site jobs in JobTown.
type TownPair struct {
	JobTown        string `yaml:"job_town"`
	TranslatorTown string `yaml:"translator_town"`
}

// Criteria is the part of the filter a data store can push down into its query.
type Criteria struct {
	JobType     domain.JobType
	LanguageIDs []int64
	Status      domain.JobStatus
}

// Filter evaluates job requirements against translator profiles. It keeps no
// per-call state, so results always reflect the jobs passed in.
type Filter struct {
	overrides map[TownPair]struct{}
}

// NewFilter creates a Filter with optional town-pair overrides.
func NewFilter(overrides []TownPair) *Filter {
	f := &Filter{overrides: make(map[TownPair]struct{}, len(overrides))}
	for _, p := range overrides {
		f.overrides[TownPair{JobTown: fold(p.JobTown), TranslatorTown: fold(p.TranslatorTown)}] = struct{}{}
	}
	return f
}

// CriteriaFor returns the store-side pre-filter for a translator.
func CriteriaFor(translator *domain.User) Criteria {
	return Criteria{
		JobType:     translator.Meta.TranslatorType.JobType(),
		LanguageIDs: slices.Clone(translator.Meta.LanguageIDs),
		Status:      domain.JobStatusPending,
	}
}

// Apply keeps the jobs the translator is eligible for, ordered by job id.
func (f *Filter) Apply(translator *domain.User, jobs []domain.Job) []domain.Job {
	eligible := make([]domain.Job, 0, len(jobs))
	for i := range jobs {
		if f.Eligible(translator, &jobs[i]) {
			eligible = append(eligible, jobs[i])
		}
	}

	slices.SortStableFunc(eligible, func(a, b domain.Job) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return eligible
}

// Eligible reports whether a single pending job may be offered to the translator.
func (f *Filter) Eligible(translator *domain.User, job *domain.Job) bool {
	if job.Status != domain.JobStatusPending {
		return false
	}
	if job.JobType != translator.Meta.TranslatorType.JobType() {
		return false
	}
	if !translator.SpeaksLanguage(job.FromLanguageID) {
		return false
	}
	if job.Gender != nil && *job.Gender != translator.Meta.Gender {
		return false
	}
	if job.Certified != nil && !translator.Meta.TranslatorLevel.Satisfies(*job.Certified) {
		return false
	}
	if job.MinTranslatorLevel != nil && translator.Meta.TranslatorLevel.Rank() < job.MinTranslatorLevel.Rank() {
		return false
	}
	if job.RequiresPresence() && !f.servesTown(translator, job.Town) {
		return false
	}
	if job.SpecificTranslatorID != nil && *job.SpecificTranslatorID != translator.ID {
		return false
	}
	if slices.Contains(job.BlockedTranslatorIDs, translator.ID) {
		return false
	}
	return true
}

func (f *Filter) servesTown(translator *domain.User, jobTown string) bool {
	want := fold(jobTown)
	if want == "" {
		return false
	}

	towns := append([]string{translator.Meta.Town}, translator.Meta.Towns...)
	for _, town := range towns {
		have := fold(town)
		if have == "" {
			continue
		}
		if have == want {
			return true
		}
		if _, ok := f.overrides[TownPair{JobTown: want, TranslatorTown: have}]; ok {
			return true
		}
	}
	return false
}

// fold builds a fresh Caser per call; Casers are not safe for concurrent use.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
