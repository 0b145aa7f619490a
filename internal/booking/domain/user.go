package domain

// Role distinguishes customers from translators and operators
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleTranslator Role = "translator"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// TranslatorType is the contract a translator works under
type TranslatorType string

const (
	TranslatorTypeProfessional TranslatorType = "professional"
	TranslatorTypeRWS          TranslatorType = "rwstranslator"
	TranslatorTypeVolunteer    TranslatorType = "volunteer"
)

// JobType returns the only job type a translator of this type may take.
// Unrecognised types fall back to unpaid work.
func (t TranslatorType) JobType() JobType {
	switch t {
	case TranslatorTypeProfessional:
		return JobTypePaid
	case TranslatorTypeRWS:
		return JobTypeRWS
	case TranslatorTypeVolunteer:
		return JobTypeUnpaid
	default:
		return JobTypeUnpaid
	}
}

// TranslatorLevel is the certification level recorded on a translator profile
type TranslatorLevel string

const (
	LevelLayman          TranslatorLevel = "layman"
	LevelReadCourses     TranslatorLevel = "read_courses"
	LevelCertified       TranslatorLevel = "certified"
	LevelCertifiedLaw    TranslatorLevel = "certified_law"
	LevelCertifiedHealth TranslatorLevel = "certified_health"
)

// Rank orders levels; specialisations rank with plain certification.
func (l TranslatorLevel) Rank() int {
	switch l {
	case LevelReadCourses:
		return 1
	case LevelCertified, LevelCertifiedLaw, LevelCertifiedHealth:
		return 2
	default:
		return 0
	}
}

// Satisfies reports whether the level meets a job's certification requirement.
func (l TranslatorLevel) Satisfies(c Certification) bool {
	switch c {
	case "", CertificationNormal:
		return true
	case CertificationBoth:
		return l.Rank() >= LevelReadCourses.Rank()
	case CertificationYes:
		return l.Rank() >= LevelCertified.Rank()
	case CertificationHealth:
		return l == LevelCertifiedHealth
	case CertificationLaw, CertificationNLaw:
		return l == LevelCertifiedLaw
	default:
		return false
	}
}

// UserMeta is the profile data attached to a user
type UserMeta struct {
	TranslatorType  TranslatorType
	CustomerType    JobType
	Gender          Gender
	TranslatorLevel TranslatorLevel
	Town            string
	Towns           []string
	LanguageIDs     []int64
	Address         string
	Instructions    string
	PushDisabled    bool
	NightTimeMuted  bool
	EmergencyMuted  bool
	PushToken       string
}

// User is a customer, a translator or an operator
type User struct {
	ID    int64
	Name  string
	Email string
	Phone string
	Role  Role
	Meta  UserMeta
}

// IsCustomer reports whether the user books jobs
func (u *User) IsCustomer() bool {
	return u.Role == RoleCustomer
}

// IsTranslator reports whether the user takes jobs
func (u *User) IsTranslator() bool {
	return u.Role == RoleTranslator
}

// IsAdmin reports whether the user is an operator
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

// SpeaksLanguage reports whether the translator lists the language
func (u *User) SpeaksLanguage(languageID int64) bool {
	for _, id := range u.Meta.LanguageIDs {
		if id == languageID {
			return true
		}
	}
	return false
}
