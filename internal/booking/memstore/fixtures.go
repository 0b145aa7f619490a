package memstore

import (
	"fmt"
	"os"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
	"gopkg.in/yaml.v3"
)

// Fixtures seed a Store for local runs without a database
type Fixtures struct {
	Languages map[int64]string `yaml:"languages"`
	Users     []UserFixture    `yaml:"users"`
}

// UserFixture is the YAML form of a user
type UserFixture struct {
	ID              int64    `yaml:"id"`
	Name            string   `yaml:"name"`
	Email           string   `yaml:"email"`
	Phone           string   `yaml:"phone"`
	Role            string   `yaml:"role"`
	TranslatorType  string   `yaml:"translator_type"`
	CustomerType    string   `yaml:"customer_type"`
	Gender          string   `yaml:"gender"`
	TranslatorLevel string   `yaml:"translator_level"`
	Town            string   `yaml:"town"`
	Towns           []string `yaml:"towns"`
	LanguageIDs     []int64  `yaml:"language_ids"`
	Address         string   `yaml:"address"`
	Instructions    string   `yaml:"instructions"`
	PushDisabled    bool     `yaml:"push_disabled"`
	NightTimeMuted  bool     `yaml:"night_time_muted"`
	EmergencyMuted  bool     `yaml:"emergency_muted"`
	PushToken       string   `yaml:"push_token"`
}

func (f UserFixture) toDomain() domain.User {
	return domain.User{
		ID:    f.ID,
		Name:  f.Name,
		Email: f.Email,
		Phone: f.Phone,
		Role:  domain.Role(f.Role),
		Meta: domain.UserMeta{
			TranslatorType:  domain.TranslatorType(f.TranslatorType),
			CustomerType:    domain.JobType(f.CustomerType),
			Gender:          domain.Gender(f.Gender),
			TranslatorLevel: domain.TranslatorLevel(f.TranslatorLevel),
			Town:            f.Town,
			Towns:           f.Towns,
			LanguageIDs:     f.LanguageIDs,
			Address:         f.Address,
			Instructions:    f.Instructions,
			PushDisabled:    f.PushDisabled,
			NightTimeMuted:  f.NightTimeMuted,
			EmergencyMuted:  f.EmergencyMuted,
			PushToken:       f.PushToken,
		},
	}
}

// LoadFixtures reads a fixtures file and seeds the store with it
func (s *Store) LoadFixtures(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fixtures file: %w", err)
	}

	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse fixtures file: %w", err)
	}

	for id, name := range f.Languages {
		s.AddLanguage(id, name)
	}
	for _, u := range f.Users {
		if u.ID == 0 {
			return fmt.Errorf("fixture user %q has no id", u.Email)
		}
		s.AddUser(u.toDomain())
	}
	return nil
}
