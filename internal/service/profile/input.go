package profile

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
)

var (
	supportedLanguages = []string{"fr", "en"}
	supportedThemes    = []string{"light", "dark"}
)

const maxDisplayNameLength = 50

// UpdateProfileInput holds a partial profile update. Nil fields are left
// unchanged.
type UpdateProfileInput struct {
	DisplayName   *string `json:"displayName,omitempty"`
	PhotoURL      *string `json:"photoURL,omitempty"`
	Language      *string `json:"language,omitempty"`
	Theme         *string `json:"theme,omitempty"`
	Notifications *bool   `json:"notifications,omitempty"`
	AutoSave      *bool   `json:"autoSave,omitempty"`
}

// Validate checks all fields and collects all errors.
func (i UpdateProfileInput) Validate() error {
	var errs []domain.FieldError

	if i.DisplayName != nil {
		name := strings.TrimSpace(*i.DisplayName)
		if name == "" {
			errs = append(errs, domain.FieldError{Field: "displayName", Message: "required"})
		}
		if utf8.RuneCountInString(name) > maxDisplayNameLength {
			errs = append(errs, domain.FieldError{Field: "displayName", Message: "max 50 characters"})
		}
	}
	if i.Language != nil && !slices.Contains(supportedLanguages, *i.Language) {
		errs = append(errs, domain.FieldError{Field: "language", Message: "must be fr or en"})
	}
	if i.Theme != nil && !slices.Contains(supportedThemes, *i.Theme) {
		errs = append(errs, domain.FieldError{Field: "theme", Message: "must be light or dark"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

func (i UpdateProfileInput) updates() []docstore.Update {
	var u []docstore.Update
	if i.DisplayName != nil {
		u = append(u, docstore.Field("displayName", strings.TrimSpace(*i.DisplayName)))
	}
	if i.PhotoURL != nil {
		u = append(u, docstore.Field("photoURL", *i.PhotoURL))
	}
	if i.Language != nil {
		u = append(u, docstore.Field("preferences.language", *i.Language))
	}
	if i.Theme != nil {
		u = append(u, docstore.Field("preferences.theme", *i.Theme))
	}
	if i.Notifications != nil {
		u = append(u, docstore.Field("preferences.notifications", *i.Notifications))
	}
	if i.AutoSave != nil {
		u = append(u, docstore.Field("preferences.autoSave", *i.AutoSave))
	}
	return u
}

// StatisticsUpdate holds counters to overwrite. Nil fields are kept.
type StatisticsUpdate struct {
	MissionsCompleted  *int `json:"missionsCompleted,omitempty"`
	SamplesAnalyzed    *int `json:"samplesAnalyzed,omitempty"`
	TotalExperience    *int `json:"totalExperience,omitempty"`
	TotalPlayTime      *int `json:"totalPlayTime,omitempty"`
	EquipmentPurchased *int `json:"equipmentPurchased,omitempty"`
}

// Validate rejects negative counters.
func (u StatisticsUpdate) Validate() error {
	var errs []domain.FieldError
	check := func(field string, v *int) {
		if v != nil && *v < 0 {
			errs = append(errs, domain.FieldError{Field: field, Message: "must be >= 0"})
		}
	}
	check("missionsCompleted", u.MissionsCompleted)
	check("samplesAnalyzed", u.SamplesAnalyzed)
	check("totalExperience", u.TotalExperience)
	check("totalPlayTime", u.TotalPlayTime)
	check("equipmentPurchased", u.EquipmentPurchased)

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

func (u StatisticsUpdate) apply(s domain.Statistics) domain.Statistics {
	if u.MissionsCompleted != nil {
		s.MissionsCompleted = *u.MissionsCompleted
	}
	if u.SamplesAnalyzed != nil {
		s.SamplesAnalyzed = *u.SamplesAnalyzed
	}
	if u.TotalExperience != nil {
		s.TotalExperience = *u.TotalExperience
	}
	if u.TotalPlayTime != nil {
		s.TotalPlayTime = *u.TotalPlayTime
	}
	if u.EquipmentPurchased != nil {
		s.EquipmentPurchased = *u.EquipmentPurchased
	}
	return s
}
