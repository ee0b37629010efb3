package mission

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/heartmarshall/labsim/internal/domain"
)

// ObjectiveInput describes one objective of a new mission.
type ObjectiveInput struct {
	Description      string  `json:"description"`
	TargetCompound   string  `json:"targetCompound,omitempty"`
	RequiredAccuracy float64 `json:"requiredAccuracy,omitempty"`
}

// CreateInput holds the parameters for publishing a mission. Rewards are
// content and stored as given.
type CreateInput struct {
	LaboratoryID      string                   `json:"laboratoryId"`
	Title             string                   `json:"title"`
	Description       string                   `json:"description"`
	Client            string                   `json:"client"`
	Difficulty        domain.MissionDifficulty `json:"difficulty"`
	Objectives        []ObjectiveInput         `json:"objectives"`
	Rewards           domain.MissionReward     `json:"rewards"`
	RequiredEquipment []string                 `json:"requiredEquipment"`
	Deadline          *time.Time               `json:"deadline,omitempty"`
}

const maxObjectives = 20

// Validate checks all fields and collects all errors.
func (i CreateInput) Validate(now time.Time) error {
	var errs []domain.FieldError

	if strings.TrimSpace(i.LaboratoryID) == "" {
		errs = append(errs, domain.FieldError{Field: "laboratoryId", Message: "required"})
	}
	title := strings.TrimSpace(i.Title)
	if title == "" {
		errs = append(errs, domain.FieldError{Field: "title", Message: "required"})
	}
	if utf8.RuneCountInString(title) > 200 {
		errs = append(errs, domain.FieldError{Field: "title", Message: "max 200 characters"})
	}
	if !i.Difficulty.IsValid() {
		errs = append(errs, domain.FieldError{Field: "difficulty", Message: "must be easy, medium, hard or expert"})
	}
	if len(i.Objectives) == 0 {
		errs = append(errs, domain.FieldError{Field: "objectives", Message: "at least one objective is required"})
	}
	if len(i.Objectives) > maxObjectives {
		errs = append(errs, domain.FieldError{Field: "objectives", Message: "max 20 objectives"})
	}
	for _, o := range i.Objectives {
		if strings.TrimSpace(o.Description) == "" {
			errs = append(errs, domain.FieldError{Field: "objectives.description", Message: "required"})
			break
		}
	}
	if i.Rewards.Experience < 0 || i.Rewards.Money < 0 {
		errs = append(errs, domain.FieldError{Field: "rewards", Message: "must be >= 0"})
	}
	if i.Deadline != nil && !i.Deadline.After(now) {
		errs = append(errs, domain.FieldError{Field: "deadline", Message: "must be in the future"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}
