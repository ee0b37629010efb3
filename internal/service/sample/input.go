package sample

import (
	"strings"
	"unicode/utf8"

	"github.com/heartmarshall/labsim/internal/domain"
)

// CreateInput holds the parameters for registering a sample.
type CreateInput struct {
	LaboratoryID string `json:"laboratoryId"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Matrix       string `json:"matrix"`
	Origin       string `json:"origin"`
}

// Validate checks all fields and collects all errors.
func (i CreateInput) Validate() error {
	var errs []domain.FieldError

	if strings.TrimSpace(i.LaboratoryID) == "" {
		errs = append(errs, domain.FieldError{Field: "laboratoryId", Message: "required"})
	}
	name := strings.TrimSpace(i.Name)
	if name == "" {
		errs = append(errs, domain.FieldError{Field: "name", Message: "required"})
	}
	if utf8.RuneCountInString(name) > 100 {
		errs = append(errs, domain.FieldError{Field: "name", Message: "max 100 characters"})
	}
	if strings.TrimSpace(i.Matrix) == "" {
		errs = append(errs, domain.FieldError{Field: "matrix", Message: "required"})
	}
	if utf8.RuneCountInString(i.Description) > 500 {
		errs = append(errs, domain.FieldError{Field: "description", Message: "max 500 characters"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}
