package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("conflict")
)

// Laboratory membership errors. Their messages are shown to players as-is.
var (
	ErrInvalidInviteCode = &DomainError{Msg: "invalid invite code", Kind: ErrValidation}
	ErrAlreadyMember     = &DomainError{Msg: "you are already a member of this laboratory", Kind: ErrConflict}
	ErrNotMember         = &DomainError{Msg: "you are not a member of this laboratory", Kind: ErrForbidden}
	ErrInsufficientPerm  = &DomainError{Msg: "insufficient permissions", Kind: ErrForbidden}
	ErrOwnerProtected    = &DomainError{Msg: "the laboratory owner cannot be removed", Kind: ErrForbidden}
	ErrOwnerCannotLeave  = &DomainError{Msg: "the owner cannot leave the laboratory", Kind: ErrForbidden}
	ErrOwnerImmutable    = &DomainError{Msg: "the owner's permissions cannot be changed", Kind: ErrForbidden}
	ErrMemberNotFound    = &DomainError{Msg: "member not found", Kind: ErrNotFound}
)

// Lifecycle errors.
var (
	ErrInvalidTransition = &DomainError{Msg: "invalid status transition", Kind: ErrConflict}
	ErrMissionExpired    = &DomainError{Msg: "mission has expired", Kind: ErrConflict}
	ErrObjectivesPending = &DomainError{Msg: "all objectives must be completed first", Kind: ErrConflict}
	ErrNotAssignee       = &DomainError{Msg: "mission is assigned to another player", Kind: ErrForbidden}
	ErrObjectiveNotFound = &DomainError{Msg: "objective not found", Kind: ErrNotFound}
)

// DomainError is a player-facing error that also matches one of the
// sentinel kinds through errors.Is.
type DomainError struct {
	Msg  string
	Kind error
}

func (e *DomainError) Error() string { return e.Msg }

func (e *DomainError) Unwrap() error { return e.Kind }

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}

// NewValidationErrors creates a ValidationError from multiple field errors.
func NewValidationErrors(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}
