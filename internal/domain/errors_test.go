package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_SingleField(t *testing.T) {
	t.Parallel()

	err := NewValidationError("name", "required")

	if got := err.Error(); got != "validation: name: required" {
		t.Fatalf("unexpected Error(): %q", got)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatal("errors.Is(err, ErrValidation) = false")
	}
}

func TestValidationError_MultipleFields(t *testing.T) {
	t.Parallel()

	err := NewValidationErrors([]FieldError{
		{Field: "name", Message: "required"},
		{Field: "theme", Message: "unknown theme"},
	})

	if got := err.Error(); got != "validation: 2 errors" {
		t.Fatalf("unexpected Error(): %q", got)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatal("errors.Is(err, ErrValidation) = false")
	}
}

func TestDomainError_MatchesKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		kind error
	}{
		{ErrInvalidInviteCode, ErrValidation},
		{ErrAlreadyMember, ErrConflict},
		{ErrNotMember, ErrForbidden},
		{ErrInsufficientPerm, ErrForbidden},
		{ErrOwnerProtected, ErrForbidden},
		{ErrOwnerCannotLeave, ErrForbidden},
		{ErrOwnerImmutable, ErrForbidden},
		{ErrMemberNotFound, ErrNotFound},
		{ErrInvalidTransition, ErrConflict},
		{ErrMissionExpired, ErrConflict},
		{ErrObjectivesPending, ErrConflict},
		{ErrNotAssignee, ErrForbidden},
		{ErrObjectiveNotFound, ErrNotFound},
	}
	for _, tt := range tests {
		wrapped := fmt.Errorf("laboratory.Op: %w", tt.err)
		if !errors.Is(wrapped, tt.kind) {
			t.Errorf("%q should match %v", tt.err, tt.kind)
		}
		if !errors.Is(wrapped, tt.err) {
			t.Errorf("%q should match itself through wrapping", tt.err)
		}
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	t.Parallel()

	sentinels := []error{ErrNotFound, ErrAlreadyExists, ErrValidation, ErrUnauthorized, ErrForbidden, ErrConflict}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("%v should not match %v", a, b)
			}
		}
	}
}
