package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
)

func TestMapError_Nil(t *testing.T) {
	t.Parallel()

	if got := mapError(nil, "users/u1"); got != nil {
		t.Errorf("mapError(nil) = %v, want nil", got)
	}
}

func TestMapError_NoRows(t *testing.T) {
	t.Parallel()

	got := mapError(pgx.ErrNoRows, "users/u1")

	if !errors.Is(got, domain.ErrNotFound) {
		t.Errorf("mapError(ErrNoRows) does not wrap domain.ErrNotFound: %v", got)
	}
	if want := "users/u1: not found"; got.Error() != want {
		t.Errorf("mapError(ErrNoRows).Error() = %q, want %q", got.Error(), want)
	}
}

func TestMapError_WrappedNoRows(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("scan row: %w", pgx.ErrNoRows)
	if got := mapError(wrapped, "laboratories/l1"); !errors.Is(got, domain.ErrNotFound) {
		t.Errorf("mapError(wrapped ErrNoRows) does not wrap domain.ErrNotFound: %v", got)
	}
}

func TestMapError_PgCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want error
	}{
		{"23505", domain.ErrAlreadyExists},
		{"23514", domain.ErrValidation},
		{"40001", domain.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			t.Parallel()
			got := mapError(&pgconn.PgError{Code: tt.code}, "samples/s1")
			if !errors.Is(got, tt.want) {
				t.Errorf("mapError(%s) = %v, want wrapping %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestMapError_ContextErrorsPassThrough(t *testing.T) {
	t.Parallel()

	for _, ctxErr := range []error{context.DeadlineExceeded, context.Canceled} {
		got := mapError(ctxErr, "users/u1")
		if !errors.Is(got, ctxErr) {
			t.Errorf("mapError(%v) does not wrap the context error: %v", ctxErr, got)
		}
		if errors.Is(got, domain.ErrNotFound) {
			t.Errorf("mapError(%v) should not wrap domain.ErrNotFound", ctxErr)
		}
	}
}

func TestMapError_UnknownError(t *testing.T) {
	t.Parallel()

	original := errors.New("something unexpected")
	got := mapError(original, "users/u1")

	if !errors.Is(got, original) {
		t.Errorf("mapError(unknown) does not wrap original error: %v", got)
	}
	if want := "users/u1: something unexpected"; got.Error() != want {
		t.Errorf("mapError(unknown).Error() = %q, want %q", got.Error(), want)
	}
}

func TestMapError_UnknownPgError(t *testing.T) {
	t.Parallel()

	pgErr := &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}
	got := mapError(pgErr, "users/u1")

	var target *pgconn.PgError
	if !errors.As(got, &target) {
		t.Errorf("mapError(42P01) should keep the PgError: %v", got)
	}
}

func TestPathArray(t *testing.T) {
	t.Parallel()

	if got := pathArray("statistics.totalExperience"); got != "{statistics,totalExperience}" {
		t.Errorf("pathArray = %q", got)
	}
}

func TestFilterPredicate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filter   docstore.Filter
		wantPred string
		wantArgs []any
	}{
		{
			name:     "scalar equality uses containment",
			filter:   docstore.Filter{Field: "inviteCode", Op: docstore.OpEqual, Value: "ABC123"},
			wantPred: "data @> ?::jsonb",
			wantArgs: []any{`{"inviteCode":"ABC123"}`},
		},
		{
			name:     "nested path",
			filter:   docstore.Filter{Field: "preferences.language", Op: docstore.OpEqual, Value: "fr"},
			wantPred: "data @> ?::jsonb",
			wantArgs: []any{`{"preferences":{"language":"fr"}}`},
		},
		{
			name:     "array contains",
			filter:   docstore.Filter{Field: "memberIds", Op: docstore.OpArrayContains, Value: "u1"},
			wantPred: "data @> ?::jsonb",
			wantArgs: []any{`{"memberIds":["u1"]}`},
		},
		{
			name:     "object equality compares whole value",
			filter:   docstore.Filter{Field: "position", Op: docstore.OpEqual, Value: map[string]any{"x": 1}},
			wantPred: "data #> ?::text[] = ?::jsonb",
			wantArgs: []any{"{position}", `{"x":1}`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pred, args, err := filterPredicate(tt.filter)
			if err != nil {
				t.Fatalf("filterPredicate: %v", err)
			}
			if pred != tt.wantPred {
				t.Errorf("pred = %q, want %q", pred, tt.wantPred)
			}
			if fmt.Sprint(args) != fmt.Sprint(tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}
