package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartmarshall/labsim/internal/domain"
)

// mapError converts pgx/pgconn errors to domain errors, prefixed with the
// document path. Context errors pass through unmapped.
func mapError(err error, ref string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", ref, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", ref, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", ref, domain.ErrAlreadyExists)
		case "23514": // check_violation
			return fmt.Errorf("%s: %w", ref, domain.ErrValidation)
		case "40001": // serialization_failure
			return fmt.Errorf("%s: %w", ref, domain.ErrConflict)
		}
	}

	return fmt.Errorf("%s: %w", ref, err)
}
