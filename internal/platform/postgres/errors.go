package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/tasktrack-api/internal/store"
)

// PostgreSQL error codes
const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
	notNullViolationCode    = "23502"
	invalidTextRepCode      = "22P02"
)

// MapError maps a database error to a store error.
// notFound is returned (wrapped) for sql.ErrNoRows so callers can surface an
// entity-specific sentinel such as store.ErrTaskNotFound; when nil the generic
// store.ErrNotFound is used.
//
// Constraint violations are mapped to store.ErrInvalidEntity or
// store.ErrDuplicate. The constraint name is kept, the raw driver message is not,
// so the result is safe to wrap into responses further up.
func MapError(err error, notFound error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		if notFound == nil {
			notFound = store.ErrNotFound
		}
		return notFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return fmt.Errorf("%w: unique constraint %s", store.ErrDuplicate, pgErr.ConstraintName)
		case foreignKeyViolationCode:
			return fmt.Errorf("%w: foreign key violation (%s)", store.ErrInvalidEntity, pgErr.ConstraintName)
		case checkViolationCode:
			return fmt.Errorf("%w: check constraint violation (%s)", store.ErrInvalidEntity, pgErr.ConstraintName)
		case notNullViolationCode:
			return fmt.Errorf("%w: not null violation (%s)", store.ErrInvalidEntity, pgErr.ColumnName)
		case invalidTextRepCode:
			return fmt.Errorf("%w: invalid value", store.ErrInvalidEntity)
		}
	}

	return err
}

// IsUniqueViolation checks if the given error is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// IsForeignKeyViolation checks if the given error is a PostgreSQL foreign key constraint violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolationCode
}

// CheckRowsAffected returns notFound when an UPDATE or DELETE touched no rows.
func CheckRowsAffected(result sql.Result, notFound error) error {
	if result == nil {
		return fmt.Errorf("nil result provided to CheckRowsAffected")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if notFound == nil {
			return store.ErrNotFound
		}
		return notFound
	}

	return nil
}
