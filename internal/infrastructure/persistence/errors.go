package persistence

import (
	"errors"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes a second attempt may get past
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// TranslateError maps a GORM or driver error onto the domain taxonomy.
// Domain errors pass through; unique violations, serialization failures and
// deadlocks become retryable storage errors; anything else is a plain
// storage error.
func TranslateError(op string, err error) error {
	if err == nil {
		return nil
	}

	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	var se *shared.StorageError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}

	return &shared.StorageError{Op: op, Retryable: isRetryable(err), Err: err}
}

func isRetryable(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
			return true
		}
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint violation
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func notFound(resource string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.NewNotFoundError(resource)
	}
	return TranslateError("find "+resource, err)
}

func concurrencyConflict(resource string) error {
	return shared.NewDomainError(shared.CodeConcurrencyConflict, resource+" was modified by another process")
}
