package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	pgCodeLockNotAvailable = "55P03"
	pgCodeUniqueViolation  = "23505"
	pgCodeDeadlockDetected = "40P01"
)

// IsUniqueViolation reports whether the provided error references a Postgres
// unique violation constraint. When constraintName is provided, the helper looks
// for the constraint text in the error message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if code := pgErrorCode(err); code == pgCodeUniqueViolation {
		if constraintName == "" {
			return true
		}
	}
	msg := err.Error()
	if constraintName != "" && strings.Contains(msg, constraintName) {
		return true
	}
	// sqlite reports the columns, not the constraint name, so a named miss
	// still falls through to the generic duplicate-key messages.
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// IsLockUnavailable reports whether the error means a row lock could not be
// acquired in time. Covers Postgres lock_timeout/NOWAIT failures, deadlock
// victims, and SQLite's busy error.
func IsLockUnavailable(err error) bool {
	if err == nil {
		return false
	}
	switch pgErrorCode(err) {
	case pgCodeLockNotAvailable, pgCodeDeadlockDetected:
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "lock timeout") ||
		strings.Contains(msg, "could not obtain lock") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

func pgErrorCode(err error) string {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
