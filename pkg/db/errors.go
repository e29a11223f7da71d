package db

import (
	"errors"
	"strings"

	pkgerrors "github.com/angelmondragon/tipledger-backend/pkg/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateSerializationFailure = "40001"
)

// IsUniqueViolation reports whether the provided error references a unique
// constraint violation. When constraintName is provided, only violations of
// that constraint match.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if code, constraint, ok := sqlState(err); ok {
		if code != sqlStateUniqueViolation {
			return false
		}
		return constraintName == "" || constraint == constraintName
	}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}

// IsLockContention reports whether err means a row lock could not be acquired
// in time, or the transaction lost a deadlock/serialization race.
func IsLockContention(err error) bool {
	if err == nil {
		return false
	}
	if code, _, ok := sqlState(err); ok {
		switch code {
		case sqlStateLockNotAvailable, sqlStateDeadlockDetected, sqlStateSerializationFailure:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "lock timeout") || strings.Contains(msg, "database is locked")
}

// Classify wraps a store error into the typed error taxonomy. Typed errors
// pass through untouched.
func Classify(err error, message string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	if IsLockContention(err) {
		return pkgerrors.Wrap(pkgerrors.CodeLockTimeout, err, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

func sqlState(err error) (code, constraint string, ok bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code, pgxErr.ConstraintName, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	return "", "", false
}
