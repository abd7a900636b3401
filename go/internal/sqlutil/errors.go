package sqlutil

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mcdev12/rankparty/go/internal/apperr"
)

// Postgres SQLSTATE codes the repositories react to.
const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// sqlState extracts the SQLSTATE and constraint from a lib/pq or pgx error.
func sqlState(err error) (code, constraint string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func IsUniqueViolation(err error) bool {
	code, _ := sqlState(err)
	return code == uniqueViolation
}

// IsRetryable reports whether the transaction that produced err lost a
// lock race and can be run again unchanged.
func IsRetryable(err error) bool {
	code, _ := sqlState(err)
	return code == serializationFailure || code == deadlockDetected
}

// ConstraintName returns the violated constraint, if err carries one.
func ConstraintName(err error) string {
	_, constraint := sqlState(err)
	return constraint
}

// Classify maps driver errors onto the application error taxonomy.
// notFound is used for sql.ErrNoRows.
func Classify(err error, notFound string, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return apperr.NotFoundf("%s", notFound)
	case IsUniqueViolation(err):
		return apperr.Conflictf("%s: duplicate %s", msg, ConstraintName(err))
	default:
		return apperr.Storage(err, msg)
	}
}
