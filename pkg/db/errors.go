package db

import (
	"strings"

	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
)

// IsUniqueViolation reports whether err is a unique violation from Postgres or
// sqlite. A non-empty constraintName must appear in the constraint name (or,
// for sqlite, in the message).
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if pgErr, ok := pkgerrors.PostgresError(err); ok {
		if pgErr.Code != "23505" {
			return false
		}
		return constraintName == "" || strings.Contains(pgErr.Constraint, constraintName)
	}
	msg := err.Error()
	unique := strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505")
	if !unique {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}
