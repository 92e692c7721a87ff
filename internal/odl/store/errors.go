package store

import (
	"errors"

	"circulation/pkg/platform/sentinel"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes worth retrying a whole unit of work for.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// IsTransient reports whether err is a lock or serialization conflict that a
// fresh transaction may not hit again.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sentinel.ErrStale) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
	}
	return false
}
