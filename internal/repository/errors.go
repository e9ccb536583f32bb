package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrDuplicateCode  = errors.New("promo code already exists")
	ErrDuplicateOrder = errors.New("order already exists")
	ErrBalanceTooLow  = errors.New("loyalty balance too low")
	ErrNotFound       = errors.New("record not found")
)

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// IsRetryable reports whether err is a Postgres serialization failure or
// deadlock, after which the whole transaction may be run again.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == serializationFailure || pqErr.Code == deadlockDetected
}

type scanner interface {
	Scan(dest ...any) error
}
