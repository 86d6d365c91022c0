package repository

import (
	"errors"

	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrNotFound is returned when no row or document matches, including a
	// conditional update that matched nothing.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicatePending is returned when a user already holds a pending request.
	ErrDuplicatePending = errors.New("user already has a pending request")
	// ErrDuplicateEmail is returned when an e-mail address is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrBranchHasAdmin is returned when a second admin is created for a branch.
	ErrBranchHasAdmin = errors.New("branch already has an admin")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return mongo.IsDuplicateKeyError(err)
}

func uniqueConstraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}
