package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrUnauthenticated          = errors.New("authentication required")
	ErrForbidden                = errors.New("forbidden")
	ErrNotFound                 = errors.New("not found")
	ErrInvalidArgument          = errors.New("invalid argument")
	ErrDuplicatePendingPurchase = errors.New("a pending purchase already exists for this project")
	ErrIdentityUnresolved       = errors.New("unable to resolve user identity")
	ErrStorageFailure           = errors.New("storage failure")
	ErrAlreadyReviewed          = errors.New("purchase has already been reviewed")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailAlreadyExists = errors.New("email already exists")
)

// DuplicatePendingError identifies the pending purchase that blocked a new one.
type DuplicatePendingError struct {
	ExistingID uuid.UUID
}

func (e *DuplicatePendingError) Error() string {
	return fmt.Sprintf("%s (purchase %s)", ErrDuplicatePendingPurchase.Error(), e.ExistingID)
}

func (e *DuplicatePendingError) Unwrap() error {
	return ErrDuplicatePendingPurchase
}

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
