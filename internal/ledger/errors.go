package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the referenced transaction or maintenance request does not exist.
	ErrNotFound = errors.New("ledger: not found")
	// ErrValidation indicates malformed input rejected before any mutation.
	ErrValidation = errors.New("ledger: validation failed")
	// ErrDuplicateLink indicates a maintenance request already has a linked transaction.
	ErrDuplicateLink = errors.New("ledger: maintenance request already linked to a transaction")
)

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// DuplicateLinkError is returned when a second transaction would reference the
// same maintenance request.
type DuplicateLinkError struct {
	MaintenanceRequestID int64
	TransactionID        int64
}

func (e *DuplicateLinkError) Error() string {
	if e.TransactionID > 0 {
		return fmt.Sprintf("maintenance request %d already linked to transaction %d", e.MaintenanceRequestID, e.TransactionID)
	}
	return fmt.Sprintf("maintenance request %d already linked to a transaction", e.MaintenanceRequestID)
}

func (e *DuplicateLinkError) Unwrap() error {
	return ErrDuplicateLink
}

// ValidationError describes a rejected field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func notFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}
