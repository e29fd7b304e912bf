package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/resdomain/internal/domain/resource"
)

var (
	// ErrNotFound signals a missing entity.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate entity.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidIdentifier signals a value that is neither an identifier nor an entity.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrNotSoftDeletable signals an entity type without a deletion marker.
	ErrNotSoftDeletable = errors.New("entity type is not soft deletable")
	// ErrUnknownEntityType signals an entity type without registered mapping or service.
	ErrUnknownEntityType = errors.New("unknown entity type")
	// ErrTransactionState signals begin/commit/rollback called in the wrong state.
	ErrTransactionState = errors.New("invalid transaction state")
	// ErrConstraintViolation signals that storage rejected staged changes.
	ErrConstraintViolation = errors.New("constraint violation")
)

// ConstraintViolationError carries the violations reported by a flush.
// Each violation references its offending entity through Root when known.
type ConstraintViolationError struct {
	Violations []resource.Violation
	Err        error
}

func (e *ConstraintViolationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	if len(msgs) == 0 && e.Err != nil {
		return fmt.Sprintf("%s: %s", ErrConstraintViolation.Error(), e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", ErrConstraintViolation.Error(), strings.Join(msgs, "; "))
}

// Unwrap exposes both the sentinel and the driver error.
func (e *ConstraintViolationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConstraintViolation}
	}
	return []error{ErrConstraintViolation, e.Err}
}

// NewConstraintViolation creates a constraint violation error.
func NewConstraintViolation(cause error, violations ...resource.Violation) error {
	return &ConstraintViolationError{Violations: violations, Err: cause}
}

// NotFoundError reports a staged entity whose stored row is missing.
type NotFoundError struct {
	Entity resource.Entity
	ID     string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%q: %s", e.ID, ErrNotFound.Error()) }

// Unwrap exposes ErrNotFound.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound creates the not found error of e.
func NewNotFound(e resource.Entity) error {
	return &NotFoundError{Entity: e, ID: e.EntityID()}
}
