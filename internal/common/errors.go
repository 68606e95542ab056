// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Matching errors.
	ErrMissingName = errors.New("no drug name provided")

	// Ledger errors.
	ErrInvalidMovementType = errors.New("invalid movement type")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrNegativeStock       = errors.New("movement would leave negative stock")

	// Import errors.
	ErrImportCancelled = errors.New("import cancelled by user")
	ErrNoRows          = errors.New("no data in input")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// RowErrorKind is the machine-readable reason a batch row failed.
type RowErrorKind string

// Row failure kinds.
const (
	KindValidation      RowErrorKind = "validation_error"
	KindNoMatch         RowErrorKind = "no_match"
	KindInvalidQuantity RowErrorKind = "invalid_quantity"
	KindStore           RowErrorKind = "store_error"
)

// RowError describes why a single import row could not be posted.
type RowError struct {
	Err     error
	Kind    RowErrorKind
	Message string
}

func (e *RowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// NewRowError creates a row failure of the given kind.
func NewRowError(kind RowErrorKind, message string, err error) error {
	return &RowError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// KindOf extracts the row failure kind from err, defaulting to KindStore.
func KindOf(err error) RowErrorKind {
	var rowErr *RowError
	if errors.As(err, &rowErr) {
		return rowErr.Kind
	}
	return KindStore
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
