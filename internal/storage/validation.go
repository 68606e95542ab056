// Package storage provides the data persistence layer for the drug deposit ledger.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/drug-deposit/internal/model"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidDrug     = errors.New("invalid drug")
	ErrInvalidMovement = errors.New("invalid movement")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateDrugAttributes validates the attributes of a new catalog entry.
func validateDrugAttributes(attrs model.DrugAttributes) error {
	if strings.TrimSpace(attrs.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidDrug)
	}
	if attrs.PiecesPerBox < 0 {
		return fmt.Errorf("%w: pieces per box cannot be negative", ErrInvalidDrug)
	}
	return nil
}

// validateMovement validates a single ledger row.
func validateMovement(movement *model.Movement) error {
	if movement == nil {
		return fmt.Errorf("%w: movement", ErrNilParameter)
	}
	if movement.DrugID <= 0 {
		return fmt.Errorf("%w: missing drug ID", ErrInvalidMovement)
	}
	if !movement.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMovement, movement.Type)
	}
	if movement.PiecesMoved < 0 {
		return fmt.Errorf("%w: pieces moved cannot be negative", ErrInvalidMovement)
	}
	if movement.DateMovement.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidMovement)
	}
	return nil
}
