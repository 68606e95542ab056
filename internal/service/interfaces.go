// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/drug-deposit/internal/model"
)

// Catalog defines exact lookup and insert primitives over drug records.
type Catalog interface {
	// FindExact matches name case-insensitively, plus dose and lote when non-empty.
	// It returns nil without error when nothing matches.
	FindExact(ctx context.Context, name, dose, lote string) (*model.Drug, error)
	// ListDrugs returns every drug ordered by name.
	ListDrugs(ctx context.Context) ([]model.Drug, error)
	InsertDrug(ctx context.Context, attrs model.DrugAttributes) (int64, error)
	GetDrug(ctx context.Context, id int64) (*model.Drug, error)
	// CurrentStock returns 0 for unknown drugs.
	CurrentStock(ctx context.Context, drugID int64) (int, error)
}

// Ledger defines the movement and stock primitives.
type Ledger interface {
	InsertMovement(ctx context.Context, movement *model.Movement) (int64, error)
	AdjustStock(ctx context.Context, drugID int64, delta int) error
	SetStock(ctx context.Context, drugID int64, count int, inventoryDate time.Time) error
	MovementsForDrug(ctx context.Context, drugID int64) ([]model.Movement, error)
	ListMovements(ctx context.Context) ([]model.Movement, error)
	CorrectMovement(ctx context.Context, movementID int64, destinationOrigin, signature string) error
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	Catalog
	Ledger

	// WithTx runs fn inside one unit of work. The work is committed when fn
	// returns nil and rolled back on error or panic.
	WithTx(ctx context.Context, fn func(tx Transaction) error) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Catalog
	Ledger
	Commit() error
	Rollback() error
}
