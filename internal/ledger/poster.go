// Package ledger posts drug movements and keeps catalog stock in step with them.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/drug-deposit/internal/common"
	"github.com/Veraticus/drug-deposit/internal/model"
	"github.com/Veraticus/drug-deposit/internal/service"
)

// StockPolicy controls whether exits may drive stock below zero.
type StockPolicy string

// Stock policies.
const (
	AllowNegative  StockPolicy = "allow-negative"
	RejectNegative StockPolicy = "reject-negative"
)

// ParseStockPolicy converts a configuration value into a StockPolicy.
// An empty value selects AllowNegative.
func ParseStockPolicy(raw string) (StockPolicy, error) {
	switch StockPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", AllowNegative:
		return AllowNegative, nil
	case RejectNegative:
		return RejectNegative, nil
	default:
		return "", fmt.Errorf("%w: unknown stock policy %q", common.ErrInvalidConfig, raw)
	}
}

// Config holds configuration options for the poster.
type Config struct {
	Now         func() time.Time
	StockPolicy StockPolicy
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		StockPolicy: AllowNegative,
		Now:         time.Now,
	}
}

// PostRequest describes one movement against a resolved drug.
type PostRequest struct {
	DateMovement      time.Time // Defaults to the processing date when zero
	DestinationOrigin string
	Signature         string
	Type              model.MovementType
	DrugID            int64
	PiecesMoved       int
}

// Poster validates movements and applies them to the ledger and catalog stock
// in a single unit of work.
type Poster struct {
	storage service.Storage
	now     func() time.Time
	policy  StockPolicy
}

// New creates a poster with the default configuration.
func New(storage service.Storage) *Poster {
	return NewWithConfig(storage, DefaultConfig())
}

// NewWithConfig creates a poster with custom configuration.
func NewWithConfig(storage service.Storage, config Config) *Poster {
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.StockPolicy == "" {
		config.StockPolicy = AllowNegative
	}
	return &Poster{
		storage: storage,
		now:     config.Now,
		policy:  config.StockPolicy,
	}
}

// Policy returns the stock policy in effect.
func (p *Poster) Policy() StockPolicy {
	return p.policy
}

// Validate checks a request without touching the store.
func Validate(req PostRequest) error {
	if !req.Type.Valid() {
		return fmt.Errorf("%w: %q", common.ErrInvalidMovementType, req.Type)
	}
	if req.Type.IsAbsolute() {
		if req.PiecesMoved < 0 {
			return fmt.Errorf("%w: inventory count cannot be negative (%d)", common.ErrInvalidQuantity, req.PiecesMoved)
		}
		return nil
	}
	if req.PiecesMoved <= 0 {
		return fmt.Errorf("%w: %s requires a positive quantity (%d)", common.ErrInvalidQuantity, req.Type, req.PiecesMoved)
	}
	return nil
}

// Post records the movement and updates the drug's stock. Either both changes
// are persisted or neither is.
func (p *Poster) Post(ctx context.Context, req PostRequest) (int64, error) {
	if err := Validate(req); err != nil {
		return 0, err
	}

	today := p.today()
	movement := &model.Movement{
		DrugID:            req.DrugID,
		Type:              req.Type,
		PiecesMoved:       req.PiecesMoved,
		DestinationOrigin: strings.TrimSpace(req.DestinationOrigin),
		Signature:         strings.TrimSpace(req.Signature),
		DateMovement:      req.DateMovement,
	}
	if movement.DateMovement.IsZero() {
		movement.DateMovement = today
	}

	err := p.storage.WithTx(ctx, func(tx service.Transaction) error {
		drug, err := tx.GetDrug(ctx, req.DrugID)
		if err != nil {
			return err
		}

		if req.Type == model.MovementExit && p.policy == RejectNegative && drug.CurrentStock-req.PiecesMoved < 0 {
			return fmt.Errorf("%w: %s has %d, exit of %d",
				common.ErrNegativeStock, drug.Label(), drug.CurrentStock, req.PiecesMoved)
		}

		if _, err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}

		if delta, ok := StockDelta(req.Type, req.PiecesMoved); ok {
			return tx.AdjustStock(ctx, req.DrugID, delta)
		}
		return tx.SetStock(ctx, req.DrugID, req.PiecesMoved, today)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to post %s for drug %d: %w", req.Type, req.DrugID, err)
	}

	slog.Debug("Posted movement",
		"movement_id", movement.ID,
		"drug_id", req.DrugID,
		"type", req.Type,
		"pieces", req.PiecesMoved)

	return movement.ID, nil
}

// StockDelta returns the signed change a relative movement applies to stock.
// Inventory movements are absolute and report ok=false.
func StockDelta(t model.MovementType, pieces int) (delta int, ok bool) {
	switch t {
	case model.MovementEntry:
		return pieces, true
	case model.MovementExit:
		return -pieces, true
	default:
		return 0, false
	}
}

func (p *Poster) today() time.Time {
	now := p.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
