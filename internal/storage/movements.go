package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/drug-deposit/internal/common"
	"github.com/Veraticus/drug-deposit/internal/model"
)

const movementColumns = `id, drug_id, movement_type, pieces_moved, destination_origin, date_movement, signature, recorded_at`

// InsertMovement appends a row to the ledger and returns its id.
func (s *SQLiteStorage) InsertMovement(ctx context.Context, movement *model.Movement) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateMovement(movement); err != nil {
		return 0, err
	}
	return s.insertMovementTx(ctx, s.db, movement)
}

func (s *SQLiteStorage) insertMovementTx(ctx context.Context, q queryable, movement *model.Movement) (int64, error) {
	result, err := q.ExecContext(ctx, `
		INSERT INTO movements (drug_id, movement_type, pieces_moved, destination_origin, date_movement, signature)
		VALUES (?, ?, ?, ?, ?, ?)`,
		movement.DrugID,
		string(movement.Type),
		movement.PiecesMoved,
		movement.DestinationOrigin,
		movement.DateMovement.Format(model.DateLayout),
		movement.Signature,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert movement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get movement id: %w", err)
	}
	movement.ID = id
	return id, nil
}

// AdjustStock adds delta to a drug's current stock.
func (s *SQLiteStorage) AdjustStock(ctx context.Context, drugID int64, delta int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.adjustStockTx(ctx, s.db, drugID, delta)
}

func (s *SQLiteStorage) adjustStockTx(ctx context.Context, q queryable, drugID int64, delta int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE drugs SET current_stock = current_stock + ? WHERE id = ?`, delta, drugID)
	if err != nil {
		return fmt.Errorf("failed to adjust stock: %w", err)
	}
	return requireAffected(result, "drug", drugID)
}

// SetStock replaces a drug's stock with a counted value and records the count date.
func (s *SQLiteStorage) SetStock(ctx context.Context, drugID int64, count int, inventoryDate time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.setStockTx(ctx, s.db, drugID, count, inventoryDate)
}

func (s *SQLiteStorage) setStockTx(ctx context.Context, q queryable, drugID int64, count int, inventoryDate time.Time) error {
	result, err := q.ExecContext(ctx,
		`UPDATE drugs SET current_stock = ?, last_inventory_date = ? WHERE id = ?`,
		count, inventoryDate.Format(model.DateLayout), drugID)
	if err != nil {
		return fmt.Errorf("failed to set stock: %w", err)
	}
	return requireAffected(result, "drug", drugID)
}

// MovementsForDrug returns a drug's history, newest first.
func (s *SQLiteStorage) MovementsForDrug(ctx context.Context, drugID int64) ([]model.Movement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.movementsForDrugTx(ctx, s.db, drugID)
}

func (s *SQLiteStorage) movementsForDrugTx(ctx context.Context, q queryable, drugID int64) ([]model.Movement, error) {
	return queryMovements(ctx, q, `SELECT `+movementColumns+` FROM movements
		WHERE drug_id = ?
		ORDER BY date_movement DESC, recorded_at DESC, id DESC`, drugID)
}

// ListMovements returns the full ledger in posting order.
func (s *SQLiteStorage) ListMovements(ctx context.Context) ([]model.Movement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listMovementsTx(ctx, s.db)
}

func (s *SQLiteStorage) listMovementsTx(ctx context.Context, q queryable) ([]model.Movement, error) {
	return queryMovements(ctx, q, `SELECT `+movementColumns+` FROM movements ORDER BY id`)
}

// CorrectMovement rewrites the annotation fields of a movement. Quantities, type and
// date stay as posted.
func (s *SQLiteStorage) CorrectMovement(ctx context.Context, movementID int64, destinationOrigin, signature string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.correctMovementTx(ctx, s.db, movementID, destinationOrigin, signature)
}

func (s *SQLiteStorage) correctMovementTx(ctx context.Context, q queryable, movementID int64, destinationOrigin, signature string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE movements SET destination_origin = ?, signature = ? WHERE id = ?`,
		destinationOrigin, signature, movementID)
	if err != nil {
		return fmt.Errorf("failed to correct movement: %w", err)
	}
	return requireAffected(result, "movement", movementID)
}

func queryMovements(ctx context.Context, q queryable, query string, args ...any) ([]model.Movement, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var movements []model.Movement
	for rows.Next() {
		var (
			m            model.Movement
			movementType string
			date         string
		)
		if err := rows.Scan(
			&m.ID,
			&m.DrugID,
			&movementType,
			&m.PiecesMoved,
			&m.DestinationOrigin,
			&date,
			&m.Signature,
			&m.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		m.Type = model.MovementType(movementType)
		if m.DateMovement, err = parseStoredDate(date); err != nil {
			return nil, fmt.Errorf("invalid date for movement %d: %w", m.ID, err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate movements: %w", err)
	}
	return movements, nil
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func requireAffected(result rowsAffecter, what string, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %d: %w", what, id, common.ErrNotFound)
	}
	return nil
}
