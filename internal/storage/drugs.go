package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/drug-deposit/internal/common"
	"github.com/Veraticus/drug-deposit/internal/model"
)

const drugColumns = `id, name, dose, units, expiration, pieces_per_box, type, lote, current_stock, last_inventory_date`

// FindExact returns the first drug whose name matches case-insensitively and whose
// dose and lote match when they are given. It returns nil when nothing matches.
func (s *SQLiteStorage) FindExact(ctx context.Context, name, dose, lote string) (*model.Drug, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return s.findExactTx(ctx, s.db, name, dose, lote)
}

func (s *SQLiteStorage) findExactTx(ctx context.Context, q queryable, name, dose, lote string) (*model.Drug, error) {
	var (
		clauses = []string{"name = ? COLLATE NOCASE"}
		args    = []any{strings.TrimSpace(name)}
	)
	if dose = strings.TrimSpace(dose); dose != "" {
		clauses = append(clauses, "dose = ? COLLATE NOCASE")
		args = append(args, dose)
	}
	if lote = strings.TrimSpace(lote); lote != "" {
		clauses = append(clauses, "lote = ? COLLATE NOCASE")
		args = append(args, lote)
	}

	query := `SELECT ` + drugColumns + ` FROM drugs WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY id LIMIT 1`

	drug, err := scanDrug(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find drug: %w", err)
	}
	return drug, nil
}

// ListDrugs returns the whole catalog ordered by name.
func (s *SQLiteStorage) ListDrugs(ctx context.Context) ([]model.Drug, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listDrugsTx(ctx, s.db)
}

func (s *SQLiteStorage) listDrugsTx(ctx context.Context, q queryable) ([]model.Drug, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+drugColumns+` FROM drugs ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query drugs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var drugs []model.Drug
	for rows.Next() {
		drug, err := scanDrug(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan drug: %w", err)
		}
		drugs = append(drugs, *drug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate drugs: %w", err)
	}
	return drugs, nil
}

// InsertDrug creates a catalog entry and returns its id.
func (s *SQLiteStorage) InsertDrug(ctx context.Context, attrs model.DrugAttributes) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateDrugAttributes(attrs); err != nil {
		return 0, err
	}
	return s.insertDrugTx(ctx, s.db, attrs)
}

func (s *SQLiteStorage) insertDrugTx(ctx context.Context, q queryable, attrs model.DrugAttributes) (int64, error) {
	inventoryDate := model.EpochInventoryDate
	if attrs.LastInventoryDate != nil {
		inventoryDate = *attrs.LastInventoryDate
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO drugs (name, dose, units, expiration, pieces_per_box, type, lote, current_stock, last_inventory_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(attrs.Name),
		strings.TrimSpace(attrs.Dose),
		strings.TrimSpace(attrs.Units),
		strings.TrimSpace(attrs.Expiration),
		attrs.PiecesPerBox,
		strings.TrimSpace(attrs.Type),
		strings.TrimSpace(attrs.Lote),
		attrs.CurrentStock,
		inventoryDate.Format(model.DateLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("drug %q: %w", attrs.Name, common.ErrDuplicateEntry)
		}
		return 0, fmt.Errorf("failed to insert drug: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get drug id: %w", err)
	}
	return id, nil
}

// GetDrug retrieves a drug by id.
func (s *SQLiteStorage) GetDrug(ctx context.Context, id int64) (*model.Drug, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getDrugTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getDrugTx(ctx context.Context, q queryable, id int64) (*model.Drug, error) {
	drug, err := scanDrug(q.QueryRowContext(ctx, `SELECT `+drugColumns+` FROM drugs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, wrapNotFound(err, "drug", id)
		}
		return nil, fmt.Errorf("failed to get drug: %w", err)
	}
	return drug, nil
}

// CurrentStock returns the stored piece count, or 0 for an unknown drug.
func (s *SQLiteStorage) CurrentStock(ctx context.Context, drugID int64) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return s.currentStockTx(ctx, s.db, drugID)
}

func (s *SQLiteStorage) currentStockTx(ctx context.Context, q queryable, drugID int64) (int, error) {
	var stock int
	err := q.QueryRowContext(ctx, `SELECT current_stock FROM drugs WHERE id = ?`, drugID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get current stock: %w", err)
	}
	return stock, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDrug(row rowScanner) (*model.Drug, error) {
	var (
		drug          model.Drug
		inventoryDate string
	)
	if err := row.Scan(
		&drug.ID,
		&drug.Name,
		&drug.Dose,
		&drug.Units,
		&drug.Expiration,
		&drug.PiecesPerBox,
		&drug.Type,
		&drug.Lote,
		&drug.CurrentStock,
		&inventoryDate,
	); err != nil {
		return nil, err
	}

	parsed, err := parseStoredDate(inventoryDate)
	if err != nil {
		return nil, fmt.Errorf("invalid last inventory date for drug %d: %w", drug.ID, err)
	}
	drug.LastInventoryDate = parsed
	return &drug, nil
}

// parseStoredDate reads a calendar date column, tolerating a trailing time part.
func parseStoredDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if len(value) > len(model.DateLayout) {
		value = value[:len(model.DateLayout)]
	}
	return time.Parse(model.DateLayout, value)
}
