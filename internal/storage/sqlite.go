package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/drug-deposit/internal/common"
	"github.com/Veraticus/drug-deposit/internal/model"
	"github.com/Veraticus/drug-deposit/internal/service"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// queryable is satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ service.Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer: one connection also keeps :memory: databases alive between calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Path returns the database location.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// WithTx runs fn inside a transaction, committing on success and rolling back
// on error or panic.
func (s *SQLiteStorage) WithTx(ctx context.Context, fn func(tx service.Transaction) error) (err error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("Failed to roll back transaction", "error", rbErr)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	return nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main storage with the transaction.
func (t *sqliteTransaction) FindExact(ctx context.Context, name, dose, lote string) (*model.Drug, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return t.storage.findExactTx(ctx, t.tx, name, dose, lote)
}

func (t *sqliteTransaction) ListDrugs(ctx context.Context) ([]model.Drug, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listDrugsTx(ctx, t.tx)
}

func (t *sqliteTransaction) InsertDrug(ctx context.Context, attrs model.DrugAttributes) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateDrugAttributes(attrs); err != nil {
		return 0, err
	}
	return t.storage.insertDrugTx(ctx, t.tx, attrs)
}

func (t *sqliteTransaction) GetDrug(ctx context.Context, id int64) (*model.Drug, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getDrugTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) CurrentStock(ctx context.Context, drugID int64) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return t.storage.currentStockTx(ctx, t.tx, drugID)
}

func (t *sqliteTransaction) InsertMovement(ctx context.Context, movement *model.Movement) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateMovement(movement); err != nil {
		return 0, err
	}
	return t.storage.insertMovementTx(ctx, t.tx, movement)
}

func (t *sqliteTransaction) AdjustStock(ctx context.Context, drugID int64, delta int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.adjustStockTx(ctx, t.tx, drugID, delta)
}

func (t *sqliteTransaction) SetStock(ctx context.Context, drugID int64, count int, inventoryDate time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.setStockTx(ctx, t.tx, drugID, count, inventoryDate)
}

func (t *sqliteTransaction) MovementsForDrug(ctx context.Context, drugID int64) ([]model.Movement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.movementsForDrugTx(ctx, t.tx, drugID)
}

func (t *sqliteTransaction) ListMovements(ctx context.Context) ([]model.Movement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listMovementsTx(ctx, t.tx)
}

func (t *sqliteTransaction) CorrectMovement(ctx context.Context, movementID int64, destinationOrigin, signature string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.correctMovementTx(ctx, t.tx, movementID, destinationOrigin, signature)
}

// isUniqueViolation reports whether err is a SQLite unique constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// wrapNotFound converts sql.ErrNoRows into common.ErrNotFound.
func wrapNotFound(err error, what string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, common.ErrNotFound)
	}
	return err
}
