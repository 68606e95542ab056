package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial drug catalog and movement ledger",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS drugs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					dose TEXT NOT NULL DEFAULT '',
					units TEXT NOT NULL DEFAULT '',
					expiration TEXT NOT NULL DEFAULT '',
					pieces_per_box INTEGER NOT NULL DEFAULT 0,
					type TEXT NOT NULL DEFAULT '',
					lote TEXT NOT NULL DEFAULT '',
					current_stock INTEGER NOT NULL DEFAULT 0,
					last_inventory_date TEXT NOT NULL DEFAULT '1990-01-01'
				)`,
				`CREATE INDEX IF NOT EXISTS idx_drugs_name ON drugs(name)`,

				`CREATE TABLE IF NOT EXISTS movements (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					drug_id INTEGER NOT NULL,
					movement_type TEXT NOT NULL CHECK (movement_type IN ('entry', 'exit', 'inventory')),
					pieces_moved INTEGER NOT NULL,
					destination_origin TEXT NOT NULL DEFAULT '',
					date_movement TEXT NOT NULL,
					signature TEXT NOT NULL DEFAULT '',
					recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (drug_id) REFERENCES drugs(id)
				)`,

				// Any edit to a movement re-stamps its recording time.
				`CREATE TRIGGER IF NOT EXISTS trg_movements_recorded_at
				AFTER UPDATE OF movement_type, pieces_moved, destination_origin, date_movement, signature ON movements
				FOR EACH ROW
				BEGIN
					UPDATE movements SET recorded_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
				END`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Unique drug identity and movement lookup index",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_drugs_identity
					ON drugs(name COLLATE NOCASE, dose COLLATE NOCASE, lote COLLATE NOCASE)`,
				`CREATE INDEX IF NOT EXISTS idx_movements_drug ON movements(drug_id, date_movement)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Re-stamp recorded_at when a movement changes drug",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`DROP TRIGGER IF EXISTS trg_movements_recorded_at`,
				`CREATE TRIGGER trg_movements_recorded_at
				AFTER UPDATE OF drug_id, movement_type, pieces_moved, destination_origin, date_movement, signature ON movements
				FOR EACH ROW
				BEGIN
					UPDATE movements SET recorded_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
				END`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the database's current user_version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
