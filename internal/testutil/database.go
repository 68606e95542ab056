// Package testutil provides test utilities for the drug deposit ledger.
// It offers an isolated in-memory database and helpers to seed the catalog.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/drug-deposit/internal/model"
	"github.com/Veraticus/drug-deposit/internal/service"
	"github.com/Veraticus/drug-deposit/internal/storage"
	"github.com/Veraticus/drug-deposit/internal/testutil/drugs"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
	Drugs   drugs.Drugs
}

// SetupTestDB creates a new in-memory test database seeded with the given drugs,
// in order. It automatically handles migrations and cleanup.
func SetupTestDB(t *testing.T, seed ...model.DrugAttributes) *TestDB {
	t.Helper()
	return SetupTestDBWithBuilder(t, func(b drugs.Builder) drugs.Builder {
		return b.WithDrugs(seed...)
	})
}

// SetupTestDBWithBuilder creates a test database using a catalog builder.
//
// Example:
//
//	db := testutil.SetupTestDBWithBuilder(t, func(b drugs.Builder) drugs.Builder {
//		return b.WithFixture(drugs.FixtureBasicPharmacy)
//	})
func SetupTestDBWithBuilder(t *testing.T, configure func(drugs.Builder) drugs.Builder) *TestDB {
	t.Helper()

	builder := drugs.NewBuilder(t)
	if configure != nil {
		builder = configure(builder)
	}

	store := newMigratedStorage(t)

	seeded, err := builder.Build(context.Background(), store)
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}

	return &TestDB{
		Storage: store,
		Drugs:   seeded,
		t:       t,
	}
}

func newMigratedStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// MustGetDrug returns the seeded drug with the given name or fails the test.
func (db *TestDB) MustGetDrug(name string) model.Drug {
	db.t.Helper()
	return db.Drugs.MustFind(db.t, name)
}

// Stock returns the stored stock of a drug or fails the test.
func (db *TestDB) Stock(id int64) int {
	db.t.Helper()
	stock, err := db.Storage.CurrentStock(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to read stock: %v", err)
	}
	return stock
}

// CountRows returns the number of rows in drugs or movements.
func (db *TestDB) CountRows(table string) int {
	db.t.Helper()
	ctx := context.Background()
	var (
		n   int
		err error
	)
	switch table {
	case "drugs":
		var all []model.Drug
		all, err = db.Storage.ListDrugs(ctx)
		n = len(all)
	case "movements":
		var all []model.Movement
		all, err = db.Storage.ListMovements(ctx)
		n = len(all)
	default:
		err = fmt.Errorf("unknown table %q", table)
	}
	if err != nil {
		db.t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}

// WithTransaction executes fn within a transaction that is always rolled back.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}
