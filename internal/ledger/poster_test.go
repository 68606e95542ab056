package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/drug-deposit/internal/common"
	"github.com/Veraticus/drug-deposit/internal/model"
	"github.com/Veraticus/drug-deposit/internal/service"
	"github.com/Veraticus/drug-deposit/internal/storage"
	"github.com/Veraticus/drug-deposit/internal/testutil"
)

func fixedClock(year int, month time.Month, day int) func() time.Time {
	return func() time.Time {
		return time.Date(year, month, day, 15, 30, 0, 0, time.UTC)
	}
}

func TestPoster_Additivity(t *testing.T) {
	tests := []struct {
		name      string
		movements []PostRequest
		wantStock int
	}{
		{
			name:      "single entry",
			movements: []PostRequest{{Type: model.MovementEntry, PiecesMoved: 50}},
			wantStock: 50,
		},
		{
			name: "entries and exits",
			movements: []PostRequest{
				{Type: model.MovementEntry, PiecesMoved: 50},
				{Type: model.MovementExit, PiecesMoved: 20},
				{Type: model.MovementEntry, PiecesMoved: 5},
				{Type: model.MovementExit, PiecesMoved: 1},
			},
			wantStock: 34,
		},
		{
			name: "exit below zero is allowed by default",
			movements: []PostRequest{
				{Type: model.MovementEntry, PiecesMoved: 10},
				{Type: model.MovementExit, PiecesMoved: 30},
			},
			wantStock: -20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t, model.DrugAttributes{Name: "Paracetamol"})
			drug := db.MustGetDrug("Paracetamol")
			poster := New(db.Storage)
			ctx := context.Background()

			for _, req := range tt.movements {
				req.DrugID = drug.ID
				id, err := poster.Post(ctx, req)
				require.NoError(t, err)
				assert.Positive(t, id)
			}

			assert.Equal(t, tt.wantStock, db.Stock(drug.ID))
			assert.Equal(t, len(tt.movements), db.CountRows("movements"))
		})
	}
}

func TestPoster_InventoryIdempotence(t *testing.T) {
	db := testutil.SetupTestDB(t, model.DrugAttributes{Name: "Ibuprofen", CurrentStock: 7})
	drug := db.MustGetDrug("Ibuprofen")
	ctx := context.Background()

	first := NewWithConfig(db.Storage, Config{Now: fixedClock(2024, time.March, 1)})
	_, err := first.Post(ctx, PostRequest{DrugID: drug.ID, Type: model.MovementInventory, PiecesMoved: 40})
	require.NoError(t, err)

	got, err := db.Storage.GetDrug(ctx, drug.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.CurrentStock)
	assert.Equal(t, "2024-03-01", got.LastInventoryDate.Format(model.DateLayout))

	second := NewWithConfig(db.Storage, Config{Now: fixedClock(2024, time.March, 2)})
	_, err = second.Post(ctx, PostRequest{DrugID: drug.ID, Type: model.MovementInventory, PiecesMoved: 40})
	require.NoError(t, err)

	got, err = db.Storage.GetDrug(ctx, drug.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.CurrentStock)
	assert.Equal(t, "2024-03-02", got.LastInventoryDate.Format(model.DateLayout))
	assert.True(t, got.HasBeenCounted())
}

func TestPoster_InventoryOfZero(t *testing.T) {
	db := testutil.SetupTestDB(t, model.DrugAttributes{Name: "Heparin", CurrentStock: 12})
	drug := db.MustGetDrug("Heparin")

	_, err := New(db.Storage).Post(context.Background(), PostRequest{DrugID: drug.ID, Type: model.MovementInventory})
	require.NoError(t, err)
	assert.Equal(t, 0, db.Stock(drug.ID))
}

func TestPoster_DefaultsDateToProcessingDay(t *testing.T) {
	db := testutil.SetupTestDB(t, model.DrugAttributes{Name: "Omeprazole"})
	drug := db.MustGetDrug("Omeprazole")
	ctx := context.Background()

	poster := NewWithConfig(db.Storage, Config{Now: fixedClock(2024, time.July, 9)})
	_, err := poster.Post(ctx, PostRequest{DrugID: drug.ID, Type: model.MovementEntry, PiecesMoved: 3, Signature: " JS "})
	require.NoError(t, err)

	explicit := time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)
	_, err = poster.Post(ctx, PostRequest{DrugID: drug.ID, Type: model.MovementEntry, PiecesMoved: 3, DateMovement: explicit})
	require.NoError(t, err)

	movements, err := db.Storage.ListMovements(ctx)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, "2024-07-09", movements[0].DateMovement.Format(model.DateLayout))
	assert.Equal(t, "JS", movements[0].Signature)
	assert.Equal(t, "2024-06-30", movements[1].DateMovement.Format(model.DateLayout))
}

func TestPoster_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     PostRequest
		wantErr error
	}{
		{name: "unknown type", req: PostRequest{Type: "transfer", PiecesMoved: 1}, wantErr: common.ErrInvalidMovementType},
		{name: "empty type", req: PostRequest{PiecesMoved: 1}, wantErr: common.ErrInvalidMovementType},
		{name: "zero entry", req: PostRequest{Type: model.MovementEntry}, wantErr: common.ErrInvalidQuantity},
		{name: "negative exit", req: PostRequest{Type: model.MovementExit, PiecesMoved: -4}, wantErr: common.ErrInvalidQuantity},
		{name: "negative inventory", req: PostRequest{Type: model.MovementInventory, PiecesMoved: -1}, wantErr: common.ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t, model.DrugAttributes{Name: "Aspirin", CurrentStock: 5})
			drug := db.MustGetDrug("Aspirin")
			tt.req.DrugID = drug.ID

			_, err := New(db.Storage).Post(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 5, db.Stock(drug.ID))
			assert.Equal(t, 0, db.CountRows("movements"))
		})
	}
}

func TestPoster_UnknownDrug(t *testing.T) {
	db := testutil.SetupTestDB(t)

	_, err := New(db.Storage).Post(context.Background(), PostRequest{DrugID: 404, Type: model.MovementEntry, PiecesMoved: 1})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, 0, db.CountRows("movements"))
}

func TestPoster_RejectNegative(t *testing.T) {
	db := testutil.SetupTestDB(t, model.DrugAttributes{Name: "Morphine", CurrentStock: 10})
	drug := db.MustGetDrug("Morphine")
	ctx := context.Background()

	poster := NewWithConfig(db.Storage, Config{StockPolicy: RejectNegative})
	assert.Equal(t, RejectNegative, poster.Policy())

	_, err := poster.Post(ctx, PostRequest{DrugID: drug.ID, Type: model.MovementExit, PiecesMoved: 11})
	assert.ErrorIs(t, err, common.ErrNegativeStock)
	assert.Equal(t, 10, db.Stock(drug.ID))
	assert.Equal(t, 0, db.CountRows("movements"))

	_, err = poster.Post(ctx, PostRequest{DrugID: drug.ID, Type: model.MovementExit, PiecesMoved: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, db.Stock(drug.ID))
}

func TestParseStockPolicy(t *testing.T) {
	tests := []struct {
		raw     string
		want    StockPolicy
		wantErr bool
	}{
		{raw: "", want: AllowNegative},
		{raw: "allow-negative", want: AllowNegative},
		{raw: " Reject-Negative ", want: RejectNegative},
		{raw: "floor", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseStockPolicy(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

var errStockUpdate = errors.New("stock update failed")

// failingStockStorage runs real SQLite transactions but fails the stock update
// that follows the movement insert.
type failingStockStorage struct {
	*storage.SQLiteStorage
}

func (s failingStockStorage) WithTx(ctx context.Context, fn func(tx service.Transaction) error) error {
	return s.SQLiteStorage.WithTx(ctx, func(tx service.Transaction) error {
		return fn(failingStockTx{Transaction: tx})
	})
}

type failingStockTx struct {
	service.Transaction
}

func (failingStockTx) AdjustStock(context.Context, int64, int) error {
	return errStockUpdate
}

func (failingStockTx) SetStock(context.Context, int64, int, time.Time) error {
	return errStockUpdate
}

func TestPoster_AtomicOnSQLite(t *testing.T) {
	for _, movementType := range model.MovementTypes {
		t.Run(string(movementType), func(t *testing.T) {
			db := testutil.SetupTestDB(t, model.DrugAttributes{Name: "Insulin", CurrentStock: 20})
			drug := db.MustGetDrug("Insulin")

			poster := New(failingStockStorage{SQLiteStorage: db.Storage})
			_, err := poster.Post(context.Background(), PostRequest{DrugID: drug.ID, Type: movementType, PiecesMoved: 5})

			assert.ErrorIs(t, err, errStockUpdate)
			assert.Equal(t, 0, db.CountRows("movements"))
			assert.Equal(t, 20, db.Stock(drug.ID))
		})
	}
}

// stagedStorage is an in-memory unit of work that only publishes staged
// changes when fn succeeds.
type stagedStorage struct {
	service.Storage
	drugs     map[int64]model.Drug
	movements []model.Movement
	failStock bool
}

type stagedTx struct {
	service.Transaction
	parent    *stagedStorage
	drugs     map[int64]model.Drug
	movements []model.Movement
}

func (s *stagedStorage) WithTx(_ context.Context, fn func(tx service.Transaction) error) error {
	tx := &stagedTx{parent: s, drugs: make(map[int64]model.Drug, len(s.drugs))}
	for id, d := range s.drugs {
		tx.drugs[id] = d
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.drugs = tx.drugs
	s.movements = append(s.movements, tx.movements...)
	return nil
}

func (t *stagedTx) GetDrug(_ context.Context, id int64) (*model.Drug, error) {
	d, ok := t.drugs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &d, nil
}

func (t *stagedTx) InsertMovement(_ context.Context, m *model.Movement) (int64, error) {
	m.ID = int64(len(t.parent.movements) + len(t.movements) + 1)
	t.movements = append(t.movements, *m)
	return m.ID, nil
}

func (t *stagedTx) AdjustStock(_ context.Context, id int64, delta int) error {
	if t.parent.failStock {
		return errStockUpdate
	}
	d := t.drugs[id]
	d.CurrentStock += delta
	t.drugs[id] = d
	return nil
}

func (t *stagedTx) SetStock(_ context.Context, id int64, count int, date time.Time) error {
	if t.parent.failStock {
		return errStockUpdate
	}
	d := t.drugs[id]
	d.CurrentStock = count
	d.LastInventoryDate = date
	t.drugs[id] = d
	return nil
}

func TestPoster_AtomicWithStagedStore(t *testing.T) {
	store := &stagedStorage{
		drugs:     map[int64]model.Drug{1: {ID: 1, Name: "Codeine", CurrentStock: 8}},
		failStock: true,
	}
	poster := New(store)

	_, err := poster.Post(context.Background(), PostRequest{DrugID: 1, Type: model.MovementEntry, PiecesMoved: 2})
	assert.ErrorIs(t, err, errStockUpdate)
	assert.Empty(t, store.movements)
	assert.Equal(t, 8, store.drugs[1].CurrentStock)

	store.failStock = false
	id, err := poster.Post(context.Background(), PostRequest{DrugID: 1, Type: model.MovementExit, PiecesMoved: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Len(t, store.movements, 1)
	assert.Equal(t, 6, store.drugs[1].CurrentStock)
}

func TestStockDelta(t *testing.T) {
	delta, ok := StockDelta(model.MovementEntry, 4)
	assert.True(t, ok)
	assert.Equal(t, 4, delta)

	delta, ok = StockDelta(model.MovementExit, 4)
	assert.True(t, ok)
	assert.Equal(t, -4, delta)

	_, ok = StockDelta(model.MovementInventory, 4)
	assert.False(t, ok)
}
