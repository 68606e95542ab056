package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/drug-deposit/internal/common"
	"github.com/Veraticus/drug-deposit/internal/storage"
)

type testEnv struct {
	t      *testing.T
	dir    string
	dbPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DEPOSIT_LLM_API_KEY", "")
	t.Cleanup(viper.Reset)
	return &testEnv{t: t, dir: dir, dbPath: filepath.Join(dir, "deposit.db")}
}

func (e *testEnv) run(stdin string, args ...string) (string, error) {
	e.t.Helper()
	viper.Reset()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--db", e.dbPath, "--log-level", "error"}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run("", args...)
	require.NoError(e.t, err, out)
	return out
}

func (e *testEnv) writeCSV(name string, rows ...[]string) string {
	e.t.Helper()
	path := filepath.Join(e.dir, name)
	f, err := os.Create(path)
	require.NoError(e.t, err)
	w := csv.NewWriter(f)
	require.NoError(e.t, w.Write([]string{"name", "dose", "units", "lote", "movement_type", "pieces_moved", "destination_origin", "date_movement", "signature"}))
	require.NoError(e.t, w.WriteAll(rows))
	require.NoError(e.t, f.Close())
	return path
}

func (e *testEnv) store() *storage.SQLiteStorage {
	e.t.Helper()
	store, err := storage.NewSQLiteStorage(e.dbPath)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestVersionCommand(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun("version")
	assert.Contains(t, out, "deposit version dev")
}

func TestInitDBAndMigrateStatus(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun("init-db")
	assert.Contains(t, out, "Database ready")
	assert.FileExists(t, env.dbPath)

	out = env.mustRun("migrate", "--status")
	assert.Contains(t, out, "Schema version 3 of 3")
	assert.NotContains(t, out, "Pending migrations")

	out = env.mustRun("migrate")
	assert.Contains(t, out, "migrated to version 3")
}

func TestDrugsAddAndList(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun("drugs", "add", "Paracetamol", "--dose", "500", "--units", "mg", "--lote", "L1")
	assert.Contains(t, out, "Added drug 1: Paracetamol")

	_, err := env.run("", "drugs", "add", "paracetamol", "--dose", "500", "--lote", "l1")
	require.ErrorIs(t, err, common.ErrDuplicateEntry)

	env.mustRun("drugs", "add", "Ibuprofen")
	out = env.mustRun("drugs", "list", "--limit", "1")
	assert.Contains(t, out, "Total drugs: 2")
	assert.Contains(t, out, "Ibuprofen")
	assert.Contains(t, out, "... and 1 more drugs")
}

func TestDrugsListEmpty(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun("drugs", "list")
	assert.Contains(t, out, "No drugs in database.")
}

func TestPostHistoryAndCorrect(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("drugs", "add", "Amoxicillin", "--dose", "500")

	out := env.mustRun("post", "1", "entry", "30", "--dest", "Farmacia", "--date", "2024-03-01", "--signature", "Ana")
	assert.Contains(t, out, "Entry of 30 pieces. New stock: 30")

	out = env.mustRun("post", "1", "exit", "40")
	assert.Contains(t, out, "New stock: -10")

	_, err := env.run("", "post", "1", "exit", "5", "--stock-policy", "reject-negative")
	require.ErrorIs(t, err, common.ErrNegativeStock)

	_, err = env.run("", "post", "1", "transfer", "5")
	require.ErrorIs(t, err, common.ErrInvalidMovementType)

	_, err = env.run("", "post", "99", "entry", "5")
	require.ErrorIs(t, err, common.ErrNotFound)

	out = env.mustRun("post", "1", "inventory", "0")
	assert.Contains(t, out, "New stock: 0")

	out = env.mustRun("history", "1")
	assert.Contains(t, out, "Drug: Amoxicillin 500 (ID: 1)")
	assert.Contains(t, out, "Current Stock: 0")
	assert.Contains(t, out, "Movements (3):")
	assert.Contains(t, out, "Dest/Origin: Farmacia")

	out = env.mustRun("correct", "1", "--signature", "Ana Lima")
	assert.Contains(t, out, "Movement 1 corrected")

	movements, err := env.store().MovementsForDrug(context.Background(), 1)
	require.NoError(t, err)
	var corrected bool
	for _, m := range movements {
		if m.ID == 1 {
			corrected = true
			assert.Equal(t, "Ana Lima", m.Signature)
			assert.Equal(t, "Farmacia", m.DestinationOrigin)
		}
	}
	assert.True(t, corrected)

	_, err = env.run("", "correct", "1")
	assert.Error(t, err)
	_, err = env.run("", "correct", "42", "--dest", "x")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestHistoryUnknownDrug(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run("", "history", "7")
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Contains(t, err.Error(), "Drug ID 7 not found")
}

func TestImportWithoutReview(t *testing.T) {
	env := newTestEnv(t)
	path := env.writeCSV("batch.csv",
		[]string{"Paracetamol", "500", "mg", "L1", "entry", "50", "Farmacia", "2024-03-01", "Ana"},
		[]string{"Paracetamol", "500", "mg", "L1", "exit", "abc", "", "", ""},
		[]string{"", "", "", "", "", "", "", "", ""},
	)

	out := env.mustRun("import", "--review=false", path)
	assert.Contains(t, out, "Entry of 50 pieces. New stock: 50")
	assert.Contains(t, out, "[invalid_quantity]")
	assert.Contains(t, out, "Empty row")
	assert.Contains(t, out, "Processed: 1")

	stock, err := env.store().CurrentStock(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 50, stock)
}

func TestImportReviewDeclined(t *testing.T) {
	env := newTestEnv(t)
	path := env.writeCSV("batch.csv",
		[]string{"Paracetamol", "500", "mg", "L1", "entry", "50", "", "", ""},
	)

	out, err := env.run("n\n", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "MOVEMENTS TO IMPORT: 1")
	assert.Contains(t, out, "Import cancelled by user")

	drugs, err := env.store().ListDrugs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, drugs)
}

func TestImportReviewApproved(t *testing.T) {
	env := newTestEnv(t)
	path := env.writeCSV("batch.csv",
		[]string{"Paracetamol", "500", "mg", "L1", "entry", "50", "", "", ""},
	)

	out, err := env.run("y\n", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "New stock: 50")
}

func TestImportMultipleFiles(t *testing.T) {
	env := newTestEnv(t)
	first := env.writeCSV("a.csv", []string{"Dipirona", "1", "g", "", "entry", "10", "", "", ""})
	second := env.writeCSV("b.csv", []string{"Dipirona", "1", "g", "", "exit", "3", "", "", ""})
	missing := filepath.Join(env.dir, "missing.csv")

	out, err := env.run("", "import", "--review=false", first, missing, second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 files could not be imported")
	assert.Contains(t, out, "New stock: 7")

	stock, err := env.store().CurrentStock(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 7, stock)
}

func TestImportInvalidStockPolicy(t *testing.T) {
	env := newTestEnv(t)
	path := env.writeCSV("batch.csv", []string{"Paracetamol", "", "", "", "entry", "1", "", "", ""})

	_, err := env.run("", "import", "--review=false", "--stock-policy", "sometimes", path)
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("drugs", "add", "Paracetamol", "--dose", "500")
	env.mustRun("post", "1", "entry", "5", "--date", "2024-03-01")

	out := env.mustRun("export", "drugs")
	assert.Contains(t, out, "Paracetamol")

	target := filepath.Join(env.dir, "movements.csv")
	out = env.mustRun("export", "movements", "-o", target)
	assert.Contains(t, out, "Exported 1 movements")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2024-03-01")

	_, err = env.run("", "export", "everything")
	assert.Error(t, err)
}

func TestExtractRequiresCredentials(t *testing.T) {
	env := newTestEnv(t)
	text := filepath.Join(env.dir, "dictation.txt")
	require.NoError(t, os.WriteFile(text, []byte("entrada de dez paracetamol"), 0o600))

	_, err := env.run("", "extract", text)
	require.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestReadTranscriptionText(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "a_transcription.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"text": "saida de cinco"}`), 0o600))
	txtPath := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("entrada de dez"), 0o600))

	got, err := readTranscriptionText(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "saida de cinco", got)

	got, err = readTranscriptionText(txtPath)
	require.NoError(t, err)
	assert.Equal(t, "entrada de dez", got)
}

func TestConfigFileAndEnv(t *testing.T) {
	env := newTestEnv(t)
	cfgDir := filepath.Join(env.dir, ".config", "deposit")
	require.NoError(t, os.MkdirAll(cfgDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.yaml"),
		[]byte("ledger:\n  stock_policy: reject-negative\n"), 0o600))

	env.mustRun("drugs", "add", "Ibuprofen")
	_, err := env.run("", "post", "1", "exit", "1")
	require.ErrorIs(t, err, common.ErrNegativeStock)

	t.Setenv("DEPOSIT_LEDGER_STOCK_POLICY", "allow-negative")
	out := env.mustRun("post", "1", "exit", "1")
	assert.Contains(t, out, "New stock: -1")
}
