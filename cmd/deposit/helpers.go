package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/drug-deposit/internal/config"
	"github.com/Veraticus/drug-deposit/internal/importer"
	"github.com/Veraticus/drug-deposit/internal/ledger"
	"github.com/Veraticus/drug-deposit/internal/llm"
	"github.com/Veraticus/drug-deposit/internal/storage"
)

// bindFlags binds command flags to viper keys when the command runs, so two
// commands can share a key without the last one registered winning.
func bindFlags(keys map[string]string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		for key, name := range keys {
			flag := cmd.Flags().Lookup(name)
			if flag == nil {
				return fmt.Errorf("unknown flag %q for %s", name, key)
			}
			if err := viper.BindPFlag(key, flag); err != nil {
				return fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
		return nil
	}
}

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.DatabasePath(viper.GetString("database.path"))

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		closeStorage(store)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func closeStorage(store *storage.SQLiteStorage) {
	if err := store.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

func ledgerConfig() (ledger.Config, error) {
	policy, err := ledger.ParseStockPolicy(viper.GetString("ledger.stock_policy"))
	if err != nil {
		return ledger.Config{}, err
	}
	cfg := ledger.DefaultConfig()
	cfg.StockPolicy = policy
	return cfg, nil
}

func newImporter(store *storage.SQLiteStorage) (*importer.Importer, error) {
	ledgerCfg, err := ledgerConfig()
	if err != nil {
		return nil, err
	}

	cfg := importer.DefaultConfig()
	cfg.Ledger = ledgerCfg
	cfg.Encoding = viper.GetString("import.encoding")
	cfg.AutoCreate = viper.GetBool("import.auto_create")
	return importer.NewWithConfig(store, cfg), nil
}

func llmConfig() llm.Config {
	return llm.Config{
		APIKey:             viper.GetString("llm.api_key"),
		BaseURL:            viper.GetString("llm.base_url"),
		Model:              viper.GetString("llm.model"),
		TranscriptionModel: viper.GetString("llm.transcription_model"),
		Language:           viper.GetString("llm.language"),
		Timeout:            viper.GetDuration("llm.timeout"),
		RetryDelay:         time.Second,
		MaxRetries:         viper.GetInt("llm.max_retries"),
		RateLimit:          viper.GetInt("llm.rate_limit"),
	}
}

func writeln(w io.Writer, a ...any) {
	if _, err := fmt.Fprintln(w, a...); err != nil {
		slog.Warn("Failed to write output", "error", err)
	}
}
