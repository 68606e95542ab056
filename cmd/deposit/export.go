package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/drug-deposit/internal/cli"
	"github.com/Veraticus/drug-deposit/internal/config"
	"github.com/Veraticus/drug-deposit/internal/importer"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "export drugs|movements",
		Short:     "Export the catalog or the ledger as CSV",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"drugs", "movements"},
		RunE:      runExport,
	}

	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	var w io.Writer = cmd.OutOrStdout()
	outPath, _ := cmd.Flags().GetString("output")
	if outPath != "" {
		outPath = config.ExpandPath(outPath)
		f, err := os.Create(outPath) //nolint:gosec // path is chosen by the operator
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", outPath, err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close %s: %w", outPath, cerr)
			}
		}()
		w = f
	}

	var count int
	switch args[0] {
	case "drugs":
		drugs, err := store.ListDrugs(ctx)
		if err != nil {
			return err
		}
		if err := importer.WriteDrugsCSV(w, drugs); err != nil {
			return err
		}
		count = len(drugs)
	case "movements":
		movements, err := store.ListMovements(ctx)
		if err != nil {
			return err
		}
		if err := importer.WriteMovementsCSV(w, movements); err != nil {
			return err
		}
		count = len(movements)
	}

	slog.Debug("Exported rows", "kind", args[0], "count", count)
	if outPath != "" {
		writeln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Exported %d %s to %s", count, args[0], outPath)))
	}
	return nil
}
