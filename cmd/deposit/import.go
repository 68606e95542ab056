package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/drug-deposit/internal/cli"
	"github.com/Veraticus/drug-deposit/internal/common"
	"github.com/Veraticus/drug-deposit/internal/importer"
	"github.com/Veraticus/drug-deposit/internal/tui"
	"github.com/Veraticus/drug-deposit/internal/tui/themes"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE.csv [FILE.csv...]",
		Short: "Import candidate rows from CSV files",
		Long: `Import drug movements from CSV files produced by extraction or typed by hand.

Each row is matched against the drug catalog, missing drugs are created when
auto-create is on, and the movement is posted to the ledger. A failing row is
reported and the rest of the batch continues.`,
		Args:    cobra.MinimumNArgs(1),
		PreRunE: bindFlags(importFlagKeys),
		RunE:    runImport,
	}

	addImportFlags(cmd)
	return cmd
}

var importFlagKeys = map[string]string{
	"import.review":       "review",
	"import.tui":          "tui",
	"import.auto_create":  "auto-create",
	"import.encoding":     "encoding",
	"ledger.stock_policy": "stock-policy",
}

func addImportFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("review", true, "Review rows before importing")
	cmd.Flags().Bool("tui", false, "Review in the full-screen table instead of the line prompt")
	cmd.Flags().Bool("auto-create", true, "Create drugs that are not in the catalog")
	cmd.Flags().String("encoding", "utf-8", "CSV encoding (utf-8, latin1, windows-1252)")
	cmd.Flags().String("stock-policy", "allow-negative", "Exit handling when stock would go negative (allow-negative, reject-negative)")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	imp, err := newImporter(store)
	if err != nil {
		return err
	}

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx = handler.HandleInterrupts(ctx, true)
	defer handler.Stop()

	var results []importer.FileResult
	switch reviewer := newReviewer(cmd); {
	case reviewer != nil:
		// Each file is its own batch and is confirmed on its own.
		for _, path := range args {
			writeln(out, cli.FormatTitle("Importing "+path))
			result, err := imp.ImportFile(ctx, path, reviewer)
			results = append(results, importer.FileResult{Path: path, Result: result, Err: err})
		}
	case len(args) == 1:
		result, err := imp.ImportFile(ctx, args[0], nil)
		results = append(results, importer.FileResult{Path: args[0], Result: result, Err: err})
	default:
		bar := cli.NewFileProgress(cmd.ErrOrStderr(), len(args))
		results = imp.ImportFiles(ctx, args, func(importer.FileResult) {
			if err := bar.Add(1); err != nil {
				slog.Warn("Failed to update progress bar", "error", err)
			}
		})
	}

	var failed int
	for _, fr := range results {
		if err := reportImport(cmd, fr.Path, fr.Result, fr.Err); err != nil {
			failed++
		}
	}
	if failed > 0 {
		if len(results) == 1 {
			return fmt.Errorf("failed to import %s: %w", results[0].Path, results[0].Err)
		}
		return fmt.Errorf("%d of %d files could not be imported", failed, len(results))
	}
	return nil
}

func newReviewer(cmd *cobra.Command) importer.Reviewer {
	if !viper.GetBool("import.review") {
		return nil
	}
	if viper.GetBool("import.tui") {
		return tui.NewReviewer(tui.WithTheme(themes.ByName(viper.GetString("tui.theme"))))
	}
	return cli.NewReviewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
}

// reportImport prints the outcome of one file. A declined review is not an error.
func reportImport(cmd *cobra.Command, path string, result *importer.BatchResult, err error) error {
	out := cmd.OutOrStdout()

	if result != nil {
		writeln(out, cli.FormatBatchResult(result))
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrImportCancelled):
		writeln(out, cli.FormatWarning("Import cancelled by user: "+path))
		return nil
	case errors.Is(err, common.ErrNoRows):
		writeln(out, cli.FormatWarning("No rows found in "+path))
		return nil
	default:
		writeln(cmd.ErrOrStderr(), cli.FormatError(fmt.Sprintf("%s: %v", path, err)))
		return err
	}
}
