package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/drug-deposit/internal/cli"
	"github.com/Veraticus/drug-deposit/internal/model"
)

func drugsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drugs",
		Short: "Manage the drug catalog",
	}

	cmd.AddCommand(drugsListCmd())
	cmd.AddCommand(drugsAddCmd())

	return cmd
}

func drugsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List drugs with their current stock",
		Args:  cobra.NoArgs,
		RunE:  runDrugsList,
	}

	cmd.Flags().IntP("limit", "n", 20, "Number of drugs to show (0 for all)")

	return cmd
}

func runDrugsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	drugs, err := store.ListDrugs(ctx)
	if err != nil {
		return err
	}

	if len(drugs) == 0 {
		writeln(out, cli.FormatInfo("No drugs in database."))
		return nil
	}

	writeln(out, cli.FormatTitle(fmt.Sprintf("Total drugs: %d", len(drugs))))

	shown := drugs
	if limit > 0 && len(drugs) > limit {
		shown = drugs[:limit]
	}
	for _, d := range shown {
		writeln(out, formatDrug(d))
	}
	if len(shown) < len(drugs) {
		writeln(out, cli.SubtleStyle.Render(fmt.Sprintf("... and %d more drugs", len(drugs)-len(shown))))
	}
	return nil
}

func formatDrug(d model.Drug) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render(fmt.Sprintf("[%d]", d.ID)), d.Name)
	if d.Dose != "" {
		fmt.Fprintf(&b, "    Dose: %s\n", strings.TrimSpace(d.Dose+" "+d.Units))
	}
	if d.Type != "" {
		fmt.Fprintf(&b, "    Type: %s\n", d.Type)
	}
	if d.Lote != "" {
		fmt.Fprintf(&b, "    Lot: %s\n", d.Lote)
	}

	fmt.Fprintf(&b, "    Stock: %s | Expiration: %s", cli.FormatStock(d.CurrentStock), d.Expiration)
	if d.HasBeenCounted() {
		fmt.Fprintf(&b, " | Counted: %s", d.LastInventoryDate.Format(model.DateLayout))
	}
	b.WriteString("\n    " + strings.Repeat("-", 76))
	return b.String()
}

func drugsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Register a drug in the catalog",
		Args:  cobra.ExactArgs(1),
		RunE:  runDrugsAdd,
	}

	cmd.Flags().String("dose", "", "Dose amount, e.g. 500")
	cmd.Flags().String("units", "", "Dose units, e.g. mg")
	cmd.Flags().String("expiration", "", "Expiration date")
	cmd.Flags().String("type", "", "Drug type, e.g. analgesic")
	cmd.Flags().String("lote", "", "Lot number")
	cmd.Flags().Int("pieces-per-box", 0, "Pieces per box")

	return cmd
}

func runDrugsAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	attrs := model.DrugAttributes{Name: args[0]}
	attrs.Dose, _ = flags.GetString("dose")
	attrs.Units, _ = flags.GetString("units")
	attrs.Expiration, _ = flags.GetString("expiration")
	attrs.Type, _ = flags.GetString("type")
	attrs.Lote, _ = flags.GetString("lote")
	attrs.PiecesPerBox, _ = flags.GetInt("pieces-per-box")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	id, err := store.InsertDrug(ctx, attrs)
	if err != nil {
		return err
	}

	writeln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Added drug %d: %s", id, strings.TrimSpace(args[0]))))
	return nil
}
