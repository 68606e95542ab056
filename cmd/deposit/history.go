package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/drug-deposit/internal/cli"
	"github.com/Veraticus/drug-deposit/internal/common"
	"github.com/Veraticus/drug-deposit/internal/model"
	"github.com/Veraticus/drug-deposit/internal/service"
)

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history DRUG_ID",
		Short: "Show the movement history of a drug",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistory,
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	drugID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid drug id %q: %w", args[0], err)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	drug, err := store.GetDrug(ctx, drugID)
	if errors.Is(err, common.ErrNotFound) {
		return common.NewUserError(fmt.Sprintf("Drug ID %d not found", drugID), err)
	}
	if err != nil {
		return err
	}

	movements, err := store.MovementsForDrug(ctx, drugID)
	if err != nil {
		return err
	}

	rule := strings.Repeat("=", 80)
	writeln(out, rule)
	writeln(out, cli.BoldStyle.Render(fmt.Sprintf("Drug: %s (ID: %d)", drug.Label(), drug.ID)))
	writeln(out, "Current Stock: "+cli.FormatStock(drug.CurrentStock))
	writeln(out, rule)

	if len(movements) == 0 {
		writeln(out, cli.FormatInfo("No movements recorded."))
		return nil
	}

	writeln(out, fmt.Sprintf("\nMovements (%d):", len(movements)))
	for _, m := range movements {
		writeln(out, formatMovement(m))
	}
	return nil
}

func formatMovement(m model.Movement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[%d] %s\n", m.ID, strings.ToUpper(string(m.Type)))
	fmt.Fprintf(&b, "    Date: %s\n", m.DateMovement.Format(model.DateLayout))
	fmt.Fprintf(&b, "    Pieces: %d", m.PiecesMoved)
	if m.DestinationOrigin != "" {
		fmt.Fprintf(&b, "\n    Dest/Origin: %s", m.DestinationOrigin)
	}
	if m.Signature != "" {
		fmt.Fprintf(&b, "\n    Signature: %s", m.Signature)
	}
	fmt.Fprintf(&b, "\n    Recorded: %s", m.RecordedAt.UTC().Format("2006-01-02 15:04:05"))
	return b.String()
}

func correctCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct MOVEMENT_ID",
		Short: "Correct the destination/origin or signature of a movement",
		Long: `Correct the annotations of a posted movement. Type, pieces and date are
immutable; post a compensating movement to change stock.`,
		Args: cobra.ExactArgs(1),
		RunE: runCorrect,
	}

	cmd.Flags().String("dest", "", "New destination or origin")
	cmd.Flags().String("signature", "", "New signature")

	return cmd
}

func runCorrect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	movementID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid movement id %q: %w", args[0], err)
	}
	if !cmd.Flags().Changed("dest") && !cmd.Flags().Changed("signature") {
		return common.NewUserError("Nothing to correct: pass --dest and/or --signature", nil)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	current, err := findMovement(ctx, store, movementID)
	if err != nil {
		return err
	}

	dest, signature := current.DestinationOrigin, current.Signature
	if cmd.Flags().Changed("dest") {
		dest, _ = cmd.Flags().GetString("dest")
	}
	if cmd.Flags().Changed("signature") {
		signature, _ = cmd.Flags().GetString("signature")
	}

	if err := store.CorrectMovement(ctx, movementID, dest, signature); err != nil {
		return err
	}

	writeln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Movement %d corrected", movementID)))
	return nil
}

func findMovement(ctx context.Context, store service.Ledger, id int64) (*model.Movement, error) {
	movements, err := store.ListMovements(ctx)
	if err != nil {
		return nil, err
	}
	for i := range movements {
		if movements[i].ID == id {
			return &movements[i], nil
		}
	}
	return nil, fmt.Errorf("movement %d: %w", id, common.ErrNotFound)
}
