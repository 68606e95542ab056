package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/drug-deposit/internal/cli"
	"github.com/Veraticus/drug-deposit/internal/common"
	"github.com/Veraticus/drug-deposit/internal/importer"
	"github.com/Veraticus/drug-deposit/internal/ledger"
	"github.com/Veraticus/drug-deposit/internal/model"
)

func postCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post DRUG_ID entry|exit|inventory PIECES",
		Short: "Post a single movement for a catalog drug",
		Long: `Post one movement directly to the ledger.

entry adds pieces, exit removes them and inventory replaces the stock with
the counted value (zero is allowed) and records today as the count date.`,
		Args:    cobra.ExactArgs(3),
		PreRunE: bindFlags(map[string]string{"ledger.stock_policy": "stock-policy"}),
		RunE:    runPost,
	}

	cmd.Flags().String("dest", "", "Destination (exit) or origin (entry)")
	cmd.Flags().String("date", "", "Movement date (2006-01-02 or 02/01/2006, default today)")
	cmd.Flags().String("signature", "", "Person responsible")
	cmd.Flags().String("stock-policy", "allow-negative", "Exit handling when stock would go negative (allow-negative, reject-negative)")

	return cmd
}

func runPost(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	drugID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid drug id %q: %w", args[0], err)
	}
	movementType, ok := model.ParseMovementType(args[1])
	if !ok {
		return fmt.Errorf("%w: %q", common.ErrInvalidMovementType, args[1])
	}
	pieces, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("%w: %q", common.ErrInvalidQuantity, args[2])
	}

	rawDate, _ := cmd.Flags().GetString("date")
	date, err := importer.ParseDate(rawDate)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", rawDate, err)
	}
	dest, _ := cmd.Flags().GetString("dest")
	signature, _ := cmd.Flags().GetString("signature")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	cfg, err := ledgerConfig()
	if err != nil {
		return err
	}

	movementID, err := ledger.NewWithConfig(store, cfg).Post(ctx, ledger.PostRequest{
		DrugID:            drugID,
		Type:              movementType,
		PiecesMoved:       pieces,
		DestinationOrigin: dest,
		Signature:         signature,
		DateMovement:      date,
	})
	if err != nil {
		return err
	}

	stock, err := store.CurrentStock(ctx, drugID)
	if err != nil {
		return err
	}

	writeln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Movement %d: %s of %d pieces. New stock: %d",
		movementID, movementType.Title(), pieces, stock)))
	return nil
}
