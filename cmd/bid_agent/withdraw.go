package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jonathan/bid-pilot/internal/db"
)

var withdrawDatabaseURL string

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <posting-id>",
	Short: "Mark the active bid for a posting withdrawn in the ledger",
	Long:  `Marks the active bid submission withdrawn so the safety gate allows bidding on the posting again. The marketplace-side bid must be retracted through the platform UI.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runWithdraw,
}

func init() {
	withdrawCmd.Flags().StringVar(&withdrawDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	rootCmd.AddCommand(withdrawCmd)
}

func runWithdraw(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	postingID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid posting ID %q", args[0])
	}

	databaseURL := withdrawDatabaseURL
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	sub, err := database.ActiveSubmission(ctx, postingID)
	if err != nil {
		return err
	}
	if sub == nil {
		return fmt.Errorf("no active bid recorded for posting %d", postingID)
	}

	if err := database.WithdrawSubmission(ctx, postingID); err != nil {
		return err
	}

	fmt.Printf("Bid %s on posting %d marked withdrawn\n", sub.ID, postingID)
	return nil
}
