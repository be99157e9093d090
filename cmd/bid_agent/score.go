package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jonathan/bid-pilot/internal/currency"
	"github.com/jonathan/bid-pilot/internal/db"
	"github.com/jonathan/bid-pilot/internal/estimate"
	"github.com/jonathan/bid-pilot/internal/observability"
	"github.com/jonathan/bid-pilot/internal/scoring"
)

var scoreDatabaseURL string

var scoreCmd = &cobra.Command{
	Use:   "score <posting-id>",
	Short: "Score a stored posting with the heuristic engine",
	Long:  `Recomputes the heuristic score for a posting already fetched into the database and prints the per-signal breakdown.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runScore,
}

func init() {
	scoreCmd.Flags().StringVar(&scoreDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	postingID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid posting ID %q", args[0])
	}

	databaseURL := scoreDatabaseURL
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

	posting, err := database.GetPosting(ctx, postingID)
	if err != nil {
		return err
	}
	if posting == nil {
		return fmt.Errorf("posting %d not found; fetch it first with 'run'", postingID)
	}

	engine, err := scoring.NewEngine(scoring.DefaultConfig(), currency.NewConverter(currency.DefaultCachePath))
	if err != nil {
		return err
	}

	score := engine.Score(ctx, posting, estimate.Hours(posting))
	if err := database.SaveScore(ctx, &score); err != nil {
		return err
	}

	observability.NewPrinter(os.Stdout).PrintScore(posting, &score)
	return nil
}
