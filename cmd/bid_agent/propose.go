package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jonathan/bid-pilot/internal/currency"
	"github.com/jonathan/bid-pilot/internal/db"
	"github.com/jonathan/bid-pilot/internal/llm"
	"github.com/jonathan/bid-pilot/internal/observability"
	"github.com/jonathan/bid-pilot/internal/persona"
	"github.com/jonathan/bid-pilot/internal/prompts"
	"github.com/jonathan/bid-pilot/internal/proposal"
	"github.com/jonathan/bid-pilot/internal/validation"
)

var (
	proposeDatabaseURL string
	proposeAPIKey      string
)

var proposeCmd = &cobra.Command{
	Use:   "propose <posting-id>",
	Short: "Generate a validated proposal for a stored posting",
	Long:  `Generates a proposal for a posting already fetched and scored, runs it through validation, and stores the accepted draft. The bid is not placed; use 'run' for the full pipeline.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPropose,
}

func init() {
	proposeCmd.Flags().StringVar(&proposeDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	proposeCmd.Flags().StringVar(&proposeAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	rootCmd.AddCommand(proposeCmd)
}

func runPropose(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	postingID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid posting ID %q", args[0])
	}

	databaseURL := proposeDatabaseURL
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	apiKey := proposeAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
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

	score, err := database.GetScore(ctx, postingID)
	if err != nil {
		return err
	}

	client, err := llm.NewClient(ctx, llm.DefaultConfig(apiKey).Providers[0])
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}
	defer client.Close() //nolint:errcheck

	log, err := observability.NewLogger(false)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	history := validation.NewHistory(0)
	if recent, err := database.RecentProposalTexts(ctx, 0); err == nil {
		for _, text := range recent {
			history.Add(text)
		}
	}

	service := proposal.NewService(
		client,
		prompts.NewBuilder(),
		validation.NewValidator(validation.WithHistory(history)),
		persona.NewController(),
		log,
		proposal.WithRateSource(currency.NewConverter(currency.DefaultCachePath)),
		proposal.WithHistory(history),
	)

	record, err := service.Generate(ctx, posting, score)
	if err != nil {
		return err
	}
	if err := database.SaveProposal(ctx, record); err != nil {
		return err
	}

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintValidation(&record.Validation)
	printer.PrintProposal(record)
	return nil
}
