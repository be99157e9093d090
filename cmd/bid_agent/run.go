package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/bid-pilot/internal/config"
	"github.com/jonathan/bid-pilot/internal/currency"
	"github.com/jonathan/bid-pilot/internal/db"
	"github.com/jonathan/bid-pilot/internal/gate"
	"github.com/jonathan/bid-pilot/internal/llm"
	"github.com/jonathan/bid-pilot/internal/lock"
	"github.com/jonathan/bid-pilot/internal/marketplace"
	"github.com/jonathan/bid-pilot/internal/observability"
	"github.com/jonathan/bid-pilot/internal/persona"
	"github.com/jonathan/bid-pilot/internal/pipeline"
	"github.com/jonathan/bid-pilot/internal/prompts"
	"github.com/jonathan/bid-pilot/internal/proposal"
	"github.com/jonathan/bid-pilot/internal/scoring"
	"github.com/jonathan/bid-pilot/internal/validation"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run the full bid pipeline end-to-end",
	Long: `Orchestrates one complete pass: search postings -> score -> generate proposals -> place bids through the safety gate.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runPipelineCmd,
}

var (
	runConfigPath  string
	runQuery       string
	runSkills      []string
	runFetchLimit  int
	runMinScore    float64
	runPeriodDays  int
	runDryRun      bool
	runAPIKey      string
	runLLMMode     string
	runUseBrowser  bool
	runVerbose     bool
	runDatabaseURL string
)

func init() {
	// Config file flag (processed first)
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	runCommand.Flags().StringVarP(&runQuery, "query", "q", "", "Free-text posting search query")
	runCommand.Flags().StringSliceVar(&runSkills, "skills", nil, "Skills filter; postings requiring none of these are skipped")
	runCommand.Flags().IntVar(&runFetchLimit, "fetch-limit", 0, "Maximum postings fetched per run")
	runCommand.Flags().Float64Var(&runMinScore, "min-score", 0, "Postings scoring below this are never bid on")
	runCommand.Flags().IntVar(&runPeriodDays, "period-days", 0, "Delivery period offered on submitted bids")
	runCommand.Flags().BoolVar(&runDryRun, "dry-run", false, "Generate proposals but never submit bids")
	runCommand.Flags().StringVar(&runLLMMode, "llm-mode", "", "Provider aggregation mode: single, ensemble, or race")
	runCommand.Flags().BoolVar(&runUseBrowser, "use-browser", false, "Use headless browser for JS-rendered posting pages (requires Chrome)")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed debug information")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	runCommand.Flags().StringVar(&runAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	// Database URL for the posting store and bid ledger
	runCommand.Flags().StringVar(&runDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(runCommand)
}

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	// One pipeline at a time: a concurrent run could double-bid before the
	// ledger sees the first submission.
	runLock := lock.New(cfg.LockFile)
	if err := runLock.Acquire(); err != nil {
		if errors.Is(err, lock.ErrBusy) {
			return fmt.Errorf("another pipeline run is in progress (lock file %s)", cfg.LockFile)
		}
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	defer runLock.Release() //nolint:errcheck

	log, err := observability.NewLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	if err := database.EnsureSchema(ctx); err != nil {
		return err
	}

	market, err := marketplace.NewHTTPClient(cfg.MarketplaceURL, cfg.MarketplaceToken, log,
		marketplace.WithRequestsPerMinute(cfg.RequestsPerMinute))
	if err != nil {
		return fmt.Errorf("failed to create marketplace client: %w", err)
	}

	rates := currency.NewConverter(currency.DefaultCachePath)
	engine, err := scoring.NewEngine(scoring.DefaultConfig(), rates)
	if err != nil {
		return fmt.Errorf("failed to create scoring engine: %w", err)
	}

	llmCfg := llm.DefaultConfig(cfg.APIKey)
	llmCfg.Mode = llm.Mode(cfg.LLMMode)
	llmCfg.ProviderTimeout = time.Duration(cfg.ProviderTimeoutSeconds) * time.Second
	clients, err := llm.BuildClients(ctx, llmCfg)
	if err != nil {
		return fmt.Errorf("failed to build model clients: %w", err)
	}
	defer func() {
		for _, pc := range clients {
			_ = pc.Client.Close()
		}
	}()

	builder := prompts.NewBuilder()
	scorer, err := llm.NewScorer(llmCfg, clients, builder, log)
	if err != nil {
		return fmt.Errorf("failed to create model scorer: %w", err)
	}
	scorer = scorer.WithRates(rates)

	// Seed the near-duplicate window with recent proposals so restarts do
	// not reset duplicate detection.
	history := validation.NewHistory(0)
	if recent, err := database.RecentProposalTexts(ctx, 0); err != nil {
		log.Warn("failed to seed proposal history", zap.Error(err))
	} else {
		for _, text := range recent {
			history.Add(text)
		}
	}

	service := proposal.NewService(
		clients[0].Client,
		builder,
		validation.NewValidator(validation.WithHistory(history)),
		persona.NewController(),
		log,
		proposal.WithRateSource(rates),
		proposal.WithHistory(history),
		proposal.WithMaxAttempts(cfg.MaxAttempts),
	)

	p := pipeline.New(market, database, engine, service, log).
		WithScorer(scorer).
		WithGate(gate.New(market, database, log)).
		WithPrinter(observability.NewPrinter(os.Stdout))

	opts := pipeline.RunOptions{
		Query:          cfg.Query,
		Skills:         cfg.Skills,
		FetchLimit:     cfg.FetchLimit,
		MinScoreForBid: cfg.MinScoreForBid,
		BidPeriodDays:  cfg.BidPeriodDays,
		DryRun:         runDryRun,
		Verbose:        cfg.Verbose,
	}

	summary, err := p.Run(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Printf("\nRun complete: %d fetched, %d scored, %d skipped, %d blocked on skills, %d proposals, %d bids\n",
		summary.Fetched, summary.Scored, summary.Skipped, summary.SkillsBlocked,
		summary.Proposals, summary.BidsSubmitted)
	for _, failure := range summary.Failures {
		fmt.Fprintf(os.Stderr, "  failure: %v\n", failure)
	}
	if len(summary.Failures) > 0 {
		return fmt.Errorf("%d postings failed", len(summary.Failures))
	}
	return nil
}

// loadRunConfig loads the optional config file, applies CLI overrides,
// merges defaults, and validates required settings.
func loadRunConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if runConfigPath != "" {
		loadedCfg, err := config.LoadConfig(runConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		if err := loadedCfg.Validate(); err != nil {
			return cfg, err
		}
		cfg = *loadedCfg
		if runVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", runConfigPath)
		}
	}

	// Command-line args take priority; only override when the flag was
	// explicitly set.
	if cmd.Flags().Changed("query") {
		cfg.Query = runQuery
	}
	if cmd.Flags().Changed("skills") {
		cfg.Skills = runSkills
	}
	if cmd.Flags().Changed("fetch-limit") {
		cfg.FetchLimit = runFetchLimit
	}
	if cmd.Flags().Changed("min-score") {
		cfg.MinScoreForBid = runMinScore
	}
	if cmd.Flags().Changed("period-days") {
		cfg.BidPeriodDays = runPeriodDays
	}
	if cmd.Flags().Changed("llm-mode") {
		cfg.LLMMode = runLLMMode
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = runAPIKey
	}
	if cmd.Flags().Changed("use-browser") {
		cfg.UseBrowser = runUseBrowser
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = runVerbose
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = runDatabaseURL
	}

	cfg = cfg.MergeWithDefaults(config.Config{
		MarketplaceURL:         marketplace.DefaultBaseURL,
		FetchLimit:             30,
		RequestsPerMinute:      60,
		BidPeriodDays:          7,
		MaxAttempts:            3,
		LLMMode:                "single",
		ProviderTimeoutSeconds: 60,
		LockFile:               lock.DefaultPath,
	})

	if cfg.Query == "" && len(cfg.Skills) == 0 {
		return cfg, fmt.Errorf("either --query or --skills must be provided (via flag or config)")
	}

	if cfg.MarketplaceToken == "" {
		cfg.MarketplaceToken = os.Getenv("MARKETPLACE_TOKEN")
	}
	if cfg.MarketplaceToken == "" {
		return cfg, fmt.Errorf("MARKETPLACE_TOKEN environment variable or marketplace_token config value is required")
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return cfg, fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	cfg.Skills = normalizeSkills(cfg.Skills)
	return cfg, nil
}

func normalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
