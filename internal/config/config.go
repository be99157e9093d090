// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Marketplace
	MarketplaceURL    string   `json:"marketplace_url,omitempty"`     // Marketplace API base URL
	MarketplaceToken  string   `json:"marketplace_token,omitempty"`   // OAuth token for the marketplace API
	Query             string   `json:"query,omitempty"`               // Free-text posting search query
	Skills            []string `json:"skills,omitempty"`              // Skills filter for posting search
	FetchLimit        int      `json:"fetch_limit,omitempty"`         // Maximum postings fetched per run
	RequestsPerMinute int      `json:"requests_per_minute,omitempty"` // Marketplace rate limit

	// Scoring and bidding
	MinScoreForBid float64 `json:"min_score_for_bid,omitempty"` // Postings below this score are skipped
	BidPeriodDays  int     `json:"bid_period_days,omitempty"`   // Delivery period offered on submitted bids
	MaxAttempts    int     `json:"max_attempts,omitempty"`      // Proposal generation retry budget

	// Language model
	APIKey                 string `json:"api_key,omitempty"`                  // Gemini API key
	LLMMode                string `json:"llm_mode,omitempty"`                 // single, ensemble, or race
	ProviderTimeoutSeconds int    `json:"provider_timeout_seconds,omitempty"` // Per-provider call timeout

	// Behavior
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	LockFile    string `json:"lock_file,omitempty"`    // Exclusive run lock path
	UseBrowser  bool   `json:"use_browser,omitempty"`  // Use headless browser for JS-rendered posting pages
	Verbose     bool   `json:"verbose,omitempty"`      // Print detailed debug information
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.FetchLimit < 0 {
		return fmt.Errorf("config error: 'fetch_limit' must be non-negative")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("config error: 'requests_per_minute' must be non-negative")
	}
	if c.MinScoreForBid < 0 || c.MinScoreForBid > 10 {
		return fmt.Errorf("config error: 'min_score_for_bid' must be between 0 and 10")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("config error: 'max_attempts' must be non-negative")
	}
	if c.ProviderTimeoutSeconds < 0 {
		return fmt.Errorf("config error: 'provider_timeout_seconds' must be non-negative")
	}

	switch c.LLMMode {
	case "", "single", "ensemble", "race":
	default:
		return fmt.Errorf("config error: 'llm_mode' must be single, ensemble, or race, got %q", c.LLMMode)
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.MarketplaceURL == "" {
		result.MarketplaceURL = defaults.MarketplaceURL
	}
	if result.MarketplaceToken == "" {
		result.MarketplaceToken = defaults.MarketplaceToken
	}
	if result.Query == "" {
		result.Query = defaults.Query
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.LLMMode == "" {
		result.LLMMode = defaults.LLMMode
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.LockFile == "" {
		result.LockFile = defaults.LockFile
	}

	// Slice fields
	if len(result.Skills) == 0 {
		result.Skills = defaults.Skills
	}

	// Int fields: use default if zero
	if result.FetchLimit == 0 {
		result.FetchLimit = defaults.FetchLimit
	}
	if result.RequestsPerMinute == 0 {
		result.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if result.BidPeriodDays == 0 {
		result.BidPeriodDays = defaults.BidPeriodDays
	}
	if result.MaxAttempts == 0 {
		result.MaxAttempts = defaults.MaxAttempts
	}
	if result.ProviderTimeoutSeconds == 0 {
		result.ProviderTimeoutSeconds = defaults.ProviderTimeoutSeconds
	}

	// Float fields
	if result.MinScoreForBid == 0 {
		if defaults.MinScoreForBid > 0 {
			result.MinScoreForBid = defaults.MinScoreForBid
		} else {
			result.MinScoreForBid = 4.0 // Below C grade territory is never worth a bid
		}
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
