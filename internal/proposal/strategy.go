package proposal

import (
	"context"

	"github.com/jonathan/bid-pilot/internal/types"
)

// Strategy selection thresholds. Low-value or saturated postings are not
// worth a model call; they get the deterministic template.
const (
	minBudgetForModel = 100.0
	maxBidsForModel   = 40
	minScoreForModel  = 4.0
)

// RateSource resolves currency codes to USD rates for strategy selection
type RateSource interface {
	Rate(ctx context.Context, code string) (float64, error)
}

// SelectStrategy decides whether a posting earns a model-generated proposal
// or the quick deterministic template. priorScore is the composite rule
// score when available, negative when unknown.
func SelectStrategy(ctx context.Context, rates RateSource, posting *types.Posting, priorScore float64) types.ProposalStrategy {
	if posting.BidCount > maxBidsForModel {
		return types.StrategyQuickTemplate
	}
	if priorScore >= 0 && priorScore < minScoreForModel {
		return types.StrategyQuickTemplate
	}

	if avg := posting.Budget.Average(); avg > 0 && rates != nil {
		if rate, err := rates.Rate(ctx, posting.Budget.CurrencyCode); err == nil {
			if avg*rate < minBudgetForModel {
				return types.StrategyQuickTemplate
			}
		}
		// Unknown currency: cannot price the posting, so do not demote it.
	}
	return types.StrategyLLMEnhanced
}
