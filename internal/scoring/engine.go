// Package scoring provides the deterministic rule-based posting scorer.
//
// Each dimension is scored 0-10 and combined with configurable weights into
// a composite 0-10 score with a letter grade and a human-readable rationale.
package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jonathan/bid-pilot/internal/types"
)

// RateSource resolves currency codes to USD rates. Unknown currencies must
// be reported with currency.ErrUnknownCurrency so budget scoring can stay
// neutral instead of mispricing.
type RateSource interface {
	Rate(ctx context.Context, code string) (float64, error)
}

// Weights holds the per-dimension weights of the composite score.
// They must sum to 1.0 within a small tolerance.
type Weights struct {
	BudgetEfficiency float64 `json:"budget_efficiency" validate:"gte=0,lte=1"`
	Competition      float64 `json:"competition" validate:"gte=0,lte=1"`
	Clarity          float64 `json:"clarity" validate:"gte=0,lte=1"`
	Customer         float64 `json:"customer" validate:"gte=0,lte=1"`
	Tech             float64 `json:"tech" validate:"gte=0,lte=1"`
	Risk             float64 `json:"risk" validate:"gte=0,lte=1"`
}

// weightTolerance is the allowed deviation of the weight sum from 1.0
const weightTolerance = 0.001

// DefaultWeights returns the win-rate-optimized default weighting
func DefaultWeights() Weights {
	return Weights{
		BudgetEfficiency: 0.15,
		Competition:      0.25,
		Clarity:          0.25,
		Customer:         0.20,
		Tech:             0.10,
		Risk:             0.05,
	}
}

// Sum returns the total of all weights
func (w Weights) Sum() float64 {
	return w.BudgetEfficiency + w.Competition + w.Clarity + w.Customer + w.Tech + w.Risk
}

// Validate checks that the weights sum to 1.0 within tolerance
func (w Weights) Validate() error {
	if d := math.Abs(w.Sum() - 1.0); d > weightTolerance {
		return fmt.Errorf("weights sum to %.3f, expected 1.0", w.Sum())
	}
	return nil
}

// Config holds the scoring engine configuration. It is immutable after
// construction; build one at startup and pass it by reference.
type Config struct {
	Weights      Weights
	Skills       []string
	RiskKeywords map[string][]string
}

// DefaultConfig returns a config with default weights, no operator skills
// and the built-in risk keyword tables.
func DefaultConfig() Config {
	return Config{
		Weights:      DefaultWeights(),
		RiskKeywords: DefaultRiskKeywords(),
	}
}

// Engine scores postings against the configured weights and skill set
type Engine struct {
	cfg   Config
	rates RateSource
	now   func() time.Time
}

// NewEngine creates a scoring engine. The rate source is used to normalize
// budgets to USD for the budget-efficiency dimension.
func NewEngine(cfg Config, rates RateSource) (*Engine, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}
	if cfg.RiskKeywords == nil {
		cfg.RiskKeywords = DefaultRiskKeywords()
	}
	return &Engine{cfg: cfg, rates: rates, now: time.Now}, nil
}

// Score computes the composite score and full breakdown for a posting.
// estimatedHours must come from the hour estimator and be within its bounds.
func (e *Engine) Score(ctx context.Context, posting *types.Posting, estimatedHours int) types.PostingScore {
	budgetScore, hourlyRate := e.scoreBudgetEfficiency(ctx, posting, estimatedHours)

	breakdown := types.ScoreBreakdown{
		BudgetEfficiency: budgetScore,
		Competition:      e.scoreCompetition(posting),
		Clarity:          ScoreClarity(posting.Description),
		Customer:         scoreCustomer(posting.Owner),
		Tech:             e.scoreTechMatch(posting),
		Risk:             scoreRisk(posting.Owner),
		EstimatedHours:   estimatedHours,
		HourlyRate:       hourlyRate,
	}

	w := e.cfg.Weights
	total := breakdown.BudgetEfficiency*w.BudgetEfficiency +
		breakdown.Competition*w.Competition +
		breakdown.Clarity*w.Clarity +
		breakdown.Customer*w.Customer +
		breakdown.Tech*w.Tech +
		breakdown.Risk*w.Risk
	total = math.Round(total*100) / 100

	return types.PostingScore{
		PostingID: posting.ID,
		Score:     total,
		Grade:     Grade(total),
		Reason:    reason(breakdown),
		Breakdown: breakdown,
	}
}

// Grade converts a composite score to its letter grade
func Grade(score float64) string {
	switch {
	case score >= 8.0:
		return "S"
	case score >= 6.0:
		return "A"
	case score >= 4.0:
		return "B"
	case score >= 2.0:
		return "C"
	default:
		return "D"
	}
}

// neutralBudgetScore is used when the posting cannot be priced in USD.
// Neutral, not zero: an unpriceable posting is not a bad posting.
const neutralBudgetScore = 5.0

// scoreBudgetEfficiency scores the implied USD hourly rate on a piecewise
// curve tuned for win rate: $20-60/h is optimal, very high rates are hard to
// win, very low rates are low value. Returns the score and the implied rate.
func (e *Engine) scoreBudgetEfficiency(ctx context.Context, posting *types.Posting, estimatedHours int) (float64, float64) {
	avgUSD, err := e.avgBudgetUSD(ctx, posting)
	if err != nil {
		return neutralBudgetScore, 0
	}
	if avgUSD <= 0 {
		return neutralBudgetScore, 0
	}

	var hourlyRate float64
	if posting.Engagement == types.EngagementHourly {
		hourlyRate = avgUSD
	} else {
		if estimatedHours <= 0 {
			return neutralBudgetScore, 0
		}
		hourlyRate = avgUSD / float64(estimatedHours)
	}

	var score float64
	switch {
	case hourlyRate >= 80:
		score = math.Max(4.0, 6.0-(hourlyRate-80)/40*2.0)
	case hourlyRate >= 60:
		score = 6.0 + (80-hourlyRate)/20*2.0
	case hourlyRate >= 20:
		score = 8.0 + (hourlyRate-20)/40*2.0
	case hourlyRate >= 15:
		score = 6.0 + (hourlyRate-15)/5*2.0
	default:
		score = math.Max(0.0, hourlyRate/15*6.0)
	}
	return math.Min(score, 10.0), hourlyRate
}

// avgBudgetUSD converts the posting's average budget to USD
func (e *Engine) avgBudgetUSD(ctx context.Context, posting *types.Posting) (float64, error) {
	avg := posting.Budget.Average()
	if avg <= 0 {
		return 0, nil
	}
	rate, err := e.rates.Rate(ctx, posting.Budget.CurrencyCode)
	if err != nil {
		return 0, fmt.Errorf("pricing budget for posting %d: %w", posting.ID, err)
	}
	return avg * rate, nil
}

// scoreCompetition buckets the bid count and adds a freshness bonus for
// postings submitted within the last 24 hours.
func (e *Engine) scoreCompetition(posting *types.Posting) float64 {
	var score float64
	switch {
	case posting.BidCount <= 4:
		score = 2.0 // suspiciously quiet, likely low quality
	case posting.BidCount <= 20:
		score = 10.0
	case posting.BidCount <= 40:
		score = 6.0
	default:
		score = 2.0
	}

	if !posting.SubmitDate.IsZero() && e.now().Sub(posting.SubmitDate) <= 24*time.Hour {
		score = math.Min(10.0, score+1.0)
	}
	return score
}

// scoreCustomer scores client trust from externally supplied owner metadata
func scoreCustomer(owner *types.OwnerInfo) float64 {
	if owner == nil {
		return 3.0
	}

	score := 7.0
	if !owner.PaymentVerified {
		score -= 5.0
	}
	if owner.JobsPosted > 0 {
		hireRate := float64(owner.JobsHired) / float64(owner.JobsPosted)
		if hireRate < 0.30 {
			score -= 3.0
		}
	} else {
		score -= 4.0
	}
	if owner.OnlineStatus == "online" {
		score += 2.0
	}
	switch {
	case owner.Rating >= 4.5:
		score += 3.0
	case owner.Rating >= 4.0:
		score += 1.5
	}
	return clamp10(score)
}

// scoreRisk scores overall posting risk; higher means less risky
func scoreRisk(owner *types.OwnerInfo) float64 {
	score := 7.0
	if owner != nil {
		if owner.Verified {
			score += 1.5
		}
		if owner.PaymentVerified {
			score += 1.5
		}
		switch {
		case owner.JobsPosted == 0:
			score -= 3.0
		case owner.JobsPosted < 5:
			score -= 1.0
		}
	}
	return clamp10(score)
}

// scoreTechMatch counts configured operator skills mentioned in the posting
func (e *Engine) scoreTechMatch(posting *types.Posting) float64 {
	text := strings.ToLower(posting.Title + " " + posting.Description)
	matched := 0
	for _, skill := range e.cfg.Skills {
		if strings.Contains(text, strings.ToLower(skill)) {
			matched++
		}
	}
	switch {
	case matched >= 3:
		return 10.0
	case matched == 2:
		return 7.0
	case matched == 1:
		return 4.0
	default:
		return 0.0
	}
}

// reason builds the human-readable rationale for a breakdown
func reason(b types.ScoreBreakdown) string {
	var parts []string

	switch {
	case b.BudgetEfficiency >= 8.0:
		parts = append(parts, fmt.Sprintf("strong budget ($%.1f/h)", b.HourlyRate))
	case b.BudgetEfficiency >= 6.0:
		parts = append(parts, fmt.Sprintf("reasonable budget ($%.1f/h)", b.HourlyRate))
	case b.HourlyRate == 0:
		parts = append(parts, "budget not priceable, scored neutral")
	default:
		parts = append(parts, fmt.Sprintf("weak budget ($%.1f/h)", b.HourlyRate))
	}

	if b.Clarity >= 7.0 {
		parts = append(parts, "clear requirements")
	} else if b.Clarity <= 4.0 {
		parts = append(parts, "vague requirements")
	}

	if b.Tech >= 7.0 {
		parts = append(parts, "strong skill match")
	}

	if b.Competition >= 8.0 {
		parts = append(parts, "healthy competition level")
	}

	return strings.Join(parts, "; ") + "."
}

func clamp10(v float64) float64 {
	return math.Max(0.0, math.Min(v, 10.0))
}
