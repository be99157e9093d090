package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jonathan/bid-pilot/internal/estimate"
	"github.com/jonathan/bid-pilot/internal/prompts"
	"github.com/jonathan/bid-pilot/internal/types"
)

// RateSource resolves currency codes to USD rates for bid sanitization
type RateSource interface {
	Rate(ctx context.Context, code string) (float64, error)
}

// ErrAllProvidersFailed is returned when no configured provider produced a
// usable result.
var ErrAllProvidersFailed = errors.New("all providers failed")

// divergenceSpread is the score spread above which an ensemble result is
// annotated as divergent.
const divergenceSpread = 3.0

// maxBidMultiplier caps the suggested bid relative to the posting's budget
// ceiling. A model answer above it is arithmetic noise, not strategy.
const maxBidMultiplier = 1.2

// rateDeviationTolerance is how far the reported hourly rate may drift from
// bid/hours before it is recomputed.
const rateDeviationTolerance = 0.5

// ProviderClient pairs a provider spec with its live client
type ProviderClient struct {
	Spec   ProviderSpec
	Client Client
}

// BuildClients constructs a client for every configured provider. On error
// the already-built clients are closed.
func BuildClients(ctx context.Context, cfg Config) ([]ProviderClient, error) {
	clients := make([]ProviderClient, 0, len(cfg.Providers))
	for _, spec := range cfg.Providers {
		client, err := NewClient(ctx, spec)
		if err != nil {
			for _, pc := range clients {
				_ = pc.Client.Close()
			}
			return nil, fmt.Errorf("building client for provider %s: %w", spec.Name, err)
		}
		clients = append(clients, ProviderClient{Spec: spec, Client: client})
	}
	return clients, nil
}

// Scorer fans a scoring request out to the configured providers and
// aggregates their answers according to the configured mode.
type Scorer struct {
	cfg     Config
	clients []ProviderClient
	builder *prompts.Builder
	rates   RateSource
	log     *zap.Logger
}

// NewScorer creates a concurrent scorer over pre-built provider clients
func NewScorer(cfg Config, clients []ProviderClient, builder *prompts.Builder, log *zap.Logger) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scorer config: %w", err)
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("at least one provider client is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scorer{cfg: cfg, clients: clients, builder: builder, log: log}, nil
}

// WithRates attaches currency rates so suggested bids can be clamped
// against the posting budget. Without rates the clamp is skipped.
func (s *Scorer) WithRates(r RateSource) *Scorer {
	s.rates = r
	return s
}

// Close releases every provider client
func (s *Scorer) Close() error {
	var firstErr error
	for _, pc := range s.clients {
		if err := pc.Client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ScoreWithProviders runs the configured aggregation mode for a posting.
// Provider failures (timeout, malformed response, rate limit) are contained
// per task; ErrAllProvidersFailed is returned only when nothing succeeded.
func (s *Scorer) ScoreWithProviders(ctx context.Context, posting *types.Posting) (*types.ModelScore, error) {
	prompt := s.builder.BuildScoring(posting)

	var score *types.ModelScore
	var err error
	switch s.cfg.Mode {
	case ModeRace:
		score, err = s.race(ctx, posting.ID, prompt)
	case ModeEnsemble:
		score, err = s.ensemble(ctx, posting.ID, prompt)
	default:
		score, err = s.single(ctx, posting.ID, prompt)
	}
	if err != nil {
		return nil, err
	}
	s.sanitize(ctx, posting, score)
	return score, nil
}

// sanitize repairs model arithmetic the response schema cannot check:
// missing hour estimates fall back to the deterministic estimator, an
// hourly rate that contradicts bid/hours is recomputed, and the suggested
// bid is clamped to maxBidMultiplier times the budget ceiling in USD.
func (s *Scorer) sanitize(ctx context.Context, posting *types.Posting, score *types.ModelScore) {
	if score.EstimatedHours <= 0 {
		score.EstimatedHours = estimate.Hours(posting)
	}

	if score.SuggestedBid > 0 && score.EstimatedHours > 0 {
		implied := score.SuggestedBid / float64(score.EstimatedHours)
		if score.HourlyRate <= 0 || math.Abs(score.HourlyRate-implied) > rateDeviationTolerance*implied {
			score.HourlyRate = math.Round(implied*100) / 100
		}
	}

	if s.rates == nil || score.SuggestedBid <= 0 || posting.Budget.Maximum <= 0 {
		return
	}
	rate, err := s.rates.Rate(ctx, posting.Budget.CurrencyCode)
	if err != nil {
		s.log.Warn("bid clamp skipped, no rate for currency",
			zap.Int64("posting_id", posting.ID),
			zap.String("currency", posting.Budget.CurrencyCode),
			zap.Error(err))
		return
	}
	ceiling := maxBidMultiplier * posting.Budget.Maximum * rate
	if score.SuggestedBid > ceiling {
		s.log.Info("suggested bid clamped to budget ceiling",
			zap.Int64("posting_id", posting.ID),
			zap.Float64("suggested", score.SuggestedBid),
			zap.Float64("ceiling", ceiling))
		score.SuggestedBid = math.Round(ceiling*100) / 100
		if score.EstimatedHours > 0 {
			score.HourlyRate = math.Round(score.SuggestedBid/float64(score.EstimatedHours)*100) / 100
		}
	}
}

// single queries only the first configured provider
func (s *Scorer) single(ctx context.Context, postingID int64, prompt string) (*types.ModelScore, error) {
	pc := s.clients[0]
	result, err := s.callProvider(ctx, pc, prompt)
	if err != nil {
		s.log.Warn("provider call failed",
			zap.String("provider", pc.Spec.Name),
			zap.Int64("posting_id", postingID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrAllProvidersFailed, pc.Spec.Name, err)
	}
	return &types.ModelScore{
		Score:          result.Score,
		Reason:         result.Reason,
		Proposal:       result.Proposal,
		SuggestedBid:   result.SuggestedBid,
		EstimatedHours: result.EstimatedHours,
		HourlyRate:     result.HourlyRate,
		RiskKeywords:   result.RiskKeywords,
		Providers:      []string{pc.Spec.Name},
	}, nil
}

type providerOutcome struct {
	name   string
	result *types.ProviderResult
	err    error
}

// ensemble waits for every provider, discards failures, and merges the
// successes into one result.
func (s *Scorer) ensemble(ctx context.Context, postingID int64, prompt string) (*types.ModelScore, error) {
	outcomes := make([]providerOutcome, len(s.clients))

	var wg sync.WaitGroup
	for i, pc := range s.clients {
		wg.Add(1)
		go func(i int, pc ProviderClient) {
			defer wg.Done()
			result, err := s.callProvider(ctx, pc, prompt)
			outcomes[i] = providerOutcome{name: pc.Spec.Name, result: result, err: err}
		}(i, pc)
	}
	wg.Wait()

	var successes []providerOutcome
	for _, o := range outcomes {
		if o.err != nil {
			s.log.Warn("ensemble provider failed",
				zap.String("provider", o.name),
				zap.Int64("posting_id", postingID),
				zap.Error(o.err))
			continue
		}
		successes = append(successes, o)
	}
	if len(successes) == 0 {
		return nil, ErrAllProvidersFailed
	}
	return mergeEnsemble(successes), nil
}

// race returns the first provider to succeed and cancels the rest. Losing
// tasks observe the cancellation through their call context and exit; the
// buffered channel keeps them from blocking on send.
func (s *Scorer) race(ctx context.Context, postingID int64, prompt string) (*types.ModelScore, error) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan providerOutcome, len(s.clients))
	for _, pc := range s.clients {
		go func(pc ProviderClient) {
			result, err := s.callProvider(raceCtx, pc, prompt)
			outcomes <- providerOutcome{name: pc.Spec.Name, result: result, err: err}
		}(pc)
	}

	for range s.clients {
		select {
		case o := <-outcomes:
			if o.err != nil {
				s.log.Warn("race provider failed",
					zap.String("provider", o.name),
					zap.Int64("posting_id", postingID),
					zap.Error(o.err))
				continue
			}
			return &types.ModelScore{
				Score:          o.result.Score,
				Reason:         o.result.Reason,
				Proposal:       o.result.Proposal,
				SuggestedBid:   o.result.SuggestedBid,
				EstimatedHours: o.result.EstimatedHours,
				HourlyRate:     o.result.HourlyRate,
				RiskKeywords:   o.result.RiskKeywords,
				Providers:      []string{o.name},
			}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, ErrAllProvidersFailed
}

// callProvider runs one provider call under the per-provider timeout
func (s *Scorer) callProvider(ctx context.Context, pc ProviderClient, prompt string) (*types.ProviderResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	raw, err := pc.Client.GenerateJSON(callCtx, prompt)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", pc.Spec.Name, err)
	}
	result, err := ParseProviderResult(raw, pc.Client.Model())
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", pc.Spec.Name, err)
	}
	return result, nil
}

// mergeEnsemble combines successful outcomes: scores are averaged,
// suggested bids take the median, and the reason comes from the provider
// whose score sits closest to the mean. The proposal draft is taken from
// the highest-scoring provider so it stays internally consistent.
func mergeEnsemble(successes []providerOutcome) *types.ModelScore {
	var scoreSum, hoursSum, rateSum float64
	var bids []float64
	providers := make([]string, 0, len(successes))
	keywordSet := make(map[string]struct{})

	for _, o := range successes {
		scoreSum += o.result.Score
		hoursSum += float64(o.result.EstimatedHours)
		rateSum += o.result.HourlyRate
		if o.result.SuggestedBid > 0 {
			bids = append(bids, o.result.SuggestedBid)
		}
		providers = append(providers, o.name)
		for _, kw := range o.result.RiskKeywords {
			keywordSet[kw] = struct{}{}
		}
	}

	n := float64(len(successes))
	mean := scoreSum / n

	closest := successes[0]
	best := successes[0]
	minScore, maxScore := successes[0].result.Score, successes[0].result.Score
	for _, o := range successes[1:] {
		if math.Abs(o.result.Score-mean) < math.Abs(closest.result.Score-mean) {
			closest = o
		}
		if o.result.Score > best.result.Score {
			best = o
		}
		minScore = math.Min(minScore, o.result.Score)
		maxScore = math.Max(maxScore, o.result.Score)
	}

	reason := closest.result.Reason
	if maxScore-minScore > divergenceSpread {
		reason = fmt.Sprintf("%s (providers diverged: scores ranged %.1f-%.1f)", reason, minScore, maxScore)
	}

	keywords := make([]string, 0, len(keywordSet))
	for kw := range keywordSet {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)

	return &types.ModelScore{
		Score:          math.Round(mean*100) / 100,
		Reason:         strings.TrimSpace(reason),
		Proposal:       best.result.Proposal,
		SuggestedBid:   median(bids),
		EstimatedHours: int(math.Round(hoursSum / n)),
		HourlyRate:     math.Round(rateSum/n*100) / 100,
		RiskKeywords:   keywords,
		Providers:      providers,
	}
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
