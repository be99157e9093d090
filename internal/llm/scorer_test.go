package llm

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/jonathan/bid-pilot/internal/prompts"
	"github.com/jonathan/bid-pilot/internal/types"
)

// fakeClient answers with a canned payload after an optional delay. When
// delayed, it honors context cancellation and reports whether it finished.
type fakeClient struct {
	payload   string
	err       error
	delay     time.Duration
	model     string
	completed atomic.Bool
}

func (f *fakeClient) Generate(ctx context.Context, prompt string) (string, error) {
	return f.GenerateJSON(ctx, prompt)
}

func (f *fakeClient) GenerateJSON(ctx context.Context, _ string) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	f.completed.Store(true)
	return f.payload, nil
}

func (f *fakeClient) Model() string { return f.model }
func (f *fakeClient) Close() error  { return nil }

func payloadWithScore(score float64, bid float64) string {
	return fmt.Sprintf(`{"score": %.1f, "reason": "score %.1f rationale", "proposal": "draft at %.1f", "suggested_bid": %.1f, "estimated_hours": 20, "hourly_rate": 30}`, score, score, score, bid)
}

func testScorer(t *testing.T, mode Mode, clients ...ProviderClient) *Scorer {
	t.Helper()
	cfg := Config{Mode: mode, ProviderTimeout: 5 * time.Second}
	for _, pc := range clients {
		cfg.Providers = append(cfg.Providers, pc.Spec)
	}
	s, err := NewScorer(cfg, clients, prompts.NewBuilder(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func provider(name string, client Client) ProviderClient {
	return ProviderClient{
		Spec:   ProviderSpec{Name: name, Provider: ProviderGemini, Model: "test-model"},
		Client: client,
	}
}

func testPosting() *types.Posting {
	return &types.Posting{ID: 9, Title: "Automation job", Description: "Automate a workflow"}
}

func TestEnsembleAveragesSuccesses(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	s := testScorer(t, ModeEnsemble,
		provider("low", &fakeClient{payload: payloadWithScore(6.0, 400)}),
		provider("high", &fakeClient{payload: payloadWithScore(8.0, 600)}),
	)

	result, err := s.ScoreWithProviders(context.Background(), testPosting())
	require.NoError(t, err)

	assert.InDelta(t, 7.0, result.Score, 0.001)
	assert.InDelta(t, 500.0, result.SuggestedBid, 0.001) // median of two = midpoint
	assert.ElementsMatch(t, []string{"low", "high"}, result.Providers)
	// The proposal draft comes from the highest-scoring provider.
	assert.Equal(t, "draft at 8.0", result.Proposal)
	assert.NotContains(t, result.Reason, "diverged")
}

func TestEnsembleDiscardsFailures(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	s := testScorer(t, ModeEnsemble,
		provider("broken", &fakeClient{err: fmt.Errorf("rate limited")}),
		provider("malformed", &fakeClient{payload: `{"reason": "missing score"}`}),
		provider("healthy", &fakeClient{payload: payloadWithScore(7.5, 500)}),
	)

	result, err := s.ScoreWithProviders(context.Background(), testPosting())
	require.NoError(t, err)

	assert.InDelta(t, 7.5, result.Score, 0.001)
	assert.Equal(t, []string{"healthy"}, result.Providers)
}

func TestEnsembleDivergenceNote(t *testing.T) {
	s := testScorer(t, ModeEnsemble,
		provider("bullish", &fakeClient{payload: payloadWithScore(9.0, 700)}),
		provider("bearish", &fakeClient{payload: payloadWithScore(3.0, 300)}),
	)

	result, err := s.ScoreWithProviders(context.Background(), testPosting())
	require.NoError(t, err)

	assert.Contains(t, result.Reason, "diverged")
	assert.Contains(t, result.Reason, "3.0-9.0")
}

func TestEnsembleAllFailed(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	s := testScorer(t, ModeEnsemble,
		provider("a", &fakeClient{err: fmt.Errorf("boom")}),
		provider("b", &fakeClient{payload: "not json at all"}),
	)

	_, err := s.ScoreWithProviders(context.Background(), testPosting())
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
}

func TestRaceReturnsFirstSuccessAndCancelsSiblings(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	fast := &fakeClient{payload: payloadWithScore(7.0, 450), delay: 50 * time.Millisecond}
	slow := &fakeClient{payload: payloadWithScore(9.0, 900), delay: 500 * time.Millisecond}

	s := testScorer(t, ModeRace,
		provider("fast", fast),
		provider("slow", slow),
	)

	start := time.Now()
	result, err := s.ScoreWithProviders(context.Background(), testPosting())
	require.NoError(t, err)

	assert.InDelta(t, 7.0, result.Score, 0.001)
	assert.Equal(t, []string{"fast"}, result.Providers)
	assert.Less(t, time.Since(start), 400*time.Millisecond)

	// The losing task was cancelled before it could produce a result.
	time.Sleep(100 * time.Millisecond)
	assert.False(t, slow.completed.Load())
}

func TestRaceSkipsFailuresUntilSuccess(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	s := testScorer(t, ModeRace,
		provider("fails-fast", &fakeClient{err: fmt.Errorf("boom")}),
		provider("succeeds", &fakeClient{payload: payloadWithScore(6.5, 500), delay: 30 * time.Millisecond}),
	)

	result, err := s.ScoreWithProviders(context.Background(), testPosting())
	require.NoError(t, err)
	assert.Equal(t, []string{"succeeds"}, result.Providers)
}

func TestRaceAllFailed(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	s := testScorer(t, ModeRace,
		provider("a", &fakeClient{err: fmt.Errorf("boom")}),
		provider("b", &fakeClient{err: fmt.Errorf("bust")}),
	)

	_, err := s.ScoreWithProviders(context.Background(), testPosting())
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
}

func TestRaceHonorsCallerCancellation(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	s := testScorer(t, ModeRace,
		provider("slow", &fakeClient{payload: payloadWithScore(7.0, 500), delay: time.Second}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := s.ScoreWithProviders(ctx, testPosting())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSingleMode(t *testing.T) {
	s := testScorer(t, ModeSingle,
		provider("only", &fakeClient{payload: payloadWithScore(7.2, 450)}),
		provider("ignored", &fakeClient{err: fmt.Errorf("never called")}),
	)

	result, err := s.ScoreWithProviders(context.Background(), testPosting())
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, result.Providers)
	assert.InDelta(t, 7.2, result.Score, 0.001)
}

func TestSingleModeFailure(t *testing.T) {
	s := testScorer(t, ModeSingle,
		provider("only", &fakeClient{err: fmt.Errorf("quota exceeded")}),
	)

	_, err := s.ScoreWithProviders(context.Background(), testPosting())
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Mode:            ModeEnsemble,
		ProviderTimeout: time.Second,
		Providers:       []ProviderSpec{{Name: "a", Provider: ProviderGemini, Model: "m"}},
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Mode = "tournament" }},
		{"no providers", func(c *Config) { c.Providers = nil }},
		{"missing model", func(c *Config) { c.Providers = []ProviderSpec{{Name: "a"}} }},
		{"duplicate names", func(c *Config) {
			c.Providers = append(c.Providers, ProviderSpec{Name: "a", Provider: ProviderGemini, Model: "m2"})
		}},
		{"zero timeout", func(c *Config) { c.ProviderTimeout = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			cfg.Providers = append([]ProviderSpec(nil), valid.Providers...)
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

type stubRates struct {
	rates map[string]float64
}

func (s stubRates) Rate(_ context.Context, code string) (float64, error) {
	if r, ok := s.rates[code]; ok {
		return r, nil
	}
	return 0, fmt.Errorf("no rate for %s", code)
}

func budgetPosting(maxBudget float64, code string) *types.Posting {
	p := testPosting()
	p.Budget = types.Budget{Minimum: maxBudget / 2, Maximum: maxBudget, CurrencyCode: code}
	return p
}

func TestScoreClampsSuggestedBidToBudgetCeiling(t *testing.T) {
	payload := `{"score": 7.0, "reason": "ok", "suggested_bid": 5000, "estimated_hours": 20, "hourly_rate": 250}`
	s := testScorer(t, ModeSingle, provider("only", &fakeClient{payload: payload}))
	s = s.WithRates(stubRates{rates: map[string]float64{"USD": 1.0}})

	result, err := s.ScoreWithProviders(context.Background(), budgetPosting(500, "USD"))
	require.NoError(t, err)

	// 1.2 x 500 USD budget ceiling, with the rate recomputed to match.
	assert.InDelta(t, 600.0, result.SuggestedBid, 0.001)
	assert.InDelta(t, 30.0, result.HourlyRate, 0.001)
}

func TestScoreClampConvertsBudgetCurrency(t *testing.T) {
	payload := `{"score": 7.0, "reason": "ok", "suggested_bid": 5000, "estimated_hours": 20, "hourly_rate": 250}`
	s := testScorer(t, ModeSingle, provider("only", &fakeClient{payload: payload}))
	s = s.WithRates(stubRates{rates: map[string]float64{"EUR": 1.1}})

	result, err := s.ScoreWithProviders(context.Background(), budgetPosting(1000, "EUR"))
	require.NoError(t, err)

	assert.InDelta(t, 1320.0, result.SuggestedBid, 0.001)
}

func TestScoreClampSkippedForUnknownCurrency(t *testing.T) {
	payload := `{"score": 7.0, "reason": "ok", "suggested_bid": 5000, "estimated_hours": 20, "hourly_rate": 250}`
	s := testScorer(t, ModeSingle, provider("only", &fakeClient{payload: payload}))
	s = s.WithRates(stubRates{rates: map[string]float64{"USD": 1.0}})

	result, err := s.ScoreWithProviders(context.Background(), budgetPosting(500, "BD"))
	require.NoError(t, err)

	assert.InDelta(t, 5000.0, result.SuggestedBid, 0.001)
}

func TestScoreWithinCeilingIsUntouched(t *testing.T) {
	payload := `{"score": 7.0, "reason": "ok", "suggested_bid": 450, "estimated_hours": 20, "hourly_rate": 22.5}`
	s := testScorer(t, ModeSingle, provider("only", &fakeClient{payload: payload}))
	s = s.WithRates(stubRates{rates: map[string]float64{"USD": 1.0}})

	result, err := s.ScoreWithProviders(context.Background(), budgetPosting(500, "USD"))
	require.NoError(t, err)

	assert.InDelta(t, 450.0, result.SuggestedBid, 0.001)
	assert.InDelta(t, 22.5, result.HourlyRate, 0.001)
}

func TestScoreFallsBackToEstimatedHours(t *testing.T) {
	payload := `{"score": 7.0, "reason": "ok", "suggested_bid": 450}`
	s := testScorer(t, ModeSingle, provider("only", &fakeClient{payload: payload}))

	result, err := s.ScoreWithProviders(context.Background(), testPosting())
	require.NoError(t, err)

	assert.Greater(t, result.EstimatedHours, 0)
	// The missing rate is derived from the bid over the fallback hours.
	assert.InDelta(t, 450.0/float64(result.EstimatedHours), result.HourlyRate, 0.01)
}

func TestScoreRecomputesContradictoryHourlyRate(t *testing.T) {
	// 450 over 20h implies 22.50/h; a reported 100/h is off by far more
	// than the tolerated deviation.
	payload := `{"score": 7.0, "reason": "ok", "suggested_bid": 450, "estimated_hours": 20, "hourly_rate": 100}`
	s := testScorer(t, ModeSingle, provider("only", &fakeClient{payload: payload}))

	result, err := s.ScoreWithProviders(context.Background(), testPosting())
	require.NoError(t, err)

	assert.InDelta(t, 22.5, result.HourlyRate, 0.001)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
	assert.Equal(t, 5.0, median([]float64{5}))
	assert.Equal(t, 450.0, median([]float64{400, 500}))
	assert.Equal(t, 500.0, median([]float64{900, 400, 500}))
}
