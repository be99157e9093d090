package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/bid-pilot/internal/gate"
	"github.com/jonathan/bid-pilot/internal/marketplace"
	"github.com/jonathan/bid-pilot/internal/persona"
	"github.com/jonathan/bid-pilot/internal/prompts"
	"github.com/jonathan/bid-pilot/internal/proposal"
	"github.com/jonathan/bid-pilot/internal/scoring"
	"github.com/jonathan/bid-pilot/internal/types"
	"github.com/jonathan/bid-pilot/internal/validation"
)

// fakeMarket scripts search results and counts remote submissions
type fakeMarket struct {
	mu        sync.Mutex
	postings  []marketplace.RemotePosting
	searchErr error
	submits   int
}

func (f *fakeMarket) Search(context.Context, marketplace.SearchFilters) ([]marketplace.RemotePosting, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.postings, nil
}

func (f *fakeMarket) GetStatus(context.Context, int64) (string, error) {
	return marketplace.StatusActive, nil
}

func (f *fakeMarket) SubmitBid(_ context.Context, _ int64, _ float64, _ int, _ string) (*marketplace.Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	return &marketplace.Confirmation{BidID: 900, ConfirmationID: "conf-900"}, nil
}

func (f *fakeMarket) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

// memStore is an in-memory Store for pipeline tests
type memStore struct {
	mu        sync.Mutex
	statuses  map[int64]types.PostingStatus
	scores    map[int64]*types.PostingScore
	proposals map[int64]*types.ProposalRecord
}

func newMemStore() *memStore {
	return &memStore{
		statuses:  make(map[int64]types.PostingStatus),
		scores:    make(map[int64]*types.PostingScore),
		proposals: make(map[int64]*types.ProposalRecord),
	}
}

func (m *memStore) UpsertPosting(_ context.Context, p *types.Posting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[p.ID]; !ok {
		m.statuses[p.ID] = types.StatusFetched
	}
	return nil
}

func (m *memStore) UpdatePostingStatus(_ context.Context, id int64, status types.PostingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = status
	return nil
}

func (m *memStore) SaveScore(_ context.Context, score *types.PostingScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[score.PostingID] = score
	return nil
}

func (m *memStore) SaveProposal(_ context.Context, record *types.ProposalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proposals[record.PostingID] = record
	return nil
}

func (m *memStore) status(id int64) types.PostingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[id]
}

// memLedger backs the gate in pipeline tests
type memLedger struct {
	mu   sync.Mutex
	subs map[int64]*types.BidSubmission
}

func newMemLedger() *memLedger {
	return &memLedger{subs: make(map[int64]*types.BidSubmission)}
}

func (m *memLedger) ActiveSubmission(_ context.Context, postingID int64) (*types.BidSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[postingID]
	if !ok || sub.Withdrawn() {
		return nil, nil
	}
	return sub, nil
}

func (m *memLedger) RecordSubmission(_ context.Context, sub *types.BidSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.PostingID] = sub
	return nil
}

func (m *memLedger) RecordAudit(context.Context, types.AuditEntry) error { return nil }

// stubRates serves USD only
type stubRates struct{}

func (stubRates) Rate(_ context.Context, code string) (float64, error) {
	if code == "USD" {
		return 1.0, nil
	}
	return 0, fmt.Errorf("unknown currency %q", code)
}

// fakeGen is an llm.Client returning one fixed draft
type fakeGen struct{}

func (fakeGen) Generate(context.Context, string) (string, error) {
	return "Your posting caught my attention because nightly scraping pipelines are the kind of work I ship " +
		"every week, and I read the full brief before writing this reply. My plan starts with a short kickoff " +
		"to confirm the deliverables, then I break the implementation into small milestones you can review as " +
		"they land, with the first one scoped deliberately small so you can judge my delivery early. On the " +
		"technical side I would lean on python for the collection and cleaning steps, the same stack I run in " +
		"production today, and I keep the code simple enough to extend after handoff. For budget I price " +
		"against agreed milestones so every payment maps to something you can inspect. Which data source " +
		"should the first milestone cover, and is there existing code I should build on?", nil
}

func (fakeGen) GenerateJSON(context.Context, string) (string, error) {
	return `{"score": 7.5, "reason": "clear scope", "suggested_bid": 450}`, nil
}

func (fakeGen) Model() string { return "fake-model" }
func (fakeGen) Close() error  { return nil }

func newTestService(t *testing.T) *proposal.Service {
	t.Helper()
	return proposal.NewService(
		fakeGen{},
		prompts.NewBuilder(),
		validation.NewValidator(),
		persona.NewController(),
		zap.NewNop(),
		proposal.WithRateSource(stubRates{}),
	)
}

func newTestEngine(t *testing.T) *scoring.Engine {
	t.Helper()
	engine, err := scoring.NewEngine(scoring.DefaultConfig(), stubRates{})
	require.NoError(t, err)
	return engine
}

func remotePosting(id int64, skills []string) marketplace.RemotePosting {
	return marketplace.RemotePosting{
		ID:          id,
		Title:       "Scrape data",
		Description: "Build a nightly scraper for product listings. Deliverables: clean CSV dataset, scheduler, and alerting on failures. Acceptance criteria: runs unattended for a week.",
		Status:      marketplace.StatusActive,
		BudgetMin:   250,
		BudgetMax:   750,
		Currency:    "USD",
		Type:        "fixed",
		BidCount:    8,
		SubmitEpoch: time.Now().Unix(),
		Skills:      skills,
		Owner:       &marketplace.OwnerRef{PaymentVerified: true, Rating: 4.7, JobsPosted: 10, JobsHired: 8},
	}
}

func TestRunFullFlow(t *testing.T) {
	market := &fakeMarket{postings: []marketplace.RemotePosting{
		remotePosting(1, []string{"python"}),
		remotePosting(2, []string{"cooking"}),
	}}
	store := newMemStore()
	ledger := newMemLedger()

	p := New(market, store, newTestEngine(t), newTestService(t), zap.NewNop()).
		WithGate(gate.New(market, ledger, zap.NewNop()))

	var mu sync.Mutex
	var stages []string
	summary, err := p.Run(context.Background(), RunOptions{
		Query:         "scraping",
		Skills:        []string{"python"},
		BidPeriodDays: 7,
		Concurrency:   2,
		OnProgress: func(e ProgressEvent) {
			mu.Lock()
			stages = append(stages, e.Stage)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Fetched)
	assert.Equal(t, 1, summary.Scored)
	assert.Equal(t, 1, summary.SkillsBlocked)
	assert.Equal(t, 1, summary.Proposals)
	assert.Equal(t, 1, summary.BidsSubmitted)
	assert.Empty(t, summary.Failures)

	assert.Equal(t, types.StatusBidSubmitted, store.status(1))
	assert.Equal(t, types.StatusSkillsBlocked, store.status(2))
	assert.Equal(t, 1, market.submitCount())

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, stages, StageFetch)
	assert.Contains(t, stages, StageScore)
	assert.Contains(t, stages, StagePropose)
	assert.Contains(t, stages, StageBid)
	assert.Contains(t, stages, StageComplete)
}

func TestRunSkipsLowScore(t *testing.T) {
	market := &fakeMarket{postings: []marketplace.RemotePosting{
		remotePosting(1, []string{"python"}),
	}}
	store := newMemStore()

	p := New(market, store, newTestEngine(t), newTestService(t), zap.NewNop())

	summary, err := p.Run(context.Background(), RunOptions{
		MinScoreForBid: 9.9,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Scored)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Proposals)
	assert.Equal(t, types.StatusSkipped, store.status(1))
}

func TestRunDryRunStopsBeforeBidding(t *testing.T) {
	market := &fakeMarket{postings: []marketplace.RemotePosting{
		remotePosting(1, []string{"python"}),
	}}
	store := newMemStore()
	ledger := newMemLedger()

	p := New(market, store, newTestEngine(t), newTestService(t), zap.NewNop()).
		WithGate(gate.New(market, ledger, zap.NewNop()))

	summary, err := p.Run(context.Background(), RunOptions{
		BidPeriodDays: 7,
		DryRun:        true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Proposals)
	assert.Zero(t, summary.BidsSubmitted)
	assert.Zero(t, market.submitCount())
	assert.Equal(t, types.StatusReviewed, store.status(1))
}

func TestRunDuplicateBidSkipsPosting(t *testing.T) {
	market := &fakeMarket{postings: []marketplace.RemotePosting{
		remotePosting(1, []string{"python"}),
	}}
	store := newMemStore()
	ledger := newMemLedger()
	ledger.subs[1] = &types.BidSubmission{PostingID: 1, Status: "active"}

	p := New(market, store, newTestEngine(t), newTestService(t), zap.NewNop()).
		WithGate(gate.New(market, ledger, zap.NewNop()))

	summary, err := p.Run(context.Background(), RunOptions{BidPeriodDays: 7})
	require.NoError(t, err)

	assert.Zero(t, summary.BidsSubmitted)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, market.submitCount())
	assert.Equal(t, types.StatusSkipped, store.status(1))
}

func TestRunSearchFailureAborts(t *testing.T) {
	market := &fakeMarket{searchErr: fmt.Errorf("api down")}
	p := New(market, newMemStore(), newTestEngine(t), newTestService(t), zap.NewNop())

	_, err := p.Run(context.Background(), RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "posting search failed")
}

func TestToPosting(t *testing.T) {
	epoch := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rp := marketplace.RemotePosting{
		ID:          77,
		Title:       "API integration",
		Type:        "Hourly",
		BudgetMin:   20,
		BudgetMax:   40,
		Currency:    "EUR",
		BidCount:    3,
		SubmitEpoch: epoch.Unix(),
		Skills:      []string{"golang"},
		Owner:       &marketplace.OwnerRef{Verified: true, Rating: 4.2},
	}

	p := ToPosting(rp)

	assert.Equal(t, int64(77), p.ID)
	assert.Equal(t, types.EngagementHourly, p.Engagement)
	assert.Equal(t, "EUR", p.Budget.CurrencyCode)
	assert.Equal(t, epoch, p.SubmitDate)
	assert.Equal(t, types.StatusFetched, p.Status)
	require.NotNil(t, p.Owner)
	assert.True(t, p.Owner.Verified)
	assert.InDelta(t, 4.2, p.Owner.Rating, 1e-9)
}

func TestToPosting_FixedDefault(t *testing.T) {
	p := ToPosting(marketplace.RemotePosting{ID: 1, Type: "fixed"})
	assert.Equal(t, types.EngagementFixed, p.Engagement)
	assert.Nil(t, p.Owner)
}

func TestSkillsOverlap(t *testing.T) {
	assert.True(t, skillsOverlap([]string{"Python", "go"}, []string{"python"}))
	assert.False(t, skillsOverlap([]string{"python"}, []string{"cooking"}))
	assert.False(t, skillsOverlap(nil, []string{"python"}))
}
