package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/bid-pilot/internal/pipeline"
	"github.com/jonathan/bid-pilot/internal/types"
)

// mockStore implements Store backed by maps
type mockStore struct {
	postings  map[int64]*types.Posting
	scores    map[int64]*types.PostingScore
	proposals map[int64]*types.ProposalRecord
	bids      map[int64]*types.BidSubmission
	audits    map[int64][]types.AuditEntry
	withdrawn []int64
}

func newMockStore() *mockStore {
	return &mockStore{
		postings:  make(map[int64]*types.Posting),
		scores:    make(map[int64]*types.PostingScore),
		proposals: make(map[int64]*types.ProposalRecord),
		bids:      make(map[int64]*types.BidSubmission),
		audits:    make(map[int64][]types.AuditEntry),
	}
}

func (m *mockStore) GetPosting(_ context.Context, id int64) (*types.Posting, error) {
	return m.postings[id], nil
}

func (m *mockStore) ListPostingsByStatus(_ context.Context, status types.PostingStatus, _ int) ([]types.Posting, error) {
	var out []types.Posting
	for _, p := range m.postings {
		if p.Status == status {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockStore) GetScore(_ context.Context, postingID int64) (*types.PostingScore, error) {
	return m.scores[postingID], nil
}

func (m *mockStore) GetLatestProposal(_ context.Context, postingID int64) (*types.ProposalRecord, error) {
	return m.proposals[postingID], nil
}

func (m *mockStore) ActiveSubmission(_ context.Context, postingID int64) (*types.BidSubmission, error) {
	return m.bids[postingID], nil
}

func (m *mockStore) WithdrawSubmission(_ context.Context, postingID int64) error {
	m.withdrawn = append(m.withdrawn, postingID)
	delete(m.bids, postingID)
	return nil
}

func (m *mockStore) ListSubmissions(_ context.Context, _ int) ([]types.BidSubmission, error) {
	var out []types.BidSubmission
	for _, b := range m.bids {
		out = append(out, *b)
	}
	return out, nil
}

func (m *mockStore) ListAuditEntries(_ context.Context, postingID int64) ([]types.AuditEntry, error) {
	return m.audits[postingID], nil
}

// fakeRunner records the options it ran with
type fakeRunner struct {
	opts    pipeline.RunOptions
	summary *pipeline.Summary
	err     error
}

func (f *fakeRunner) Run(_ context.Context, opts pipeline.RunOptions) (*pipeline.Summary, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

// testServer creates a server with a mock store for testing
type testServer struct {
	*Server
	mock *mockStore
}

func newTestServer() *testServer {
	mock := newMockStore()
	return &testServer{
		Server: &Server{store: mock},
		mock:   mock,
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestHandleGetPosting_InvalidID(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/postings/not-a-number", nil)
	req.SetPathValue("id", "not-a-number")
	w := httptest.NewRecorder()

	s.handleGetPosting(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "Invalid posting ID")
}

func TestHandleGetPosting_NotFound(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/postings/42", nil)
	req.SetPathValue("id", "42")
	w := httptest.NewRecorder()

	s.handleGetPosting(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetPosting(t *testing.T) {
	s := newTestServer()
	s.mock.postings[42] = &types.Posting{
		ID:     42,
		Title:  "Scraper needed",
		Status: types.StatusScored,
	}

	req := httptest.NewRequest(http.MethodGet, "/postings/42", nil)
	req.SetPathValue("id", "42")
	w := httptest.NewRecorder()

	s.handleGetPosting(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp types.Posting
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.ID)
	assert.Equal(t, "Scraper needed", resp.Title)
}

func TestHandleListPostings_FiltersByStatus(t *testing.T) {
	s := newTestServer()
	s.mock.postings[1] = &types.Posting{ID: 1, Status: types.StatusScored}
	s.mock.postings[2] = &types.Posting{ID: 2, Status: types.StatusSkipped}

	req := httptest.NewRequest(http.MethodGet, "/postings?status=skipped", nil)
	w := httptest.NewRecorder()

	s.handleListPostings(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp ListPostingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Postings, 1)
	assert.Equal(t, int64(2), resp.Postings[0].ID)
}

func TestHandleGetScore(t *testing.T) {
	s := newTestServer()
	s.mock.scores[42] = &types.PostingScore{PostingID: 42, Score: 7.5, Grade: "A"}

	req := httptest.NewRequest(http.MethodGet, "/postings/42/score", nil)
	req.SetPathValue("id", "42")
	w := httptest.NewRecorder()

	s.handleGetScore(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp types.PostingScore
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 7.5, resp.Score, 1e-9)
}

func TestHandleGetProposal_NotFound(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/postings/42/proposal", nil)
	req.SetPathValue("id", "42")
	w := httptest.NewRecorder()

	s.handleGetProposal(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleWithdrawBid(t *testing.T) {
	s := newTestServer()
	s.mock.bids[42] = &types.BidSubmission{PostingID: 42, Status: "active"}

	req := httptest.NewRequest(http.MethodDelete, "/postings/42/bid", nil)
	req.SetPathValue("id", "42")
	w := httptest.NewRecorder()

	s.handleWithdrawBid(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{42}, s.mock.withdrawn)
}

func TestHandleWithdrawBid_NoActiveBid(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodDelete, "/postings/42/bid", nil)
	req.SetPathValue("id", "42")
	w := httptest.NewRecorder()

	s.handleWithdrawBid(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, s.mock.withdrawn)
}

func TestHandleRun_NotConfigured(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	w := httptest.NewRecorder()

	s.handleRun(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleRun_MergesOptionsOverDefaults(t *testing.T) {
	s := newTestServer()
	runner := &fakeRunner{summary: &pipeline.Summary{Fetched: 3, Scored: 2, BidsSubmitted: 1}}
	s.runner = runner
	s.runOpts = pipeline.RunOptions{Query: "python", MinScoreForBid: 4.0, FetchLimit: 30}

	body := `{"query": "scraping", "dry_run": true}`
	req := httptest.NewRequest(http.MethodPost, "/run", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleRun(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "scraping", runner.opts.Query)
	assert.True(t, runner.opts.DryRun)
	assert.InDelta(t, 4.0, runner.opts.MinScoreForBid, 1e-9)
	assert.Equal(t, 30, runner.opts.FetchLimit)

	var resp RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Fetched)
	assert.Equal(t, 1, resp.BidsSubmitted)
}

func TestHandleRun_EmptyBodyUsesDefaults(t *testing.T) {
	s := newTestServer()
	runner := &fakeRunner{summary: &pipeline.Summary{}}
	s.runner = runner
	s.runOpts = pipeline.RunOptions{Query: "python"}

	req := httptest.NewRequest(http.MethodPost, "/run", bytes.NewBufferString(""))
	w := httptest.NewRecorder()

	s.handleRun(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "python", runner.opts.Query)
}

func TestHandleRun_RunnerFailure(t *testing.T) {
	s := newTestServer()
	s.runner = &fakeRunner{err: fmt.Errorf("search unavailable")}

	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	w := httptest.NewRecorder()

	s.handleRun(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "search unavailable")
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/bids?limit=200", nil)
	assert.Equal(t, 100, parseQueryInt(req, "limit", 50, 100))

	req = httptest.NewRequest(http.MethodGet, "/bids", nil)
	assert.Equal(t, 50, parseQueryInt(req, "limit", 50, 100))

	req = httptest.NewRequest(http.MethodGet, "/bids?limit=abc", nil)
	assert.Equal(t, 50, parseQueryInt(req, "limit", 50, 100))
}
