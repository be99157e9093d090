package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/jonathan/bid-pilot/internal/pipeline"
	"github.com/jonathan/bid-pilot/internal/types"
)

// ListPostingsResponse represents the response for listing postings
type ListPostingsResponse struct {
	Postings []types.Posting `json:"postings"`
	Count    int             `json:"count"`
	Limit    int             `json:"limit"`
}

// ListBidsResponse represents the response for listing bid submissions
type ListBidsResponse struct {
	Bids  []types.BidSubmission `json:"bids"`
	Count int                   `json:"count"`
	Limit int                   `json:"limit"`
}

// RunRequest represents the request body for /run
type RunRequest struct {
	Query          string   `json:"query,omitempty"`
	Skills         []string `json:"skills,omitempty"`
	FetchLimit     int      `json:"fetch_limit,omitempty"`
	MinScoreForBid float64  `json:"min_score_for_bid,omitempty"`
	DryRun         bool     `json:"dry_run,omitempty"`
}

// RunResponse represents the response for /run
type RunResponse struct {
	Fetched       int      `json:"fetched"`
	Scored        int      `json:"scored"`
	Skipped       int      `json:"skipped"`
	SkillsBlocked int      `json:"skills_blocked"`
	Proposals     int      `json:"proposals"`
	BidsSubmitted int      `json:"bids_submitted"`
	Failures      []string `json:"failures,omitempty"`
}

// handleListPostings lists postings filtered by lifecycle status
func (s *Server) handleListPostings(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r, "limit", 50, 100)

	status := types.PostingStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = types.StatusScored
	}

	postings, err := s.store.ListPostingsByStatus(r.Context(), status, limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, ListPostingsResponse{
		Postings: postings,
		Count:    len(postings),
		Limit:    limit,
	})
}

// handleGetPosting retrieves a posting by its marketplace ID
func (s *Server) handleGetPosting(w http.ResponseWriter, r *http.Request) {
	postingID, ok := s.postingID(w, r)
	if !ok {
		return
	}

	posting, err := s.store.GetPosting(r.Context(), postingID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if posting == nil {
		s.errorResponse(w, http.StatusNotFound, "Posting not found")
		return
	}

	s.jsonResponse(w, http.StatusOK, posting)
}

// handleGetScore retrieves the stored score for a posting
func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) {
	postingID, ok := s.postingID(w, r)
	if !ok {
		return
	}

	score, err := s.store.GetScore(r.Context(), postingID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if score == nil {
		s.errorResponse(w, http.StatusNotFound, "Score not found")
		return
	}

	s.jsonResponse(w, http.StatusOK, score)
}

// handleGetProposal retrieves the latest proposal for a posting
func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	postingID, ok := s.postingID(w, r)
	if !ok {
		return
	}

	record, err := s.store.GetLatestProposal(r.Context(), postingID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if record == nil {
		s.errorResponse(w, http.StatusNotFound, "Proposal not found")
		return
	}

	s.jsonResponse(w, http.StatusOK, record)
}

// handleGetAudit lists the gate audit trail for a posting
func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	postingID, ok := s.postingID(w, r)
	if !ok {
		return
	}

	entries, err := s.store.ListAuditEntries(r.Context(), postingID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleListBids lists recent bid submissions across all postings
func (s *Server) handleListBids(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r, "limit", 50, 100)

	bids, err := s.store.ListSubmissions(r.Context(), limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, ListBidsResponse{
		Bids:  bids,
		Count: len(bids),
		Limit: limit,
	})
}

// handleGetBid retrieves the active submission for a posting
func (s *Server) handleGetBid(w http.ResponseWriter, r *http.Request) {
	postingID, ok := s.postingID(w, r)
	if !ok {
		return
	}

	sub, err := s.store.ActiveSubmission(r.Context(), postingID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if sub == nil {
		s.errorResponse(w, http.StatusNotFound, "No active bid for posting")
		return
	}

	s.jsonResponse(w, http.StatusOK, sub)
}

// handleWithdrawBid marks the active submission for a posting withdrawn.
// The ledger row is kept for the audit trail.
func (s *Server) handleWithdrawBid(w http.ResponseWriter, r *http.Request) {
	postingID, ok := s.postingID(w, r)
	if !ok {
		return
	}

	sub, err := s.store.ActiveSubmission(r.Context(), postingID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if sub == nil {
		s.errorResponse(w, http.StatusNotFound, "No active bid for posting")
		return
	}

	if err := s.store.WithdrawSubmission(r.Context(), postingID); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"withdrawn":  true,
		"posting_id": postingID,
	})
}

// handleRun executes one pipeline pass synchronously
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "Pipeline not configured")
		return
	}

	opts, ok := s.decodeRunOptions(w, r)
	if !ok {
		return
	}

	summary, err := s.runner.Run(r.Context(), opts)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Pipeline run failed: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, summaryResponse(summary))
}

// handleRunStream executes one pipeline pass, streaming progress as SSE
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "Pipeline not configured")
		return
	}

	opts, ok := s.decodeRunOptions(w, r)
	if !ok {
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	opts.OnProgress = func(event pipeline.ProgressEvent) {
		sse.WriteEvent(event.Stage, event) //nolint:errcheck
	}

	summary, err := s.runner.Run(r.Context(), opts)
	if err != nil {
		sse.WriteError(err.Error())
		return
	}

	sse.WriteComplete(summaryResponse(summary))
}

// decodeRunOptions merges the request body over the server's configured
// run options. An empty body runs with the configured defaults.
func (s *Server) decodeRunOptions(w http.ResponseWriter, r *http.Request) (pipeline.RunOptions, bool) {
	opts := s.runOpts

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return opts, false
	}

	if req.Query != "" {
		opts.Query = req.Query
	}
	if len(req.Skills) > 0 {
		opts.Skills = req.Skills
	}
	if req.FetchLimit > 0 {
		opts.FetchLimit = req.FetchLimit
	}
	if req.MinScoreForBid > 0 {
		opts.MinScoreForBid = req.MinScoreForBid
	}
	if req.DryRun {
		opts.DryRun = true
	}
	return opts, true
}

func summaryResponse(summary *pipeline.Summary) RunResponse {
	resp := RunResponse{
		Fetched:       summary.Fetched,
		Scored:        summary.Scored,
		Skipped:       summary.Skipped,
		SkillsBlocked: summary.SkillsBlocked,
		Proposals:     summary.Proposals,
		BidsSubmitted: summary.BidsSubmitted,
	}
	for _, failure := range summary.Failures {
		resp.Failures = append(resp.Failures, failure.Error())
	}
	return resp
}

// postingID parses the {id} path value as a marketplace posting ID
func (s *Server) postingID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := r.PathValue("id")
	if idStr == "" {
		s.errorResponse(w, http.StatusBadRequest, "Posting ID is required")
		return 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		s.errorResponse(w, http.StatusBadRequest, "Invalid posting ID")
		return 0, false
	}
	return id, true
}

// parseQueryInt parses an integer query parameter with a default and an
// optional maximum (0 means no cap)
func parseQueryInt(r *http.Request, key string, def, max int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
