package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// defaultRequestsPerMinute matches the platform's documented per-account
// API allowance.
const defaultRequestsPerMinute = 60

// DefaultBaseURL is the platform's production REST API root
const DefaultBaseURL = "https://www.freelancer.com/api"

// HTTPClient implements Client against the platform REST API
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *minuteLimiter
	log        *zap.Logger
}

// HTTPOption customizes an HTTPClient
type HTTPOption func(*HTTPClient)

// WithHTTPDoer overrides the underlying http.Client, mainly for tests
func WithHTTPDoer(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.httpClient = c }
}

// WithRequestsPerMinute overrides the client-side rate allowance
func WithRequestsPerMinute(n int) HTTPOption {
	return func(h *HTTPClient) { h.limiter = newMinuteLimiter(n) }
}

// NewHTTPClient creates a marketplace client for a base URL and OAuth token
func NewHTTPClient(baseURL, token string, log *zap.Logger, opts ...HTTPOption) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("marketplace base URL is required")
	}
	if token == "" {
		return nil, fmt.Errorf("marketplace API token is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	h := &HTTPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    newMinuteLimiter(defaultRequestsPerMinute),
		log:        log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Search returns open postings matching the filters
func (h *HTTPClient) Search(ctx context.Context, filters SearchFilters) ([]RemotePosting, error) {
	params := url.Values{}
	if filters.Query != "" {
		params.Set("query", filters.Query)
	}
	for _, skill := range filters.Skills {
		params.Add("skills[]", skill)
	}
	if filters.MinBudget > 0 {
		params.Set("min_avg_price", strconv.FormatFloat(filters.MinBudget, 'f', -1, 64))
	}
	if filters.MaxBudget > 0 {
		params.Set("max_avg_price", strconv.FormatFloat(filters.MaxBudget, 'f', -1, 64))
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("project_statuses[]", "active")

	var payload struct {
		Result struct {
			Projects []RemotePosting `json:"projects"`
		} `json:"result"`
	}
	if err := h.get(ctx, "/projects/active/?"+params.Encode(), &payload); err != nil {
		return nil, fmt.Errorf("searching postings: %w", err)
	}
	return payload.Result.Projects, nil
}

// GetStatus fetches the current remote status of a posting
func (h *HTTPClient) GetStatus(ctx context.Context, postingID int64) (string, error) {
	var payload struct {
		Result struct {
			Status string `json:"status"`
		} `json:"result"`
	}
	if err := h.get(ctx, fmt.Sprintf("/projects/%d/", postingID), &payload); err != nil {
		return "", fmt.Errorf("fetching status for posting %d: %w", postingID, err)
	}
	return payload.Result.Status, nil
}

// SubmitBid places a bid on a posting
func (h *HTTPClient) SubmitBid(ctx context.Context, postingID int64, amount float64, periodDays int, text string) (*Confirmation, error) {
	body := map[string]any{
		"project_id":  postingID,
		"amount":      amount,
		"period":      periodDays,
		"description": text,
	}

	var payload struct {
		Result Confirmation `json:"result"`
	}
	if err := h.post(ctx, "/bids/", body, &payload); err != nil {
		return nil, fmt.Errorf("submitting bid for posting %d: %w", postingID, err)
	}
	h.log.Info("bid submitted",
		zap.Int64("posting_id", postingID),
		zap.Float64("amount", amount),
		zap.Int("period_days", periodDays))
	return &payload.Result, nil
}

func (h *HTTPClient) get(ctx context.Context, path string, out any) error {
	return h.do(ctx, http.MethodGet, path, nil, out)
}

func (h *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}
	return h.do(ctx, http.MethodPost, path, encoded, out)
}

func (h *HTTPClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	if err := h.limiter.acquire(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("freelancer-oauth-v1", h.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return &APIError{StatusCode: resp.StatusCode, Message: "rate limited", RetryAfter: retryAfter}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response from %s: %w", path, err)
		}
	}
	return nil
}

// minuteLimiter caps outbound calls per rolling minute. The platform bans
// accounts that burst past the documented allowance.
type minuteLimiter struct {
	mu     sync.Mutex
	max    int
	stamps []time.Time
}

func newMinuteLimiter(max int) *minuteLimiter {
	if max <= 0 {
		max = defaultRequestsPerMinute
	}
	return &minuteLimiter{max: max}
}

func (l *minuteLimiter) acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-time.Minute)
		kept := l.stamps[:0]
		for _, s := range l.stamps {
			if s.After(cutoff) {
				kept = append(kept, s)
			}
		}
		l.stamps = kept

		if len(l.stamps) < l.max {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}
		wait := time.Until(l.stamps[0].Add(time.Minute))
		l.mu.Unlock()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
