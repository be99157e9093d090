// Package marketplace talks to the freelance-marketplace platform API:
// project search, status lookup, and bid placement.
package marketplace

import (
	"context"
	"fmt"
)

// Biddable statuses. Any other remote status blocks submission.
const (
	StatusOpen   = "open"
	StatusActive = "active"
)

// Biddable reports whether a remote posting status still accepts bids
func Biddable(status string) bool {
	return status == StatusOpen || status == StatusActive
}

// SearchFilters narrows a posting search
type SearchFilters struct {
	Query     string
	Skills    []string
	MinBudget float64
	MaxBudget float64
	Limit     int
}

// RemotePosting is the platform's view of a project listing
type RemotePosting struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	BudgetMin   float64   `json:"budget_minimum"`
	BudgetMax   float64   `json:"budget_maximum"`
	Currency    string    `json:"currency_code"`
	Type        string    `json:"type"`
	BidCount    int       `json:"bid_count"`
	SubmitEpoch int64     `json:"submitdate"`
	Skills      []string  `json:"skills"`
	Owner       *OwnerRef `json:"owner,omitempty"`
}

// OwnerRef is the platform's client metadata attached to a posting
type OwnerRef struct {
	PaymentVerified bool    `json:"payment_verified"`
	Verified        bool    `json:"verified"`
	JobsPosted      int     `json:"jobs_posted"`
	JobsHired       int     `json:"jobs_hired"`
	Rating          float64 `json:"rating"`
	OnlineStatus    string  `json:"online_status"`
}

// Confirmation is the platform's acknowledgement of a placed bid
type Confirmation struct {
	BidID          int64  `json:"bid_id"`
	ConfirmationID string `json:"confirmation_id"`
}

// Client is the abstract marketplace collaborator consumed by the pipeline
// and the bid safety gate.
type Client interface {
	// Search returns open postings matching the filters
	Search(ctx context.Context, filters SearchFilters) ([]RemotePosting, error)
	// GetStatus fetches the current remote lifecycle status of a posting
	GetStatus(ctx context.Context, postingID int64) (string, error)
	// SubmitBid places a bid and returns the platform confirmation
	SubmitBid(ctx context.Context, postingID int64, amount float64, periodDays int, text string) (*Confirmation, error)
}

// APIError is a marketplace API failure with the HTTP status attached
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("marketplace API error (HTTP %d): %s", e.StatusCode, e.Message)
}
