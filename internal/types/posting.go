// Package types provides type definitions for structured data used throughout the bid-pilot system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// PostingStatus tracks a posting through the pipeline lifecycle.
// Transitions are append-only: a posting is never deleted, only advanced.
type PostingStatus string

// Posting lifecycle statuses
const (
	StatusFetched       PostingStatus = "fetched"
	StatusScored        PostingStatus = "scored"
	StatusReviewed      PostingStatus = "reviewed"
	StatusBidSubmitted  PostingStatus = "bid_submitted"
	StatusSkipped       PostingStatus = "skipped"
	StatusSkillsBlocked PostingStatus = "skills_blocked"
)

// EngagementType distinguishes fixed-price from hourly postings
type EngagementType string

// Engagement types
const (
	EngagementFixed  EngagementType = "fixed"
	EngagementHourly EngagementType = "hourly"
)

// Budget represents a posting's budget range in its native currency
type Budget struct {
	Minimum      float64 `json:"minimum"`
	Maximum      float64 `json:"maximum"`
	CurrencyCode string  `json:"currency_code"`
}

// Average returns the midpoint of the budget range. When only one bound is
// present, that bound is returned.
func (b Budget) Average() float64 {
	if b.Minimum > 0 && b.Maximum > 0 {
		return (b.Minimum + b.Maximum) / 2
	}
	if b.Maximum > 0 {
		return b.Maximum
	}
	return b.Minimum
}

// OwnerInfo carries client metadata supplied by the marketplace. It is an
// opaque external input: the scoring engine reads it but never computes it.
type OwnerInfo struct {
	PaymentVerified bool    `json:"payment_verified"`
	Verified        bool    `json:"verified"`
	JobsPosted      int     `json:"jobs_posted"`
	JobsHired       int     `json:"jobs_hired"`
	Rating          float64 `json:"rating"`
	OnlineStatus    string  `json:"online_status,omitempty"`
}

// Posting represents a single project listing retrieved from the marketplace
type Posting struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Budget      Budget         `json:"budget"`
	Engagement  EngagementType `json:"engagement"`
	Skills      []string       `json:"skills,omitempty"`
	BidCount    int            `json:"bid_count"`
	SubmitDate  time.Time      `json:"submit_date"`
	Owner       *OwnerInfo     `json:"owner,omitempty"`
	Status      PostingStatus  `json:"status"`
}
