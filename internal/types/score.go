// Package types provides type definitions for structured data used throughout the bid-pilot system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// ScoreBreakdown holds the per-dimension sub-scores for one posting.
// Every sub-score is normalized to the 0-10 range.
type ScoreBreakdown struct {
	BudgetEfficiency float64 `json:"budget_efficiency"`
	Competition      float64 `json:"competition"`
	Clarity          float64 `json:"clarity"`
	Customer         float64 `json:"customer"`
	Tech             float64 `json:"tech"`
	Risk             float64 `json:"risk"`

	EstimatedHours int     `json:"estimated_hours"`
	HourlyRate     float64 `json:"hourly_rate"`
}

// PostingScore is the complete scoring result for one posting. It is
// overwritten on re-scoring; there is exactly one per posting version.
type PostingScore struct {
	PostingID int64          `json:"posting_id"`
	Score     float64        `json:"score"`
	Grade     string         `json:"grade"`
	Reason    string         `json:"reason"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// ProviderResult is the raw output of one language-model provider call.
// It is ephemeral: consumed by the concurrent scorer and discarded.
type ProviderResult struct {
	Score          float64  `json:"score"`
	Reason         string   `json:"reason"`
	Proposal       string   `json:"proposal,omitempty"`
	SuggestedBid   float64  `json:"suggested_bid,omitempty"`
	EstimatedHours int      `json:"estimated_hours,omitempty"`
	HourlyRate     float64  `json:"hourly_rate,omitempty"`
	RiskKeywords   []string `json:"risk_keywords,omitempty"`
	ProviderModel  string   `json:"provider_model"`
}

// ModelScore is the aggregated output of the concurrent LLM scorer.
// Providers lists every provider that contributed to the final values,
// preserving auditability of ensemble and race outcomes.
type ModelScore struct {
	Score          float64  `json:"score"`
	Reason         string   `json:"reason"`
	Proposal       string   `json:"proposal,omitempty"`
	SuggestedBid   float64  `json:"suggested_bid,omitempty"`
	EstimatedHours int      `json:"estimated_hours,omitempty"`
	HourlyRate     float64  `json:"hourly_rate,omitempty"`
	RiskKeywords   []string `json:"risk_keywords,omitempty"`
	Providers      []string `json:"providers"`
}
