// Package types provides type definitions for structured data used throughout the bid-pilot system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// BidSubmission records one bid placed against a posting. The safety gate
// enforces at most one non-withdrawn submission per posting before any
// remote call is made.
type BidSubmission struct {
	ID             uuid.UUID `json:"id"`
	PostingID      int64     `json:"posting_id"`
	RemoteBidID    int64     `json:"remote_bid_id"`
	Amount         float64   `json:"amount"`
	PeriodDays     int       `json:"period_days"`
	Proposal       string    `json:"proposal"`
	Status         string    `json:"status"`
	SubmittedAt    time.Time `json:"submitted_at"`
	ConfirmationID string    `json:"confirmation_id,omitempty"`
}

// Withdrawn reports whether this submission no longer counts against the
// one-active-bid-per-posting invariant.
func (b BidSubmission) Withdrawn() bool {
	return b.Status == "withdrawn"
}

// AuditEntry records a gate decision or submission outcome for operator review
type AuditEntry struct {
	ID         uuid.UUID `json:"id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
