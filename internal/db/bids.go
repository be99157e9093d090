package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/bid-pilot/internal/types"
)

// -----------------------------------------------------------------------------
// Bid Ledger Methods
//
// These satisfy the safety gate's Ledger interface.
// -----------------------------------------------------------------------------

// ActiveSubmission returns the non-withdrawn bid submission for a posting,
// or nil when none exists
func (db *DB) ActiveSubmission(ctx context.Context, postingID int64) (*types.BidSubmission, error) {
	var sub types.BidSubmission

	err := db.pool.QueryRow(ctx,
		`SELECT id, posting_id, remote_bid_id, amount, period_days, proposal,
		        status, confirmation_id, submitted_at
		 FROM bid_submissions
		 WHERE posting_id = $1 AND status <> 'withdrawn'
		 ORDER BY submitted_at DESC LIMIT 1`,
		postingID,
	).Scan(&sub.ID, &sub.PostingID, &sub.RemoteBidID, &sub.Amount, &sub.PeriodDays,
		&sub.Proposal, &sub.Status, &sub.ConfirmationID, &sub.SubmittedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check bid ledger for posting %d: %w", postingID, err)
	}
	return &sub, nil
}

// RecordSubmission persists a successful bid submission
func (db *DB) RecordSubmission(ctx context.Context, sub *types.BidSubmission) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO bid_submissions
		   (id, posting_id, remote_bid_id, amount, period_days, proposal,
		    status, confirmation_id, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sub.ID, sub.PostingID, sub.RemoteBidID, sub.Amount, sub.PeriodDays,
		sub.Proposal, sub.Status, sub.ConfirmationID, sub.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record bid submission %s: %w", sub.ID, err)
	}
	return nil
}

// WithdrawSubmission marks a submission as withdrawn so the posting becomes
// biddable again
func (db *DB) WithdrawSubmission(ctx context.Context, postingID int64) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE bid_submissions SET status = 'withdrawn'
		 WHERE posting_id = $1 AND status <> 'withdrawn'`,
		postingID,
	)
	if err != nil {
		return fmt.Errorf("failed to withdraw bid for posting %d: %w", postingID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no active bid for posting: %d", postingID)
	}
	return nil
}

// ListSubmissions retrieves recent bid submissions, newest first
func (db *DB) ListSubmissions(ctx context.Context, limit int) ([]types.BidSubmission, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, posting_id, remote_bid_id, amount, period_days, proposal,
		        status, confirmation_id, submitted_at
		 FROM bid_submissions ORDER BY submitted_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bid submissions: %w", err)
	}
	defer rows.Close()

	var subs []types.BidSubmission
	for rows.Next() {
		var sub types.BidSubmission
		if err := rows.Scan(&sub.ID, &sub.PostingID, &sub.RemoteBidID, &sub.Amount,
			&sub.PeriodDays, &sub.Proposal, &sub.Status, &sub.ConfirmationID,
			&sub.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bid submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// RecordAudit persists a gate decision or submission outcome
func (db *DB) RecordAudit(ctx context.Context, entry types.AuditEntry) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO audit_log (id, action, entity_type, entity_id, status, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.Action, entry.EntityType, entry.EntityID,
		entry.Status, entry.Detail, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries retrieves the audit trail for one posting, oldest first
func (db *DB) ListAuditEntries(ctx context.Context, postingID int64) ([]types.AuditEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, action, entity_type, entity_id, status, detail, created_at
		 FROM audit_log WHERE entity_id = $1
		 ORDER BY created_at ASC`,
		postingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []types.AuditEntry
	for rows.Next() {
		var e types.AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.EntityType, &e.EntityID,
			&e.Status, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
