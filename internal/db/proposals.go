package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/bid-pilot/internal/types"
)

// -----------------------------------------------------------------------------
// Proposal Methods
// -----------------------------------------------------------------------------

// SaveProposal stores an accepted proposal. Proposals are append-only so
// regeneration history survives.
func (db *DB) SaveProposal(ctx context.Context, record *types.ProposalRecord) error {
	validationJSON, err := json.Marshal(record.Validation)
	if err != nil {
		return fmt.Errorf("failed to marshal validation result: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO proposals (posting_id, text, model, strategy, attempts, validation, latency_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.PostingID, record.Text, record.Model, record.Strategy,
		record.Attempts, validationJSON, record.LatencyMS,
	)
	if err != nil {
		return fmt.Errorf("failed to save proposal for posting %d: %w", record.PostingID, err)
	}
	return nil
}

// GetLatestProposal retrieves the most recent proposal for a posting
func (db *DB) GetLatestProposal(ctx context.Context, postingID int64) (*types.ProposalRecord, error) {
	var record types.ProposalRecord
	var validationJSON []byte

	err := db.pool.QueryRow(ctx,
		`SELECT posting_id, text, model, strategy, attempts, validation, latency_ms
		 FROM proposals WHERE posting_id = $1
		 ORDER BY created_at DESC LIMIT 1`,
		postingID,
	).Scan(&record.PostingID, &record.Text, &record.Model, &record.Strategy,
		&record.Attempts, &validationJSON, &record.LatencyMS)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get proposal for posting %d: %w", postingID, err)
	}

	if validationJSON != nil {
		_ = json.Unmarshal(validationJSON, &record.Validation)
	}
	return &record, nil
}

// RecentProposalTexts returns the text of the most recent proposals across
// all postings, newest first. The duplicate detector seeds its history
// window from this.
func (db *DB) RecentProposalTexts(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.pool.Query(ctx,
		`SELECT text FROM proposals ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent proposals: %w", err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("failed to scan proposal text: %w", err)
		}
		texts = append(texts, text)
	}
	return texts, nil
}
