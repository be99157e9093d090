package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/bid-pilot/internal/types"
)

// -----------------------------------------------------------------------------
// Score Methods
// -----------------------------------------------------------------------------

// SaveScore stores the scoring result for a posting, replacing any earlier
// score. There is exactly one score row per posting.
func (db *DB) SaveScore(ctx context.Context, score *types.PostingScore) error {
	breakdownJSON, err := json.Marshal(score.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal score breakdown: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO posting_scores (posting_id, score, grade, reason, breakdown)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (posting_id) DO UPDATE SET
		   score = $2, grade = $3, reason = $4, breakdown = $5, created_at = NOW()`,
		score.PostingID, score.Score, score.Grade, score.Reason, breakdownJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save score for posting %d: %w", score.PostingID, err)
	}
	return nil
}

// GetScore retrieves the score for a posting
func (db *DB) GetScore(ctx context.Context, postingID int64) (*types.PostingScore, error) {
	var score types.PostingScore
	var breakdownJSON []byte

	err := db.pool.QueryRow(ctx,
		`SELECT posting_id, score, grade, reason, breakdown
		 FROM posting_scores WHERE posting_id = $1`,
		postingID,
	).Scan(&score.PostingID, &score.Score, &score.Grade, &score.Reason, &breakdownJSON)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get score for posting %d: %w", postingID, err)
	}

	if breakdownJSON != nil {
		_ = json.Unmarshal(breakdownJSON, &score.Breakdown)
	}
	return &score, nil
}
