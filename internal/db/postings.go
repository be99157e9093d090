package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/bid-pilot/internal/types"
)

// -----------------------------------------------------------------------------
// Posting Methods
// -----------------------------------------------------------------------------

// UpsertPosting creates or refreshes a posting fetched from the marketplace.
// Lifecycle status is preserved on conflict so a re-fetch never rewinds a
// posting the pipeline has already advanced.
func (db *DB) UpsertPosting(ctx context.Context, p *types.Posting) error {
	skillsJSON, err := json.Marshal(p.Skills)
	if err != nil {
		return fmt.Errorf("failed to marshal skills: %w", err)
	}

	var ownerJSON []byte
	if p.Owner != nil {
		ownerJSON, err = json.Marshal(p.Owner)
		if err != nil {
			return fmt.Errorf("failed to marshal owner info: %w", err)
		}
	}

	status := p.Status
	if status == "" {
		status = types.StatusFetched
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO postings
		   (id, title, description, budget_min, budget_max, currency, engagement,
		    skills, bid_count, submit_date, owner_info, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
		   title = $2, description = $3, budget_min = $4, budget_max = $5,
		   currency = $6, engagement = $7, skills = $8, bid_count = $9,
		   updated_at = NOW()`,
		p.ID, p.Title, p.Description, p.Budget.Minimum, p.Budget.Maximum,
		p.Budget.CurrencyCode, p.Engagement, skillsJSON, p.BidCount,
		p.SubmitDate, ownerJSON, status,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert posting %d: %w", p.ID, err)
	}
	return nil
}

// GetPosting retrieves a posting by its marketplace ID
func (db *DB) GetPosting(ctx context.Context, id int64) (*types.Posting, error) {
	var p types.Posting
	var skillsJSON, ownerJSON []byte

	err := db.pool.QueryRow(ctx,
		`SELECT id, title, description, budget_min, budget_max, currency,
		        engagement, skills, bid_count, submit_date, owner_info, status
		 FROM postings WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Title, &p.Description, &p.Budget.Minimum, &p.Budget.Maximum,
		&p.Budget.CurrencyCode, &p.Engagement, &skillsJSON, &p.BidCount,
		&p.SubmitDate, &ownerJSON, &p.Status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get posting %d: %w", id, err)
	}

	if skillsJSON != nil {
		_ = json.Unmarshal(skillsJSON, &p.Skills)
	}
	if ownerJSON != nil {
		_ = json.Unmarshal(ownerJSON, &p.Owner)
	}
	return &p, nil
}

// ListPostingsByStatus retrieves postings in a lifecycle status, newest first
func (db *DB) ListPostingsByStatus(ctx context.Context, status types.PostingStatus, limit int) ([]types.Posting, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, title, description, budget_min, budget_max, currency,
		        engagement, skills, bid_count, submit_date, owner_info, status
		 FROM postings WHERE status = $1
		 ORDER BY submit_date DESC LIMIT $2`,
		status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list postings: %w", err)
	}
	defer rows.Close()

	var postings []types.Posting
	for rows.Next() {
		var p types.Posting
		var skillsJSON, ownerJSON []byte
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Budget.Minimum,
			&p.Budget.Maximum, &p.Budget.CurrencyCode, &p.Engagement, &skillsJSON,
			&p.BidCount, &p.SubmitDate, &ownerJSON, &p.Status); err != nil {
			return nil, fmt.Errorf("failed to scan posting: %w", err)
		}
		if skillsJSON != nil {
			_ = json.Unmarshal(skillsJSON, &p.Skills)
		}
		if ownerJSON != nil {
			_ = json.Unmarshal(ownerJSON, &p.Owner)
		}
		postings = append(postings, p)
	}
	return postings, nil
}

// UpdatePostingStatus advances a posting through the pipeline lifecycle
func (db *DB) UpdatePostingStatus(ctx context.Context, id int64, status types.PostingStatus) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE postings SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update posting %d status: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("posting not found: %d", id)
	}
	return nil
}
