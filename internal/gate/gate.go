// Package gate implements the fail-closed pre-submission safety gate. It
// is the single decision point between a validated proposal and the remote
// bid call: every submission passes its checks or does not happen.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/bid-pilot/internal/marketplace"
	"github.com/jonathan/bid-pilot/internal/types"
)

// Gate failure modes. Each one aborts submission for the posting and flags
// it for operator review; none is retried automatically.
var (
	// ErrStaleRemoteState means the posting is no longer biddable remotely
	ErrStaleRemoteState = errors.New("posting is no longer biddable")
	// ErrDuplicateSubmission means an active bid already exists locally
	ErrDuplicateSubmission = errors.New("an active bid already exists for this posting")
	// ErrContentRiskRejected means the proposal failed the content risk check
	ErrContentRiskRejected = errors.New("proposal failed content risk check")
)

// Ledger is the local submission store the gate consults and updates
type Ledger interface {
	// ActiveSubmission returns the non-withdrawn submission for a posting,
	// or nil when none exists.
	ActiveSubmission(ctx context.Context, postingID int64) (*types.BidSubmission, error)
	// RecordSubmission persists a successful submission
	RecordSubmission(ctx context.Context, sub *types.BidSubmission) error
	// RecordAudit persists a gate decision for operator review
	RecordAudit(ctx context.Context, entry types.AuditEntry) error
}

// BidParams are the operator-approved bid terms
type BidParams struct {
	Amount     float64
	PeriodDays int
	Proposal   string
}

// Gate runs the pre-submission checks and, only when all pass, places the
// bid through the marketplace client.
type Gate struct {
	market marketplace.Client
	ledger Ledger
	log    *zap.Logger
	now    func() time.Time
}

// New creates a bid safety gate
func New(market marketplace.Client, ledger Ledger, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{market: market, ledger: ledger, log: log, now: time.Now}
}

// CheckAndSubmit verifies remote state, the local ledger, and content risk
// in that order, then submits the bid. It is fail-closed: an error from any
// check, including infrastructure errors such as an unreachable
// marketplace, blocks submission. No check can be skipped.
func (g *Gate) CheckAndSubmit(ctx context.Context, posting *types.Posting, params BidParams) (*types.BidSubmission, error) {
	status, err := g.market.GetStatus(ctx, posting.ID)
	if err != nil {
		g.audit(ctx, posting.ID, "remote_status_check", "blocked", err.Error())
		return nil, fmt.Errorf("verifying remote status for posting %d: %w", posting.ID, err)
	}
	if !marketplace.Biddable(status) {
		g.audit(ctx, posting.ID, "remote_status_check", "blocked", fmt.Sprintf("remote status %q", status))
		return nil, fmt.Errorf("posting %d has remote status %q: %w", posting.ID, status, ErrStaleRemoteState)
	}

	existing, err := g.ledger.ActiveSubmission(ctx, posting.ID)
	if err != nil {
		g.audit(ctx, posting.ID, "ledger_check", "blocked", err.Error())
		return nil, fmt.Errorf("checking submission ledger for posting %d: %w", posting.ID, err)
	}
	if existing != nil {
		g.audit(ctx, posting.ID, "ledger_check", "blocked", fmt.Sprintf("existing bid %s", existing.ID))
		return nil, fmt.Errorf("posting %d: %w", posting.ID, ErrDuplicateSubmission)
	}

	if err := CheckContentRisk(params.Proposal, posting); err != nil {
		g.audit(ctx, posting.ID, "content_risk_check", "blocked", err.Error())
		return nil, fmt.Errorf("posting %d: %w: %v", posting.ID, ErrContentRiskRejected, err)
	}

	conf, err := g.market.SubmitBid(ctx, posting.ID, params.Amount, params.PeriodDays, params.Proposal)
	if err != nil {
		g.audit(ctx, posting.ID, "submit_bid", "error", err.Error())
		return nil, fmt.Errorf("submitting bid for posting %d: %w", posting.ID, err)
	}

	sub := &types.BidSubmission{
		ID:             uuid.New(),
		PostingID:      posting.ID,
		RemoteBidID:    conf.BidID,
		Amount:         params.Amount,
		PeriodDays:     params.PeriodDays,
		Proposal:       params.Proposal,
		Status:         "active",
		SubmittedAt:    g.now(),
		ConfirmationID: conf.ConfirmationID,
	}
	if err := g.ledger.RecordSubmission(ctx, sub); err != nil {
		// The remote bid is already placed; surface the ledger failure
		// loudly so the operator reconciles by hand.
		g.audit(ctx, posting.ID, "record_submission", "error", err.Error())
		return sub, fmt.Errorf("bid %d placed but not recorded locally: %w", conf.BidID, err)
	}

	g.audit(ctx, posting.ID, "submit_bid", "success", fmt.Sprintf("remote bid %d", conf.BidID))
	g.log.Info("bid placed",
		zap.Int64("posting_id", posting.ID),
		zap.Int64("remote_bid_id", conf.BidID),
		zap.Float64("amount", params.Amount))
	return sub, nil
}

// audit records a gate decision; audit failures are logged, never fatal
func (g *Gate) audit(ctx context.Context, postingID int64, action, status, detail string) {
	entry := types.AuditEntry{
		ID:         uuid.New(),
		Action:     action,
		EntityType: "bid",
		EntityID:   postingID,
		Status:     status,
		Detail:     detail,
		CreatedAt:  g.now(),
	}
	if err := g.ledger.RecordAudit(ctx, entry); err != nil {
		g.log.Warn("audit write failed",
			zap.Int64("posting_id", postingID),
			zap.String("action", action),
			zap.Error(err))
	}
}
