// Package pipeline provides the high-level orchestration for the bid
// placement process: fetch postings, score them, generate proposals, and
// submit bids through the safety gate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/bid-pilot/internal/estimate"
	"github.com/jonathan/bid-pilot/internal/gate"
	"github.com/jonathan/bid-pilot/internal/llm"
	"github.com/jonathan/bid-pilot/internal/marketplace"
	"github.com/jonathan/bid-pilot/internal/observability"
	"github.com/jonathan/bid-pilot/internal/proposal"
	"github.com/jonathan/bid-pilot/internal/scoring"
	"github.com/jonathan/bid-pilot/internal/types"
)

// DefaultConcurrency bounds how many postings are processed at once
const DefaultConcurrency = 4

// Stage names used in progress events
const (
	StageFetch    = "fetch"
	StageScore    = "score"
	StagePropose  = "propose"
	StageBid      = "bid"
	StageComplete = "complete"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Stage     string `json:"stage"`
	PostingID int64  `json:"posting_id,omitempty"`
	Message   string `json:"message"`
	Content   any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// RunOptions holds configuration for running the pipeline
type RunOptions struct {
	Query          string
	Skills         []string
	FetchLimit     int
	MinScoreForBid float64
	BidPeriodDays  int
	Concurrency    int
	DryRun         bool
	Verbose        bool
	OnProgress     ProgressCallback
}

// Store is the persistence surface the pipeline writes through
type Store interface {
	UpsertPosting(ctx context.Context, p *types.Posting) error
	UpdatePostingStatus(ctx context.Context, id int64, status types.PostingStatus) error
	SaveScore(ctx context.Context, score *types.PostingScore) error
	SaveProposal(ctx context.Context, record *types.ProposalRecord) error
}

// Summary aggregates the outcome of one pipeline run
type Summary struct {
	Fetched       int
	Scored        int
	Skipped       int
	SkillsBlocked int
	Proposals     int
	BidsSubmitted int
	Failures      []error
}

// Pipeline wires the stages together. The model scorer and the gate are
// optional: without a scorer the heuristic score stands alone, and without
// a gate the run stops after proposal generation.
type Pipeline struct {
	market  marketplace.Client
	store   Store
	engine  *scoring.Engine
	scorer  *llm.Scorer
	service *proposal.Service
	gate    *gate.Gate
	printer *observability.Printer
	log     *zap.Logger
}

// New assembles a pipeline from its collaborators
func New(market marketplace.Client, store Store, engine *scoring.Engine, service *proposal.Service, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		market:  market,
		store:   store,
		engine:  engine,
		service: service,
		log:     log,
	}
}

// WithScorer attaches the concurrent model scorer
func (p *Pipeline) WithScorer(s *llm.Scorer) *Pipeline {
	p.scorer = s
	return p
}

// WithGate attaches the bid safety gate
func (p *Pipeline) WithGate(g *gate.Gate) *Pipeline {
	p.gate = g
	return p
}

// WithPrinter attaches the verbose-mode printer
func (p *Pipeline) WithPrinter(printer *observability.Printer) *Pipeline {
	p.printer = printer
	return p
}

func emitProgress(opts *RunOptions, stage string, postingID int64, message string, content any) {
	if opts.OnProgress != nil {
		opts.OnProgress(ProgressEvent{
			Stage:     stage,
			PostingID: postingID,
			Message:   message,
			Content:   content,
		})
	}
}

// Run executes the full pipeline once and returns the aggregated summary.
// Per-posting failures are collected, not fatal; only fetch errors and
// context cancellation abort the run.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}

	remotes, err := p.market.Search(ctx, marketplace.SearchFilters{
		Query:  opts.Query,
		Skills: opts.Skills,
		Limit:  opts.FetchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("posting search failed: %w", err)
	}

	summary := &Summary{Fetched: len(remotes)}
	emitProgress(&opts, StageFetch, 0, fmt.Sprintf("fetched %d postings", len(remotes)), nil)
	p.log.Info("postings fetched", zap.Int("count", len(remotes)))

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for _, remote := range remotes {
		posting := ToPosting(remote)
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			outcome, err := p.processPosting(gCtx, posting, &opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failures = append(summary.Failures, fmt.Errorf("posting %d: %w", posting.ID, err))
				return nil
			}
			summary.Scored += outcome.scored
			summary.Skipped += outcome.skipped
			summary.SkillsBlocked += outcome.skillsBlocked
			summary.Proposals += outcome.proposals
			summary.BidsSubmitted += outcome.bids
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}

	emitProgress(&opts, StageComplete, 0,
		fmt.Sprintf("run complete: %d scored, %d proposals, %d bids", summary.Scored, summary.Proposals, summary.BidsSubmitted), nil)
	return summary, nil
}

type postingOutcome struct {
	scored        int
	skipped       int
	skillsBlocked int
	proposals     int
	bids          int
}

func (p *Pipeline) processPosting(ctx context.Context, posting *types.Posting, opts *RunOptions) (postingOutcome, error) {
	var outcome postingOutcome

	if err := p.store.UpsertPosting(ctx, posting); err != nil {
		return outcome, err
	}

	// Skill gate: a posting whose required skills we do not cover is never
	// worth a model call.
	if len(opts.Skills) > 0 && len(posting.Skills) > 0 && !skillsOverlap(opts.Skills, posting.Skills) {
		if err := p.store.UpdatePostingStatus(ctx, posting.ID, types.StatusSkillsBlocked); err != nil {
			return outcome, err
		}
		outcome.skillsBlocked = 1
		p.log.Debug("posting blocked on skills", zap.Int64("posting_id", posting.ID))
		return outcome, nil
	}

	hours := estimate.Hours(posting)
	score := p.engine.Score(ctx, posting, hours)
	if err := p.store.SaveScore(ctx, &score); err != nil {
		return outcome, err
	}
	if err := p.store.UpdatePostingStatus(ctx, posting.ID, types.StatusScored); err != nil {
		return outcome, err
	}
	outcome.scored = 1
	emitProgress(opts, StageScore, posting.ID,
		fmt.Sprintf("scored %.2f (%s)", score.Score, score.Grade), &score)
	if p.printer != nil && opts.Verbose {
		p.printer.PrintScore(posting, &score)
	}

	if score.Score < opts.MinScoreForBid {
		if err := p.store.UpdatePostingStatus(ctx, posting.ID, types.StatusSkipped); err != nil {
			return outcome, err
		}
		outcome.skipped = 1
		return outcome, nil
	}

	// The model scorer refines the heuristic view and suggests a bid
	// amount; its failure is never fatal.
	var modelScore *types.ModelScore
	if p.scorer != nil {
		ms, err := p.scorer.ScoreWithProviders(ctx, posting)
		if err != nil {
			p.log.Warn("model scoring failed",
				zap.Int64("posting_id", posting.ID),
				zap.Error(err))
		} else {
			modelScore = ms
		}
	}

	record, err := p.service.Generate(ctx, posting, &score)
	if err != nil {
		return outcome, fmt.Errorf("proposal generation failed: %w", err)
	}
	if err := p.store.SaveProposal(ctx, record); err != nil {
		return outcome, err
	}
	if err := p.store.UpdatePostingStatus(ctx, posting.ID, types.StatusReviewed); err != nil {
		return outcome, err
	}
	outcome.proposals = 1
	emitProgress(opts, StagePropose, posting.ID,
		fmt.Sprintf("proposal generated via %s in %d attempts", record.Strategy, record.Attempts), nil)
	if p.printer != nil && opts.Verbose {
		p.printer.PrintProposal(record)
	}

	if p.gate == nil || opts.DryRun {
		return outcome, nil
	}

	sub, err := p.gate.CheckAndSubmit(ctx, posting, gate.BidParams{
		Amount:     bidAmount(posting, modelScore),
		PeriodDays: opts.BidPeriodDays,
		Proposal:   record.Text,
	})
	if err != nil {
		switch {
		case errors.Is(err, gate.ErrDuplicateSubmission), errors.Is(err, gate.ErrStaleRemoteState):
			if statusErr := p.store.UpdatePostingStatus(ctx, posting.ID, types.StatusSkipped); statusErr != nil {
				return outcome, statusErr
			}
			outcome.skipped = 1
			p.log.Info("bid blocked by gate",
				zap.Int64("posting_id", posting.ID),
				zap.Error(err))
			return outcome, nil
		default:
			return outcome, fmt.Errorf("bid submission failed: %w", err)
		}
	}

	if err := p.store.UpdatePostingStatus(ctx, posting.ID, types.StatusBidSubmitted); err != nil {
		return outcome, err
	}
	outcome.bids = 1
	emitProgress(opts, StageBid, posting.ID,
		fmt.Sprintf("bid %d placed for $%.2f", sub.RemoteBidID, sub.Amount), nil)
	if p.printer != nil && opts.Verbose {
		p.printer.PrintSubmission(sub)
	}
	return outcome, nil
}

// ToPosting converts the platform's listing payload to the domain model
func ToPosting(rp marketplace.RemotePosting) *types.Posting {
	engagement := types.EngagementFixed
	if strings.EqualFold(rp.Type, "hourly") {
		engagement = types.EngagementHourly
	}

	posting := &types.Posting{
		ID:          rp.ID,
		Title:       rp.Title,
		Description: rp.Description,
		Budget: types.Budget{
			Minimum:      rp.BudgetMin,
			Maximum:      rp.BudgetMax,
			CurrencyCode: rp.Currency,
		},
		Engagement: engagement,
		Skills:     rp.Skills,
		BidCount:   rp.BidCount,
		SubmitDate: time.Unix(rp.SubmitEpoch, 0).UTC(),
		Status:     types.StatusFetched,
	}
	if rp.Owner != nil {
		posting.Owner = &types.OwnerInfo{
			PaymentVerified: rp.Owner.PaymentVerified,
			Verified:        rp.Owner.Verified,
			JobsPosted:      rp.Owner.JobsPosted,
			JobsHired:       rp.Owner.JobsHired,
			Rating:          rp.Owner.Rating,
			OnlineStatus:    rp.Owner.OnlineStatus,
		}
	}
	return posting
}

// bidAmount picks the bid: the model's suggestion when present, otherwise
// the budget midpoint.
func bidAmount(posting *types.Posting, modelScore *types.ModelScore) float64 {
	if modelScore != nil && modelScore.SuggestedBid > 0 {
		return modelScore.SuggestedBid
	}
	return posting.Budget.Average()
}

func skillsOverlap(mine, required []string) bool {
	have := make(map[string]struct{}, len(mine))
	for _, s := range mine {
		have[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	for _, s := range required {
		if _, ok := have[strings.ToLower(strings.TrimSpace(s))]; ok {
			return true
		}
	}
	return false
}

// SortFailures orders collected failures for stable reporting
func (s *Summary) SortFailures() {
	sort.Slice(s.Failures, func(i, j int) bool {
		return s.Failures[i].Error() < s.Failures[j].Error()
	})
}
