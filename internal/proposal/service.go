// Package proposal orchestrates proposal generation: prompt build, model
// call, validation, bounded retry with feedback, and template fallback.
package proposal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/bid-pilot/internal/llm"
	"github.com/jonathan/bid-pilot/internal/persona"
	"github.com/jonathan/bid-pilot/internal/prompts"
	"github.com/jonathan/bid-pilot/internal/types"
	"github.com/jonathan/bid-pilot/internal/validation"
)

// DefaultMaxAttempts bounds the generate-validate loop
const DefaultMaxAttempts = 3

// state tracks where a generation run is in its lifecycle. Transitions are
// strictly forward; the retry edge goes back through statePromptBuilt with
// accumulated feedback.
type state int

const (
	stateInit state = iota
	statePromptBuilt
	stateModelCalled
	stateValidated
	stateAccepted
	stateFallbackUsed
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case statePromptBuilt:
		return "prompt_built"
	case stateModelCalled:
		return "model_called"
	case stateValidated:
		return "validated"
	case stateAccepted:
		return "accepted"
	case stateFallbackUsed:
		return "fallback_used"
	default:
		return "unknown"
	}
}

// Service generates validated proposals for postings
type Service struct {
	client      llm.Client
	builder     *prompts.Builder
	validator   *validation.Validator
	personas    *persona.Controller
	history     *validation.History
	rates       RateSource
	maxAttempts int
	log         *zap.Logger
	now         func() time.Time
}

// Option customizes a Service
type Option func(*Service)

// WithMaxAttempts overrides the retry bound
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRateSource attaches currency rates for strategy selection
func WithRateSource(r RateSource) Option {
	return func(s *Service) { s.rates = r }
}

// WithHistory attaches the rolling proposal history. Accepted proposals are
// recorded into it so later runs can detect near-duplicates.
func WithHistory(h *validation.History) Option {
	return func(s *Service) { s.history = h }
}

// NewService creates a proposal service
func NewService(client llm.Client, builder *prompts.Builder, validator *validation.Validator, personas *persona.Controller, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		client:      client,
		builder:     builder,
		validator:   validator,
		personas:    personas,
		maxAttempts: DefaultMaxAttempts,
		log:         log,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate produces a validated proposal for a posting. score may be nil
// when the posting was never rule-scored. The strategy selector routes
// low-value postings straight to the deterministic template; model-backed
// runs retry up to the attempt bound with validator feedback injected into
// each retry prompt, then fall back to the template.
func (s *Service) Generate(ctx context.Context, posting *types.Posting, score *types.PostingScore) (*types.ProposalRecord, error) {
	start := s.now()

	priorScore := -1.0
	if score != nil {
		priorScore = score.Score
	}
	strategy := SelectStrategy(ctx, s.rates, posting, priorScore)

	projectType := s.personas.DetectProjectType(posting.Title, posting.Description)
	profile := s.personas.ProfileFor(projectType)

	if strategy == types.StrategyQuickTemplate {
		record := s.templateRecord(posting, profile, 0, start)
		s.log.Info("proposal generated from template",
			zap.Int64("posting_id", posting.ID),
			zap.String("project_type", string(projectType)))
		return record, nil
	}

	record, err := s.generateWithModel(ctx, posting, profile, score, start)
	if err != nil {
		return nil, err
	}
	s.log.Info("proposal generated",
		zap.Int64("posting_id", posting.ID),
		zap.String("project_type", string(projectType)),
		zap.String("strategy", string(record.Strategy)),
		zap.Int("attempts", record.Attempts),
		zap.Int64("latency_ms", record.LatencyMS))
	return record, nil
}

// generateWithModel runs the retry-with-feedback state machine
func (s *Service) generateWithModel(ctx context.Context, posting *types.Posting, profile persona.Profile, score *types.PostingScore, start time.Time) (*types.ProposalRecord, error) {
	current := stateInit
	var feedback []string

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prompt := s.builder.BuildProposal(posting, profile, score, feedback)
		current = statePromptBuilt

		text, err := s.client.Generate(ctx, prompt)
		current = stateModelCalled
		if err != nil {
			s.log.Warn("model call failed",
				zap.Int64("posting_id", posting.ID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			feedback = append(feedback, fmt.Sprintf("attempt %d produced no output", attempt))
			continue
		}

		text = llm.SanitizeProposal(text)
		result := s.validator.Validate(text, posting)
		current = stateValidated

		if result.Valid {
			current = stateAccepted
			if s.history != nil {
				s.history.Add(text)
			}
			return &types.ProposalRecord{
				PostingID:  posting.ID,
				Text:       text,
				Model:      s.client.Model(),
				Strategy:   types.StrategyLLMEnhanced,
				Attempts:   attempt,
				Validation: result,
				LatencyMS:  s.now().Sub(start).Milliseconds(),
			}, nil
		}

		for _, issue := range result.Criticals() {
			feedback = append(feedback, issue.Message)
		}
		s.log.Warn("proposal rejected by validator",
			zap.Int64("posting_id", posting.ID),
			zap.Int("attempt", attempt),
			zap.String("state", current.String()),
			zap.Int("critical_issues", len(result.Criticals())))
	}

	// Retries exhausted: fall back to the deterministic template.
	record := s.templateRecord(posting, profile, s.maxAttempts, start)
	s.log.Warn("falling back to template after exhausted retries",
		zap.Int64("posting_id", posting.ID),
		zap.Int("attempts", s.maxAttempts),
		zap.String("state", stateFallbackUsed.String()))
	return record, nil
}

// templateValidator checks template output without duplicate detection:
// the template is intentionally similar across postings.
var templateValidator = validation.NewValidator()

// templateRecord builds the accepted record for a template proposal
func (s *Service) templateRecord(posting *types.Posting, profile persona.Profile, priorAttempts int, start time.Time) *types.ProposalRecord {
	text := FallbackProposal(posting, profile)
	result := templateValidator.Validate(text, posting)
	if s.history != nil {
		s.history.Add(text)
	}
	return &types.ProposalRecord{
		PostingID:  posting.ID,
		Text:       text,
		Model:      "template",
		Strategy:   types.StrategyQuickTemplate,
		Attempts:   priorAttempts + 1,
		Validation: result,
		LatencyMS:  s.now().Sub(start).Milliseconds(),
	}
}
