package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/bid-pilot/internal/types"
)

func TestPrintScore(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	posting := &types.Posting{ID: 42, Title: "Python scraping automation"}
	score := &types.PostingScore{
		PostingID: 42,
		Score:     7.85,
		Grade:     "A",
		Reason:    "healthy budget, light competition",
		Breakdown: types.ScoreBreakdown{
			BudgetEfficiency: 9.0,
			Competition:      8.0,
			EstimatedHours:   14,
			HourlyRate:       35.71,
		},
	}

	p.PrintScore(posting, score)
	output := buf.String()

	assert.Contains(t, output, "POSTING SCORE")
	assert.Contains(t, output, "Python scraping automation")
	assert.Contains(t, output, "7.85")
	assert.Contains(t, output, "grade A")
	assert.Contains(t, output, "14 hours")
}

func TestPrintScore_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintScore(nil, nil)

	assert.Empty(t, buf.String())
}

func TestPrintValidation(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	result := &types.ValidationResult{
		Valid: false,
		Issues: []types.Issue{
			{Rule: "word_count", Severity: types.SeverityCritical, Message: "too short"},
			{Rule: "near_duplicate", Severity: types.SeverityWarning, Message: "similar to recent proposal"},
		},
	}

	p.PrintValidation(result)
	output := buf.String()

	assert.Contains(t, output, "PROPOSAL VALIDATION")
	assert.Contains(t, output, "REJECTED")
	assert.Contains(t, output, "word_count")
	assert.Contains(t, output, "Critical issues: 1")
	assert.Contains(t, output, "Warnings: 1")
}

func TestPrintProposal(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	record := &types.ProposalRecord{
		PostingID: 42,
		Text:      "Your scraping pipeline needs a reliable schedule.",
		Model:     "gemini-2.0-flash",
		Strategy:  types.StrategyLLMEnhanced,
		Attempts:  2,
		LatencyMS: 900,
	}

	p.PrintProposal(record)
	output := buf.String()

	assert.Contains(t, output, "GENERATED PROPOSAL")
	assert.Contains(t, output, "llm_enhanced")
	assert.Contains(t, output, "gemini-2.0-flash")
	assert.Contains(t, output, "Attempts: 2")
}

func TestPrintSubmission(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	sub := &types.BidSubmission{
		PostingID:      42,
		RemoteBidID:    777,
		Amount:         500,
		PeriodDays:     7,
		Status:         "active",
		ConfirmationID: "conf-777",
	}

	p.PrintSubmission(sub)
	output := buf.String()

	assert.Contains(t, output, "BID SUBMITTED")
	assert.Contains(t, output, "777")
	assert.Contains(t, output, "conf-777")
	assert.Contains(t, output, "$500.00 over 7 days")
}

func TestNewLogger(t *testing.T) {
	for _, verbose := range []bool{false, true} {
		log, err := NewLogger(verbose)
		require.NoError(t, err)
		require.NotNil(t, log)
		_ = log.Sync()
	}
}
