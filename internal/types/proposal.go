// Package types provides type definitions for structured data used throughout the bid-pilot system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// IssueSeverity classifies a validation issue
type IssueSeverity string

// Issue severities. Critical issues block acceptance; warnings are recorded
// but never block.
const (
	SeverityCritical IssueSeverity = "critical"
	SeverityWarning  IssueSeverity = "warning"
)

// Issue represents a single validation finding against a generated proposal
type Issue struct {
	Rule     string        `json:"rule"`
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// ValidationResult is the outcome of running all proposal rules.
// Valid is false only when at least one critical issue is present.
type ValidationResult struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

// Criticals returns only the critical-severity issues
func (r ValidationResult) Criticals() []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == SeverityCritical {
			out = append(out, issue)
		}
	}
	return out
}

// Warnings returns only the warning-severity issues
func (r ValidationResult) Warnings() []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == SeverityWarning {
			out = append(out, issue)
		}
	}
	return out
}

// ProposalStrategy identifies how a proposal was produced
type ProposalStrategy string

// Proposal strategies
const (
	StrategyQuickTemplate ProposalStrategy = "quick_template"
	StrategyLLMEnhanced   ProposalStrategy = "llm_enhanced"
)

// ProposalRecord is the final accepted proposal for a posting, with the
// generation metadata needed by the report and dashboard layers.
type ProposalRecord struct {
	PostingID  int64            `json:"posting_id"`
	Text       string           `json:"text"`
	Model      string           `json:"model"`
	Strategy   ProposalStrategy `json:"strategy"`
	Attempts   int              `json:"attempts"`
	Validation ValidationResult `json:"validation"`
	LatencyMS  int64            `json:"latency_ms"`
}
