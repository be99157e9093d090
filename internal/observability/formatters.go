// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/bid-pilot/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintScore outputs a human-readable summary of a posting's score.
func (p *Printer) PrintScore(posting *types.Posting, score *types.PostingScore) {
	if score == nil {
		return
	}

	var sb strings.Builder

	if posting != nil {
		title := posting.Title
		if len(title) > 45 {
			title = title[:42] + "..."
		}
		sb.WriteString(fmt.Sprintf("Posting:  %s\n", title))
	}
	sb.WriteString(fmt.Sprintf("Score:    %.2f  (grade %s)\n", score.Score, score.Grade))
	sb.WriteString("\n")

	b := score.Breakdown
	sb.WriteString("Breakdown:\n")
	sb.WriteString(fmt.Sprintf("  budget       %.1f\n", b.BudgetEfficiency))
	sb.WriteString(fmt.Sprintf("  competition  %.1f\n", b.Competition))
	sb.WriteString(fmt.Sprintf("  clarity      %.1f\n", b.Clarity))
	sb.WriteString(fmt.Sprintf("  customer     %.1f\n", b.Customer))
	sb.WriteString(fmt.Sprintf("  tech         %.1f\n", b.Tech))
	sb.WriteString(fmt.Sprintf("  risk         %.1f\n", b.Risk))
	if b.EstimatedHours > 0 {
		sb.WriteString(fmt.Sprintf("\nEstimated: %d hours at $%.2f/h\n", b.EstimatedHours, b.HourlyRate))
	}
	if score.Reason != "" {
		sb.WriteString(fmt.Sprintf("\n%s", score.Reason))
	}

	p.printBox("POSTING SCORE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintValidation outputs the findings of a proposal validation pass.
func (p *Printer) PrintValidation(result *types.ValidationResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	if result.Valid {
		sb.WriteString("Result: ACCEPTED\n")
	} else {
		sb.WriteString("Result: REJECTED\n")
	}

	criticals := result.Criticals()
	warnings := result.Warnings()
	sb.WriteString(fmt.Sprintf("Critical issues: %d   Warnings: %d\n", len(criticals), len(warnings)))

	shown := 0
	for _, issue := range result.Issues {
		if shown >= maxItemsToShow {
			sb.WriteString(fmt.Sprintf("... and %d more issues\n", len(result.Issues)-shown))
			break
		}
		marker := "!"
		if issue.Severity == types.SeverityWarning {
			marker = "~"
		}
		msg := issue.Message
		if len(msg) > 45 {
			msg = msg[:42] + "..."
		}
		sb.WriteString(fmt.Sprintf("  %s %s: %s\n", marker, issue.Rule, msg))
		shown++
	}

	p.printBox("PROPOSAL VALIDATION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintProposal outputs the accepted proposal with its generation metadata.
func (p *Printer) PrintProposal(record *types.ProposalRecord) {
	if record == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Strategy: %s\n", record.Strategy))
	if record.Model != "" {
		sb.WriteString(fmt.Sprintf("Model:    %s\n", record.Model))
	}
	sb.WriteString(fmt.Sprintf("Attempts: %d\n", record.Attempts))
	if record.LatencyMS > 0 {
		sb.WriteString(fmt.Sprintf("Latency:  %dms\n", record.LatencyMS))
	}
	sb.WriteString("\n")

	words := strings.Fields(record.Text)
	sb.WriteString(fmt.Sprintf("Text (%d words):\n", len(words)))
	preview := record.Text
	if len(preview) > 200 {
		preview = preview[:197] + "..."
	}
	sb.WriteString(preview)

	p.printBox("GENERATED PROPOSAL", sb.String())
}

// PrintSubmission outputs the result of a bid submission.
func (p *Printer) PrintSubmission(sub *types.BidSubmission) {
	if sub == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Posting:      %d\n", sub.PostingID))
	sb.WriteString(fmt.Sprintf("Remote bid:   %d\n", sub.RemoteBidID))
	sb.WriteString(fmt.Sprintf("Amount:       $%.2f over %d days\n", sub.Amount, sub.PeriodDays))
	if sub.ConfirmationID != "" {
		sb.WriteString(fmt.Sprintf("Confirmation: %s\n", sub.ConfirmationID))
	}
	sb.WriteString(fmt.Sprintf("Status:       %s", sub.Status))

	p.printBox("BID SUBMITTED", sb.String())
}
