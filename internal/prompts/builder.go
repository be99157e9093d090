// Package prompts assembles the generation and scoring prompts sent to
// language-model providers. Builders are pure: the same inputs always
// produce the same prompt text.
package prompts

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/bid-pilot/internal/persona"
	"github.com/jonathan/bid-pilot/internal/types"
)

// maxDescriptionChars bounds how much of a posting description is quoted
// into a prompt.
const maxDescriptionChars = 2000

// baseScoringDirective frames the evaluation task for scoring calls. The
// numeric anchors mirror the deterministic scorer so model and rule scores
// stay comparable.
const baseScoringDirective = `You are an expert freelance-marketplace project evaluator. Your goal is to
identify projects with HIGH WIN RATE and COMPLETION RATE for a senior developer.

PRIMARY GOAL: maximize win rate and successful completion, not just profit.

EVALUATION WORKFLOW:
1. Estimate workload:
   - Simple scripts/automation: 5-15h (small task multiplier 0.1-0.3)
   - Bug fixes/updates: 10-20h
   - API integration/scraping: 15-30h
   - Mobile apps (iOS/Android): 60-120h+
   - Web platforms: 40-80h+
   - AI/LLM integration: +20h extra complexity
2. Calculate hourly rate: budget_max / estimated_hours
   - $20-60/hour: OPTIMAL for win rate (score 8-10)
   - $60-80/hour: GOOD but competitive (score 6-8)
   - $80+/hour: HIGH RISK, hard to win (score 4-6)
   - $15-20/hour: FAIR (score 6-8)
   - <$15/hour: LOW VALUE (score < 5)
3. Assess competition:
   - 0-4 bids: SUSPICIOUS, likely low quality (score 2)
   - 5-20 bids: OPTIMAL for win rate (score 10)
   - 21-40 bids: MODERATE competition (score 6)
   - >40 bids: HIGH competition (score 2)
   - Postings newer than 24h earn a small bonus.
4. Identify risks and clarity:
   - Clarity requires named deliverables, acceptance criteria, and tools.
   - Vague keywords ("optimize", "insights", "improve") reduce clarity.
   - Long descriptions without technical detail are a low-quality signal.

Return strict JSON only:
{
    "score": 7.5,
    "reason": "Clear explanation (2-3 sentences)",
    "suggested_bid": 500,
    "estimated_hours": 40,
    "hourly_rate": 25.0,
    "risk_keywords": ["insights"],
    "proposal": "Proposal draft text"
}`

// styleNarrative forbids list-formatted output and demands flowing prose
const styleNarrative = `STYLE RULES (narrative):
- Never use Markdown lists or headings. Everything must be complete paragraphs.
- Write like a person, not a template: short sentences, natural transitions.
- Professional but warm. No filler, no fragmented bullet points.
- Each paragraph holds 3-5 complete sentences.`

// structureThreeStep is the pain-point / experience / call-to-action shape
const structureThreeStep = `STRUCTURE (three parts):
1. Pain-point resonance: open with the client's core need and the problem
   behind it, in concrete terms that show you read the posting.
2. Experience proof: one relevant past result with a quantified outcome,
   plus the core of your technical approach.
3. Call to action: propose a concrete next step, ask the client 1-2 specific
   questions, and lead naturally into budget discussion.`

// complianceRules are hard output constraints matched by the validator
const complianceRules = `OUTPUT CONSTRAINTS:
- English only, from the first sentence.
- 80-200 words. Plain text only, no JSON wrapper, no headings.
- Include at least one question for the client.
- Reference the posting title's core keywords naturally.
- Include at least two of: technical, implementation, delivery, plan, approach, solution.
- Include the word "budget" with a clear pricing statement.
- Never use stock phrases such as "i am an expert", "check my portfolio",
  "trust me", "kindly hire me", "dear sir", "dear madam",
  "hope you are doing well", or "thanks for reading".`

// Builder assembles prompts from a posting, a persona profile, and optional
// feedback from prior validation failures.
type Builder struct {
	scoringDirective string
	style            string
	structure        string
	compliance       string
}

// NewBuilder returns a builder with the default directive set
func NewBuilder() *Builder {
	return &Builder{
		scoringDirective: baseScoringDirective,
		style:            styleNarrative,
		structure:        structureThreeStep,
		compliance:       complianceRules,
	}
}

// BuildProposal assembles the full generation prompt for a posting. feedback
// carries validator issues from earlier attempts and may be empty; when
// present each entry becomes an explicit correction the model must apply.
func (b *Builder) BuildProposal(posting *types.Posting, profile persona.Profile, score *types.PostingScore, feedback []string) string {
	var sb strings.Builder

	sb.WriteString("You are a senior freelance developer writing a bid proposal with a high win rate.\n\n")
	sb.WriteString(b.postingContext(posting, score))
	sb.WriteString("\n\nPERSONA:\n")
	sb.WriteString(profile.Voice)
	sb.WriteString("\nExperience to anchor on: ")
	sb.WriteString(profile.ExperienceAnchor)
	sb.WriteString("\n\n")
	sb.WriteString(b.style)
	sb.WriteString("\n\n")
	sb.WriteString(b.structure)
	sb.WriteString("\n\n")
	sb.WriteString(b.compliance)

	if len(feedback) > 0 {
		sb.WriteString("\n\nYOUR PREVIOUS DRAFT WAS REJECTED. Fix every issue below:\n")
		for _, f := range feedback {
			sb.WriteString("- ")
			sb.WriteString(f)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nWrite the proposal now. Output only the proposal text.")
	return sb.String()
}

// BuildScoring assembles the evaluation prompt for a posting
func (b *Builder) BuildScoring(posting *types.Posting) string {
	var sb strings.Builder
	sb.WriteString(b.scoringDirective)
	sb.WriteString("\n\n")
	sb.WriteString(b.postingContext(posting, nil))
	sb.WriteString("\n\nEvaluate the posting and return the JSON result.")
	return sb.String()
}

// postingContext renders the posting facts quoted into every prompt
func (b *Builder) postingContext(posting *types.Posting, score *types.PostingScore) string {
	var sb strings.Builder
	sb.WriteString("POSTING:\n")
	fmt.Fprintf(&sb, "Title: %s\n", posting.Title)

	bgt := posting.Budget
	if bgt.Minimum > 0 || bgt.Maximum > 0 {
		fmt.Fprintf(&sb, "Budget: %.0f-%.0f %s (%s)\n", bgt.Minimum, bgt.Maximum, bgt.CurrencyCode, posting.Engagement)
	}
	fmt.Fprintf(&sb, "Current bids: %d\n", posting.BidCount)
	if len(posting.Skills) > 0 {
		limit := len(posting.Skills)
		if limit > 5 {
			limit = 5
		}
		fmt.Fprintf(&sb, "Skills: %s\n", strings.Join(posting.Skills[:limit], ", "))
	}

	fmt.Fprintf(&sb, "Description:\n%s", truncateDescription(posting.Description))

	if score != nil {
		sb.WriteString("\n\nPRIOR ANALYSIS:\n")
		fmt.Fprintf(&sb, "Composite score: %.1f/10 (%s)\n", score.Score, score.Grade)
		if score.Reason != "" {
			fmt.Fprintf(&sb, "Rationale: %s\n", score.Reason)
		}
		if score.Breakdown.EstimatedHours > 0 {
			fmt.Fprintf(&sb, "Estimated hours: %d\n", score.Breakdown.EstimatedHours)
		}
	}
	return sb.String()
}

// truncateDescription bounds a description to maxDescriptionChars bytes,
// backing up to a rune boundary so the cut never produces invalid UTF-8.
func truncateDescription(desc string) string {
	if len(desc) <= maxDescriptionChars {
		return desc
	}
	cut := maxDescriptionChars
	for cut > 0 && !utf8.RuneStart(desc[cut]) {
		cut--
	}
	return desc[:cut]
}
