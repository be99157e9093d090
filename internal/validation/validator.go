// Package validation checks generated proposals against hard and soft
// quality rules before they are accepted for submission.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jonathan/bid-pilot/internal/types"
)

// Word count bounds for an acceptable proposal
const (
	MinWords = 80
	MaxWords = 200
)

// DuplicateThreshold is the similarity above which a proposal counts as a
// near-duplicate of recent history.
const DuplicateThreshold = 0.75

// prohibitedPhrases are banned stock openers and marketing fluff, matched
// case-insensitively.
var prohibitedPhrases = []string{
	"i am an expert",
	"check my portfolio",
	"trust me",
	"kindly hire me",
	"dear sir",
	"dear madam",
	"hope you are doing well",
	"thanks for reading",
}

// h1Pattern matches top-level Markdown headings, which are too aggressive
// for marketplace proposals.
var h1Pattern = regexp.MustCompile(`^#\s`)

// commonSkills is the vocabulary used for tech-stack consistency checks
var commonSkills = []string{
	"python", "javascript", "typescript", "react", "vue", "angular", "node",
	"nodejs", "django", "fastapi", "flask", "express", "postgresql", "mysql",
	"mongodb", "redis", "sqlite", "aws", "azure", "gcp", "docker",
	"kubernetes", "terraform", "git", "github", "ci/cd", "api", "rest",
	"graphql", "websockets", "microservices", "machine learning", "ml", "ai",
	"nlp", "llm", "gpt", "tensorflow", "pytorch", "pandas", "scraping",
	"automation", "bot", "crawler", "frontend", "backend", "fullstack",
	"full-stack", "mobile", "ios", "android", "flutter", "react native",
	"css", "html", "tailwind", "testing", "pytest", "jest", "security",
	"oauth", "jwt", "ssl", "encryption",
}

// Validator checks proposal text against the configured rule set. The zero
// value is not usable; construct with NewValidator.
type Validator struct {
	minWords int
	maxWords int
	history  *History
}

// Option customizes a Validator
type Option func(*Validator)

// WithWordBounds overrides the default word count bounds
func WithWordBounds(min, max int) Option {
	return func(v *Validator) {
		v.minWords = min
		v.maxWords = max
	}
}

// WithHistory attaches a recent-proposal history for duplicate detection
func WithHistory(h *History) Option {
	return func(v *Validator) { v.history = h }
}

// NewValidator returns a validator with the default rule set
func NewValidator(opts ...Option) *Validator {
	v := &Validator{minWords: MinWords, maxWords: MaxWords}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs every rule against the proposal. The result is valid only
// if no critical issue was found; warnings never block acceptance. posting
// may be nil, in which case the tech-stack consistency check is skipped.
func (v *Validator) Validate(proposal string, posting *types.Posting) types.ValidationResult {
	var issues []types.Issue

	issues = append(issues, v.checkWordCount(proposal)...)
	issues = append(issues, checkQuestion(proposal)...)
	issues = append(issues, checkHeadings(proposal)...)
	issues = append(issues, checkProhibitedPhrases(proposal)...)
	if posting != nil {
		issues = append(issues, checkTechConsistency(proposal, posting)...)
	}
	if v.history != nil {
		issues = append(issues, v.checkDuplicate(proposal)...)
	}

	result := types.ValidationResult{Valid: true, Issues: issues}
	for _, issue := range issues {
		if issue.Severity == types.SeverityCritical {
			result.Valid = false
			break
		}
	}
	return result
}

func (v *Validator) checkWordCount(proposal string) []types.Issue {
	count := len(strings.Fields(proposal))
	switch {
	case count < v.minWords:
		return []types.Issue{{
			Rule:     "word_count",
			Severity: types.SeverityCritical,
			Message:  fmt.Sprintf("word count %d below minimum %d", count, v.minWords),
		}}
	case count > v.maxWords:
		return []types.Issue{{
			Rule:     "word_count",
			Severity: types.SeverityCritical,
			Message:  fmt.Sprintf("word count %d above maximum %d", count, v.maxWords),
		}}
	}
	return nil
}

func checkQuestion(proposal string) []types.Issue {
	if strings.Contains(proposal, "?") {
		return nil
	}
	return []types.Issue{{
		Rule:     "clarifying_question",
		Severity: types.SeverityCritical,
		Message:  "proposal must ask the client at least one question",
	}}
}

func checkHeadings(proposal string) []types.Issue {
	var issues []types.Issue
	for _, line := range strings.Split(proposal, "\n") {
		if h1Pattern.MatchString(line) {
			issues = append(issues, types.Issue{
				Rule:     "heading_markup",
				Severity: types.SeverityCritical,
				Message:  fmt.Sprintf("heading markup not allowed: %q", strings.TrimSpace(line)),
			})
		}
	}
	return issues
}

func checkProhibitedPhrases(proposal string) []types.Issue {
	lower := strings.ToLower(proposal)
	var issues []types.Issue
	for _, phrase := range prohibitedPhrases {
		if strings.Contains(lower, phrase) {
			issues = append(issues, types.Issue{
				Rule:     "prohibited_phrase",
				Severity: types.SeverityCritical,
				Message:  fmt.Sprintf("prohibited phrase %q", phrase),
			})
		}
	}
	return issues
}

// checkTechConsistency verifies the proposal talks about the stack the
// posting asks for. Always a warning: templated fallbacks name only a few
// skills, and a missing stack mention is advice for the retry prompt, not
// grounds for rejection.
func checkTechConsistency(proposal string, posting *types.Posting) []types.Issue {
	if len(posting.Skills) == 0 {
		return nil
	}

	proposalLower := strings.ToLower(proposal)
	mentioned := make(map[string]bool)
	for _, skill := range commonSkills {
		if containsWord(proposalLower, skill) {
			mentioned[skill] = true
		}
	}
	for _, skill := range posting.Skills {
		if containsWord(proposalLower, strings.ToLower(skill)) {
			mentioned[strings.ToLower(skill)] = true
		}
	}

	matched := 0
	var missing []string
	for _, want := range posting.Skills {
		wantLower := strings.ToLower(want)
		found := false
		for m := range mentioned {
			if strings.Contains(m, wantLower) || strings.Contains(wantLower, m) {
				found = true
				break
			}
		}
		if found {
			matched++
		} else {
			missing = append(missing, want)
		}
	}

	coverage := float64(matched) / float64(len(posting.Skills))
	if coverage < 0.3 {
		return []types.Issue{{
			Rule:     "tech_consistency",
			Severity: types.SeverityWarning,
			Message:  fmt.Sprintf("only %d of %d required skills mentioned", matched, len(posting.Skills)),
		}}
	}
	if len(missing) > 0 {
		limit := len(missing)
		if limit > 3 {
			limit = 3
		}
		return []types.Issue{{
			Rule:     "tech_consistency",
			Severity: types.SeverityWarning,
			Message:  fmt.Sprintf("consider mentioning: %s", strings.Join(missing[:limit], ", ")),
		}}
	}
	return nil
}

// checkDuplicate flags proposals too close to recent history. This is a
// warning: templated fallbacks legitimately repeat, so similarity alone
// never blocks acceptance.
func (v *Validator) checkDuplicate(proposal string) []types.Issue {
	score := v.history.MaxSimilarity(proposal)
	if score >= DuplicateThreshold {
		return []types.Issue{{
			Rule:     "near_duplicate",
			Severity: types.SeverityWarning,
			Message:  fmt.Sprintf("too similar to a recent proposal (similarity %.2f)", score),
		}}
	}
	return nil
}

// containsWord reports whether text contains w bounded by non-word
// characters, so "go" does not match inside "google".
func containsWord(text, w string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], w)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(w)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
