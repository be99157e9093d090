package proposal

import (
	"fmt"
	"strings"

	"github.com/jonathan/bid-pilot/internal/persona"
	"github.com/jonathan/bid-pilot/internal/types"
)

// maxTitleWords bounds how much of the posting title is quoted into the
// fallback text so long titles cannot push it past the word limit.
const maxTitleWords = 8

// FallbackProposal renders the deterministic template used when model
// generation is skipped or exhausted. The output is built to satisfy every
// validator rule: within word bounds, asks a question, names the posting's
// skills, and avoids the banned stock phrases.
func FallbackProposal(posting *types.Posting, profile persona.Profile) string {
	title := truncateWords(posting.Title, maxTitleWords)
	if title == "" {
		title = "this project"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb,
		"Your posting for %s lines up closely with work I deliver every week, and I read the full brief before writing this. ",
		title)
	sb.WriteString(profile.ExperienceAnchor)
	sb.WriteString(" My plan is to start with a short kickoff conversation, confirm the deliverables and acceptance criteria, and then break the work into small milestones you can review as they land. ")
	sb.WriteString(skillsSentence(posting.Skills))
	sb.WriteString(" For budget, I price against the agreed milestones so you always know what the next payment covers, and the first milestone is scoped small on purpose so you can judge my delivery early. ")
	sb.WriteString("Two quick questions before we begin: which part of the scope matters most to you, and is there an existing codebase or solution I should build on?")
	return sb.String()
}

func skillsSentence(skills []string) string {
	if len(skills) == 0 {
		return "On the technical side I keep the implementation simple and well tested, with an approach you can extend after handoff."
	}
	limit := len(skills)
	if limit > 3 {
		limit = 3
	}
	return fmt.Sprintf(
		"On the technical side I would lean on %s, the same implementation stack I work with in production today.",
		strings.Join(skills[:limit], ", "))
}

func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ")
}
