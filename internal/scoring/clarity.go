package scoring

import (
	"regexp"
	"strings"
)

var (
	deliverablePattern = regexp.MustCompile(`(?i)\b(deliverables?|milestones?|scope of work|requirements?:)\b`)
	acceptancePattern  = regexp.MustCompile(`(?i)\b(acceptance criteria|definition of done|must (?:support|include|handle)|should (?:support|include|handle))\b`)
	vaguePattern       = regexp.MustCompile(`(?i)\b(asap|urgent|simple task|easy job|quick job|very easy|anyone can do|etc\.?)\b`)
)

// techSpecTerms are concrete technology mentions that signal a
// well-specified posting.
var techSpecTerms = []string{
	"api", "rest", "graphql", "postgres", "postgresql", "mysql", "mongodb",
	"redis", "docker", "kubernetes", "aws", "gcp", "azure", "react", "vue",
	"angular", "python", "golang", "node", "typescript", "webhook", "oauth",
	"stripe", "websocket", "grpc",
}

// ScoreClarity scores how well-specified a posting description is, 0-10.
// Explicit deliverables and acceptance criteria raise the score, vague
// filler lowers it.
func ScoreClarity(description string) float64 {
	score := 5.0
	lower := strings.ToLower(description)

	if deliverablePattern.MatchString(description) {
		score += 3.0
	}
	if acceptancePattern.MatchString(description) {
		score += 2.5
	}

	techMentions := 0
	for _, term := range techSpecTerms {
		if strings.Contains(lower, term) {
			techMentions++
		}
	}
	score += minF(float64(techMentions)*0.5, 2.5)

	vague := vaguePattern.FindAllString(description, -1)
	score -= minF(float64(len(vague))*0.5, 1.5)

	switch {
	case len(description) < 200:
		score -= 2.0
	case len(description) > 1000 && techMentions == 0:
		score -= 1.0
	default:
		score += 0.5
	}

	return clamp10(score)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
