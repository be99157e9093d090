package gate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jonathan/bid-pilot/internal/types"
)

// Content risk bounds on the final proposal text
const (
	minProposalChars = 100
	maxProposalChars = 3000

	// maxKeywordDensity is the fraction of words allowed to be technology
	// keywords before the text reads as keyword stuffing.
	maxKeywordDensity = 0.35

	// minTitleOverlap is the minimum number of posting-title words the
	// proposal must reuse for postings with non-trivial titles.
	minTitleOverlap = 3

	// minStructuralTerms is how many delivery-planning terms the text must
	// contain to count as a concrete offer rather than filler.
	minStructuralTerms = 2
)

// templatePhrases are formulaic AI-generated openers; three or more of
// them flag the text as templated.
var templatePhrases = []string{
	"i have extensive experience",
	"i understand your requirements",
	"this is exactly my area of expertise",
	"i can provide a complete solution",
	"i will carefully analyze",
	"requirements analysis, development, testing and deployment",
	"based on my relevant experience",
	"as an experienced developer",
	"my tech stack includes",
	"deliver high quality results quickly",
}

// densityKeywords is the vocabulary counted for keyword-stuffing detection
var densityKeywords = []string{
	"python", "fastapi", "api", "automation", "workflow", "django", "flask", "scraping",
}

// structuralTerms signal a concrete technical offer
var structuralTerms = []string{
	"plan", "technical", "implementation", "delivery", "architecture", "approach", "solution",
}

var wordPattern = regexp.MustCompile(`\b\w+\b`)

// CheckContentRisk runs the final content checks on a proposal about to be
// submitted. A non-nil error names the first failed check; any failure
// blocks submission.
func CheckContentRisk(proposal string, posting *types.Posting) error {
	if len(proposal) < minProposalChars {
		return fmt.Errorf("proposal too short (%d chars, minimum %d)", len(proposal), minProposalChars)
	}
	if len(proposal) > maxProposalChars {
		return fmt.Errorf("proposal too long (%d chars, maximum %d)", len(proposal), maxProposalChars)
	}

	lower := strings.ToLower(proposal)

	templated := 0
	for _, phrase := range templatePhrases {
		if strings.Contains(lower, phrase) {
			templated++
		}
	}
	if templated >= 3 {
		return fmt.Errorf("templated content detected (%d stock phrases)", templated)
	}

	words := wordPattern.FindAllString(lower, -1)
	if len(words) > 20 {
		keywordHits := 0
		for _, kw := range densityKeywords {
			if strings.Contains(lower, kw) {
				keywordHits++
			}
		}
		if float64(keywordHits)/float64(len(words)) > maxKeywordDensity {
			return fmt.Errorf("keyword stuffing detected (%d keywords in %d words)", keywordHits, len(words))
		}
	}

	if posting != nil && posting.Title != "" {
		titleWords := wordSet(strings.ToLower(posting.Title))
		if len(titleWords) > 5 {
			overlap := 0
			proposalWords := wordSet(lower)
			for w := range titleWords {
				if _, ok := proposalWords[w]; ok {
					overlap++
				}
			}
			if overlap < minTitleOverlap {
				return fmt.Errorf("proposal does not reference the posting (title overlap %d words)", overlap)
			}
		}
	}

	structural := 0
	for _, term := range structuralTerms {
		if strings.Contains(lower, term) {
			structural++
		}
	}
	if structural < minStructuralTerms {
		return fmt.Errorf("proposal lacks a concrete plan (%d of %d expected delivery terms)", structural, minStructuralTerms)
	}

	if dupes := repeatedSentences(proposal); dupes >= 2 {
		return fmt.Errorf("repeated sentences detected (%d duplicates)", dupes)
	}

	if ContainsPII(proposal) {
		return fmt.Errorf("proposal contains contact details or other sensitive data")
	}
	return nil
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(text) {
		set[w] = struct{}{}
	}
	return set
}

func repeatedSentences(text string) int {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	if len(sentences) <= 3 {
		return 0
	}
	seen := make(map[string]struct{})
	dupes := 0
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			dupes++
		}
		seen[s] = struct{}{}
	}
	return dupes
}
