// Package estimate provides a heuristic work-hour estimator for postings.
package estimate

import (
	"math"
	"strings"

	"github.com/jonathan/bid-pilot/internal/types"
)

// Hour bounds are a hard invariant: budget-efficiency scoring divides by the
// estimate and relies on it never being zero or absurd.
const (
	MinHours = 1
	MaxHours = 200
)

// coordination overhead applied on top of summed category estimates
const overheadFactor = 1.10

// category holds the keywords and base hours for one work domain.
// titleHours applies when a keyword appears in the title; bodyHours when it
// only appears in the description.
type category struct {
	keywords   []string
	titleHours int
	bodyHours  int
}

var categories = []category{
	{[]string{"mobile", "app", "ios", "android"}, 80, 40},
	{[]string{"website", "full stack", "web"}, 40, 20},
	{[]string{"api", "integration", "backend"}, 20, 20},
	{[]string{"scraping", "scraper", "crawler"}, 15, 15},
	{[]string{"automation", "bot", "workflow", "n8n"}, 20, 15},
	{[]string{"dashboard", "admin panel", "cms"}, 25, 15},
	{[]string{"auth", "oauth", "login", "sso"}, 15, 10},
	{[]string{"security", "penetration", "audit"}, 20, 15},
	{[]string{"testing", "test suite", "qa"}, 10, 10},
}

// aiKeywords add complexity on top of the base categories
var (
	agentKeywords = []string{"multimodal", "agent"}
	aiKeywords    = []string{"machine learning", "ml ", "deep learning", "neural network", "nlp", "llm", "ai ", "artificial intelligence"}
)

// smallTaskKeywords compress the estimate so trivial postings are not priced
// as multi-week engagements
var smallTaskKeywords = []string{"fix", "bug", "small", "tweak", "script", "update"}

// Hours estimates the expected work hours for a posting from its title and
// description. The result is always within [MinHours, MaxHours].
func Hours(posting *types.Posting) int {
	title := strings.ToLower(posting.Title)
	combined := title + " " + strings.ToLower(posting.Description)

	hours := 0.0
	for _, cat := range categories {
		if containsAny(title, cat.keywords) {
			hours += float64(cat.titleHours)
		} else if containsAny(combined, cat.keywords) {
			hours += float64(cat.bodyHours)
		}
	}

	if containsAny(combined, agentKeywords) {
		hours += 40
	} else if containsAny(combined, aiKeywords) {
		hours += 30
	}

	hours *= overheadFactor

	// Small-task compression: the more fix/bug/tweak language, the harder
	// the estimate is pushed down.
	smallHits := 0
	for _, kw := range smallTaskKeywords {
		if strings.Contains(combined, kw) {
			smallHits++
		}
	}
	switch {
	case smallHits >= 3:
		hours *= 0.1
	case smallHits == 2:
		hours *= 0.2
	case smallHits == 1:
		hours *= 0.3
	}

	estimated := int(math.Round(hours))
	if estimated < MinHours {
		estimated = MinHours
	}
	if estimated > MaxHours {
		estimated = MaxHours
	}
	return estimated
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
