package scoring

import (
	"sort"
	"strings"
)

// DefaultRiskKeywords returns the built-in risk keyword tables, keyed by
// risk category. Keywords are matched case-insensitively as substrings.
func DefaultRiskKeywords() map[string][]string {
	return map[string][]string{
		"scam": {
			"pay first", "registration fee", "deposit required", "upfront fee",
			"western union", "gift card", "telegram only", "whatsapp only",
		},
		"scope_creep": {
			"unlimited revisions", "ongoing changes", "and more", "many other tasks",
			"whatever is needed", "flexible scope",
		},
		"legal": {
			"scrape facebook", "scrape instagram", "scrape linkedin", "bypass captcha",
			"fake reviews", "fake accounts", "copyrighted", "crack", "bypass license",
		},
		"payment": {
			"pay after delivery", "payment after completion", "no escrow",
			"outside the platform", "off-platform",
		},
	}
}

// DetectRiskKeywords returns the risk categories whose keywords appear in
// the posting text, for surfacing to the operator alongside the score.
// Categories are scanned in sorted order so hits are stable across runs.
func DetectRiskKeywords(tables map[string][]string, text string) []string {
	categories := make([]string, 0, len(tables))
	for category := range tables {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	lower := strings.ToLower(text)
	var hits []string
	for _, category := range categories {
		for _, kw := range tables[category] {
			if strings.Contains(lower, kw) {
				hits = append(hits, category+": "+kw)
			}
		}
	}
	return hits
}
