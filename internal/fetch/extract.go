package fetch

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// boilerplateSelector matches elements that never carry posting text.
const boilerplateSelector = "nav, footer, header, script, style, noscript, .ad, .advertisement, .ads, .sidebar, .cookie-banner, .popup"

// ExtractMainText reduces posting HTML to plain text. Noise elements are
// removed first; every content selector is then tried and the longest
// extracted text wins. Marketplace pages routinely match a generic
// selector like ".content" with a near-empty node, so first-match
// extraction returns breadcrumbs instead of the description. Falls back
// to the whole body when nothing matches.
func ExtractMainText(html string, contentSelectors []string, noiseSelectors ...string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	doc.Find(boilerplateSelector).Remove()
	if len(noiseSelectors) > 0 {
		doc.Find(strings.Join(noiseSelectors, ", ")).Remove()
	}

	var best string
	for _, selector := range contentSelectors {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		if text := flattenText(sel.First().Text()); len(text) > len(best) {
			best = text
		}
	}
	if best == "" {
		best = flattenText(doc.Find("body").Text())
	}
	return best, nil
}

// flattenText normalizes extracted text: inner whitespace collapses to
// single spaces and blank lines are dropped.
func flattenText(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Join(fields, " "))
	}
	return b.String()
}
