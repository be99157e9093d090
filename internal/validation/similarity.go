package validation

import (
	"regexp"
	"strings"
)

// lcsSizeLimit bounds the quadratic LCS table. Longer pairs fall back to a
// rough estimate.
const lcsSizeLimit = 100000

var nonWordPattern = regexp.MustCompile(`[^\w\s]`)

// Similarity scores how alike two proposal texts are, 0.0 to 1.0. It blends
// word-level Jaccard overlap (0.4), character 3-gram overlap (0.4), and the
// longest-common-subsequence ratio (0.2).
func Similarity(a, b string) float64 {
	a = normalizeText(a)
	b = normalizeText(b)
	if a == "" || b == "" {
		return 0.0
	}

	jaccard := setOverlap(fieldsSet(a), fieldsSet(b))
	ngram := setOverlap(ngramSet(a, 3), ngramSet(b, 3))

	var lcs float64
	if total := len(a) + len(b); total > 0 {
		lcs = float64(2*lcsLength(a, b)) / float64(total)
	}

	return 0.4*jaccard + 0.4*ngram + 0.2*lcs
}

func normalizeText(text string) string {
	text = strings.ToLower(text)
	text = nonWordPattern.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

func fieldsSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(text) {
		set[w] = struct{}{}
	}
	return set
}

func ngramSet(text string, n int) map[string]struct{} {
	set := make(map[string]struct{})
	for i := 0; i+n <= len(text); i++ {
		set[text[i:i+n]] = struct{}{}
	}
	return set
}

func setOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func lcsLength(a, b string) int {
	m, n := len(a), len(b)
	if m*n > lcsSizeLimit {
		if m < n {
			return m / 2
		}
		return n / 2
	}

	prev := make([]int, n+1)
	cur := make([]int, n+1)
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[n]
}
