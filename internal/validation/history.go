package validation

import "sync"

// defaultHistorySize is how many recent proposals are kept for duplicate
// comparison.
const defaultHistorySize = 20

// History is a bounded rolling window of recently accepted proposals, used
// to reject near-duplicate submissions. Safe for concurrent use.
type History struct {
	mu      sync.Mutex
	entries []string
	limit   int
}

// NewHistory creates a history keeping at most limit entries; limit <= 0
// uses the default window size.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = defaultHistorySize
	}
	return &History{limit: limit}
}

// Add records an accepted proposal, evicting the oldest entry when the
// window is full.
func (h *History) Add(proposal string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, proposal)
	if len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
}

// MaxSimilarity returns the highest similarity between the candidate and
// any proposal in the window, 0.0 when the window is empty.
func (h *History) MaxSimilarity(candidate string) float64 {
	h.mu.Lock()
	entries := make([]string, len(h.entries))
	copy(entries, h.entries)
	h.mu.Unlock()

	max := 0.0
	for _, prior := range entries {
		if s := Similarity(candidate, prior); s > max {
			max = s
		}
	}
	return max
}

// Len reports how many proposals are currently in the window
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
