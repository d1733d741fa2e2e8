package collector

import (
	"sync"
	"time"
)

// Status is the outcome of one collection attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// CollectionMetrics describes one collection attempt. Records are never
// modified once appended to a history.
type CollectionMetrics struct {
	ID          string        `json:"id"`
	Source      string        `json:"source"`
	WindowStart time.Time     `json:"window_start"`
	WindowEnd   time.Time     `json:"window_end"`
	Duration    time.Duration `json:"duration"`
	Status      Status        `json:"status"`
	Attempts    int           `json:"attempts"`
	Points      int           `json:"points"`
	Errors      []string      `json:"errors"`
	Warnings    []string      `json:"warnings"`
}

func (m CollectionMetrics) clone() CollectionMetrics {
	m.Errors = append([]string(nil), m.Errors...)
	m.Warnings = append([]string(nil), m.Warnings...)
	return m
}

// history is an append-only list of metrics, optionally bounded to the most
// recent max entries.
type history struct {
	mu    sync.RWMutex
	max   int
	items []CollectionMetrics
}

func newHistory(max int) *history {
	return &history{max: max}
}

func (h *history) append(m CollectionMetrics) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = append(h.items, m.clone())
	if h.max > 0 && len(h.items) > h.max {
		over := len(h.items) - h.max
		h.items = append(h.items[:0:0], h.items[over:]...)
	}
}

// recent returns up to limit entries, oldest first. limit <= 0 returns all.
func (h *history) recent(limit int) []CollectionMetrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	start := 0
	if limit > 0 && len(h.items) > limit {
		start = len(h.items) - limit
	}
	out := make([]CollectionMetrics, 0, len(h.items)-start)
	for _, m := range h.items[start:] {
		out = append(out, m.clone())
	}
	return out
}

func (h *history) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

func (h *history) successRate() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.items) == 0 {
		return 0
	}
	ok := 0
	for _, m := range h.items {
		if m.Status == StatusSuccess {
			ok++
		}
	}
	return float64(ok) / float64(len(h.items))
}
