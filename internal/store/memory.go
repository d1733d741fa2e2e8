package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/energy-data-hub/internal/collector"
)

var (
	// ErrNotFound is returned when no dataset is available for a given source.
	ErrNotFound = errors.New("no dataset for source")
)

// StoredDataset is one collected dataset together with when it was stored.
type StoredDataset struct {
	Source      string             `json:"source"`
	CollectedAt time.Time          `json:"collected_at"`
	Dataset     *collector.Dataset `json:"dataset"`
}

// datasetHistory holds a time-ordered list of datasets for a source.
type datasetHistory struct {
	items []StoredDataset
}

// MemoryStore is a concurrency-safe in-memory dataset store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: source name
	data map[string]*datasetHistory

	// retention configuration
	maxHistory int           // max number of datasets per source
	maxAge     time.Duration // optional max age for datasets

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*datasetHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveDataset appends a dataset for a source and enforces retention.
func (s *MemoryStore) SaveDataset(source string, collectedAt time.Time, ds *collector.Dataset) {
	if ds == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[source]
	if !ok {
		history = &datasetHistory{}
		s.data[source] = history
	}

	history.items = append(history.items, StoredDataset{
		Source:      source,
		CollectedAt: collectedAt,
		Dataset:     ds,
	})
	// Out-of-order saves are rare; keep the slice sorted so retention
	// and GetLatest can rely on order.
	sort.SliceStable(history.items, func(i, j int) bool {
		return history.items[i].CollectedAt.Before(history.items[j].CollectedAt)
	})

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.items) > s.maxHistory {
		over := len(history.items) - s.maxHistory
		history.items = history.items[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.items); i++ {
			if !history.items[i].CollectedAt.Before(cutoff) {
				break
			}
		}
		history.items = history.items[i:]
	}
}

// GetLatest returns the most recent dataset for a source.
func (s *MemoryStore) GetLatest(source string) (StoredDataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[source]
	if !ok || len(history.items) == 0 {
		return StoredDataset{}, ErrNotFound
	}
	return history.items[len(history.items)-1], nil
}

// GetRange returns all datasets for a source collected between from and to (inclusive).
func (s *MemoryStore) GetRange(source string, from, to time.Time) ([]StoredDataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[source]
	if !ok || len(history.items) == 0 {
		return nil, ErrNotFound
	}

	var result []StoredDataset
	for _, item := range history.items {
		if !item.CollectedAt.Before(from) && !item.CollectedAt.After(to) {
			result = append(result, item)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}

// Sources returns the names that have at least one stored dataset.
func (s *MemoryStore) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data))
	for name, history := range s.data {
		if len(history.items) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
