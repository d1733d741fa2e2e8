package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/energy-data-hub/internal/collector"
)

func dataset(v float64) *collector.Dataset {
	return &collector.Dataset{
		Metadata: map[string]any{"collector": "energyzero"},
		Data:     map[string]any{"2025-07-15T12:00:00+02:00": v},
	}
}

func TestMemoryStoreLatestAndRange(t *testing.T) {
	s := NewMemoryStore(0, 0)
	base := time.Date(2025, 7, 15, 10, 0, 0, 0, time.UTC)

	_, err := s.GetLatest("energyzero")
	assert.True(t, errors.Is(err, ErrNotFound))

	s.SaveDataset("energyzero", base.Add(time.Hour), dataset(2))
	s.SaveDataset("energyzero", base, dataset(1))
	s.SaveDataset("energyzero", base.Add(2*time.Hour), dataset(3))
	s.SaveDataset("energyzero", base.Add(3*time.Hour), nil)

	latest, err := s.GetLatest("energyzero")
	require.NoError(t, err)
	assert.Equal(t, base.Add(2*time.Hour), latest.CollectedAt)
	assert.Equal(t, "energyzero", latest.Source)

	got, err := s.GetRange("energyzero", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, base, got[0].CollectedAt)

	_, err = s.GetRange("energyzero", base.Add(10*time.Hour), base.Add(11*time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{"energyzero"}, s.Sources())
}

func TestMemoryStoreRetentionByCount(t *testing.T) {
	s := NewMemoryStore(2, 0)
	base := time.Now()
	for i := 0; i < 4; i++ {
		s.SaveDataset("openmeteo", base.Add(time.Duration(i)*time.Minute), dataset(float64(i)))
	}

	got, err := s.GetRange("openmeteo", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, base.Add(2*time.Minute), got[0].CollectedAt)
}

func TestMemoryStoreRetentionByAge(t *testing.T) {
	now := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(0, time.Hour)
	s.now = func() time.Time { return now }

	s.SaveDataset("openmeteo", now.Add(-3*time.Hour), dataset(1))
	s.SaveDataset("openmeteo", now.Add(-30*time.Minute), dataset(2))

	got, err := s.GetRange("openmeteo", now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, now.Add(-30*time.Minute), got[0].CollectedAt)

	// Everything expired: the source has no data left.
	s.now = func() time.Time { return now.Add(48 * time.Hour) }
	s.SaveDataset("openmeteo", now.Add(-5*time.Hour), dataset(3))
	_, err = s.GetLatest("openmeteo")
	assert.ErrorIs(t, err, ErrNotFound)
}
