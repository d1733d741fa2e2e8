package collector

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetKeysAreSorted(t *testing.T) {
	ds := &Dataset{Data: map[string]any{
		"2025-07-15T13:00:00+02:00": 2.0,
		"2025-07-15T11:00:00+02:00": 1.0,
		"2025-07-15T12:00:00+02:00": 3.0,
	}}
	assert.Equal(t, []string{
		"2025-07-15T11:00:00+02:00",
		"2025-07-15T12:00:00+02:00",
		"2025-07-15T13:00:00+02:00",
	}, ds.Keys())

	var nilDS *Dataset
	assert.Equal(t, 0, nilDS.Len())
	assert.Empty(t, nilDS.Keys())
}

func TestCombinedDataset(t *testing.T) {
	c := NewCombinedDataset()
	prices := &Dataset{Metadata: map[string]any{"collector": "energyzero"}, Data: map[string]any{"2025-07-15T12:00:00+02:00": 0.21}}

	require.NoError(t, c.Add("energyzero", prices))
	require.NoError(t, c.Add("openmeteo", nil))

	err := c.Add("energyzero", prices)
	assert.True(t, errors.Is(err, ErrDuplicateDataset))

	assert.Equal(t, []string{"energyzero"}, c.Names())
	_, ok := c.Get("openmeteo")
	assert.False(t, ok)

	raw, err := json.Marshal(c)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "2.0", doc["version"])
	require.Contains(t, doc, "energyzero")
	entry := doc["energyzero"].(map[string]any)
	assert.Contains(t, entry, "metadata")
	assert.Contains(t, entry, "data")
}
