package collector

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Dataset is the normalized result of one collection: descriptive metadata
// plus data points keyed by canonical ISO-8601 timestamps.
type Dataset struct {
	Metadata map[string]any `json:"metadata"`
	Data     map[string]any `json:"data"`
}

// Len returns the number of data points.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Data)
}

// Keys returns the timestamps in lexical order, which for keys sharing one
// offset is chronological order.
func (d *Dataset) Keys() []string {
	keys := make([]string, 0, d.Len())
	if d == nil {
		return keys
	}
	for k := range d.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToMap returns the {metadata, data} document persisted by callers.
func (d *Dataset) ToMap() map[string]any {
	return map[string]any{
		"metadata": d.Metadata,
		"data":     d.Data,
	}
}

// CombinedVersion is the schema version written by CombinedDataset.
const CombinedVersion = "2.0"

// CombinedDataset groups the datasets of one collection run by name.
type CombinedDataset struct {
	Version  string
	datasets map[string]*Dataset
}

// NewCombinedDataset returns an empty combined dataset.
func NewCombinedDataset() *CombinedDataset {
	return &CombinedDataset{
		Version:  CombinedVersion,
		datasets: make(map[string]*Dataset),
	}
}

// Add stores ds under name. Nil datasets are skipped; a name can only be
// used once.
func (c *CombinedDataset) Add(name string, ds *Dataset) error {
	if _, exists := c.datasets[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDataset, name)
	}
	if ds == nil {
		return nil
	}
	c.datasets[name] = ds
	return nil
}

// Get returns the dataset stored under name.
func (c *CombinedDataset) Get(name string) (*Dataset, bool) {
	ds, ok := c.datasets[name]
	return ds, ok
}

// Names returns the stored dataset names in sorted order.
func (c *CombinedDataset) Names() []string {
	names := make([]string, 0, len(c.datasets))
	for name := range c.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToMap flattens the datasets next to the version key.
func (c *CombinedDataset) ToMap() map[string]any {
	out := make(map[string]any, len(c.datasets)+1)
	out["version"] = c.Version
	for name, ds := range c.datasets {
		out[name] = ds.ToMap()
	}
	return out
}

// MarshalJSON encodes the flattened form.
func (c *CombinedDataset) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ToMap())
}
