package collector

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"float", 12.5, 12.5},
		{"nan", math.NaN(), nil},
		{"inf", math.Inf(1), nil},
		{"numeric string", " 42.1 ", 42.1},
		{"json number", json.Number("7"), 7.0},
		{"placeholder dash", "-", nil},
		{"placeholder na", "N/A", nil},
		{"placeholder null", "null", nil},
		{"placeholder infinity", "-Infinity", nil},
		{"empty", "", nil},
		{"text passes through", "sunny", "sunny"},
		{"bool passes through", true, true},
		{
			"nested map",
			map[string]any{"temperature": "21.3", "humidity": "n/a"},
			map[string]any{"temperature": 21.3, "humidity": nil},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConvertValue(tt.in))
		})
	}
}

func TestIsMissing(t *testing.T) {
	assert.True(t, IsMissing(nil))
	assert.True(t, IsMissing(map[string]any{"a": nil, "b": nil}))
	assert.True(t, IsMissing(map[string]any{}))
	assert.False(t, IsMissing(map[string]any{"a": nil, "b": 1.0}))
	assert.False(t, IsMissing(0.0))
	assert.False(t, IsMissing("cloudy"))
}
