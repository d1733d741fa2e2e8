package collector

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// missingTokens are placeholder strings remote APIs use for "no value".
var missingTokens = map[string]struct{}{
	"":          {},
	"-":         {},
	"n/a":       {},
	"nan":       {},
	"null":      {},
	"none":      {},
	"inf":       {},
	"-inf":      {},
	"infinity":  {},
	"-infinity": {},
}

// ConvertValue cleans a raw data point. Placeholders, NaN and infinities
// become nil; numeric strings become float64; maps are converted field by
// field. Anything else is returned unchanged.
func ConvertValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return val
	case float32:
		return ConvertValue(float64(val))
	case json.Number:
		return ConvertValue(val.String())
	case string:
		trimmed := strings.TrimSpace(val)
		if _, ok := missingTokens[strings.ToLower(trimmed)]; ok {
			return nil
		}
		if f, err := cast.ToFloat64E(trimmed); err == nil {
			return ConvertValue(f)
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, field := range val {
			out[k] = ConvertValue(field)
		}
		return out
	default:
		return v
	}
}

// IsMissing reports whether a converted value carries no data: nil, or a map
// whose every field is nil.
func IsMissing(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case map[string]any:
		for _, field := range val {
			if field != nil {
				return false
			}
		}
		return true
	default:
		return false
	}
}
