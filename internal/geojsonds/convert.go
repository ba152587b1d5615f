package geojsonds

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/mapnikgo/geoindex/internal/feature"
)

// attributeValue converts one decoded JSON property value to the
// attribute sum type. A whole-number float64 (the only numeric shape
// encoding/json produces) becomes I64; anything else numeric, F64.
// Nested objects/arrays are re-serialized to their canonical JSON form
// and stored as a single Unicode attribute, per spec.
func attributeValue(v any) feature.AttributeValue {
	switch val := v.(type) {
	case nil:
		return feature.NullValue
	case bool:
		return feature.BoolValue(val)
	case string:
		return feature.UnicodeValue(val)
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) && val >= math.MinInt64 && val <= math.MaxInt64 {
			return feature.I64Value(int64(val))
		}
		return feature.F64Value(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return feature.NullValue
		}
		return feature.UnicodeValue(string(b))
	}
}

// sortedKeys returns props's keys in alphabetical order, the schema's
// reporting contract regardless of source order.
func sortedKeys(props map[string]any) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
