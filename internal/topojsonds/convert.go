package topojsonds

import (
	"encoding/json"
	"math"

	"github.com/mapnikgo/geoindex/internal/feature"
)

// attributeValue converts one decoded JSON property value onto the
// attribute sum type, matching geojsonds' numeric/string handling so
// schemas built from either backend agree for the same source data.
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
