package geobufds

import "github.com/mapnikgo/geoindex/internal/feature"

func attributeValue(v rawValue) feature.AttributeValue {
	switch v.kind {
	case "string", "json":
		return feature.UnicodeValue(v.s)
	case "double":
		return feature.F64Value(v.f)
	case "int":
		return feature.I64Value(v.i)
	case "bool":
		return feature.BoolValue(v.b)
	default:
		return feature.NullValue
	}
}
