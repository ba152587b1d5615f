package geom

import "github.com/paulmach/orb"

// FromOrb wraps a generic orb.Geometry in the matching tagged variant.
// A nil input maps to Empty; a GeometryCollection with zero children
// maps to an empty Collection.
func FromOrb(g orb.Geometry) Geometry {
	if g == nil {
		return Empty{}
	}
	switch v := g.(type) {
	case orb.Point:
		return Point{v}
	case orb.LineString:
		return LineString{v}
	case orb.Polygon:
		return Polygon{v}
	case orb.MultiPoint:
		return MultiPoint{v}
	case orb.MultiLineString:
		return MultiLineString{v}
	case orb.MultiPolygon:
		return MultiPolygon{v}
	case orb.Collection:
		children := make([]Geometry, 0, len(v))
		for _, child := range v {
			children = append(children, FromOrb(child))
		}
		return Collection{Geometries: children}
	default:
		return Empty{}
	}
}

// ToOrb unwraps a tagged Geometry back to a generic orb.Geometry, for
// interop with orb-based encoders (WKT/GeoJSON marshaling).
func ToOrb(g Geometry) orb.Geometry {
	switch v := g.(type) {
	case Point:
		return v.Point
	case LineString:
		return v.LineString
	case Polygon:
		return v.Polygon
	case MultiPoint:
		return v.MultiPoint
	case MultiLineString:
		return v.MultiLineString
	case MultiPolygon:
		return v.MultiPolygon
	case Collection:
		out := make(orb.Collection, 0, len(v.Geometries))
		for _, child := range v.Geometries {
			out = append(out, ToOrb(child))
		}
		return out
	default:
		return nil
	}
}
