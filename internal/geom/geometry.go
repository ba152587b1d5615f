package geom

import "github.com/paulmach/orb"

// Geometry is the spec's tagged sum type. Each variant owns its
// coordinates; Kind reports which one a value holds so callers can do
// an exhaustive switch without type assertions scattered everywhere.
type Geometry interface {
	Kind() Kind
	// Bound returns the orb.Bound of this geometry alone (not
	// recursing collections' children union — Envelope does that).
	Bound() orb.Bound
}

// Kind tags the concrete variant of a Geometry value.
type Kind int

const (
	KindEmpty Kind = iota
	KindPoint
	KindLineString
	KindPolygon
	KindMultiPoint
	KindMultiLineString
	KindMultiPolygon
	KindCollection
)

// Empty is the empty geometry; its envelope is always invalid.
type Empty struct{}

func (Empty) Kind() Kind      { return KindEmpty }
func (Empty) Bound() orb.Bound { return orb.Bound{} }

// Point wraps orb.Point.
type Point struct{ orb.Point }

func (Point) Kind() Kind { return KindPoint }

// LineString wraps orb.LineString. Non-empty linestrings must have >= 2
// distinct points; construction does not itself enforce this — callers
// validate at the parse boundary where a MalformedRecord/MalformedFile
// error can be raised with context.
type LineString struct{ orb.LineString }

func (LineString) Kind() Kind { return KindLineString }

// Polygon wraps orb.Polygon. Ring 0 is the exterior, the rest are
// interior holes; each ring has >= 4 points, first == last.
type Polygon struct{ orb.Polygon }

func (Polygon) Kind() Kind { return KindPolygon }

// MultiPoint wraps orb.MultiPoint.
type MultiPoint struct{ orb.MultiPoint }

func (MultiPoint) Kind() Kind { return KindMultiPoint }

// MultiLineString wraps orb.MultiLineString.
type MultiLineString struct{ orb.MultiLineString }

func (MultiLineString) Kind() Kind { return KindMultiLineString }

// MultiPolygon wraps orb.MultiPolygon.
type MultiPolygon struct{ orb.MultiPolygon }

func (MultiPolygon) Kind() Kind { return KindMultiPolygon }

// Collection is a sequence of Geometry. It must not itself contain
// another Collection at level 1; the type does not prevent that, and
// the invariant is enforced by Validate (a MalformedFile error), which
// the GeoJSON, TopoJSON and Geobuf backends call on every geometry.
type Collection struct {
	Geometries []Geometry
}

func (Collection) Kind() Kind { return KindCollection }

func (c Collection) Bound() orb.Bound {
	var b orb.Bound
	first := true
	for _, g := range c.Geometries {
		gb := g.Bound()
		if gb.IsEmpty() && g.Kind() == KindEmpty {
			continue
		}
		if first {
			b = gb
			first = false
			continue
		}
		b = b.Union(gb)
	}
	return b
}

// Envelope computes the Box64 envelope of g, recursing into
// collections and unioning children. Envelope of Empty is invalid;
// Empty nested inside a Collection contributes nothing rather than
// producing a spuriously valid union.
func Envelope(g Geometry) Box64 {
	if g == nil {
		return InvalidBox64()
	}
	if g.Kind() == KindEmpty {
		return InvalidBox64()
	}
	if c, ok := g.(Collection); ok {
		box := InvalidBox64()
		for _, child := range c.Geometries {
			box = box.Expand(Envelope(child))
		}
		return box
	}
	return FromBound(g.Bound())
}
