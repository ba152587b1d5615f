// Package geom implements the spec's geometry sum type on top of
// github.com/paulmach/orb's concrete geometry types, plus the envelope
// and orientation-correction operations that walk it.
package geom

import (
	"math"

	"github.com/paulmach/orb"
)

// Box64 is an axis-aligned bounding box in float64, used by in-memory
// geometry envelopes and query bounds. The zero value is not a valid
// box; use InvalidBox64 (or Expand from it) to build one up.
type Box64 struct {
	MinX, MinY, MaxX, MaxY float64
	valid                  bool
}

// InvalidBox64 returns the invalid sentinel box. Expanding it by any
// valid box yields that box (expand(invalid, B) = B).
func InvalidBox64() Box64 { return Box64{} }

// NewBox64 builds a valid box from explicit bounds. Caller must ensure
// min <= max on both axes.
func NewBox64(minX, minY, maxX, maxY float64) Box64 {
	return Box64{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY, valid: true}
}

// Valid reports whether the box carries real bounds.
func (b Box64) Valid() bool { return b.valid }

// Expand returns the union of b and other. If either is invalid, the
// other is returned unchanged.
func (b Box64) Expand(other Box64) Box64 {
	if !other.valid {
		return b
	}
	if !b.valid {
		return other
	}
	return Box64{
		MinX:  min(b.MinX, other.MinX),
		MinY:  min(b.MinY, other.MinY),
		MaxX:  max(b.MaxX, other.MaxX),
		MaxY:  max(b.MaxY, other.MaxY),
		valid: true,
	}
}

// ExpandPoint expands b to include (x, y).
func (b Box64) ExpandPoint(x, y float64) Box64 {
	return b.Expand(NewBox64(x, y, x, y))
}

// Intersects reports whether b and other overlap, with shared edges
// counting as intersecting (closed on all edges, per spec, so features
// are never lost on tile seams).
func (b Box64) Intersects(other Box64) bool {
	if !b.valid || !other.valid {
		return false
	}
	return b.MinX <= other.MaxX && b.MaxX >= other.MinX &&
		b.MinY <= other.MaxY && b.MaxY >= other.MinY
}

// Narrow converts to the compact on-disk float32 envelope, rounding
// outward (min down, max up) so the result always contains b.
func (b Box64) Narrow() Box32 {
	if !b.valid {
		return Box32{}
	}
	down := func(v float64) float32 {
		f := float32(v)
		if float64(f) > v {
			f = math.Nextafter32(f, float32(math.Inf(-1)))
		}
		return f
	}
	up := func(v float64) float32 {
		f := float32(v)
		if float64(f) < v {
			f = math.Nextafter32(f, float32(math.Inf(1)))
		}
		return f
	}
	return Box32{
		MinX: down(b.MinX), MinY: down(b.MinY),
		MaxX: up(b.MaxX), MaxY: up(b.MaxY),
		valid: true,
	}
}

// Bound converts to an orb.Bound for interop with orb-based helpers.
func (b Box64) Bound() orb.Bound {
	if !b.valid {
		return orb.Bound{}
	}
	return orb.Bound{Min: orb.Point{b.MinX, b.MinY}, Max: orb.Point{b.MaxX, b.MaxY}}
}

// FromBound builds a Box64 from an orb.Bound.
func FromBound(b orb.Bound) Box64 {
	return NewBox64(b.Min[0], b.Min[1], b.Max[0], b.Max[1])
}

// Box32 is the compact on-disk envelope representation: f32 to keep
// index records small. Queries widen it back to f64 before any
// geometric test (see Widen).
type Box32 struct {
	MinX, MinY, MaxX, MaxY float32
	valid                  bool
}

// NewBox32 builds a valid Box32 from explicit bounds.
func NewBox32(minX, minY, maxX, maxY float32) Box32 {
	return Box32{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY, valid: true}
}

// Valid reports whether the box carries real bounds.
func (b Box32) Valid() bool { return b.valid }

// Widen promotes a Box32 to Box64 for geometric tests.
func (b Box32) Widen() Box64 {
	if !b.valid {
		return Box64{}
	}
	return NewBox64(float64(b.MinX), float64(b.MinY), float64(b.MaxX), float64(b.MaxY))
}

// Intersects reports whether b and other (both widened to f64) overlap.
func (b Box32) Intersects(other Box32) bool {
	return b.Widen().Intersects(other.Widen())
}
