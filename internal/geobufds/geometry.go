package geobufds

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/mapnikgo/geoindex/internal/errs"
	"github.com/mapnikgo/geoindex/internal/geom"
)

// coordCursor walks a flat delta-encoded coordinate array, resetting
// its running per-dimension sum whenever a ring or line boundary
// starts a fresh decodeLine call.
type coordCursor struct {
	coords []int64
	pos    int
	dims   int
	scale  float64
}

func (c *coordCursor) point() (orb.Point, bool) {
	if c.pos+c.dims > len(c.coords) {
		return orb.Point{}, false
	}
	x := float64(c.coords[c.pos]) / c.scale
	y := float64(c.coords[c.pos+1]) / c.scale
	c.pos += c.dims
	return orb.Point{x, y}, true
}

// decodeLine consumes n points from the cursor with a fresh
// per-dimension running sum, as every individual line/ring does
// (deltas never carry across line boundaries).
func decodeLine(cur *coordCursor, n int) (orb.LineString, error) {
	sum := make([]float64, cur.dims)
	line := make(orb.LineString, 0, n)
	for i := 0; i < n; i++ {
		if cur.pos+cur.dims > len(cur.coords) {
			return nil, errs.New(errs.MalformedRecord, nil)
		}
		for d := 0; d < cur.dims; d++ {
			sum[d] += float64(cur.coords[cur.pos+d])
		}
		cur.pos += cur.dims
		line = append(line, orb.Point{sum[0] / cur.scale, sum[1] / cur.scale})
	}
	return line, nil
}

// materializeGeometry turns a decoded raw Geometry message into the
// shared geometry sum type, honoring per-geometry precision/dimension
// overrides that fall back to the document's.
func materializeGeometry(g rawGeometry, docPrecision, docDimensions int) (geom.Geometry, error) {
	precision := docPrecision
	if g.precision >= 0 {
		precision = g.precision
	}
	dims := docDimensions
	if g.dimensions >= 0 {
		dims = g.dimensions
	}
	if dims < 2 {
		dims = 2
	}
	scale := math.Pow(10, float64(precision))

	switch g.gtype {
	case gtPoint:
		cur := &coordCursor{coords: g.coords, dims: dims, scale: scale}
		p, ok := cur.point()
		if !ok {
			return geom.Empty{}, nil
		}
		return geom.Point{Point: p}, nil

	case gtMultiPoint, gtLineString:
		cur := &coordCursor{coords: g.coords, dims: dims, scale: scale}
		n := len(g.coords) / dims
		line, err := decodeLine(cur, n)
		if err != nil {
			return nil, err
		}
		if g.gtype == gtLineString {
			return geom.LineString{LineString: line}, nil
		}
		return geom.MultiPoint{MultiPoint: orb.MultiPoint(line)}, nil

	case gtMultiLineString, gtPolygon:
		cur := &coordCursor{coords: g.coords, dims: dims, scale: scale}
		lengths := g.lengths
		if len(lengths) == 0 {
			lengths = []uint64{uint64(len(g.coords) / dims)}
		}
		var lines []orb.LineString
		for _, l := range lengths {
			line, err := decodeLine(cur, int(l))
			if err != nil {
				return nil, err
			}
			lines = append(lines, line)
		}
		if g.gtype == gtPolygon {
			poly := make(orb.Polygon, len(lines))
			for i, l := range lines {
				poly[i] = orb.Ring(l)
			}
			return geom.Polygon{Polygon: poly}, nil
		}
		mls := make(orb.MultiLineString, len(lines))
		copy(mls, lines)
		return geom.MultiLineString{MultiLineString: mls}, nil

	case gtMultiPolygon:
		cur := &coordCursor{coords: g.coords, dims: dims, scale: scale}
		li := 0
		popLen := func() (int, bool) {
			if li >= len(g.lengths) {
				return 0, false
			}
			v := g.lengths[li]
			li++
			return int(v), true
		}
		var polygons orb.MultiPolygon
		for {
			numRings, ok := popLen()
			if !ok {
				break
			}
			poly := make(orb.Polygon, 0, numRings)
			for r := 0; r < numRings; r++ {
				numPoints, ok := popLen()
				if !ok {
					return nil, errs.New(errs.MalformedRecord, nil)
				}
				line, err := decodeLine(cur, numPoints)
				if err != nil {
					return nil, err
				}
				poly = append(poly, orb.Ring(line))
			}
			polygons = append(polygons, poly)
		}
		return geom.MultiPolygon{MultiPolygon: polygons}, nil

	case gtGeometryCollection:
		children := make([]geom.Geometry, 0, len(g.geometries))
		for _, child := range g.geometries {
			if child.gtype == gtGeometryCollection {
				return nil, errs.New(errs.MalformedFile, nil)
			}
			cg, err := materializeGeometry(child, docPrecision, docDimensions)
			if err != nil {
				return nil, err
			}
			children = append(children, cg)
		}
		return geom.Collection{Geometries: children}, nil

	default:
		return nil, errs.New(errs.MalformedRecord, nil)
	}
}
