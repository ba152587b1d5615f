package shapeds

import (
	"encoding/binary"

	"github.com/paulmach/orb"

	"github.com/mapnikgo/geoindex/internal/errs"
	"github.com/mapnikgo/geoindex/internal/geom"
)

// Shape type codes per the ESRI shapefile spec.
const (
	shapeNull        = 0
	shapePoint       = 1
	shapePolyLine    = 3
	shapePolygon     = 5
	shapeMultiPoint  = 8
	shapePointZ      = 11
	shapePolyLineZ   = 13
	shapePolygonZ    = 15
	shapeMultiPointZ = 18
	shapePointM      = 21
	shapePolyLineM   = 23
	shapePolygonM    = 25
	shapeMultiPointM = 28
	shapeMultiPatch  = 31
)

// parseShapeGeometry decodes a single record's content (everything
// after the 8-byte record header) into the shared geometry sum type.
// Z and M blocks, when present, are never read: every *Z/*M variant
// carries its 2D ring/point data first, so skipping the trailing
// elevation/measure block is simply a matter of not reading past the
// coordinate arrays this function already knows the length of.
func parseShapeGeometry(content []byte, strict bool) (geom.Geometry, error) {
	if len(content) < 4 {
		return nil, errs.New(errs.MalformedRecord, nil)
	}
	shapeType := int32(binary.LittleEndian.Uint32(content[0:4]))

	switch shapeType {
	case shapeNull:
		return geom.Empty{}, nil

	case shapePoint, shapePointZ, shapePointM:
		if len(content) < 20 {
			return nil, errs.New(errs.MalformedRecord, nil)
		}
		x := readF64LE(content[4:12])
		y := readF64LE(content[12:20])
		return geom.Point{Point: orb.Point{x, y}}, nil

	case shapeMultiPoint, shapeMultiPointZ, shapeMultiPointM:
		pts, err := parseMultiPointBlock(content)
		if err != nil {
			return nil, err
		}
		return geom.MultiPoint{MultiPoint: pts}, nil

	case shapePolyLine, shapePolyLineZ, shapePolyLineM:
		parts, points, err := parsePartsAndPoints(content)
		if err != nil {
			return nil, err
		}
		if shapeType == shapePolyLineM && strict && !validMLength(len(content), len(parts), len(points)) {
			return nil, errs.New(errs.MalformedRecord, nil)
		}
		lines := splitLines(parts, points)
		if len(lines) == 1 {
			return geom.LineString{LineString: lines[0]}, nil
		}
		mls := make(orb.MultiLineString, len(lines))
		copy(mls, lines)
		return geom.MultiLineString{MultiLineString: mls}, nil

	case shapePolygon, shapePolygonZ, shapePolygonM:
		parts, points, err := parsePartsAndPoints(content)
		if err != nil {
			return nil, err
		}
		if shapeType == shapePolygonM && strict && !validMLength(len(content), len(parts), len(points)) {
			return nil, errs.New(errs.MalformedRecord, nil)
		}
		rings := make([]orb.Ring, 0, len(parts))
		for _, line := range splitLines(parts, points) {
			rings = append(rings, orb.Ring(line))
		}
		polys := geom.StitchRings(rings)
		switch len(polys) {
		case 0:
			return geom.Empty{}, nil
		case 1:
			return polys[0], nil
		default:
			mp := make(orb.MultiPolygon, len(polys))
			for i, p := range polys {
				mp[i] = p.Polygon
			}
			return geom.MultiPolygon{MultiPolygon: mp}, nil
		}

	case shapeMultiPatch:
		return nil, errs.New(errs.UnsupportedGeometry, nil)

	default:
		return nil, errs.Newf(errs.UnsupportedGeometry, "unsupported shape type %d", shapeType)
	}
}

func parseMultiPointBlock(content []byte) (orb.MultiPoint, error) {
	if len(content) < 40 {
		return nil, errs.New(errs.MalformedRecord, nil)
	}
	n := int(binary.LittleEndian.Uint32(content[36:40]))
	need := 40 + n*16
	if n < 0 || len(content) < need {
		return nil, errs.New(errs.MalformedRecord, nil)
	}
	pts := make(orb.MultiPoint, n)
	off := 40
	for i := 0; i < n; i++ {
		x := readF64LE(content[off : off+8])
		y := readF64LE(content[off+8 : off+16])
		pts[i] = orb.Point{x, y}
		off += 16
	}
	return pts, nil
}

// parsePartsAndPoints reads the shared PolyLine/Polygon record body:
// ShapeType(4) + Bbox(32) + NumParts(4) + NumPoints(4) + parts[NumParts]:u32
// + points[NumPoints]: 2xf64.
func parsePartsAndPoints(content []byte) ([]int, []orb.Point, error) {
	if len(content) < 44 {
		return nil, nil, errs.New(errs.MalformedRecord, nil)
	}
	numParts := int(binary.LittleEndian.Uint32(content[36:40]))
	numPoints := int(binary.LittleEndian.Uint32(content[40:44]))
	if numParts <= 0 || numPoints <= 0 {
		return nil, nil, errs.New(errs.MalformedRecord, nil)
	}
	need := 44 + numParts*4 + numPoints*16
	if len(content) < need {
		return nil, nil, errs.New(errs.MalformedRecord, nil)
	}

	parts := make([]int, numParts)
	off := 44
	for i := 0; i < numParts; i++ {
		parts[i] = int(binary.LittleEndian.Uint32(content[off : off+4]))
		off += 4
	}

	points := make([]orb.Point, numPoints)
	for i := 0; i < numPoints; i++ {
		x := readF64LE(content[off : off+8])
		y := readF64LE(content[off+8 : off+16])
		points[i] = orb.Point{x, y}
		off += 16
	}
	return parts, points, nil
}

// splitLines breaks a flat points array into one line per part, using
// each part's start index and the next part's start (or the end of
// points) as its boundary.
func splitLines(parts []int, points []orb.Point) []orb.LineString {
	lines := make([]orb.LineString, 0, len(parts))
	for i, start := range parts {
		end := len(points)
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || end > len(points) {
			continue
		}
		line := make(orb.LineString, end-start)
		copy(line, points[start:end])
		lines = append(lines, line)
	}
	return lines
}

// recordSize2D is the byte length a PolyLine/Polygon record would have
// with no Z or M block at all: the shared header plus parts/points.
func recordSize2D(numParts, numPoints int) int {
	return 44 + numParts*4 + numPoints*16
}

// hasMBlock reports whether content_length is long enough to hold an
// optional M block beyond the plain 2D body: the heuristic this
// backend uses since some files declare an M-capable shape type but
// omit the M block entirely.
func hasMBlock(contentLen, numPoints int) bool {
	return contentLen >= recordSize2D(0, numPoints)+16+8*numPoints
}

// validMLength reports whether a PolyLineM/PolygonM record's declared
// content length matches either the plain 2D body or the 2D body plus
// a well-formed M block (Mmin/Mmax + one f64 per point). Any other
// length means the file's M block bookkeeping disagrees with its own
// point count; only strict callers reject on this.
func validMLength(contentLen, numParts, numPoints int) bool {
	plain := recordSize2D(numParts, numPoints)
	return contentLen == plain || (hasMBlock(contentLen, numPoints) && contentLen == plain+16+8*numPoints)
}
