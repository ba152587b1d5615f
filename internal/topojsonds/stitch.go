package topojsonds

import (
	"encoding/json"

	"github.com/paulmach/orb"

	"github.com/mapnikgo/geoindex/internal/errs"
	"github.com/mapnikgo/geoindex/internal/geom"
)

// rawObject is the JSON shape of one entry under "objects", or one
// entry of a GeometryCollection's "geometries".
type rawObject struct {
	Type        string            `json:"type"`
	Coordinates json.RawMessage   `json:"coordinates"`
	Arcs        json.RawMessage   `json:"arcs"`
	Geometries  []json.RawMessage `json:"geometries"`
	Properties  map[string]any    `json:"properties"`
}

// stitchLine concatenates the points of the arcs named by indices into
// a single line, dropping each arc's first point against the previous
// arc's last point (they are the same topology vertex).
func (t *topology) stitchLine(indices []int) (orb.LineString, error) {
	var line orb.LineString
	for i, idx := range indices {
		pts, err := t.arc(idx)
		if err != nil {
			return nil, err
		}
		if i > 0 && len(pts) > 0 {
			pts = pts[1:]
		}
		line = append(line, pts...)
	}
	return line, nil
}

// stitchRing is stitchLine plus the polygon-ring closure guarantee:
// the TopoJSON spec promises stitched rings already close (first ==
// last); this only enforces it defensively.
func (t *topology) stitchRing(indices []int) (orb.Ring, error) {
	line, err := t.stitchLine(indices)
	if err != nil {
		return nil, err
	}
	ring := orb.Ring(line)
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring, nil
}

func decodeIntSlice(raw json.RawMessage) ([]int, error) {
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, errs.New(errs.MalformedRecord, err)
	}
	return ints, nil
}

func decodeIntMatrix(raw json.RawMessage) ([][]int, error) {
	var rows [][]int
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, errs.New(errs.MalformedRecord, err)
	}
	return rows, nil
}

func decodeIntCube(raw json.RawMessage) ([][][]int, error) {
	var cubes [][][]int
	if err := json.Unmarshal(raw, &cubes); err != nil {
		return nil, errs.New(errs.MalformedRecord, err)
	}
	return cubes, nil
}

func decodePosition(raw json.RawMessage) (orb.Point, error) {
	var pos []float64
	if err := json.Unmarshal(raw, &pos); err != nil || len(pos) < 2 {
		return orb.Point{}, errs.New(errs.MalformedRecord, err)
	}
	return orb.Point{pos[0], pos[1]}, nil
}

func decodePositions(raw json.RawMessage) (orb.MultiPoint, error) {
	var pos [][]float64
	if err := json.Unmarshal(raw, &pos); err != nil {
		return nil, errs.New(errs.MalformedRecord, err)
	}
	out := make(orb.MultiPoint, 0, len(pos))
	for _, p := range pos {
		if len(p) < 2 {
			return nil, errs.New(errs.MalformedRecord, nil)
		}
		out = append(out, orb.Point{p[0], p[1]})
	}
	return out, nil
}

// materialize decodes one object (or GeometryCollection child) into
// the shared geometry sum type.
func (t *topology) materialize(obj rawObject) (geom.Geometry, error) {
	switch obj.Type {
	case "", "Null":
		return geom.Empty{}, nil
	case "Point":
		p, err := decodePosition(obj.Coordinates)
		if err != nil {
			return nil, err
		}
		return geom.Point{Point: p}, nil
	case "MultiPoint":
		mp, err := decodePositions(obj.Coordinates)
		if err != nil {
			return nil, err
		}
		return geom.MultiPoint{MultiPoint: mp}, nil
	case "LineString":
		indices, err := decodeIntSlice(obj.Arcs)
		if err != nil {
			return nil, err
		}
		line, err := t.stitchLine(indices)
		if err != nil {
			return nil, err
		}
		return geom.LineString{LineString: line}, nil
	case "MultiLineString":
		rows, err := decodeIntMatrix(obj.Arcs)
		if err != nil {
			return nil, err
		}
		mls := make(orb.MultiLineString, 0, len(rows))
		for _, indices := range rows {
			line, err := t.stitchLine(indices)
			if err != nil {
				return nil, err
			}
			mls = append(mls, line)
		}
		return geom.MultiLineString{MultiLineString: mls}, nil
	case "Polygon":
		rows, err := decodeIntMatrix(obj.Arcs)
		if err != nil {
			return nil, err
		}
		poly := make(orb.Polygon, 0, len(rows))
		for _, indices := range rows {
			ring, err := t.stitchRing(indices)
			if err != nil {
				return nil, err
			}
			poly = append(poly, ring)
		}
		return geom.Polygon{Polygon: poly}, nil
	case "MultiPolygon":
		cubes, err := decodeIntCube(obj.Arcs)
		if err != nil {
			return nil, err
		}
		mpoly := make(orb.MultiPolygon, 0, len(cubes))
		for _, rows := range cubes {
			poly := make(orb.Polygon, 0, len(rows))
			for _, indices := range rows {
				ring, err := t.stitchRing(indices)
				if err != nil {
					return nil, err
				}
				poly = append(poly, ring)
			}
			mpoly = append(mpoly, poly)
		}
		return geom.MultiPolygon{MultiPolygon: mpoly}, nil
	case "GeometryCollection":
		children := make([]geom.Geometry, 0, len(obj.Geometries))
		for _, raw := range obj.Geometries {
			var child rawObject
			if err := json.Unmarshal(raw, &child); err != nil {
				return nil, errs.New(errs.MalformedRecord, err)
			}
			if child.Type == "GeometryCollection" {
				return nil, errs.New(errs.MalformedFile, nil)
			}
			g, err := t.materialize(child)
			if err != nil {
				return nil, err
			}
			children = append(children, g)
		}
		return geom.Collection{Geometries: children}, nil
	default:
		return nil, errs.New(errs.MalformedRecord, nil)
	}
}
