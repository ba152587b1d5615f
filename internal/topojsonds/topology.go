// Package topojsonds implements the TopoJSON backend: parsing a single
// topology (arcs, optional delta/affine transform, named objects),
// stitching arc references into geometries, and indexing each named
// object's materialized envelope.
package topojsonds

import (
	"encoding/json"

	"github.com/paulmach/orb"

	"github.com/mapnikgo/geoindex/internal/errs"
)

// transform is the optional delta-decode + affine-transform pair a
// topology may declare for its arcs.
type transform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

type rawTopology struct {
	Type      string                     `json:"type"`
	Arcs      [][][]float64              `json:"arcs"`
	Transform *transform                 `json:"transform"`
	Objects   map[string]json.RawMessage `json:"objects"`
}

// topology is the decoded form: arcs already delta-decoded and
// transformed into absolute coordinates.
type topology struct {
	arcs    [][]orb.Point
	objects map[string]json.RawMessage
}

func parseTopology(data []byte) (*topology, error) {
	var raw rawTopology
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.New(errs.MalformedFile, err)
	}
	if raw.Type != "Topology" {
		return nil, errs.New(errs.MalformedFile, nil)
	}
	return &topology{
		arcs:    decodeArcs(raw.Arcs, raw.Transform),
		objects: raw.Objects,
	}, nil
}

// decodeArcs turns each arc's raw positions into absolute points. When
// a transform is present, positions are cumulative integer deltas;
// otherwise they are already absolute coordinates.
func decodeArcs(raw [][][]float64, tr *transform) [][]orb.Point {
	arcs := make([][]orb.Point, len(raw))
	for i, arc := range raw {
		pts := make([]orb.Point, len(arc))
		var x, y float64
		for j, pos := range arc {
			if len(pos) < 2 {
				continue
			}
			if tr != nil {
				x += pos[0]
				y += pos[1]
				pts[j] = orb.Point{x*tr.Scale[0] + tr.Translate[0], y*tr.Scale[1] + tr.Translate[1]}
			} else {
				pts[j] = orb.Point{pos[0], pos[1]}
			}
		}
		arcs[i] = pts
	}
	return arcs
}

// arc resolves a signed arc index, reversing the points when the index
// is negative per the -i-1 convention.
func (t *topology) arc(idx int) ([]orb.Point, error) {
	i := idx
	reverse := false
	if i < 0 {
		i = -i - 1
		reverse = true
	}
	if i < 0 || i >= len(t.arcs) {
		return nil, errs.New(errs.MalformedRecord, nil)
	}
	pts := t.arcs[i]
	if !reverse {
		return pts, nil
	}
	rev := make([]orb.Point, len(pts))
	for k, p := range pts {
		rev[len(pts)-1-k] = p
	}
	return rev, nil
}
