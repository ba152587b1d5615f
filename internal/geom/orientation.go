package geom

import (
	"github.com/ctessum/polyclip-go"
	"github.com/paulmach/orb"
)

// signedArea computes the signed area of a ring via the shoelace
// formula (the cross-product sum halved); sign gives orientation
// (positive = CCW). Grounded on the
// teacher's calculatePolygonArea in gpkg_store.go, which uses the same
// accumulation to tell exterior rings from holes.
func signedArea(ring orb.Ring) float64 {
	var area float64
	n := len(ring)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += ring[i][0] * ring[j][1]
		area -= ring[j][0] * ring[i][1]
	}
	return area / 2
}

func reverseRing(ring orb.Ring) orb.Ring {
	out := make(orb.Ring, len(ring))
	for i, p := range ring {
		out[len(ring)-1-i] = p
	}
	return out
}

// OrientationCorrect reverses rings whose signed area has the wrong
// sign: the exterior ring (index 0) must be CCW, interior rings CW.
// It returns a new Polygon; p is not mutated.
func OrientationCorrect(p Polygon) Polygon {
	rings := make(orb.Polygon, len(p.Polygon))
	for i, ring := range p.Polygon {
		area := signedArea(ring)
		wantCCW := i == 0
		isCCW := area > 0
		if wantCCW != isCCW {
			ring = reverseRing(ring)
		}
		rings[i] = ring
	}
	return Polygon{Polygon: rings}
}

// RingArea exposes the signed ring area for backends (e.g. shapefile)
// that need to classify a ring as exterior (CW in shapefile convention)
// or hole without redoing the shoelace sum.
func RingArea(ring orb.Ring) float64 {
	return signedArea(ring)
}

func ringToPolyclip(ring orb.Ring) polyclip.Contour {
	contour := make(polyclip.Contour, len(ring))
	for i, pt := range ring {
		contour[i] = polyclip.Point{X: pt[0], Y: pt[1]}
	}
	return contour
}

func polyclipToRing(c polyclip.Contour) orb.Ring {
	ring := make(orb.Ring, 0, len(c)+1)
	for _, pt := range c {
		ring = append(ring, orb.Point{pt.X, pt.Y})
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

// StitchRings groups a flat list of rings (as decoded from a shapefile
// Polygon record's parts, or any other ring-soup source) into
// polygons: exterior rings paired with the holes they geometrically
// contain. Classification of exterior-vs-hole uses signed ring area
// (§4.I's "split into exterior/hole rings by signed area"); assignment
// of each hole to its exterior is by point-in-ring containment.
// Subtraction is done with polyclip-go's DIFFERENCE operator, the same
// library the teacher uses for its own polygon boolean ops in
// gpkg_store.go's UnionGeometries/DifferenceGeometries.
func StitchRings(rings []orb.Ring) []Polygon {
	var exteriors, holes []orb.Ring
	for _, r := range rings {
		if signedArea(r) < 0 {
			exteriors = append(exteriors, r)
		} else {
			holes = append(holes, r)
		}
	}
	if len(exteriors) == 0 && len(rings) > 0 {
		// Degenerate input with no clockwise ring at all: treat every
		// ring as its own exterior rather than dropping the record.
		exteriors = rings
		holes = nil
	}

	polys := make([]Polygon, 0, len(exteriors))
	for _, ext := range exteriors {
		base := polyclip.Polygon{ringToPolyclip(ext)}
		var assigned []orb.Ring
		remaining := holes[:0:0]
		for _, h := range holes {
			if pointInRing(h[0], ext) {
				assigned = append(assigned, h)
			} else {
				remaining = append(remaining, h)
			}
		}
		holes = remaining

		result := base
		for _, h := range assigned {
			result = result.Construct(polyclip.DIFFERENCE, polyclip.Polygon{ringToPolyclip(h)})
		}

		poly := make(orb.Polygon, 0, len(result))
		for _, contour := range result {
			poly = append(poly, polyclipToRing(contour))
		}
		if len(poly) == 0 {
			poly = orb.Polygon{ext}
		}
		polys = append(polys, Polygon{Polygon: poly})
	}
	return polys
}

// pointInRing is a standard ray-casting point-in-polygon test.
func pointInRing(pt orb.Point, ring orb.Ring) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		if (pi[1] > pt[1]) != (pj[1] > pt[1]) &&
			pt[0] < (pj[0]-pi[0])*(pt[1]-pi[1])/(pj[1]-pi[1])+pi[0] {
			inside = !inside
		}
	}
	return inside
}
