package geojsonds

import "github.com/mapnikgo/geoindex/internal/geom"

// validateGeometry enforces the cross-backend invariants (no
// collection-in-collection nesting, minimum LineString length) that
// apply to every GeoJSON geometry, GeometryCollection included.
func validateGeometry(g geom.Geometry) error {
	return geom.Validate(g)
}
