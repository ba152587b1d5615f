package geom

import "github.com/mapnikgo/geoindex/internal/errs"

// Validate enforces the sum type's cross-backend invariants: a
// GeometryCollection must not itself contain another collection at
// level 1, and every LineString (bare or inside a multi) needs at
// least 2 points. Callers needing backend-specific detail in the
// error (an offset, an excerpt) should wrap the result.
func Validate(g Geometry) error {
	switch v := g.(type) {
	case Collection:
		for _, child := range v.Geometries {
			if child.Kind() == KindCollection {
				return errs.New(errs.MalformedFile, nil)
			}
			if err := Validate(child); err != nil {
				return err
			}
		}
	case LineString:
		if len(v.LineString) < 2 {
			return errs.New(errs.MalformedRecord, nil)
		}
	case MultiLineString:
		for _, ls := range v.MultiLineString {
			if len(ls) < 2 {
				return errs.New(errs.MalformedRecord, nil)
			}
		}
	}
	return nil
}
