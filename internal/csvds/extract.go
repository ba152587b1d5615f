package csvds

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	"github.com/mapnikgo/geoindex/internal/errs"
	"github.com/mapnikgo/geoindex/internal/geom"
)

// ExtractGeometry pulls the geometry out of one parsed row per
// locator's convention.
func ExtractGeometry(fields []string, locator GeometryColumnLocator) (geom.Geometry, error) {
	switch locator.Kind {
	case GeomWKT:
		raw := strings.TrimSpace(field(fields, locator.Index))
		if raw == "" {
			return geom.Empty{}, nil
		}
		g, err := wkt.Unmarshal(raw)
		if err != nil {
			return nil, errs.Newf(errs.MalformedRecord, "invalid WKT: %v", err)
		}
		return geom.FromOrb(g), nil
	case GeomGeoJSON:
		raw := strings.TrimSpace(field(fields, locator.Index))
		if raw == "" {
			return geom.Empty{}, nil
		}
		g, err := geojson.UnmarshalGeometry([]byte(raw))
		if err != nil {
			return nil, errs.Newf(errs.MalformedRecord, "invalid GeoJSON geometry: %v", err)
		}
		return geom.FromOrb(g.Geometry), nil
	case GeomLonLat:
		lonStr := strings.TrimSpace(field(fields, locator.Index))
		latStr := strings.TrimSpace(field(fields, locator.Index2))
		if lonStr == "" || latStr == "" {
			return geom.Empty{}, nil
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return nil, errs.Newf(errs.MalformedRecord, "invalid longitude %q", lonStr)
		}
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return nil, errs.Newf(errs.MalformedRecord, "invalid latitude %q", latStr)
		}
		return geom.Point{Point: orb.Point{lon, lat}}, nil
	default:
		return nil, errs.New(errs.NoGeometryColumn, nil)
	}
}

func field(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return fields[idx]
}
