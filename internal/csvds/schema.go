package csvds

import (
	"fmt"
	"strings"

	"github.com/mapnikgo/geoindex/internal/errs"
)

// GeometryColumnKind tags which convention a CSV uses for geometry.
type GeometryColumnKind int

const (
	GeomUnknown GeometryColumnKind = iota
	GeomWKT
	GeomGeoJSON
	GeomLonLat
)

// GeometryColumnLocator records where the geometry lives among a CSV's
// columns.
type GeometryColumnLocator struct {
	Kind GeometryColumnKind
	// Index is the single WKT/GeoJSON column, or the longitude/x
	// column for GeomLonLat.
	Index int
	// Index2 is the latitude/y column, only meaningful for GeomLonLat.
	Index2 int
}

func (l GeometryColumnLocator) valid(numHeaders int) bool {
	if l.Kind == GeomUnknown {
		return false
	}
	if l.Index < 0 || l.Index >= numHeaders {
		return false
	}
	if l.Kind == GeomLonLat && (l.Index2 < 0 || l.Index2 >= numHeaders) {
		return false
	}
	return true
}

// locateGeometryColumn inspects one header name and updates locator if
// it recognizes a geometry-column convention, matching the later
// header winning only for the lon/lat pair (x and y are reported
// separately, so the locator accumulates both).
func locateGeometryColumn(header string, index int, locator *GeometryColumnLocator) {
	lower := strings.ToLower(header)
	switch {
	case lower == "wkt" || strings.Contains(lower, "geom"):
		locator.Kind = GeomWKT
		locator.Index = index
	case lower == "geojson":
		locator.Kind = GeomGeoJSON
		locator.Index = index
	case lower == "x" || lower == "lon" || lower == "lng" || lower == "long" || strings.Contains(lower, "longitude"):
		locator.Kind = GeomLonLat
		locator.Index = index
	case lower == "y" || lower == "lat" || strings.Contains(lower, "latitude"):
		locator.Kind = GeomLonLat
		locator.Index2 = index
	}
}

// Headers builds the header list and geometry locator either from an
// explicit manual override or by parsing the first non-blank line of
// data. headersMode controls duplicate-name handling: "" keeps the
// first occurrence (later duplicates are shadowed but still occupy a
// schema slot under the synthesized name _<index>), "suffix" appends a
// counter to every repeat (name, name_1, name_2, ...).
func Headers(data []byte, manual string, sep, quote byte, headersMode string, strict bool) ([]string, GeometryColumnLocator, error) {
	var rawFields []string
	if manual != "" {
		fields, err := ParseLine([]byte(manual), sep, quote)
		if err != nil {
			return nil, GeometryColumnLocator{}, errs.New(errs.MalformedFile, err)
		}
		rawFields = fields
	} else {
		spans, _ := SplitLines(data, quote)
		found := false
		for _, span := range spans {
			line := data[span.Offset : span.Offset+span.Length]
			trimmed := strings.TrimSpace(string(line))
			if trimmed == "" {
				continue
			}
			fields, err := ParseLine(line, sep, quote)
			if err != nil {
				return nil, GeometryColumnLocator{}, errs.New(errs.MalformedFile, err)
			}
			rawFields = fields
			found = true
			break
		}
		if !found {
			return nil, GeometryColumnLocator{}, errs.New(errs.MissingHeader, nil)
		}
	}

	locator := GeometryColumnLocator{Index: -1, Index2: -1}
	seen := make(map[string]int)
	headers := make([]string, 0, len(rawFields))
	for i, raw := range rawFields {
		name := strings.TrimSpace(raw)
		if name == "" {
			if strict {
				return nil, GeometryColumnLocator{}, errs.Newf(errs.MissingHeader, "empty header at column %d", i)
			}
			name = fmt.Sprintf("_%d", i)
		} else {
			locateGeometryColumn(name, i, &locator)
		}

		origName := name
		if n, dup := seen[origName]; dup {
			if headersMode == "suffix" {
				name = fmt.Sprintf("%s_%d", origName, n)
			} else {
				name = fmt.Sprintf("_%d", i)
			}
			seen[origName] = n + 1
		} else {
			seen[origName] = 1
		}
		headers = append(headers, name)
	}

	if !locator.valid(len(headers)) {
		return nil, GeometryColumnLocator{}, errs.New(errs.NoGeometryColumn, nil)
	}
	return headers, locator, nil
}
