package geojsonds

import (
	"sort"
	"testing"

	"github.com/paulmach/orb"

	"github.com/mapnikgo/geoindex/internal/datasource"
	"github.com/mapnikgo/geoindex/internal/errs"
	"github.com/mapnikgo/geoindex/internal/geom"
)

func open(t *testing.T, params datasource.Params) datasource.Datasource {
	t.Helper()
	ds, err := Open(params, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { ds.Close() })
	return ds
}

const pointFeatureCollection = `{
	"type": "FeatureCollection",
	"features": [
		{"type": "Feature", "properties": {"name": "Winthrop", "pop": 400},
		 "geometry": {"type": "Point", "coordinates": [120.15, 48.47]}},
		{"type": "Feature", "properties": {"name": "Mazama"},
		 "geometry": {"type": "Point", "coordinates": [120.40, 48.60]}}
	]
}`

func TestGeoJSONPointIndexedMode(t *testing.T) {
	ds := open(t, datasource.NewParams().
		Set("type", "geojson").
		Set("inline", pointFeatureCollection))

	env := ds.Envelope()
	if env.MinX != 120.15 || env.MaxX != 120.40 {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	fs, err := ds.Features(datasource.Query{Bbox: env})
	if err != nil {
		t.Fatalf("Features: %v", err)
	}
	var names []string
	for {
		f, err := fs.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if f == nil {
			break
		}
		v, ok := f.Get("name")
		if !ok {
			t.Fatalf("expected a name attribute")
		}
		s, _ := v.Str()
		names = append(names, s)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 features, got %d: %v", len(names), names)
	}
}

func TestGeoJSONCachedMatchesIndexedSchema(t *testing.T) {
	indexed := open(t, datasource.NewParams().
		Set("type", "geojson").
		Set("inline", pointFeatureCollection))
	cached := open(t, datasource.NewParams().
		Set("type", "geojson").
		Set("cache_features", "true").
		Set("inline", pointFeatureCollection))

	a := append([]string(nil), indexed.Context().Names()...)
	b := append([]string(nil), cached.Context().Names()...)
	sort.Strings(a)
	sort.Strings(b)
	if len(a) != len(b) {
		t.Fatalf("schema mismatch: indexed=%v cached=%v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("schema mismatch at %d: indexed=%v cached=%v", i, a, b)
		}
	}
}

func TestGeoJSONRejectsNestedGeometryCollection(t *testing.T) {
	const doc = `{
		"type": "Feature",
		"properties": {},
		"geometry": {
			"type": "GeometryCollection",
			"geometries": [
				{"type": "GeometryCollection", "geometries": []}
			]
		}
	}`
	_, err := Open(datasource.NewParams().
		Set("type", "geojson").
		Set("strict", "true").
		Set("inline", doc), nil)
	if !errs.Is(err, errs.MalformedFile) {
		t.Fatalf("expected MalformedFile, got %v", err)
	}
}

func TestGeoJSONRejectsShortLineString(t *testing.T) {
	const doc = `{
		"type": "Feature",
		"properties": {},
		"geometry": {"type": "LineString", "coordinates": [[0, 0]]}
	}`
	_, err := Open(datasource.NewParams().
		Set("type", "geojson").
		Set("strict", "true").
		Set("inline", doc), nil)
	if !errs.Is(err, errs.MalformedRecord) {
		t.Fatalf("expected MalformedRecord, got %v", err)
	}
}

func TestGeoJSONNonStrictSkipsInvalidFeatures(t *testing.T) {
	const doc = `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "properties": {"name": "ok"},
			 "geometry": {"type": "Point", "coordinates": [1, 1]}},
			{"type": "Feature", "properties": {"name": "bad"},
			 "geometry": {"type": "LineString", "coordinates": [[0, 0]]}}
		]
	}`
	ds := open(t, datasource.NewParams().
		Set("type", "geojson").
		Set("inline", doc))

	fs, err := ds.Features(datasource.Query{Bbox: ds.Envelope()})
	if err != nil {
		t.Fatalf("Features: %v", err)
	}
	count := 0
	for {
		f, err := fs.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if f == nil {
			break
		}
		count++
	}
	if count != 1 {
		t.Fatalf("expected 1 surviving feature, got %d", count)
	}
}

func TestGeoJSONBareGeometry(t *testing.T) {
	ds := open(t, datasource.NewParams().
		Set("type", "geojson").
		Set("inline", `{"type": "Point", "coordinates": [5, 10]}`))

	env := ds.Envelope()
	if env.MinX != 5 || env.MinY != 10 {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestExtractFeatureSpansTopLevel(t *testing.T) {
	spans, err := ExtractFeatureSpans([]byte(pointFeatureCollection))
	if err != nil {
		t.Fatalf("ExtractFeatureSpans: %v", err)
	}
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	for _, sp := range spans {
		if sp.Offset < 0 || sp.Length <= 0 {
			t.Fatalf("invalid span: %+v", sp)
		}
	}
}

func TestValidateGeometryAcceptsPlainCollection(t *testing.T) {
	g := geom.Collection{Geometries: []geom.Geometry{
		geom.Point{Point: orb.Point{0, 0}},
	}}
	if err := validateGeometry(g); err != nil {
		t.Fatalf("expected a flat collection to validate, got %v", err)
	}
}
