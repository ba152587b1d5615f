package geojsonds

import (
	"encoding/json"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/afero"

	"github.com/mapnikgo/geoindex/internal/byteio"
	"github.com/mapnikgo/geoindex/internal/datasource"
	"github.com/mapnikgo/geoindex/internal/errs"
	"github.com/mapnikgo/geoindex/internal/feature"
	"github.com/mapnikgo/geoindex/internal/geom"
	"github.com/mapnikgo/geoindex/internal/logging"
	"github.com/mapnikgo/geoindex/internal/quadtree"
)

func init() {
	datasource.Register("geojson", Open)
}

// defaultIndexedSchemaSample is the schema-discovery sample size for
// indexed mode when num_features_to_query is not given.
const defaultIndexedSchemaSample = 5

// Datasource is the GeoJSON backend, in either indexed or cached mode.
type Datasource struct {
	ctx      *feature.Context
	sink     logging.Sink
	strict   bool
	envelope geom.Box64
	tree     *quadtree.Tree

	// indexed mode
	src   byteio.Source
	spans []Span

	// cached mode
	cached   bool
	features []cachedFeature
}

type cachedFeature struct {
	geometry geom.Geometry
	props    map[string]any
}

// Open constructs a GeoJSON datasource per the "type"=geojson Params:
// file/inline, base, extent, strict, cache_features, num_features_to_query.
func Open(params datasource.Params, sink logging.Sink) (datasource.Datasource, error) {
	if sink == nil {
		sink = logging.Discard
	}

	data, src, err := loadContent(params)
	if err != nil {
		return nil, err
	}

	strict, err := params.Bool("strict", false)
	if err != nil {
		return nil, err
	}
	cacheFeatures, err := params.Bool("cache_features", false)
	if err != nil {
		return nil, err
	}
	numToQuery, err := params.Int("num_features_to_query", 0)
	if err != nil {
		return nil, err
	}
	indexDepth, err := params.Int("index_depth", int64(quadtree.DefaultMaxDepth))
	if err != nil {
		return nil, err
	}
	indexRatio, err := params.Float("index_ratio", quadtree.DefaultSplitRatio)
	if err != nil {
		return nil, err
	}

	ds := &Datasource{ctx: feature.NewContext(), sink: sink, strict: strict, cached: cacheFeatures}

	extent, hasExtent, err := params.Extent()
	if err != nil {
		return nil, err
	}

	if cacheFeatures {
		if src != nil {
			src.Close()
		}
		if err := ds.buildCached(data, numToQuery, uint32(indexDepth), indexRatio); err != nil {
			return nil, err
		}
	} else {
		ds.src = src
		if err := ds.buildIndexed(data, numToQuery, uint32(indexDepth), indexRatio); err != nil {
			if src != nil {
				src.Close()
			}
			return nil, err
		}
	}

	if hasExtent {
		ds.envelope = extent
	}
	return ds, nil
}

func loadContent(params datasource.Params) ([]byte, byteio.Source, error) {
	if inline, ok := params.String("inline"); ok && inline != "" {
		src := byteio.NewMemorySource([]byte(inline))
		return src.Bytes(), src, nil
	}
	path, err := params.Require("file")
	if err != nil {
		return nil, nil, err
	}
	if base, ok := params.String("base"); ok && base != "" {
		path = base + "/" + path
	}
	src, err := byteio.OpenFile(afero.NewOsFs(), path)
	if err != nil {
		return nil, nil, err
	}
	buf := make([]byte, src.Len())
	if _, err := src.ReadAt(buf, 0); err != nil {
		src.Close()
		return nil, nil, errs.New(errs.IoError, err)
	}
	return buf, src, nil
}

func sampleLimit(n int64, def int) int {
	if n == 0 {
		return def
	}
	if n < 0 {
		return -1
	}
	return int(n)
}

func (ds *Datasource) buildCached(data []byte, numToQuery int64, indexDepth uint32, indexRatio float64) error {
	limit := sampleLimit(numToQuery, -1)

	features, err := parseWholeDocument(data)
	if err != nil {
		return err
	}

	env := geom.InvalidBox64()
	keySet := make(map[string]bool)
	for i, f := range features {
		if err := validateGeometry(f.geometry); err != nil {
			if ds.strict {
				return err
			}
			ds.sink.Warnf("geojson: skipping invalid geometry: %v", err)
			continue
		}
		env = env.Expand(geom.Envelope(f.geometry))
		ds.features = append(ds.features, f)
		if limit < 0 || i < limit {
			for _, k := range sortedKeys(f.props) {
				keySet[k] = true
			}
		}
	}
	ds.envelope = env
	ds.pushSchema(keySet)

	root := env
	if !root.Valid() {
		root = geom.NewBox64(-1e9, -1e9, 1e9, 1e9)
	}
	ds.tree = quadtree.New(root.Narrow(), indexDepth, indexRatio)
	for i, f := range ds.features {
		e := geom.Envelope(f.geometry)
		if !e.Valid() {
			continue
		}
		ds.tree.Insert(quadtree.Record{Offset: uint64(i), Size: 1, Envelope: e.Narrow()})
	}
	return nil
}

func (ds *Datasource) buildIndexed(data []byte, numToQuery int64, indexDepth uint32, indexRatio float64) error {
	limit := sampleLimit(numToQuery, defaultIndexedSchemaSample)

	spans, err := ExtractFeatureSpans(data)
	if err != nil {
		return err
	}
	ds.spans = spans

	env := geom.InvalidBox64()
	keySet := make(map[string]bool)
	root := geom.NewBox64(-1e9, -1e9, 1e9, 1e9)
	ds.tree = quadtree.New(root.Narrow(), indexDepth, indexRatio)

	for i, span := range spans {
		raw := data[span.Offset : span.Offset+span.Length]
		g, props, perr := parseSpan(raw)
		if perr != nil {
			if ds.strict {
				return perr
			}
			ds.sink.Warnf("geojson: skipping malformed feature at offset %d: %v", span.Offset, perr)
			continue
		}
		if verr := validateGeometry(g); verr != nil {
			if ds.strict {
				return verr
			}
			ds.sink.Warnf("geojson: skipping invalid geometry at offset %d: %v", span.Offset, verr)
			continue
		}
		e := geom.Envelope(g)
		if e.Valid() {
			env = env.Expand(e)
			ds.tree.Insert(quadtree.Record{Offset: uint64(span.Offset), Size: uint64(span.Length), Envelope: e.Narrow()})
		}
		if limit < 0 || i < limit {
			for _, k := range sortedKeys(props) {
				keySet[k] = true
			}
		}
	}
	ds.envelope = env
	ds.pushSchema(keySet)
	return nil
}

func (ds *Datasource) pushSchema(keySet map[string]bool) {
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sortStrings(keys)
	for _, k := range keys {
		ds.ctx.Push(k)
	}
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// parseWholeDocument parses data as a FeatureCollection, a single
// Feature, or a bare Geometry, in that order.
func parseWholeDocument(data []byte) ([]cachedFeature, error) {
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil {
		out := make([]cachedFeature, 0, len(fc.Features))
		for _, f := range fc.Features {
			out = append(out, cachedFeature{geometry: geom.FromOrb(f.Geometry), props: map[string]any(f.Properties)})
		}
		return out, nil
	}
	if f, err := geojson.UnmarshalFeature(data); err == nil {
		return []cachedFeature{{geometry: geom.FromOrb(f.Geometry), props: map[string]any(f.Properties)}}, nil
	}
	if g, err := geojson.UnmarshalGeometry(data); err == nil {
		return []cachedFeature{{geometry: geom.FromOrb(g.Geometry), props: nil}}, nil
	}
	return nil, errs.New(errs.MalformedFile, nil)
}

// parseSpan parses one extracted span as either a Feature or a bare
// Geometry.
func parseSpan(data []byte) (geom.Geometry, map[string]any, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, nil, errs.New(errs.MalformedRecord, err)
	}
	if probe.Type == "Feature" {
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, nil, errs.New(errs.MalformedRecord, err)
		}
		return geom.FromOrb(f.Geometry), map[string]any(f.Properties), nil
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, nil, errs.New(errs.MalformedRecord, err)
	}
	return geom.FromOrb(g.Geometry), nil, nil
}

// Context returns the shared attribute schema.
func (ds *Datasource) Context() *feature.Context { return ds.ctx }

// Envelope returns the datasource's overall bounding box.
func (ds *Datasource) Envelope() geom.Box64 { return ds.envelope }

// Index returns the in-memory quadtree built during Open, for callers
// (the index-builder CLI) that need to serialize it to a sidecar file
// rather than just query it.
func (ds *Datasource) Index() *quadtree.Tree { return ds.tree }

// Close releases the backing byte-source, if any (cached mode keeps
// none open after construction).
func (ds *Datasource) Close() error {
	if ds.src != nil {
		return ds.src.Close()
	}
	return nil
}

// Features returns a lazy iterator over features matching q.
func (ds *Datasource) Features(q datasource.Query) (datasource.Featureset, error) {
	recs := ds.tree.Query(q.Bbox)
	sortRecordsByOffset(recs)
	return &featureset{ds: ds, recs: recs, names: q.Names}, nil
}

// FeaturesAtPoint is Features with a degenerate bbox query.
func (ds *Datasource) FeaturesAtPoint(x, y, tolerance float64, names []string) (datasource.Featureset, error) {
	return ds.Features(datasource.PointQuery(x, y, tolerance, names))
}

func sortRecordsByOffset(recs []quadtree.Record) {
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recs[j-1].Offset > recs[j].Offset; j-- {
			recs[j-1], recs[j] = recs[j], recs[j-1]
		}
	}
}

type featureset struct {
	ds    *Datasource
	recs  []quadtree.Record
	names []string
	i     int
}

func (fs *featureset) Next() (*feature.Feature, error) {
	for fs.i < len(fs.recs) {
		rec := fs.recs[fs.i]
		fs.i++

		var g geom.Geometry
		var props map[string]any
		var id uint64 = rec.Offset

		if fs.ds.cached {
			cf := fs.ds.features[rec.Offset]
			g, props = cf.geometry, cf.props
		} else {
			buf := make([]byte, rec.Size)
			if _, err := fs.ds.src.ReadAt(buf, int64(rec.Offset)); err != nil {
				if fs.ds.strict {
					return nil, errs.New(errs.IoError, err)
				}
				fs.ds.sink.Warnf("geojson: failed to read feature at offset %d: %v", rec.Offset, err)
				continue
			}
			parsed, p, err := parseSpan(buf)
			if err != nil {
				if fs.ds.strict {
					return nil, err
				}
				fs.ds.sink.Warnf("geojson: failed to parse feature at offset %d: %v", rec.Offset, err)
				continue
			}
			g, props = parsed, p
		}

		f := feature.New(id+1, fs.ds.ctx, g, false)
		for _, name := range fs.ds.ctx.Names() {
			if !wanted(fs.names, name) {
				continue
			}
			if v, ok := props[name]; ok {
				f.Put(name, attributeValue(v))
			}
		}
		return f, nil
	}
	return nil, nil
}

func wanted(names []string, name string) bool {
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func (fs *featureset) Close() error { return nil }
