package geobufds

import (
	"sort"

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
	datasource.Register("geobuf", Open)
}

// Datasource is the Geobuf backend. Like topojsonds, a Geobuf document
// is one self-contained message (coordinates, the key table, and
// every feature are interleaved), so it is parsed whole at Open time
// rather than streamed.
type Datasource struct {
	ctx      *feature.Context
	features []flatFeature
	tree     *quadtree.Tree
	envelope geom.Box64
}

type flatFeature struct {
	geometry geom.Geometry
	props    map[string]rawValue
}

// Open constructs a Geobuf datasource per the "type"=geobuf Params:
// file/inline (raw bytes, not text), base, extent, strict.
func Open(params datasource.Params, sink logging.Sink) (datasource.Datasource, error) {
	if sink == nil {
		sink = logging.Discard
	}
	data, err := loadContent(params)
	if err != nil {
		return nil, err
	}
	strict, err := params.Bool("strict", false)
	if err != nil {
		return nil, err
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}

	var raw []rawFeature
	switch {
	case doc.hasFeatureCollection:
		raw = doc.features
	case doc.feature != nil:
		raw = []rawFeature{*doc.feature}
	case doc.geometry != nil:
		raw = []rawFeature{{geometry: *doc.geometry}}
	}

	ds := &Datasource{ctx: feature.NewContext()}
	env := geom.InvalidBox64()
	keySet := make(map[string]bool)

	for i, rf := range raw {
		g, err := materializeGeometry(rf.geometry, doc.precision, doc.dimensions)
		if err != nil {
			if strict {
				return nil, err
			}
			sink.Warnf("geobuf: skipping malformed feature %d: %v", i, err)
			continue
		}
		if err := geom.Validate(g); err != nil {
			if strict {
				return nil, err
			}
			sink.Warnf("geobuf: skipping invalid geometry at feature %d: %v", i, err)
			continue
		}
		ds.features = append(ds.features, flatFeature{geometry: g, props: rf.props})
		e := geom.Envelope(g)
		if e.Valid() {
			env = env.Expand(e)
		}
		for k := range rf.props {
			keySet[k] = true
		}
	}

	ds.envelope = env
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ds.ctx.Push(k)
	}

	if extent, hasExtent, err := params.Extent(); err != nil {
		return nil, err
	} else if hasExtent {
		ds.envelope = extent
	}

	root := ds.envelope
	if !root.Valid() {
		root = geom.NewBox64(-1e9, -1e9, 1e9, 1e9)
	}
	ds.tree = quadtree.New(root.Narrow(), quadtree.DefaultMaxDepth, quadtree.DefaultSplitRatio)
	for i, f := range ds.features {
		e := geom.Envelope(f.geometry)
		if !e.Valid() {
			continue
		}
		ds.tree.Insert(quadtree.Record{Offset: uint64(i), Size: 1, Envelope: e.Narrow()})
	}

	return ds, nil
}

func loadContent(params datasource.Params) ([]byte, error) {
	if inline, ok := params.String("inline"); ok && inline != "" {
		return []byte(inline), nil
	}
	path, err := params.Require("file")
	if err != nil {
		return nil, err
	}
	if base, ok := params.String("base"); ok && base != "" {
		path = base + "/" + path
	}
	src, err := byteio.OpenFile(afero.NewOsFs(), path)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	buf := make([]byte, src.Len())
	if _, err := src.ReadAt(buf, 0); err != nil {
		return nil, errs.New(errs.IoError, err)
	}
	return buf, nil
}

// Context returns the shared attribute schema.
func (ds *Datasource) Context() *feature.Context { return ds.ctx }

// Envelope returns the datasource's overall bounding box.
func (ds *Datasource) Envelope() geom.Box64 { return ds.envelope }

// Close is a no-op: a Geobuf document is fully materialized at Open time.
func (ds *Datasource) Close() error { return nil }

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
	if fs.i >= len(fs.recs) {
		return nil, nil
	}
	rec := fs.recs[fs.i]
	fs.i++

	flat := fs.ds.features[rec.Offset]
	f := feature.New(rec.Offset+1, fs.ds.ctx, flat.geometry, false)
	for _, name := range fs.ds.ctx.Names() {
		if !wanted(fs.names, name) {
			continue
		}
		if v, ok := flat.props[name]; ok {
			f.Put(name, attributeValue(v))
		}
	}
	return f, nil
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
