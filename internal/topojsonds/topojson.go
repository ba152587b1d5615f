package topojsonds

import (
	"encoding/json"
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
	datasource.Register("topojson", Open)
}

// Datasource is the TopoJSON backend. A topology is small enough (and
// its arcs are shared across objects) that it is always fully parsed
// and flattened into an in-memory feature list; there is no indexed
// streaming mode here the way geojsonds has one.
type Datasource struct {
	ctx      *feature.Context
	features []flatFeature
	tree     *quadtree.Tree
	envelope geom.Box64
}

type flatFeature struct {
	geometry geom.Geometry
	props    map[string]any
}

// Open constructs a TopoJSON datasource per the "type"=topojson
// Params: file/inline, base, extent, strict.
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

	topo, err := parseTopology(data)
	if err != nil {
		return nil, err
	}

	ds := &Datasource{ctx: feature.NewContext()}

	names := make([]string, 0, len(topo.objects))
	for name := range topo.objects {
		names = append(names, name)
	}
	sort.Strings(names)

	keySet := make(map[string]bool)
	env := geom.InvalidBox64()
	for _, name := range names {
		var obj rawObject
		if err := json.Unmarshal(topo.objects[name], &obj); err != nil {
			if strict {
				return nil, errs.New(errs.MalformedFile, err)
			}
			sink.Warnf("topojson: skipping unparsable object %q: %v", name, err)
			continue
		}

		children := []rawObject{obj}
		if obj.Type == "GeometryCollection" {
			children = children[:0]
			for _, raw := range obj.Geometries {
				var child rawObject
				if err := json.Unmarshal(raw, &child); err != nil {
					if strict {
						return nil, errs.New(errs.MalformedRecord, err)
					}
					sink.Warnf("topojson: skipping unparsable geometry in %q: %v", name, err)
					continue
				}
				if child.Type == "GeometryCollection" {
					if strict {
						return nil, errs.New(errs.MalformedFile, nil)
					}
					sink.Warnf("topojson: skipping nested GeometryCollection in %q", name)
					continue
				}
				children = append(children, child)
			}
		}

		for _, child := range children {
			g, err := topo.materialize(child)
			if err != nil {
				if strict {
					return nil, err
				}
				sink.Warnf("topojson: skipping malformed geometry in %q: %v", name, err)
				continue
			}
			if err := geom.Validate(g); err != nil {
				if strict {
					return nil, err
				}
				sink.Warnf("topojson: skipping invalid geometry in %q: %v", name, err)
				continue
			}
			ds.features = append(ds.features, flatFeature{geometry: g, props: child.Properties})
			e := geom.Envelope(g)
			if e.Valid() {
				env = env.Expand(e)
			}
			for k := range child.Properties {
				keySet[k] = true
			}
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

// Close is a no-op: a topology is fully materialized at Open time.
func (ds *Datasource) Close() error { return nil }

// Features returns a lazy iterator over flattened objects matching q.
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
