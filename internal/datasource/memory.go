package datasource

import (
	"sort"

	"github.com/mapnikgo/geoindex/internal/feature"
	"github.com/mapnikgo/geoindex/internal/geom"
	"github.com/mapnikgo/geoindex/internal/logging"
	"github.com/mapnikgo/geoindex/internal/quadtree"
)

func init() {
	Register("memory", newMemoryDatasource)
}

// MemoryDatasource holds features built programmatically rather than
// parsed from a byte-source; it exists for tests and for callers that
// already have features in hand (e.g. synthesizing a query from
// another datasource's results). AddFeature is not part of the
// Datasource interface: a memory datasource is built up before being
// queried, then treated as read-only like every other backend.
type MemoryDatasource struct {
	ctx      *feature.Context
	features []*feature.Feature
	tree     *quadtree.Tree
	envelope geom.Box64
	built    bool
}

func newMemoryDatasource(_ Params, _ logging.Sink) (Datasource, error) {
	return &MemoryDatasource{ctx: feature.NewContext()}, nil
}

// NewMemoryDatasource builds an empty memory datasource directly,
// without going through the string-keyed Params bag.
func NewMemoryDatasource() *MemoryDatasource {
	return &MemoryDatasource{ctx: feature.NewContext()}
}

// Context returns the schema features will be added against.
func (m *MemoryDatasource) Context() *feature.Context { return m.ctx }

// AddFeature appends f to the datasource. Must be called before the
// first query; the spatial index is built lazily on first use.
func (m *MemoryDatasource) AddFeature(f *feature.Feature) {
	m.features = append(m.features, f)
	m.built = false
}

func (m *MemoryDatasource) ensureBuilt() {
	if m.built {
		return
	}
	env := geom.InvalidBox64()
	for _, f := range m.features {
		env = env.Expand(geom.Envelope(f.Geometry))
	}
	m.envelope = env
	root := env
	if !root.Valid() {
		root = geom.NewBox64(-1, -1, 1, 1)
	}
	m.tree = quadtree.New(root.Narrow(), quadtree.DefaultMaxDepth, quadtree.DefaultSplitRatio)
	for i, f := range m.features {
		m.tree.Insert(quadtree.Record{
			Offset:   uint64(i),
			Size:     1,
			Envelope: geom.Envelope(f.Geometry).Narrow(),
		})
	}
	m.built = true
}

// Envelope returns the union of every stored feature's envelope.
func (m *MemoryDatasource) Envelope() geom.Box64 {
	m.ensureBuilt()
	return m.envelope
}

// Features returns a lazy iterator over features matching q, in
// ascending byte-offset (here, insertion) order.
func (m *MemoryDatasource) Features(q Query) (Featureset, error) {
	m.ensureBuilt()
	recs := m.tree.Query(q.Bbox)
	sort.Slice(recs, func(i, j int) bool { return recs[i].Offset < recs[j].Offset })
	return &memoryFeatureset{ds: m, recs: recs}, nil
}

// FeaturesAtPoint is Features with a degenerate bbox query.
func (m *MemoryDatasource) FeaturesAtPoint(x, y, tolerance float64, names []string) (Featureset, error) {
	return m.Features(PointQuery(x, y, tolerance, names))
}

// Close is a no-op: a memory datasource owns no external resources.
func (m *MemoryDatasource) Close() error { return nil }

type memoryFeatureset struct {
	ds   *MemoryDatasource
	recs []quadtree.Record
	i    int
}

func (fs *memoryFeatureset) Next() (*feature.Feature, error) {
	if fs.i >= len(fs.recs) {
		return nil, nil
	}
	f := fs.ds.features[fs.recs[fs.i].Offset]
	fs.i++
	return f, nil
}

func (fs *memoryFeatureset) Close() error { return nil }
