package datasource

import (
	"github.com/mapnikgo/geoindex/internal/errs"
	"github.com/mapnikgo/geoindex/internal/feature"
	"github.com/mapnikgo/geoindex/internal/geom"
	"github.com/mapnikgo/geoindex/internal/logging"
)

// Query bundles a spatial filter with the attribute names a caller
// wants materialized; an empty Names means "all attributes".
type Query struct {
	Bbox  geom.Box64
	Names []string
}

// PointQuery builds a degenerate-bbox Query around (x, y) widened by
// tolerance on each axis.
func PointQuery(x, y, tolerance float64, names []string) Query {
	return Query{
		Bbox:  geom.NewBox64(x-tolerance, y-tolerance, x+tolerance, y+tolerance),
		Names: names,
	}
}

// Featureset is a lazy, forward-only, single-pass sequence of
// features produced by one query. It is not safe to share across
// goroutines; each concurrent query must obtain its own.
type Featureset interface {
	// Next returns the next feature, or (nil, nil) once exhausted.
	// Under strict=false a per-record error is swallowed and Next
	// continues to the following record rather than returning it;
	// under strict=true the first error is terminal.
	Next() (*feature.Feature, error)
	// Close releases any resources held by the iterator (an open
	// byte-source handle, mapped-file cache reference).
	Close() error
}

// Datasource is the backend-agnostic façade every backend
// implements. A single instance may answer concurrent queries as long
// as its byte-source supports concurrent reads (memory-mapped regions
// do); each query must use its own Featureset.
type Datasource interface {
	// Envelope returns the datasource's overall bounding box, the
	// union of every feature's envelope.
	Envelope() geom.Box64
	// Context returns the shared attribute schema.
	Context() *feature.Context
	// Features returns a lazy iterator over features matching query,
	// in ascending byte-offset (source) order.
	Features(q Query) (Featureset, error)
	// FeaturesAtPoint is Features with a degenerate bbox query.
	FeaturesAtPoint(x, y, tolerance float64, names []string) (Featureset, error)
	// Close releases the datasource's byte-source and quadtree.
	Close() error
}

// Constructor builds a Datasource from params and a logging sink. Open
// passes logging.Discard in place of a nil sink, and every registered
// backend also treats a nil sink as logging.Discard.
type Constructor func(params Params, sink logging.Sink) (Datasource, error)

var registry = make(map[string]Constructor)

// Register adds a backend constructor under name. Backends call this
// from their own init() (the static-registry replacement for dynamic
// plugin loading).
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// Open dispatches to the backend named by the "type" parameter.
func Open(params Params, sink logging.Sink) (Datasource, error) {
	typ, err := params.Require("type")
	if err != nil {
		return nil, err
	}
	ctor, ok := registry[typ]
	if !ok {
		return nil, errs.Newf(errs.UnknownBackend, "unknown datasource type %q", typ)
	}
	if sink == nil {
		sink = logging.Discard
	}
	return ctor(params, sink)
}
