package csvds

import (
	"strings"

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
	datasource.Register("csv", Open)
}

// Datasource is the CSV backend: a box-scanned quadtree of
// (offset, length) spans over a byte-source, re-parsed on demand.
type Datasource struct {
	ctx      *feature.Context
	src      byteio.Source
	data     []byte
	locator  GeometryColumnLocator
	sep      byte
	quote    byte
	colTypes map[int]ColumnType
	tree     *quadtree.Tree
	envelope geom.Box64
	sink     logging.Sink
	strict   bool
}

// Open constructs a CSV datasource per the "type"=csv Params
// recognized keys: file/inline, base, encoding (accepted, not
// re-encoded beyond UTF-8 passthrough), extent, strict, row_limit,
// headers, separator, quote, and the headers_mode=suffix supplement.
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
	rowLimit, err := params.Int("row_limit", 0)
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
	headersMode, _ := params.String("headers_mode")
	manualHeaders, _ := params.String("headers")

	dialect := DetectDialect(data)
	if sepStr, ok := params.String("separator"); ok && sepStr != "" {
		r, err := params.Rune("separator", 0)
		if err != nil {
			return nil, err
		}
		dialect.Separator = byte(r)
	}
	if quoteStr, ok := params.String("quote"); ok && quoteStr != "" {
		r, err := params.Rune("quote", 0)
		if err != nil {
			return nil, err
		}
		dialect.Quote = byte(r)
	}

	spans, splitErr := SplitLines(data, dialect.Quote)
	if splitErr != nil && strict {
		return nil, splitErr
	}

	headerSpanIdx := -1
	var headerLine []byte
	if manualHeaders == "" {
		for i, span := range spans {
			line := data[span.Offset : span.Offset+span.Length]
			if strings.TrimSpace(string(line)) == "" {
				continue
			}
			headerSpanIdx = i
			headerLine = line
			break
		}
		if headerSpanIdx < 0 {
			return nil, errs.New(errs.MissingHeader, nil)
		}
	}

	headers, locator, err := Headers(headerLineOrManual(headerLine, manualHeaders), manualHeaders, dialect.Separator, dialect.Quote, headersMode, strict)
	if err != nil {
		return nil, err
	}

	ds := &Datasource{
		ctx:      feature.NewContext(),
		src:      src,
		data:     data,
		locator:  locator,
		sep:      dialect.Separator,
		quote:    dialect.Quote,
		colTypes: make(map[int]ColumnType),
		sink:     sink,
		strict:   strict,
	}
	for _, h := range headers {
		ds.ctx.Push(h)
	}

	extent, hasExtent, err := params.Extent()
	if err != nil {
		return nil, err
	}

	recordSpans := spans
	if headerSpanIdx >= 0 {
		recordSpans = spans[headerSpanIdx+1:]
	}

	root := extent
	if !hasExtent {
		// A generic root wide enough for both geographic (lon/lat) and
		// projected WKT coordinates; narrowed to the real envelope only
		// once the scan has finished.
		root = geom.NewBox64(-1e9, -1e9, 1e9, 1e9)
	}
	ds.tree = quadtree.New(root.Narrow(), uint32(indexDepth), indexRatio)

	env := geom.InvalidBox64()
	var emitted int64
	for _, span := range recordSpans {
		if rowLimit > 0 && emitted >= rowLimit {
			break
		}
		line := data[span.Offset : span.Offset+span.Length]
		trimmed := strings.TrimSpace(string(line))
		if trimmed == "" {
			continue
		}
		g, rerr := ds.parseRecordGeometry(line, headers)
		if rerr != nil {
			if strict {
				return nil, rerr
			}
			sink.Warnf("csv: skipping malformed record at offset %d: %v", span.Offset, rerr)
			continue
		}
		recEnv := geom.Envelope(g)
		if !recEnv.Valid() {
			continue
		}
		env = env.Expand(recEnv)
		rec := quadtree.Record{Offset: uint64(span.Offset), Size: uint64(span.Length), Envelope: recEnv.Narrow()}
		if (hasExtent && !extent.Intersects(recEnv)) || !ds.tree.Insert(rec) {
			sink.Warnf("csv: record at offset %d fell outside the index extent and was skipped", span.Offset)
			continue
		}
		emitted++
	}
	if hasExtent {
		ds.envelope = extent
	} else {
		ds.envelope = env
	}

	return ds, nil
}

func headerLineOrManual(headerLine []byte, manual string) []byte {
	if manual != "" {
		return []byte(manual)
	}
	return headerLine
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

// parseRecordGeometry parses one record line into fields and extracts
// its geometry, also widening the per-column type table from the
// first non-empty cell seen for each column (used later when
// materializing attribute values in Features).
func (ds *Datasource) parseRecordGeometry(line []byte, headers []string) (geom.Geometry, error) {
	fields, err := ParseLine(line, ds.sep, ds.quote)
	if err != nil {
		return nil, err
	}
	for i := range headers {
		if i >= len(fields) {
			continue
		}
		if i == ds.locator.Index && (ds.locator.Kind == GeomWKT || ds.locator.Kind == GeomGeoJSON) {
			continue
		}
		v := strings.TrimSpace(fields[i])
		if v == "" {
			continue
		}
		if _, ok := ds.colTypes[i]; !ok {
			ds.colTypes[i] = InferType(v)
		}
	}
	return ExtractGeometry(fields, ds.locator)
}

// Context returns the shared attribute schema.
func (ds *Datasource) Context() *feature.Context { return ds.ctx }

// Envelope returns the datasource's overall bounding box.
func (ds *Datasource) Envelope() geom.Box64 { return ds.envelope }

// Index returns the in-memory quadtree built during Open, for callers
// (the index-builder CLI) that need to serialize it to a sidecar file
// rather than just query it.
func (ds *Datasource) Index() *quadtree.Tree { return ds.tree }

// Close releases the backing byte-source.
func (ds *Datasource) Close() error { return ds.src.Close() }

// Features returns a lazy iterator over records matching q, ordered by
// ascending byte offset.
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

		buf := make([]byte, rec.Size)
		if _, err := fs.ds.src.ReadAt(buf, int64(rec.Offset)); err != nil {
			if fs.ds.strict {
				return nil, errs.New(errs.IoError, err)
			}
			fs.ds.sink.Warnf("csv: failed to read record at offset %d: %v", rec.Offset, err)
			continue
		}
		fields, err := ParseLine(buf, fs.ds.sep, fs.ds.quote)
		if err != nil {
			if fs.ds.strict {
				return nil, err
			}
			fs.ds.sink.Warnf("csv: failed to parse record at offset %d: %v", rec.Offset, err)
			continue
		}
		g, err := ExtractGeometry(fields, fs.ds.locator)
		if err != nil {
			if fs.ds.strict {
				return nil, err
			}
			fs.ds.sink.Warnf("csv: failed to extract geometry at offset %d: %v", rec.Offset, err)
			continue
		}

		f := feature.New(uint64(fs.i), fs.ds.ctx, g, false)
		names := fs.ds.ctx.Names()
		for i, name := range names {
			if !wanted(fs.names, name) {
				continue
			}
			if i >= len(fields) {
				continue
			}
			if fs.ds.locator.Kind != GeomLonLat && (i == fs.ds.locator.Index) && (fs.ds.locator.Kind == GeomWKT || fs.ds.locator.Kind == GeomGeoJSON) {
				continue
			}
			raw := strings.TrimSpace(fields[i])
			if raw == "" {
				continue
			}
			colType := fs.ds.colTypes[i]
			val, perr := ParseAs(raw, colType)
			if perr != nil {
				if fs.ds.strict {
					return nil, perr
				}
				fs.ds.sink.Warnf("csv: %v", perr)
				val = feature.UnicodeValue(raw)
			}
			f.Put(name, val)
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
