package shapeds

import (
	"encoding/binary"
	"io"
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
	datasource.Register("shape", Open)
}

// Datasource is the Shapefile backend. It reads three sibling files:
// .shp (geometry records, read lazily by offset), .dbf (attributes,
// joined by record index), and an optional .index sidecar. When the
// sidecar is present, every query streams it fresh with
// quadtree.SeekQuery instead of holding a parsed tree in memory, per
// the box-scan-once/seek-many design the CLI builder exists for.
type Datasource struct {
	ctx      *feature.Context
	shp      byteio.Source
	dbf      *dbfTable
	strict   bool
	rowLimit int64
	sink     logging.Sink
	envelope geom.Box64

	// recordOffsets[i] is the .shp byte offset (past the 8-byte record
	// header) of the i-th record; used to recover a record's dbf row
	// index from the offset a quadtree match reports.
	recordOffsets []uint64

	// Exactly one of these is set.
	tree      *quadtree.Tree
	indexFile afero.File
}

// Open constructs a shapefile datasource. "file" names the shapefile
// without extension; .shp/.dbf/.index are derived from it.
func Open(params datasource.Params, sink logging.Sink) (datasource.Datasource, error) {
	if sink == nil {
		sink = logging.Discard
	}
	strict, err := params.Bool("strict", false)
	if err != nil {
		return nil, err
	}
	rowLimit, err := params.Int("row_limit", 0)
	if err != nil {
		return nil, err
	}

	base, err := params.Require("file")
	if err != nil {
		return nil, err
	}
	if prefix, ok := params.String("base"); ok && prefix != "" {
		base = prefix + "/" + base
	}

	fs := afero.NewOsFs()
	shpSrc, err := byteio.OpenFile(fs, base+".shp")
	if err != nil {
		return nil, err
	}

	hdrBuf := make([]byte, 100)
	if _, err := shpSrc.ReadAt(hdrBuf, 0); err != nil {
		shpSrc.Close()
		return nil, errs.New(errs.IoError, err)
	}
	hdr, err := parseShpHeader(hdrBuf)
	if err != nil {
		shpSrc.Close()
		return nil, err
	}

	ds := &Datasource{
		ctx:      feature.NewContext(),
		shp:      shpSrc,
		strict:   strict,
		rowLimit: rowLimit,
		sink:     sink,
	}

	if exists, _ := afero.Exists(fs, base+".dbf"); exists {
		dbfSrc, err := byteio.OpenFile(fs, base+".dbf")
		if err != nil {
			ds.Close()
			return nil, err
		}
		dbf, err := openDBF(dbfSrc)
		if err != nil {
			dbfSrc.Close()
			ds.Close()
			return nil, err
		}
		ds.dbf = dbf
		for _, f := range dbf.fields {
			ds.ctx.Push(f.Name)
		}
	}

	extent, hasExtent, err := params.Extent()
	if err != nil {
		ds.Close()
		return nil, err
	}

	hasSidecar, _ := afero.Exists(fs, base+".index")
	if hasSidecar {
		idxFile, err := fs.Open(base + ".index")
		if err != nil {
			ds.Close()
			return nil, err
		}
		ds.indexFile = idxFile
	}

	env, err := ds.scan(hasSidecar, hdr.Bbox)
	if err != nil {
		ds.Close()
		return nil, err
	}

	switch {
	case hasExtent:
		ds.envelope = extent
	case hasSidecar:
		ds.envelope = hdr.Bbox
	default:
		ds.envelope = env
	}

	return ds, nil
}

// scan walks every .shp record header once, always recording its
// offset (for later dbf-row joins), and — only when no .index sidecar
// exists to consult instead — also parsing the record's geometry and
// bulk-loading it into an in-memory quadtree seeded from the header's
// declared bounding box.
func (ds *Datasource) scan(hasSidecar bool, headerBbox geom.Box64) (geom.Box64, error) {
	var tree *quadtree.Tree
	if !hasSidecar {
		root := headerBbox
		if !root.Valid() {
			root = geom.NewBox64(-1e9, -1e9, 1e9, 1e9)
		}
		tree = quadtree.New(root.Narrow(), quadtree.DefaultMaxDepth, quadtree.DefaultSplitRatio)
	}

	total := ds.shp.Len()
	offset := int64(100)
	env := geom.InvalidBox64()
	var rhdr [8]byte

	for offset+8 <= total {
		if _, err := ds.shp.ReadAt(rhdr[:], offset); err != nil {
			break
		}
		contentLenWords := int32(binary.BigEndian.Uint32(rhdr[4:8]))
		contentLen := int64(contentLenWords) * 2
		recOffset := offset + 8
		if contentLen < 0 || recOffset+contentLen > total {
			break
		}
		ds.recordOffsets = append(ds.recordOffsets, uint64(recOffset))

		if !hasSidecar {
			buf := make([]byte, contentLen)
			if _, err := ds.shp.ReadAt(buf, recOffset); err == nil {
				g, gerr := parseShapeGeometry(buf, ds.strict)
				if gerr != nil {
					if ds.strict {
						return geom.InvalidBox64(), gerr
					}
					ds.sink.Warnf("shape: skipping malformed record at shp offset %d: %v", recOffset, gerr)
				} else {
					recEnv := geom.Envelope(g)
					if recEnv.Valid() {
						env = env.Expand(recEnv)
						rec := quadtree.Record{Offset: uint64(recOffset), Size: uint64(contentLen), Envelope: recEnv.Narrow()}
						if !tree.Insert(rec) {
							ds.sink.Warnf("shape: record at offset %d has an invalid index envelope and was skipped", recOffset)
						}
					}
				}
			}
		}
		offset = recOffset + contentLen
	}

	ds.tree = tree
	return env, nil
}

// recordIndexForOffset recovers a record's 0-based position (its dbf
// row number) from its .shp content offset via binary search, since
// recordOffsets is built in ascending file order.
func (ds *Datasource) recordIndexForOffset(offset uint64) (int, bool) {
	i := sort.Search(len(ds.recordOffsets), func(i int) bool { return ds.recordOffsets[i] >= offset })
	if i < len(ds.recordOffsets) && ds.recordOffsets[i] == offset {
		return i, true
	}
	return 0, false
}

// Context returns the shared attribute schema.
func (ds *Datasource) Context() *feature.Context { return ds.ctx }

// Envelope returns the datasource's overall bounding box.
func (ds *Datasource) Envelope() geom.Box64 { return ds.envelope }

// Close releases the .shp/.dbf/.index file handles.
func (ds *Datasource) Close() error {
	var first error
	if ds.indexFile != nil {
		if err := ds.indexFile.Close(); err != nil && first == nil {
			first = err
		}
	}
	if ds.dbf != nil {
		if err := ds.dbf.Close(); err != nil && first == nil {
			first = err
		}
	}
	if err := ds.shp.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Features returns a lazy iterator over records matching q, ordered by
// ascending byte offset in the .shp file.
func (ds *Datasource) Features(q datasource.Query) (datasource.Featureset, error) {
	var recs []quadtree.Record
	if ds.indexFile != nil {
		if _, err := ds.indexFile.Seek(0, io.SeekStart); err != nil {
			return nil, errs.New(errs.IoError, err)
		}
		var err error
		recs, err = quadtree.SeekQuery(ds.indexFile, q.Bbox)
		if err != nil {
			return nil, err
		}
	} else {
		recs = ds.tree.Query(q.Bbox)
	}
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
	ds      *Datasource
	recs    []quadtree.Record
	names   []string
	i       int
	emitted int64
}

func (fs *featureset) Next() (*feature.Feature, error) {
	for fs.i < len(fs.recs) {
		if fs.ds.rowLimit > 0 && fs.emitted >= fs.ds.rowLimit {
			return nil, nil
		}
		rec := fs.recs[fs.i]
		fs.i++

		buf := make([]byte, rec.Size)
		if _, err := fs.ds.shp.ReadAt(buf, int64(rec.Offset)); err != nil {
			if fs.ds.strict {
				return nil, errs.New(errs.IoError, err)
			}
			fs.ds.sink.Warnf("shape: failed to read record at offset %d: %v", rec.Offset, err)
			continue
		}
		g, gerr := parseShapeGeometry(buf, fs.ds.strict)
		if gerr != nil {
			if fs.ds.strict {
				return nil, gerr
			}
			fs.ds.sink.Warnf("shape: failed to parse record at offset %d: %v", rec.Offset, gerr)
			continue
		}

		f := feature.New(rec.Offset, fs.ds.ctx, g, false)
		if fs.ds.dbf != nil {
			if idx, ok := fs.ds.recordIndexForOffset(rec.Offset); ok {
				vals, verr := fs.ds.dbf.RowValues(idx)
				if verr != nil {
					if fs.ds.strict {
						return nil, verr
					}
					fs.ds.sink.Warnf("shape: failed to read dbf row %d: %v", idx, verr)
				} else {
					names := fs.ds.ctx.Names()
					for i, name := range names {
						if i >= len(vals) || !wanted(fs.names, name) {
							continue
						}
						f.Put(name, vals[i])
					}
				}
			}
		}

		fs.emitted++
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
