// Package byteio implements the spec's byte-source abstraction: the
// thin interface every backend reads records through, plus three
// concrete sources (plain file, memory-mapped file, in-memory buffer)
// and an LRU cache that lets several datasource instances opened
// against the same path share one mapping (see §9 of the design
// notes).
package byteio

import (
	"io"

	"github.com/mapnikgo/geoindex/internal/errs"
)

// Source is random-access read-only byte storage. Every backend reads
// records (CSV lines, GeoJSON bytes, shapefile records) through this
// interface so the same parsing code works whether the bytes come from
// a plain file, a memory-mapped region, or an in-memory buffer (tests).
type Source interface {
	// ReadAt reads len(p) bytes starting at off, per io.ReaderAt.
	ReadAt(p []byte, off int64) (int, error)
	// Len returns the total size of the source in bytes.
	Len() int64
	// Close releases any resources (file handles, mappings) held by
	// the source immediately. A source obtained from a MappedFileCache
	// Handle is released through Handle.Release, which decrements the
	// entry's refcount, rather than through Close.
	Close() error
}

// MemorySource is a Source backed entirely by an in-memory byte slice,
// used by tests and by callers that already hold the full document
// (e.g. a small GeoJSON file parsed in cached mode).
type MemorySource struct {
	data []byte
}

// NewMemorySource wraps data as a Source. data is not copied; callers
// must not mutate it afterward.
func NewMemorySource(data []byte) *MemorySource {
	return &MemorySource{data: data}
}

func (m *MemorySource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m.data)) {
		return 0, errs.New(errs.IoError, io.EOF)
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemorySource) Len() int64 { return int64(len(m.data)) }

func (m *MemorySource) Close() error { return nil }

// Bytes returns the underlying slice, for callers (like the cached
// GeoJSON/TopoJSON backends) that want to hand the whole document to a
// decoder rather than read it piecemeal.
func (m *MemorySource) Bytes() []byte { return m.data }
