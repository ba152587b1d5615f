package byteio

import (
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/mapnikgo/geoindex/internal/errs"
)

// MappedSource is a Source backed by a memory-mapped file. Opening it
// directly maps and unmaps on Close; most callers go through
// MappedFileCache instead so the same path's mapping is shared across
// datasource instances that open it concurrently.
type MappedSource struct {
	f    *os.File
	data []byte
}

// OpenMapped mmaps path read-only. A zero-length file maps to an empty
// source rather than failing (mmap itself rejects length-0 mappings).
func OpenMapped(path string) (*MappedSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.New(errs.NoSuchFile, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.New(errs.IoError, err)
	}
	if info.Size() == 0 {
		return &MappedSource{f: f}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errs.New(errs.IoError, err)
	}
	return &MappedSource{f: f, data: data}, nil
}

func (m *MappedSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m.data)) {
		return 0, errs.New(errs.IoError, io.EOF)
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MappedSource) Len() int64 { return int64(len(m.data)) }

// Close unmaps and closes the underlying file. Do not call this
// directly on a MappedSource vended by MappedFileCache; release it
// through the cache's Release instead.
func (m *MappedSource) Close() error {
	var err error
	if m.data != nil {
		err = unix.Munmap(m.data)
	}
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}
