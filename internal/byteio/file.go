package byteio

import (
	"github.com/spf13/afero"

	"github.com/mapnikgo/geoindex/internal/errs"
)

// FileSource reads through an afero filesystem, so backend code (and
// its tests) never depend on the real OS filesystem directly.
type FileSource struct {
	f    afero.File
	size int64
}

// OpenFile opens path on fs as a FileSource.
func OpenFile(fs afero.Fs, path string) (*FileSource, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errs.New(errs.NoSuchFile, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.New(errs.IoError, err)
	}
	return &FileSource{f: f, size: info.Size()}, nil
}

func (s *FileSource) ReadAt(p []byte, off int64) (int, error) {
	n, err := s.f.ReadAt(p, off)
	if err != nil {
		return n, err
	}
	return n, nil
}

func (s *FileSource) Len() int64 { return s.size }

func (s *FileSource) Close() error { return s.f.Close() }
