package quadtree

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/mapnikgo/geoindex/internal/errs"
	"github.com/mapnikgo/geoindex/internal/geom"
)

// SeekQuery walks the on-disk tree format directly from a seekable
// stream, skipping subtrees whose envelope doesn't intersect bbox via
// offset_to_next_sibling instead of reading them. This bounds the
// working set for multi-gigabyte indexes (grounded on the
// offset-skipping Seek design in the flatgeobuf packedrtree reference,
// adapted here to this spec's explicit sibling-offset node layout
// instead of a packed array of fixed-size nodes).
//
// rs must be positioned at the start of the index (the 8-byte
// magic/version header); on return it is positioned just past the
// index.
func SeekQuery(rs io.ReadSeeker, bbox geom.Box64) ([]Record, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(rs, hdr[:]); err != nil {
		return nil, errs.New(errs.CorruptIndex, err)
	}
	gotMagic := binary.LittleEndian.Uint32(hdr[0:4])
	gotVersion := binary.LittleEndian.Uint32(hdr[4:8])
	if gotMagic != magic || gotVersion != version {
		return nil, errs.Newf(errs.CorruptIndex, "bad magic/version %x/%d", gotMagic, gotVersion)
	}

	var out []Record
	if err := seekNode(rs, bbox, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func seekNode(rs io.ReadSeeker, bbox geom.Box64, out *[]Record) error {
	skipLen, err := readU32Seek(rs)
	if err != nil {
		return errs.New(errs.CorruptIndex, err)
	}

	bodyStart, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return errs.New(errs.IoError, err)
	}

	env, err := readBox32Seek(rs)
	if err != nil {
		return errs.New(errs.CorruptIndex, err)
	}

	if !env.Widen().Intersects(bbox) {
		// Prune: jump straight to the sibling without reading items or
		// descending into children.
		if _, err := rs.Seek(bodyStart+int64(skipLen), io.SeekStart); err != nil {
			return errs.New(errs.IoError, err)
		}
		return nil
	}

	itemCount, err := readU32Seek(rs)
	if err != nil {
		return errs.New(errs.CorruptIndex, err)
	}
	for i := uint32(0); i < itemCount; i++ {
		offset, err := readU64Seek(rs)
		if err != nil {
			return errs.New(errs.CorruptIndex, err)
		}
		size, err := readU64Seek(rs)
		if err != nil {
			return errs.New(errs.CorruptIndex, err)
		}
		ienv, err := readBox32Seek(rs)
		if err != nil {
			return errs.New(errs.CorruptIndex, err)
		}
		if ienv.Widen().Intersects(bbox) {
			*out = append(*out, Record{Offset: offset, Size: size, Envelope: ienv})
		}
	}

	childCount, err := readU32Seek(rs)
	if err != nil {
		return errs.New(errs.CorruptIndex, err)
	}
	for i := uint32(0); i < childCount; i++ {
		if err := seekNode(rs, bbox, out); err != nil {
			return err
		}
	}

	return nil
}

func readU32Seek(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU64Seek(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readF32Seek(r io.Reader) (float32, error) {
	v, err := readU32Seek(r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func readBox32Seek(r io.Reader) (geom.Box32, error) {
	minX, err := readF32Seek(r)
	if err != nil {
		return geom.Box32{}, err
	}
	minY, err := readF32Seek(r)
	if err != nil {
		return geom.Box32{}, err
	}
	maxX, err := readF32Seek(r)
	if err != nil {
		return geom.Box32{}, err
	}
	maxY, err := readF32Seek(r)
	if err != nil {
		return geom.Box32{}, err
	}
	return geom.NewBox32(minX, minY, maxX, maxY), nil
}
