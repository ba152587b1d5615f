package quadtree

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

// byteBuffer is a tiny bytes.Buffer alias kept local to this file so
// serialize.go doesn't need to import bytes directly in its body.
type byteBuffer = bytes.Buffer

func newByteBuffer() *byteBuffer { return &bytes.Buffer{} }

func writeU32(buf *byteBuffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *byteBuffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeF32(buf *byteBuffer, v float32) {
	writeU32(buf, math.Float32bits(v))
}

func writeU32Direct(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readU32(r *bufio.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU64(r *bufio.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readF32(r *bufio.Reader) (float32, error) {
	v, err := readU32(r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}
