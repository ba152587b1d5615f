package quadtree

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/mapnikgo/geoindex/internal/errs"
	"github.com/mapnikgo/geoindex/internal/geom"
)

// magic identifies the sidecar index format; version allows the format
// to evolve without breaking older readers silently.
const (
	magic   uint32 = 0x6d61706e // "mapn"
	version uint32 = 1
)

// Marshal writes the tree to w in the §4.D disk format: magic+version,
// then each node depth-first pre-order with an offset_to_next_sibling
// field that lets a reader skip a disjoint subtree without parsing it.
func (t *Tree) Marshal(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], magic)
	binary.LittleEndian.PutUint32(hdr[4:8], version)
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}
	if err := marshalNode(bw, t.Root); err != nil {
		return err
	}
	return bw.Flush()
}

func marshalNode(w io.Writer, node *Node) error {
	// offset_to_next_sibling is measured from just past that field, so
	// we buffer the node's own body first to learn its length.
	var body []byte
	buf := newByteBuffer()

	writeBox32(buf, node.Envelope)
	writeU32(buf, uint32(len(node.Items)))
	for _, item := range node.Items {
		writeU64(buf, item.Offset)
		writeU64(buf, item.Size)
		writeBox32(buf, item.Envelope)
	}

	children := liveChildren(node)
	writeU32(buf, uint32(len(children)))
	body = buf.Bytes()

	// Recursively serialize children into a second buffer so we can
	// compute this node's total sibling-skip length up front.
	childBuf := newByteBuffer()
	for _, child := range children {
		if err := marshalNode(childBuf, child); err != nil {
			return err
		}
	}

	total := uint32(len(body) + childBuf.Len())
	if err := writeU32Direct(w, total); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	_, err := w.Write(childBuf.Bytes())
	return err
}

func liveChildren(node *Node) []*Node {
	var out []*Node
	for _, c := range node.Children {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Unmarshal reads the full on-disk tree into memory.
func Unmarshal(r io.Reader) (*Tree, error) {
	br := bufio.NewReader(r)
	var hdr [8]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, errs.New(errs.CorruptIndex, err)
	}
	gotMagic := binary.LittleEndian.Uint32(hdr[0:4])
	gotVersion := binary.LittleEndian.Uint32(hdr[4:8])
	if gotMagic != magic || gotVersion != version {
		return nil, errs.Newf(errs.CorruptIndex, "bad magic/version %x/%d", gotMagic, gotVersion)
	}

	root, err := unmarshalNode(br)
	if err != nil {
		return nil, err
	}
	return &Tree{Root: root, MaxDepth: DefaultMaxDepth, SplitRatio: DefaultSplitRatio}, nil
}

func unmarshalNode(r *bufio.Reader) (*Node, error) {
	// skipLen itself isn't needed for the in-memory reconstruction (we
	// read everything); it only matters for SeekQuery below.
	if _, err := readU32(r); err != nil {
		return nil, errs.New(errs.CorruptIndex, err)
	}

	node := &Node{}
	env, err := readBox32(r)
	if err != nil {
		return nil, errs.New(errs.CorruptIndex, err)
	}
	node.Envelope = env

	itemCount, err := readU32(r)
	if err != nil {
		return nil, errs.New(errs.CorruptIndex, err)
	}
	node.Items = make([]Record, itemCount)
	for i := range node.Items {
		off, err := readU64(r)
		if err != nil {
			return nil, errs.New(errs.CorruptIndex, err)
		}
		size, err := readU64(r)
		if err != nil {
			return nil, errs.New(errs.CorruptIndex, err)
		}
		ienv, err := readBox32(r)
		if err != nil {
			return nil, errs.New(errs.CorruptIndex, err)
		}
		node.Items[i] = Record{Offset: off, Size: size, Envelope: ienv}
	}

	childCount, err := readU32(r)
	if err != nil {
		return nil, errs.New(errs.CorruptIndex, err)
	}
	for i := uint32(0); i < childCount; i++ {
		child, err := unmarshalNode(r)
		if err != nil {
			return nil, err
		}
		// Children are packed densely on disk (liveChildren only);
		// slot order among the four quadrants is not recoverable (and
		// not needed — queries don't depend on quadrant identity).
		node.Children[i] = child
	}

	return node, nil
}

func writeBox32(buf *byteBuffer, b geom.Box32) {
	writeF32(buf, b.MinX)
	writeF32(buf, b.MinY)
	writeF32(buf, b.MaxX)
	writeF32(buf, b.MaxY)
}

func readBox32(r *bufio.Reader) (geom.Box32, error) {
	minX, err := readF32(r)
	if err != nil {
		return geom.Box32{}, err
	}
	minY, err := readF32(r)
	if err != nil {
		return geom.Box32{}, err
	}
	maxX, err := readF32(r)
	if err != nil {
		return geom.Box32{}, err
	}
	maxY, err := readF32(r)
	if err != nil {
		return geom.Box32{}, err
	}
	return geom.NewBox32(minX, minY, maxX, maxY), nil
}
