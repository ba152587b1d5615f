// Package quadtree implements the spec's bulk-loaded, disk-serializable
// quadtree of (bbox, record-offset, record-size) index records. It is
// the one data structure every backend shares for bbox/point queries.
package quadtree

import "github.com/mapnikgo/geoindex/internal/geom"

const (
	// DefaultMaxDepth is the construction-time depth budget.
	DefaultMaxDepth = 8
	// DefaultSplitRatio controls child-rectangle overlap: each child
	// is ratio*parent in each dimension, anchored at the parent's
	// corresponding corner, so adjacent children overlap by
	// (2*ratio-1) of the parent.
	DefaultSplitRatio = 0.55
)

// Record is a single indexed item: where its feature lives in the
// backend's byte-source, and its envelope.
type Record struct {
	Offset   uint64
	Size     uint64
	Envelope geom.Box32
}

// Node is one quadtree node: the envelope it was built over, the
// records that could not descend into exactly one child, and its (at
// most four) children.
type Node struct {
	Envelope geom.Box32
	Items    []Record
	Children [4]*Node
}

// Tree is the in-memory quadtree.
type Tree struct {
	Root       *Node
	MaxDepth   uint32
	SplitRatio float64
}

// New creates an empty tree rooted at rootExtent.
func New(rootExtent geom.Box32, maxDepth uint32, splitRatio float64) *Tree {
	if maxDepth == 0 {
		maxDepth = DefaultMaxDepth
	}
	if splitRatio <= 0.5 || splitRatio >= 1.0 {
		splitRatio = DefaultSplitRatio
	}
	return &Tree{
		Root:       &Node{Envelope: rootExtent},
		MaxDepth:   maxDepth,
		SplitRatio: splitRatio,
	}
}

// childEnvelope computes the envelope of child quadrant q (0..3) of
// parent, per the split-ratio rule: each child is ratio*parent in each
// dimension, anchored at the parent's corresponding corner, so
// adjacent children overlap by (2*ratio-1) of the parent and items
// straddling the axis can still descend.
func childEnvelope(parent geom.Box32, quadrant int, ratio float64) geom.Box32 {
	p := parent.Widen()
	w := p.MaxX - p.MinX
	h := p.MaxY - p.MinY

	// Quadrant bit 0 picks the low or high X edge, bit 1 the low or
	// high Y edge; each child spans ratio*parent from that edge, so
	// with ratio > 0.5 adjacent children overlap by (2*ratio-1) of the
	// parent and a straddling item can still descend into whichever
	// child fully contains it.
	cw, ch := w*ratio, h*ratio
	minX, minY := p.MinX, p.MinY
	if quadrant&1 != 0 {
		minX = p.MaxX - cw
	}
	if quadrant&2 != 0 {
		minY = p.MaxY - ch
	}
	return geom.NewBox64(minX, minY, minX+cw, minY+ch).Narrow()
}

// Insert adds a record with the given envelope, recursing from root to
// find the deepest node that fully contains it within the depth
// budget. An invalid envelope is rejected (caller must log+skip per
// spec's builder failure policy); a zero-area (point) envelope
// participates normally.
func (t *Tree) Insert(rec Record) bool {
	if !rec.Envelope.Valid() {
		return false
	}
	insert(t.Root, rec, 0, t.MaxDepth, t.SplitRatio)
	return true
}

func insert(node *Node, rec Record, depth int, maxDepth uint32, ratio float64) {
	if uint32(depth) < maxDepth {
		env := rec.Envelope.Widen()
		for q := 0; q < 4; q++ {
			childBox := childEnvelope(node.Envelope, q, ratio)
			if contains(childBox.Widen(), env) {
				if node.Children[q] == nil {
					node.Children[q] = &Node{Envelope: childBox}
				}
				insert(node.Children[q], rec, depth+1, maxDepth, ratio)
				return
			}
		}
	}
	node.Items = append(node.Items, rec)
}

func contains(outer, inner geom.Box64) bool {
	if !outer.Valid() || !inner.Valid() {
		return false
	}
	return outer.MinX <= inner.MinX && outer.MaxX >= inner.MaxX &&
		outer.MinY <= inner.MinY && outer.MaxY >= inner.MaxY
}

// BulkLoad inserts every record in recs. Behavior is order-independent
// in the set of stored records (not necessarily serialized byte order).
func (t *Tree) BulkLoad(recs []Record, onSkip func(Record)) {
	for _, r := range recs {
		if !t.Insert(r) && onSkip != nil {
			onSkip(r)
		}
	}
}

// Query performs a DFS bbox query, pruning subtrees whose envelope
// does not intersect bbox and emitting every item whose own envelope
// intersects bbox. No item can be emitted twice: each item lives in
// exactly one node.
func (t *Tree) Query(bbox geom.Box64) []Record {
	var out []Record
	queryNode(t.Root, bbox, &out)
	return out
}

func queryNode(node *Node, bbox geom.Box64, out *[]Record) {
	if node == nil {
		return
	}
	if !node.Envelope.Widen().Intersects(bbox) {
		return
	}
	for _, item := range node.Items {
		if item.Envelope.Widen().Intersects(bbox) {
			*out = append(*out, item)
		}
	}
	for _, child := range node.Children {
		queryNode(child, bbox, out)
	}
}

// QueryPoint queries a degenerate bbox of point +/- tolerance on each
// axis.
func (t *Tree) QueryPoint(x, y, tolerance float64) []Record {
	return t.Query(geom.NewBox64(x-tolerance, y-tolerance, x+tolerance, y+tolerance))
}

// Trim compresses nodes that have zero items and zero live children,
// after a bulk load. It mutates the tree in place.
func (t *Tree) Trim() {
	trimNode(t.Root)
}

func trimNode(node *Node) bool {
	if node == nil {
		return true
	}
	empty := len(node.Items) == 0
	for i, child := range node.Children {
		if trimNode(child) {
			node.Children[i] = nil
		} else {
			empty = false
		}
	}
	return empty
}

// Count returns the total number of stored items, for diagnostics and
// tests.
func (t *Tree) Count() int {
	return countNode(t.Root)
}

func countNode(node *Node) int {
	if node == nil {
		return 0
	}
	n := len(node.Items)
	for _, c := range node.Children {
		n += countNode(c)
	}
	return n
}
