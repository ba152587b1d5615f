package geobufds

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/mapnikgo/geoindex/internal/datasource"
	"github.com/mapnikgo/geoindex/internal/errs"
)

// --- minimal protobuf wire encoder, test-only, mirrors the decoder's
// field-number assumptions exactly so round trips are self-consistent.

func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func appendTag(buf []byte, num, wire int) []byte {
	return appendVarint(buf, uint64(num<<3|wire))
}

func appendVarintField(buf []byte, num int, v uint64) []byte {
	buf = appendTag(buf, num, wireVarint)
	return appendVarint(buf, v)
}

func appendBytesField(buf []byte, num int, payload []byte) []byte {
	buf = appendTag(buf, num, wireBytes)
	buf = appendVarint(buf, uint64(len(payload)))
	return append(buf, payload...)
}

func appendPackedVarints(buf []byte, num int, vs []uint64) []byte {
	var payload []byte
	for _, v := range vs {
		payload = appendVarint(payload, v)
	}
	return appendBytesField(buf, num, payload)
}

func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// encodeGeometry builds a Geobuf Geometry message for a point sequence
// at the default precision (6 decimal places). A lengths field is
// written only when lengths is non-empty (e.g. Polygon rings), and
// deltas restart at each length segment.
func encodeGeometry(gtype int, points [][2]float64, lengths []uint64) []byte {
	var buf []byte
	buf = appendVarintField(buf, geomType, uint64(gtype))
	if len(lengths) > 0 {
		buf = appendPackedVarints(buf, geomLengths, lengths)
	}

	var coords []int64
	var prevX, prevY int64
	start := 0
	for _, l := range lenSegments(lengths, len(points)) {
		prevX, prevY = 0, 0
		for i := start; i < start+l; i++ {
			x := int64(points[i][0] * 1e6)
			y := int64(points[i][1] * 1e6)
			coords = append(coords, x-prevX, y-prevY)
			prevX, prevY = x, y
		}
		start += l
	}
	var zz []uint64
	for _, c := range coords {
		zz = append(zz, zigzagEncode(c))
	}
	buf = appendPackedVarints(buf, geomCoords, zz)
	return buf
}

// lenSegments returns lengths if non-empty, else a single segment
// covering every point (the flat-list case).
func lenSegments(lengths []uint64, total int) []int {
	if len(lengths) == 0 {
		return []int{total}
	}
	segs := make([]int, len(lengths))
	for i, l := range lengths {
		segs[i] = int(l)
	}
	return segs
}

func encodeValueString(s string) []byte {
	return appendBytesField(nil, valString, []byte(s))
}

func encodeFeature(geomBytes []byte, propPairs []uint64, values [][]byte) []byte {
	var buf []byte
	buf = appendBytesField(buf, featGeometry, geomBytes)
	if len(propPairs) > 0 {
		buf = appendPackedVarints(buf, featProperties, propPairs)
	}
	for _, v := range values {
		buf = appendBytesField(buf, featValues, v)
	}
	return buf
}

func encodeDocument(keys []string, featureBytes []byte) []byte {
	var buf []byte
	for _, k := range keys {
		buf = appendBytesField(buf, dataKeys, []byte(k))
	}
	buf = appendBytesField(buf, dataFeature, featureBytes)
	return buf
}

func open(t *testing.T, params datasource.Params) datasource.Datasource {
	t.Helper()
	ds, err := Open(params, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { ds.Close() })
	return ds
}

func TestGeobufPointFeature(t *testing.T) {
	g := encodeGeometry(gtPoint, [][2]float64{{120.15, 48.47}}, nil)
	ft := encodeFeature(g, []uint64{0, 0}, [][]byte{encodeValueString("Winthrop")})
	doc := encodeDocument([]string{"name"}, ft)

	ds := open(t, datasource.NewParams().Set("type", "geobuf").Set("inline", string(doc)))
	env := ds.Envelope()
	if diff := env.MinX - 120.15; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("unexpected envelope MinX: %v", env.MinX)
	}

	fs, err := ds.Features(datasource.Query{Bbox: env})
	if err != nil {
		t.Fatalf("Features: %v", err)
	}
	f, err := fs.Next()
	if err != nil || f == nil {
		t.Fatalf("Next: f=%v err=%v", f, err)
	}
	v, ok := f.Get("name")
	if !ok {
		t.Fatalf("expected a name attribute")
	}
	s, _ := v.Str()
	if s != "Winthrop" {
		t.Fatalf("got %q", s)
	}
}

func TestGeobufPolygonRings(t *testing.T) {
	exterior := [][2]float64{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}}
	g := encodeGeometry(gtPolygon, exterior, []uint64{uint64(len(exterior))})
	ft := encodeFeature(g, nil, nil)
	doc := encodeDocument(nil, ft)

	ds := open(t, datasource.NewParams().Set("type", "geobuf").Set("inline", string(doc)))
	env := ds.Envelope()
	if env.MinX != 0 || env.MinY != 0 || env.MaxX != 10 || env.MaxY != 10 {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestGeobufRejectsTruncatedVarint(t *testing.T) {
	_, err := Open(datasource.NewParams().
		Set("type", "geobuf").
		Set("inline", string([]byte{0x08, 0xFF})), nil)
	if !errs.Is(err, errs.MalformedRecord) && !errs.Is(err, errs.MalformedFile) {
		t.Fatalf("expected a malformed-document error, got %v", err)
	}
}

func TestGeobufDocumentWithNoPayloadRejected(t *testing.T) {
	// A well-formed message with only an unrecognized field: parses
	// cleanly but never sets geometry/feature/feature_collection.
	noop := appendVarintField(nil, 99, 0)
	_, err := Open(datasource.NewParams().
		Set("type", "geobuf").
		Set("inline", string(noop)), nil)
	if !errs.Is(err, errs.MalformedFile) {
		t.Fatalf("expected MalformedFile for a document with no geometry/feature payload, got %v", err)
	}
}

func TestMaterializeGeometryRejectsNestedCollection(t *testing.T) {
	inner := rawGeometry{gtype: gtGeometryCollection}
	outer := rawGeometry{gtype: gtGeometryCollection, geometries: []rawGeometry{inner}}
	_, err := materializeGeometry(outer, defaultPrecision, defaultDimensions)
	if !errs.Is(err, errs.MalformedFile) {
		t.Fatalf("expected MalformedFile, got %v", err)
	}
}

func TestDecodeLineAppliesDeltaWithinOneLine(t *testing.T) {
	// Two points: (10,10) then a delta of (-5,0), i.e. (5,10).
	cur := &coordCursor{coords: []int64{10, 10, -5, 0}, dims: 2, scale: 1}
	line, err := decodeLine(cur, 2)
	if err != nil {
		t.Fatalf("decodeLine: %v", err)
	}
	p0, p1 := orb.Point{10, 10}, orb.Point{5, 10}
	if len(line) != 2 || line[0] != p0 || line[1] != p1 {
		t.Fatalf("unexpected line: %v", line)
	}
}
