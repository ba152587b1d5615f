package shapeds

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mapnikgo/geoindex/internal/datasource"
	"github.com/mapnikgo/geoindex/internal/geom"
)

// --- minimal shapefile/dbf byte builders, test-only. ---

func appendBE32(buf []byte, v int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return append(buf, b[:]...)
}

func appendLE32(buf []byte, v int32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return append(buf, b[:]...)
}

func appendLEU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendLEF64(buf []byte, v float64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	return append(buf, b[:]...)
}

// buildShpHeader returns the fixed 100-byte header for shapeType with
// the given bounding box.
func buildShpHeader(shapeType int32, minX, minY, maxX, maxY float64) []byte {
	var buf []byte
	buf = appendBE32(buf, shpMagic)
	for i := 0; i < 5; i++ {
		buf = appendBE32(buf, 0)
	}
	buf = appendBE32(buf, 0) // file length placeholder, unused by the reader
	buf = appendLE32(buf, 1000)
	buf = appendLE32(buf, shapeType)
	buf = appendLEF64(buf, minX)
	buf = appendLEF64(buf, minY)
	buf = appendLEF64(buf, maxX)
	buf = appendLEF64(buf, maxY)
	buf = appendLEF64(buf, 0)
	buf = appendLEF64(buf, 0)
	buf = appendLEF64(buf, 0)
	buf = appendLEF64(buf, 0)
	return buf
}

func buildRecord(recordNumber int32, content []byte) []byte {
	var buf []byte
	buf = appendBE32(buf, recordNumber)
	buf = appendBE32(buf, int32(len(content)/2))
	return append(buf, content...)
}

func buildPointContent(x, y float64) []byte {
	var buf []byte
	buf = appendLE32(buf, shapePoint)
	buf = appendLEF64(buf, x)
	buf = appendLEF64(buf, y)
	return buf
}

func buildPolygonContent(rings [][][2]float64) []byte {
	var allPoints [][2]float64
	var parts []int
	for _, ring := range rings {
		parts = append(parts, len(allPoints))
		allPoints = append(allPoints, ring...)
	}
	var buf []byte
	buf = appendLE32(buf, shapePolygon)
	buf = appendLEF64(buf, 0)
	buf = appendLEF64(buf, 0)
	buf = appendLEF64(buf, 0)
	buf = appendLEF64(buf, 0)
	buf = appendLEU32(buf, uint32(len(parts)))
	buf = appendLEU32(buf, uint32(len(allPoints)))
	for _, p := range parts {
		buf = appendLEU32(buf, uint32(p))
	}
	for _, pt := range allPoints {
		buf = appendLEF64(buf, pt[0])
		buf = appendLEF64(buf, pt[1])
	}
	return buf
}

// buildDBF builds a single-field (name "name", type C, length 20) dBASE
// III file with the given row values.
func buildDBF(rows []string) []byte {
	const fieldLen = 20
	headerSize := 32 + 32 + 1
	recordSize := 1 + fieldLen

	var buf []byte
	buf = append(buf, 0x03, 0, 0, 0) // version + date
	buf = appendLEU32(buf, uint32(len(rows)))
	var hs [2]byte
	binary.LittleEndian.PutUint16(hs[:], uint16(headerSize))
	buf = append(buf, hs[:]...)
	var rs [2]byte
	binary.LittleEndian.PutUint16(rs[:], uint16(recordSize))
	buf = append(buf, rs[:]...)
	buf = append(buf, make([]byte, 20)...) // reserved

	var name [11]byte
	copy(name[:], "name")
	buf = append(buf, name[:]...)
	buf = append(buf, 'C')
	buf = append(buf, make([]byte, 4)...)
	buf = append(buf, byte(fieldLen))
	buf = append(buf, 0) // decimals
	buf = append(buf, make([]byte, 14)...)
	buf = append(buf, 0x0D) // header terminator

	for _, row := range rows {
		buf = append(buf, ' ') // deletion flag
		field := make([]byte, fieldLen)
		copy(field, row)
		for i := len(row); i < fieldLen; i++ {
			field[i] = ' '
		}
		buf = append(buf, field...)
	}
	return buf
}

func writeShapefile(t *testing.T, dir, base string, content []byte, bbox [4]float64, shapeType int32, dbfRows []string) string {
	t.Helper()
	path := filepath.Join(dir, base)
	hdr := buildShpHeader(shapeType, bbox[0], bbox[1], bbox[2], bbox[3])
	rec := buildRecord(1, content)
	if err := os.WriteFile(path+".shp", append(hdr, rec...), 0o644); err != nil {
		t.Fatalf("write shp: %v", err)
	}
	if dbfRows != nil {
		if err := os.WriteFile(path+".dbf", buildDBF(dbfRows), 0o644); err != nil {
			t.Fatalf("write dbf: %v", err)
		}
	}
	return path
}

func TestShapefilePointWithDBFAttribute(t *testing.T) {
	dir := t.TempDir()
	content := buildPointContent(120.15, 48.47)
	path := writeShapefile(t, dir, "towns", content, [4]float64{120.15, 48.47, 120.15, 48.47}, shapePoint, []string{"Winthrop"})

	ds, err := Open(datasource.NewParams().Set("type", "shape").Set("file", path), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ds.Close()

	env := ds.Envelope()
	if env.MinX != 120.15 || env.MinY != 48.47 {
		t.Fatalf("unexpected envelope: %+v", env)
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
	if next, err := fs.Next(); err != nil || next != nil {
		t.Fatalf("expected exactly one feature, got another: %v (err %v)", next, err)
	}
}

func TestShapefilePolygonRingOrientation(t *testing.T) {
	dir := t.TempDir()
	// A clockwise exterior ring (shapefile convention) + a
	// counter-clockwise hole.
	exterior := [][2]float64{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}}
	hole := [][2]float64{{2, 2}, {4, 2}, {4, 4}, {2, 4}, {2, 2}}
	content := buildPolygonContent([][][2]float64{exterior, hole})
	path := writeShapefile(t, dir, "blocks", content, [4]float64{0, 0, 10, 10}, shapePolygon, nil)

	ds, err := Open(datasource.NewParams().Set("type", "shape").Set("file", path), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ds.Close()

	env := ds.Envelope()
	if env.MinX != 0 || env.MinY != 0 || env.MaxX != 10 || env.MaxY != 10 {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	fs, err := ds.Features(datasource.Query{Bbox: env})
	if err != nil {
		t.Fatalf("Features: %v", err)
	}
	f, err := fs.Next()
	if err != nil || f == nil {
		t.Fatalf("Next: f=%v err=%v", f, err)
	}
	poly, ok := f.Geometry.(geom.Polygon)
	if !ok {
		t.Fatalf("expected a Polygon, got %T", f.Geometry)
	}
	if len(poly.Polygon) != 2 {
		t.Fatalf("expected exterior+hole, got %d rings", len(poly.Polygon))
	}
}

func TestShapefileRowLimitZeroIsUnlimited(t *testing.T) {
	dir := t.TempDir()
	content := buildPointContent(1, 1)
	path := writeShapefile(t, dir, "single", content, [4]float64{1, 1, 1, 1}, shapePoint, nil)

	ds, err := Open(datasource.NewParams().Set("type", "shape").Set("file", path).Set("row_limit", "0"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ds.Close()

	fs, err := ds.Features(datasource.Query{Bbox: ds.Envelope()})
	if err != nil {
		t.Fatalf("Features: %v", err)
	}
	f, err := fs.Next()
	if err != nil || f == nil {
		t.Fatalf("expected a feature with row_limit=0 (unlimited), got f=%v err=%v", f, err)
	}
}

func TestShapefileRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad")
	hdr := buildShpHeader(shapePoint, 0, 0, 0, 0)
	hdr[3] = 0 // corrupt the magic number (big-endian 9994 = 00 00 27 0A)
	if err := os.WriteFile(path+".shp", hdr, 0o644); err != nil {
		t.Fatalf("write shp: %v", err)
	}
	if _, err := Open(datasource.NewParams().Set("type", "shape").Set("file", path), nil); err == nil {
		t.Fatalf("expected an error for a corrupt magic number")
	}
}
