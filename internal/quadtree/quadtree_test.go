package quadtree

import (
	"bytes"
	"testing"

	"github.com/mapnikgo/geoindex/internal/geom"
)

func box32(minX, minY, maxX, maxY float64) geom.Box32 {
	return geom.NewBox64(minX, minY, maxX, maxY).Narrow()
}

func rootExtent() geom.Box32 {
	return box32(-10, -10, 20, 20)
}

func TestQueryReturnsExactlyTheOverlappingRecords(t *testing.T) {
	tr := New(rootExtent(), DefaultMaxDepth, DefaultSplitRatio)
	recs := []Record{
		{Offset: 0, Size: 10, Envelope: box32(0, 0, 1, 1)},
		{Offset: 10, Size: 10, Envelope: box32(2, 2, 3, 3)},
		{Offset: 20, Size: 10, Envelope: box32(10, 10, 11, 11)},
	}
	tr.BulkLoad(recs, nil)

	got := tr.Query(geom.NewBox64(0.5, 0.5, 2.5, 2.5))
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(got), got)
	}
	offsets := []uint64{got[0].Offset, got[1].Offset}
	if offsets[0] > offsets[1] {
		offsets[0], offsets[1] = offsets[1], offsets[0]
	}
	if offsets[0] != 0 || offsets[1] != 10 {
		t.Fatalf("unexpected offsets: %v", offsets)
	}
}

func TestQueryPointMatchesDegenerateBox(t *testing.T) {
	tr := New(rootExtent(), DefaultMaxDepth, DefaultSplitRatio)
	tr.BulkLoad([]Record{
		{Offset: 0, Size: 4, Envelope: box32(5, 5, 5, 5)},
	}, nil)

	got := tr.QueryPoint(5, 5, 0.01)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if len(tr.QueryPoint(-5, -5, 0.01)) != 0 {
		t.Fatalf("expected no records far from the point")
	}
}

func TestInsertRejectsInvalidEnvelope(t *testing.T) {
	tr := New(rootExtent(), DefaultMaxDepth, DefaultSplitRatio)
	if tr.Insert(Record{Envelope: geom.Box32{}}) {
		t.Fatalf("expected Insert to reject an invalid envelope")
	}
}

func TestBulkLoadReportsSkippedRecords(t *testing.T) {
	tr := New(rootExtent(), DefaultMaxDepth, DefaultSplitRatio)
	var skipped []Record
	recs := []Record{
		{Offset: 0, Size: 1, Envelope: box32(0, 0, 1, 1)},
		{Offset: 1, Size: 1, Envelope: geom.Box32{}},
	}
	tr.BulkLoad(recs, func(r Record) { skipped = append(skipped, r) })
	if len(skipped) != 1 || skipped[0].Offset != 1 {
		t.Fatalf("expected the invalid record to be reported skipped, got %+v", skipped)
	}
	if tr.Count() != 1 {
		t.Fatalf("expected 1 stored record, got %d", tr.Count())
	}
}

func TestTrimPreservesStoredRecordCount(t *testing.T) {
	tr := New(rootExtent(), DefaultMaxDepth, DefaultSplitRatio)
	tr.BulkLoad([]Record{{Offset: 0, Size: 1, Envelope: box32(0, 0, 1, 1)}}, nil)
	before := tr.Count()
	tr.Trim()
	if tr.Count() != before {
		t.Fatalf("Trim must not change the stored record count: before=%d after=%d", before, tr.Count())
	}
}

func TestMarshalUnmarshalRoundTripPreservesQueries(t *testing.T) {
	tr := New(rootExtent(), DefaultMaxDepth, DefaultSplitRatio)
	recs := []Record{
		{Offset: 0, Size: 10, Envelope: box32(0, 0, 1, 1)},
		{Offset: 10, Size: 10, Envelope: box32(2, 2, 3, 3)},
		{Offset: 20, Size: 10, Envelope: box32(10, 10, 11, 11)},
		{Offset: 30, Size: 8, Envelope: box32(-5, -5, -4, -4)},
	}
	tr.BulkLoad(recs, nil)
	tr.Trim()

	var buf bytes.Buffer
	if err := tr.Marshal(&buf); err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	loaded, err := Unmarshal(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	queries := []geom.Box64{
		geom.NewBox64(0.5, 0.5, 2.5, 2.5),
		geom.NewBox64(-100, -100, 100, 100),
		geom.NewBox64(9, 9, 12, 12),
		geom.NewBox64(100, 100, 101, 101),
	}
	for _, q := range queries {
		want := countOffsets(tr.Query(q))
		got := countOffsets(loaded.Query(q))
		if !sameSet(want, got) {
			t.Fatalf("query %+v mismatch after round trip: want %v got %v", q, want, got)
		}
	}
}

func TestSeekQueryMatchesInMemoryQuery(t *testing.T) {
	tr := New(rootExtent(), DefaultMaxDepth, DefaultSplitRatio)
	recs := []Record{
		{Offset: 0, Size: 10, Envelope: box32(0, 0, 1, 1)},
		{Offset: 10, Size: 10, Envelope: box32(2, 2, 3, 3)},
		{Offset: 20, Size: 10, Envelope: box32(10, 10, 11, 11)},
	}
	tr.BulkLoad(recs, nil)

	var buf bytes.Buffer
	if err := tr.Marshal(&buf); err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	q := geom.NewBox64(0.5, 0.5, 2.5, 2.5)
	want := countOffsets(tr.Query(q))

	got, err := SeekQuery(bytes.NewReader(buf.Bytes()), q)
	if err != nil {
		t.Fatalf("SeekQuery: %v", err)
	}
	if !sameSet(want, countOffsets(got)) {
		t.Fatalf("SeekQuery mismatch: want %v got %v", want, countOffsets(got))
	}
}

func TestUnmarshalRejectsBadMagic(t *testing.T) {
	_, err := Unmarshal(bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8}))
	if err == nil {
		t.Fatalf("expected an error for a corrupt header")
	}
}

func countOffsets(recs []Record) map[uint64]bool {
	m := make(map[uint64]bool, len(recs))
	for _, r := range recs {
		m[r.Offset] = true
	}
	return m
}

func sameSet(a, b map[uint64]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
