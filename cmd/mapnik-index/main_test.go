package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mapnikgo/geoindex/internal/geom"
	"github.com/mapnikgo/geoindex/internal/quadtree"
)

func TestBackendTypeDispatchesByExtension(t *testing.T) {
	cases := []struct {
		file    string
		want    string
		wantErr bool
	}{
		{"towns.csv", "csv", false},
		{"towns.CSV", "csv", false},
		{"towns.json", "geojson", false},
		{"towns.geojson", "geojson", false},
		{"towns.shp", "", true},
		{"towns", "", true},
	}
	for _, c := range cases {
		got, err := backendType(c.file)
		if c.wantErr {
			if err == nil {
				t.Errorf("backendType(%q): expected an error", c.file)
			}
			continue
		}
		if err != nil {
			t.Errorf("backendType(%q): unexpected error: %v", c.file, err)
		}
		if got != c.want {
			t.Errorf("backendType(%q) = %q, want %q", c.file, got, c.want)
		}
	}
}

func TestWriteIndexAtomicallyProducesAReadableSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "towns.csv.index")

	tr := quadtree.New(geom.NewBox64(-1, -1, 1, 1).Narrow(), quadtree.DefaultMaxDepth, quadtree.DefaultSplitRatio)
	tr.Insert(quadtree.Record{Offset: 10, Size: 5, Envelope: geom.NewBox64(0, 0, 0, 0).Narrow()})

	if err := writeIndexAtomically(path, tr); err != nil {
		t.Fatalf("writeIndexAtomically: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "towns.csv.index" {
		t.Fatalf("expected exactly the final sidecar, got %v (no leftover temp file)", entries)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	got, err := quadtree.Unmarshal(f)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	recs := got.Query(geom.NewBox64(-1, -1, 1, 1))
	if len(recs) != 1 || recs[0].Offset != 10 {
		t.Fatalf("unexpected query result after round trip: %v", recs)
	}
}
