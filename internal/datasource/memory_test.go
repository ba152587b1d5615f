package datasource

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/mapnikgo/geoindex/internal/feature"
	"github.com/mapnikgo/geoindex/internal/geom"
)

func TestMemoryDatasourceQueriesByEnvelope(t *testing.T) {
	ds := NewMemoryDatasource()
	ctx := ds.Context()
	ctx.Push("name")

	add := func(id uint64, x, y float64, name string) {
		f := feature.New(id, ctx, geom.Point{Point: orb.Point{x, y}}, true)
		f.Put("name", feature.UnicodeValue(name))
		ds.AddFeature(f)
	}
	add(1, 0, 0, "a")
	add(2, 5, 5, "b")
	add(3, 100, 100, "c")

	fs, err := ds.Features(Query{Bbox: geom.NewBox64(-1, -1, 10, 10)})
	if err != nil {
		t.Fatalf("Features: %v", err)
	}
	var got []uint64
	for {
		f, err := fs.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if f == nil {
			break
		}
		got = append(got, f.ID)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected results: %v", got)
	}
}

func TestMemoryDatasourceEnvelope(t *testing.T) {
	ds := NewMemoryDatasource()
	ctx := ds.Context()
	f1 := feature.New(1, ctx, geom.Point{Point: orb.Point{0, 0}}, true)
	f2 := feature.New(2, ctx, geom.Point{Point: orb.Point{4, 4}}, true)
	ds.AddFeature(f1)
	ds.AddFeature(f2)

	env := ds.Envelope()
	if env.MinX != 0 || env.MinY != 0 || env.MaxX != 4 || env.MaxY != 4 {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestOpenMemoryBackend(t *testing.T) {
	ds, err := Open(NewParams().Set("type", "memory"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ds.Close()
	if ds.Envelope().Valid() {
		t.Fatalf("expected an empty memory datasource to have an invalid envelope")
	}
}
