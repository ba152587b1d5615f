package datasource

import (
	"testing"

	"github.com/mapnikgo/geoindex/internal/errs"
)

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(NewParams().Set("type", "does-not-exist"), nil)
	if !errs.Is(err, errs.UnknownBackend) {
		t.Fatalf("expected UnknownBackend, got %v", err)
	}
}

func TestOpenMissingType(t *testing.T) {
	_, err := Open(NewParams(), nil)
	if !errs.Is(err, errs.MissingParam) {
		t.Fatalf("expected MissingParam, got %v", err)
	}
}

func TestParamsExtent(t *testing.T) {
	p := NewParams().Set("extent", "1,2,3,4")
	box, ok, err := p.Extent()
	if err != nil || !ok {
		t.Fatalf("Extent: ok=%v err=%v", ok, err)
	}
	if box.MinX != 1 || box.MinY != 2 || box.MaxX != 3 || box.MaxY != 4 {
		t.Fatalf("unexpected box: %+v", box)
	}
}

func TestParamsExtentMalformed(t *testing.T) {
	p := NewParams().Set("extent", "1,2,3")
	if _, _, err := p.Extent(); err == nil {
		t.Fatalf("expected an error for a malformed extent")
	}
}

func TestParamsIntDefault(t *testing.T) {
	p := NewParams()
	n, err := p.Int("row_limit", 0)
	if err != nil || n != 0 {
		t.Fatalf("Int default: n=%d err=%v", n, err)
	}
}
