package csvds

import (
	"testing"

	"github.com/mapnikgo/geoindex/internal/datasource"
	"github.com/mapnikgo/geoindex/internal/errs"
)

func open(t *testing.T, params datasource.Params) datasource.Datasource {
	t.Helper()
	ds, err := Open(params, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { ds.Close() })
	return ds
}

func allFeatures(t *testing.T, ds datasource.Datasource) []*featureRecord {
	t.Helper()
	fs, err := ds.Features(datasource.Query{Bbox: ds.Envelope()})
	if err != nil {
		t.Fatalf("Features: %v", err)
	}
	var out []*featureRecord
	for {
		f, err := fs.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if f == nil {
			break
		}
		out = append(out, &featureRecord{id: f.ID, geomKind: f.Geometry.Kind()})
	}
	return out
}

type featureRecord struct {
	id       uint64
	geomKind interface{}
}

func TestCSVLonLat(t *testing.T) {
	ds := open(t, datasource.NewParams().
		Set("type", "csv").
		Set("inline", "x,y,name\n120.15,48.47,Winthrop\n"))

	env := ds.Envelope()
	if env.MinX != 120.15 || env.MinY != 48.47 {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	recs := allFeatures(t, ds)
	if len(recs) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(recs))
	}
}

func TestCSVWKT(t *testing.T) {
	ds := open(t, datasource.NewParams().
		Set("type", "csv").
		Set("inline", "wkt,name\n\"POINT (120.15 48.47)\",Winthrop\n"))

	env := ds.Envelope()
	if env.MinX != 120.15 || env.MinY != 48.47 || env.MaxX != 120.15 || env.MaxY != 48.47 {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestCSVQuotedCommaField(t *testing.T) {
	ds := open(t, datasource.NewParams().
		Set("type", "csv").
		Set("inline", "x,y,name\n1,2,\"Smith, John\"\n"))

	fs, err := ds.Features(datasource.Query{Bbox: ds.Envelope()})
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
	s, ok := v.Str()
	if !ok || s != "Smith, John" {
		t.Fatalf("got %q", s)
	}
}

func TestCSVMissingGeometryColumn(t *testing.T) {
	_, err := Open(datasource.NewParams().
		Set("type", "csv").
		Set("inline", "a,b\n1,2\n"), nil)
	if !errs.Is(err, errs.NoGeometryColumn) {
		t.Fatalf("expected NoGeometryColumn, got %v", err)
	}
}

func TestCSVRowLimit(t *testing.T) {
	ds := open(t, datasource.NewParams().
		Set("type", "csv").
		Set("row_limit", "1").
		Set("inline", "x,y\n0,0\n1,1\n2,2\n"))

	recs := allFeatures(t, ds)
	if len(recs) != 1 {
		t.Fatalf("expected row_limit to cap at 1 feature, got %d", len(recs))
	}
}

func TestCSVManualHeaders(t *testing.T) {
	ds := open(t, datasource.NewParams().
		Set("type", "csv").
		Set("headers", "x,y,name").
		Set("inline", "1,2,alpha\n3,4,beta\n"))

	recs := allFeatures(t, ds)
	if len(recs) != 2 {
		t.Fatalf("expected 2 features, got %d", len(recs))
	}
}

func TestCSVTypeInference(t *testing.T) {
	if InferType("0012") != TypeString {
		t.Fatalf("expected a leading-zero value to infer as String")
	}
	if InferType("3.14") != TypeF64 {
		t.Fatalf("expected a decimal value to infer as F64")
	}
	if InferType("42") != TypeI64 {
		t.Fatalf("expected a plain integer to infer as I64")
	}
	if InferType("true") != TypeBool {
		t.Fatalf("expected true/false to infer as Bool")
	}
	if InferType("hello") != TypeString {
		t.Fatalf("expected a word to infer as String")
	}
}

func TestSplitLinesHonorsQuotedNewlines(t *testing.T) {
	data := []byte("a,\"b\nc\",d\ne,f,g\n")
	spans, err := SplitLines(data, '"')
	if err != nil {
		t.Fatalf("SplitLines: %v", err)
	}
	if len(spans) != 2 {
		t.Fatalf("expected 2 records (quoted newline not a record break), got %d: %+v", len(spans), spans)
	}
}

func TestParseLineDoubledQuote(t *testing.T) {
	fields, err := ParseLine([]byte(`a,"say ""hi""",c`), ',', '"')
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if len(fields) != 3 || fields[1] != `say "hi"` {
		t.Fatalf("unexpected fields: %#v", fields)
	}
}

func TestParseLineUnterminatedQuote(t *testing.T) {
	_, err := ParseLine([]byte(`a,"b`), ',', '"')
	if !errs.Is(err, errs.MalformedRecord) {
		t.Fatalf("expected MalformedRecord, got %v", err)
	}
}
