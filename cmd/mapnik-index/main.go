// Command mapnik-index is the offline index-builder: it runs a CSV or
// GeoJSON backend's box-scan and writes the resulting quadtree to a
// <input>.index sidecar in the quadtree disk format. The csv and
// geojson backends do not read this sidecar: their Open always
// rescans the input file.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	_ "github.com/mapnikgo/geoindex/internal/csvds"
	"github.com/mapnikgo/geoindex/internal/datasource"
	_ "github.com/mapnikgo/geoindex/internal/geojsonds"
	"github.com/mapnikgo/geoindex/internal/geom"
	"github.com/mapnikgo/geoindex/internal/logging"
	"github.com/mapnikgo/geoindex/internal/quadtree"
)

var version = "dev"

// indexable is implemented by the backends that can produce a
// serializable quadtree (csvds and geojsonds). shapeds reads a .index
// sidecar but does not build one, and this tool does not index
// shapefiles.
type indexable interface {
	Index() *quadtree.Tree
}

func main() {
	depth := flag.Uint("depth", quadtree.DefaultMaxDepth, "quadtree max depth")
	ratio := flag.Float64("ratio", quadtree.DefaultSplitRatio, "quadtree split ratio")
	separator := flag.String("separator", "", "CSV field separator override")
	quote := flag.String("quote", "", "CSV quote character override")
	manualHeaders := flag.String("manual-headers", "", "CSV manual header list (comma-separated), skips header detection")
	bbox := flag.String("bbox", "", "index extent as minx,miny,maxx,maxy (CSV records outside it are skipped; GeoJSON records are not clipped)")
	validateFeatures := flag.Bool("validate-features", false, "validate each record's geometry while scanning")
	verbose := flag.Bool("verbose", false, "log warnings to stderr")
	showVersion := flag.Bool("version", false, "show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("mapnik-index v%s\n", version)
		os.Exit(0)
	}

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: mapnik-index [flags] file...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	var sink logging.Sink = logging.Discard
	if *verbose {
		sink = logging.NewStandard(nil)
	}

	failed := false
	for _, file := range files {
		if err := indexFile(file, *depth, *ratio, *separator, *quote, *manualHeaders, *bbox, *validateFeatures, sink); err != nil {
			fmt.Fprintf(os.Stderr, "mapnik-index: %s: %v\n", file, err)
			failed = true
		}
	}

	if failed {
		os.Exit(1)
	}
}

func backendType(file string) (string, error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".csv":
		return "csv", nil
	case ".json", ".geojson":
		return "geojson", nil
	default:
		return "", fmt.Errorf("unsupported input extension %q (only .csv and .json/.geojson are indexable)", filepath.Ext(file))
	}
}

func indexFile(file string, depth uint, ratio float64, separator, quote, manualHeaders, bbox string, validate bool, sink logging.Sink) error {
	typ, err := backendType(file)
	if err != nil {
		return err
	}

	params := datasource.NewParams().
		Set("type", typ).
		Set("file", file).
		Set("index_depth", strconv.FormatUint(uint64(depth), 10)).
		Set("index_ratio", strconv.FormatFloat(ratio, 'g', -1, 64))
	if bbox != "" {
		params.Set("extent", bbox)
	}
	if typ == "csv" {
		if separator != "" {
			params.Set("separator", separator)
		}
		if quote != "" {
			params.Set("quote", quote)
		}
		if manualHeaders != "" {
			params.Set("headers", manualHeaders)
		}
	}

	ds, err := datasource.Open(params, sink)
	if err != nil {
		return err
	}
	defer ds.Close()

	if validate {
		if err := validateFeatures(ds, sink); err != nil {
			return err
		}
	}

	env := ds.Envelope()
	if !env.Valid() {
		sink.Warnf("%s: empty envelope, no index written", file)
		return nil
	}

	idx, ok := ds.(indexable)
	if !ok {
		return fmt.Errorf("backend %q does not expose an indexable quadtree", typ)
	}

	return writeIndexAtomically(file+".index", idx.Index())
}

// validateFeatures walks every feature in the datasource's full extent
// and checks it against the shared geometry invariants, logging (and
// propagating as a file-level failure) any violation found.
func validateFeatures(ds datasource.Datasource, sink logging.Sink) error {
	fs, err := ds.Features(datasource.Query{Bbox: ds.Envelope()})
	if err != nil {
		return err
	}
	defer fs.Close()

	bad := 0
	for {
		f, err := fs.Next()
		if err != nil {
			return err
		}
		if f == nil {
			break
		}
		if verr := geom.Validate(f.Geometry); verr != nil {
			sink.Errorf("invalid geometry in feature %d: %v", f.ID, verr)
			bad++
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d feature(s) failed geometry validation", bad)
	}
	return nil
}

// writeIndexAtomically serializes tree to a temp file in the same
// directory as path and renames it into place, so a reader never
// observes a partially written sidecar.
func writeIndexAtomically(path string, tree *quadtree.Tree) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := tree.Marshal(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
