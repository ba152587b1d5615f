// Package shapeds implements the ESRI Shapefile backend: a .shp
// geometry reader, a .dbf attribute reader, and optional consumption
// of a .index sidecar in the quadtree disk format (the index-builder
// CLI does not produce one for shapefiles).
package shapeds

import (
	"encoding/binary"
	"math"

	"github.com/mapnikgo/geoindex/internal/errs"
	"github.com/mapnikgo/geoindex/internal/geom"
)

const shpMagic = 9994

// shpHeader is the fixed 100-byte shapefile header.
type shpHeader struct {
	ShapeType int32
	Bbox      geom.Box64
}

func parseShpHeader(data []byte) (shpHeader, error) {
	if len(data) < 100 {
		return shpHeader{}, errs.New(errs.MalformedFile, nil)
	}
	code := int32(binary.BigEndian.Uint32(data[0:4]))
	if code != shpMagic {
		return shpHeader{}, errs.Newf(errs.MalformedFile, "bad shapefile magic number %d", code)
	}
	shapeType := int32(binary.LittleEndian.Uint32(data[32:36]))
	xMin := readF64LE(data[36:44])
	yMin := readF64LE(data[44:52])
	xMax := readF64LE(data[52:60])
	yMax := readF64LE(data[60:68])

	bbox := geom.InvalidBox64()
	if xMin <= xMax && yMin <= yMax {
		bbox = geom.NewBox64(xMin, yMin, xMax, yMax)
	}
	return shpHeader{ShapeType: shapeType, Bbox: bbox}, nil
}

func readF64LE(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}
