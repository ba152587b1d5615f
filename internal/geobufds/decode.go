package geobufds

import (
	"math"

	"github.com/mapnikgo/geoindex/internal/errs"
)

// Field numbers per the Geobuf Data message.
const (
	dataKeys              = 1
	dataDimensions        = 2
	dataPrecision         = 3
	dataGeometry          = 4
	dataFeature           = 5
	dataFeatureCollection = 6
)

// Field numbers per the Geobuf Geometry message.
const (
	geomType             = 1
	geomLengths          = 2
	geomCoords           = 3
	geomGeometries       = 4
	geomCustomProperties = 5
	geomValues           = 6
	geomPrecision        = 7
	geomDimensions       = 8
)

// Field numbers per the Geobuf Feature message.
const (
	featGeometry   = 1
	featProperties = 13
	featValues     = 14
	featID         = 15
	featIDStr      = 16
)

// Field numbers per the Geobuf FeatureCollection message.
const (
	fcFeatures = 1
)

// Field numbers per the Geobuf Value message.
const (
	valString = 1
	valDouble = 2
	valPosInt = 3
	valNegInt = 4
	valBool   = 5
	valJSON   = 6
)

// Geometry type enum values, matching the Geobuf Geometry.Type enum.
const (
	gtPoint = iota + 1
	gtMultiPoint
	gtLineString
	gtMultiLineString
	gtPolygon
	gtMultiPolygon
	gtGeometryCollection
)

type rawGeometry struct {
	gtype      int
	lengths    []uint64
	coords     []int64
	geometries []rawGeometry
	precision  int
	dimensions int
}

type rawValue struct {
	kind string // "string", "double", "int", "bool", "json", "null"
	s    string
	f    float64
	i    int64
	b    bool
}

type rawFeature struct {
	geometry rawGeometry
	props    map[string]rawValue
}

type document struct {
	keys       []string
	dimensions int
	precision  int

	geometry             *rawGeometry
	feature              *rawFeature
	features             []rawFeature
	hasFeatureCollection bool
}

const (
	defaultDimensions = 2
	defaultPrecision  = 6
)

func decodeDocument(data []byte) (*document, error) {
	fields, err := parseFields(data)
	if err != nil {
		return nil, err
	}

	doc := &document{dimensions: defaultDimensions, precision: defaultPrecision}
	for _, f := range fields {
		switch f.number {
		case dataKeys:
			doc.keys = append(doc.keys, string(f.bytes))
		case dataDimensions:
			doc.dimensions = int(f.varint)
		case dataPrecision:
			doc.precision = int(f.varint)
		case dataGeometry:
			g, err := decodeGeometry(f.bytes)
			if err != nil {
				return nil, err
			}
			doc.geometry = &g
		case dataFeature:
			ft, err := decodeFeature(f.bytes, doc.keys)
			if err != nil {
				return nil, err
			}
			doc.feature = &ft
		case dataFeatureCollection:
			fc, err := decodeFeatureCollection(f.bytes, doc.keys)
			if err != nil {
				return nil, err
			}
			doc.features = fc
			doc.hasFeatureCollection = true
		}
	}

	if doc.geometry == nil && doc.feature == nil && !doc.hasFeatureCollection {
		return nil, errs.New(errs.MalformedFile, nil)
	}
	return doc, nil
}

func decodeGeometry(data []byte) (rawGeometry, error) {
	fields, err := parseFields(data)
	if err != nil {
		return rawGeometry{}, err
	}
	g := rawGeometry{dimensions: -1, precision: -1}
	for _, f := range fields {
		switch f.number {
		case geomType:
			g.gtype = int(f.varint)
		case geomLengths:
			vs, err := lengthValues(f)
			if err != nil {
				return rawGeometry{}, err
			}
			g.lengths = append(g.lengths, vs...)
		case geomCoords:
			vs, err := coordValues(f)
			if err != nil {
				return rawGeometry{}, err
			}
			g.coords = append(g.coords, vs...)
		case geomGeometries:
			child, err := decodeGeometry(f.bytes)
			if err != nil {
				return rawGeometry{}, err
			}
			g.geometries = append(g.geometries, child)
		case geomPrecision:
			g.precision = int(f.varint)
		case geomDimensions:
			g.dimensions = int(f.varint)
		}
	}
	return g, nil
}

// lengthValues handles both packed (wireBytes holding concatenated
// varints) and unpacked (repeated plain varint fields) encodings.
func lengthValues(f field) ([]uint64, error) {
	if f.wire == wireBytes {
		return unpackVarints(f.bytes)
	}
	return []uint64{f.varint}, nil
}

func coordValues(f field) ([]int64, error) {
	if f.wire == wireBytes {
		raw, err := unpackVarints(f.bytes)
		if err != nil {
			return nil, err
		}
		out := make([]int64, len(raw))
		for i, v := range raw {
			out[i] = zigzag(v)
		}
		return out, nil
	}
	return []int64{zigzag(f.varint)}, nil
}

func decodeValue(data []byte) (rawValue, error) {
	fields, err := parseFields(data)
	if err != nil {
		return rawValue{}, err
	}
	for _, f := range fields {
		switch f.number {
		case valString:
			return rawValue{kind: "string", s: string(f.bytes)}, nil
		case valDouble:
			return rawValue{kind: "double", f: math.Float64frombits(f.fixed)}, nil
		case valPosInt:
			return rawValue{kind: "int", i: int64(f.varint)}, nil
		case valNegInt:
			return rawValue{kind: "int", i: -int64(f.varint)}, nil
		case valBool:
			return rawValue{kind: "bool", b: f.varint != 0}, nil
		case valJSON:
			return rawValue{kind: "json", s: string(f.bytes)}, nil
		}
	}
	return rawValue{kind: "null"}, nil
}

func decodeFeature(data []byte, keys []string) (rawFeature, error) {
	fields, err := parseFields(data)
	if err != nil {
		return rawFeature{}, err
	}
	var ft rawFeature
	var propertyIndices []uint64
	var values []rawValue
	hasGeometry := false
	for _, f := range fields {
		switch f.number {
		case featGeometry:
			g, err := decodeGeometry(f.bytes)
			if err != nil {
				return rawFeature{}, err
			}
			ft.geometry = g
			hasGeometry = true
		case featProperties:
			vs, err := lengthValues(f)
			if err != nil {
				return rawFeature{}, err
			}
			propertyIndices = append(propertyIndices, vs...)
		case featValues:
			v, err := decodeValue(f.bytes)
			if err != nil {
				return rawFeature{}, err
			}
			values = append(values, v)
		}
	}
	if !hasGeometry {
		return rawFeature{}, errs.New(errs.MalformedRecord, nil)
	}

	ft.props = make(map[string]rawValue)
	for i := 0; i+1 < len(propertyIndices); i += 2 {
		keyIdx, valIdx := propertyIndices[i], propertyIndices[i+1]
		if int(keyIdx) >= len(keys) || int(valIdx) >= len(values) {
			return rawFeature{}, errs.New(errs.MalformedRecord, nil)
		}
		ft.props[keys[keyIdx]] = values[valIdx]
	}
	return ft, nil
}

func decodeFeatureCollection(data []byte, keys []string) ([]rawFeature, error) {
	fields, err := parseFields(data)
	if err != nil {
		return nil, err
	}
	var out []rawFeature
	for _, f := range fields {
		if f.number != fcFeatures {
			continue
		}
		ft, err := decodeFeature(f.bytes, keys)
		if err != nil {
			return nil, err
		}
		out = append(out, ft)
	}
	return out, nil
}
