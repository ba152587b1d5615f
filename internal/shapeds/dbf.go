package shapeds

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/mapnikgo/geoindex/internal/byteio"
	"github.com/mapnikgo/geoindex/internal/errs"
	"github.com/mapnikgo/geoindex/internal/feature"
)

// dbfField is one field descriptor from the dBASE III header.
type dbfField struct {
	Name     string
	Type     byte
	Length   int
	Decimals int
}

// dbfTable is a dBASE III attribute table, read on demand by record
// index rather than loaded whole.
type dbfTable struct {
	src         byteio.Source
	fields      []dbfField
	headerSize  int
	recordSize  int
	recordCount uint32
}

func openDBF(src byteio.Source) (*dbfTable, error) {
	hdr := make([]byte, 32)
	if _, err := src.ReadAt(hdr, 0); err != nil {
		return nil, errs.New(errs.IoError, err)
	}
	recordCount := binary.LittleEndian.Uint32(hdr[4:8])
	headerSize := int(binary.LittleEndian.Uint16(hdr[8:10]))
	recordSize := int(binary.LittleEndian.Uint16(hdr[10:12]))
	if headerSize < 32 || headerSize > int(src.Len()) {
		return nil, errs.New(errs.MalformedFile, nil)
	}

	descBuf := make([]byte, headerSize-32)
	if _, err := src.ReadAt(descBuf, 32); err != nil {
		return nil, errs.New(errs.IoError, err)
	}

	var fields []dbfField
	for off := 0; off+32 <= len(descBuf) && descBuf[off] != 0x0D; off += 32 {
		nameBytes := descBuf[off : off+11]
		end := bytes.IndexByte(nameBytes, 0)
		if end < 0 {
			end = len(nameBytes)
		}
		fields = append(fields, dbfField{
			Name:     strings.TrimSpace(string(nameBytes[:end])),
			Type:     descBuf[off+11],
			Length:   int(descBuf[off+16]),
			Decimals: int(descBuf[off+17]),
		})
	}

	return &dbfTable{
		src:         src,
		fields:      fields,
		headerSize:  headerSize,
		recordSize:  recordSize,
		recordCount: recordCount,
	}, nil
}

// RowValues reads the idx'th record (0-based) and returns one
// attribute value per field, in field order, which matches the
// schema order shapeds.Datasource pushed the field names in.
func (t *dbfTable) RowValues(idx int) ([]feature.AttributeValue, error) {
	if idx < 0 || uint32(idx) >= t.recordCount {
		return nil, errs.Newf(errs.MalformedRecord, "dbf row %d out of range", idx)
	}
	buf := make([]byte, t.recordSize)
	recOffset := int64(t.headerSize) + int64(idx)*int64(t.recordSize)
	if _, err := t.src.ReadAt(buf, recOffset); err != nil {
		return nil, errs.New(errs.IoError, err)
	}

	vals := make([]feature.AttributeValue, len(t.fields))
	off := 1 // skip the deletion flag byte
	for i, f := range t.fields {
		if off+f.Length > len(buf) {
			vals[i] = feature.NullValue
			continue
		}
		vals[i] = decodeDBFValue(buf[off:off+f.Length], f)
		off += f.Length
	}
	return vals, nil
}

func (t *dbfTable) Close() error { return t.src.Close() }

// decodeDBFValue converts one raw field cell per its dBASE type code:
// C/D/M -> String, L -> Bool, N/O/F -> I64 or F64 by decimal count, a
// field of all '*' (numeric overflow) or an unrecognized L code means
// null.
func decodeDBFValue(raw []byte, f dbfField) feature.AttributeValue {
	s := strings.TrimSpace(string(raw))
	switch f.Type {
	case 'C', 'D', 'M':
		return feature.UnicodeValue(s)
	case 'L':
		switch s {
		case "T", "t", "Y", "y", "1":
			return feature.BoolValue(true)
		case "F", "f", "N", "n", "0":
			return feature.BoolValue(false)
		default:
			return feature.NullValue
		}
	case 'N', 'O', 'F':
		if s == "" || isAllAsterisks(s) {
			return feature.NullValue
		}
		if f.Decimals > 0 {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return feature.NullValue
			}
			return feature.F64Value(v)
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			if fv, ferr := strconv.ParseFloat(s, 64); ferr == nil {
				return feature.I64Value(int64(fv))
			}
			return feature.NullValue
		}
		return feature.I64Value(v)
	default:
		return feature.UnicodeValue(s)
	}
}

func isAllAsterisks(s string) bool {
	for _, r := range s {
		if r != '*' {
			return false
		}
	}
	return len(s) > 0
}
