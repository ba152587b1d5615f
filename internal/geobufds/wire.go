// Package geobufds implements the Geobuf backend: a from-scratch
// decoder for the compact varint-delta protobuf encoding (no
// generated protobuf code, just the wire-format primitives the format
// actually needs), plus materialization into the shared geometry and
// feature types.
package geobufds

import (
	"encoding/binary"

	"github.com/mapnikgo/geoindex/internal/errs"
)

const (
	wireVarint  = 0
	wireFixed64 = 1
	wireBytes   = 2
	wireFixed32 = 5
)

// field is one decoded (tag, payload) pair from a protobuf message.
// Varint/Fixed32/Fixed64 payloads are stored pre-decoded; Bytes holds
// the raw sub-slice for the caller to recurse into or read directly.
type field struct {
	number int
	wire   int
	varint uint64
	fixed  uint64
	bytes  []byte
}

// parseFields walks one protobuf message's bytes into its top-level
// (field_number, wire_type, payload) tuples. It does not recurse into
// embedded messages; callers call parseFields again on a field's
// bytes payload when they need to.
func parseFields(data []byte) ([]field, error) {
	var out []field
	pos := 0
	for pos < len(data) {
		tag, n := binary.Uvarint(data[pos:])
		if n <= 0 {
			return nil, errs.New(errs.MalformedRecord, nil)
		}
		pos += n
		wire := int(tag & 0x7)
		num := int(tag >> 3)

		switch wire {
		case wireVarint:
			v, n := binary.Uvarint(data[pos:])
			if n <= 0 {
				return nil, errs.New(errs.MalformedRecord, nil)
			}
			pos += n
			out = append(out, field{number: num, wire: wire, varint: v})
		case wireFixed64:
			if pos+8 > len(data) {
				return nil, errs.New(errs.MalformedRecord, nil)
			}
			out = append(out, field{number: num, wire: wire, fixed: binary.LittleEndian.Uint64(data[pos : pos+8])})
			pos += 8
		case wireBytes:
			l, n := binary.Uvarint(data[pos:])
			if n <= 0 {
				return nil, errs.New(errs.MalformedRecord, nil)
			}
			pos += n
			if pos+int(l) > len(data) {
				return nil, errs.New(errs.MalformedRecord, nil)
			}
			out = append(out, field{number: num, wire: wire, bytes: data[pos : pos+int(l)]})
			pos += int(l)
		case wireFixed32:
			if pos+4 > len(data) {
				return nil, errs.New(errs.MalformedRecord, nil)
			}
			out = append(out, field{number: num, wire: wire, fixed: uint64(binary.LittleEndian.Uint32(data[pos : pos+4]))})
			pos += 4
		default:
			return nil, errs.New(errs.MalformedRecord, nil)
		}
	}
	return out, nil
}

// unpackVarints decodes a packed-repeated varint field's payload into
// individual uint64 values.
func unpackVarints(data []byte) ([]uint64, error) {
	var out []uint64
	pos := 0
	for pos < len(data) {
		v, n := binary.Uvarint(data[pos:])
		if n <= 0 {
			return nil, errs.New(errs.MalformedRecord, nil)
		}
		out = append(out, v)
		pos += n
	}
	return out, nil
}

// zigzag reverses protobuf's sint64 zigzag encoding.
func zigzag(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}
