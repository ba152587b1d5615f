package csvds

import (
	"strconv"
	"strings"

	"github.com/mapnikgo/geoindex/internal/errs"
	"github.com/mapnikgo/geoindex/internal/feature"
)

// ColumnType is the type a column was inferred to hold, from its
// first non-empty cell. Every subsequent row is parsed against this
// same type rather than re-inferred per row.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeF64
	TypeI64
	TypeBool
)

const numericChars = "e-.+0123456789"

func looksNumeric(v string) bool {
	if v == "" {
		return false
	}
	for _, c := range v {
		if !strings.ContainsRune(numericChars, c) {
			return false
		}
	}
	return true
}

// InferType classifies value per spec §4.E: an overlong or
// zero-padded-looking value is always a string (so ids like "0012"
// keep their leading zero instead of becoming 12); otherwise a
// numeric-looking value is float if it has '.' or 'e', integer
// otherwise; otherwise true/false (case-insensitive) is bool; anything
// else is a string.
func InferType(value string) ColumnType {
	hasDot := strings.Contains(value, ".")
	if len(value) > 20 || (len(value) > 1 && !hasDot && value[0] == '0') {
		return TypeString
	}
	if looksNumeric(value) {
		if hasDot || strings.Contains(value, "e") {
			return TypeF64
		}
		return TypeI64
	}
	if strings.EqualFold(value, "true") || strings.EqualFold(value, "false") {
		return TypeBool
	}
	return TypeString
}

// ParseAs parses value as t. A value that no longer fits the column's
// inferred type (a later row widening past what the first row implied)
// is an error the caller applies strict/non-strict policy to.
func ParseAs(value string, t ColumnType) (feature.AttributeValue, error) {
	switch t {
	case TypeF64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return feature.NullValue, errs.Newf(errs.MalformedRecord, "value %q does not parse as a number", value)
		}
		return feature.F64Value(f), nil
	case TypeI64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return feature.NullValue, errs.Newf(errs.MalformedRecord, "value %q does not parse as an integer", value)
		}
		return feature.I64Value(n), nil
	case TypeBool:
		b, err := strconv.ParseBool(strings.ToLower(value))
		if err != nil {
			return feature.NullValue, errs.Newf(errs.MalformedRecord, "value %q does not parse as a bool", value)
		}
		return feature.BoolValue(b), nil
	default:
		return feature.UnicodeValue(value), nil
	}
}
