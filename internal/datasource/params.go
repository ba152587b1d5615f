// Package datasource defines the backend-agnostic façade: the typed
// Params bag every backend is constructed from, the Datasource and
// Featureset interfaces, and the static plugin registry backends
// populate from their own init().
package datasource

import (
	"strconv"
	"strings"

	"github.com/mapnikgo/geoindex/internal/errs"
	"github.com/mapnikgo/geoindex/internal/geom"
)

// Params is the typed parameter bag datasources are constructed from.
// Keys recognized per backend are named in each backend's Open doc; an
// unrecognized key is simply ignored (only a missing *required* key is
// an error, raised by the backend itself via errs.MissingParam).
type Params map[string]string

// NewParams builds an empty Params bag.
func NewParams() Params { return make(Params) }

// Set stores a key/value pair and returns the bag, for chained
// construction in tests and callers building params programmatically.
func (p Params) Set(key, value string) Params {
	p[key] = value
	return p
}

// String returns the raw string value for key.
func (p Params) String(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

// Require returns the string value for key, or a MissingParam error
// naming the key.
func (p Params) Require(key string) (string, error) {
	v, ok := p[key]
	if !ok || v == "" {
		return "", errs.Newf(errs.MissingParam, "missing required parameter %q", key)
	}
	return v, nil
}

// Bool parses key as a boolean, defaulting to def if absent.
func (p Params) Bool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errs.Newf(errs.InvalidParam, "parameter %q: not a bool: %q", key, v)
	}
	return b, nil
}

// Int parses key as an integer, defaulting to def if absent.
func (p Params) Int(key string, def int64) (int64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, errs.Newf(errs.InvalidParam, "parameter %q: not an integer: %q", key, v)
	}
	return n, nil
}

// Float parses key as a float64, defaulting to def if absent.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, errs.Newf(errs.InvalidParam, "parameter %q: not a number: %q", key, v)
	}
	return f, nil
}

// Rune parses key as a single character (used by separator/quote
// overrides), defaulting to def if absent.
func (p Params) Rune(key string, def rune) (rune, error) {
	v, ok := p[key]
	if !ok || v == "" {
		return def, nil
	}
	runes := []rune(v)
	if len(runes) != 1 {
		return 0, errs.Newf(errs.InvalidParam, "parameter %q: expected a single character, got %q", key, v)
	}
	return runes[0], nil
}

// Extent parses the "extent" parameter ("minx,miny,maxx,maxy") if
// present.
func (p Params) Extent() (geom.Box64, bool, error) {
	v, ok := p["extent"]
	if !ok || v == "" {
		return geom.Box64{}, false, nil
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return geom.Box64{}, false, errs.Newf(errs.InvalidParam, "parameter \"extent\": expected 4 comma-separated numbers, got %q", v)
	}
	var nums [4]float64
	for i, part := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return geom.Box64{}, false, errs.Newf(errs.InvalidParam, "parameter \"extent\": %q is not a number", part)
		}
		nums[i] = n
	}
	return geom.NewBox64(nums[0], nums[1], nums[2], nums[3]), true, nil
}
