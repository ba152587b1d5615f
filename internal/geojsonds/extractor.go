// Package geojsonds implements the GeoJSON backend: a streaming
// byte-offset extractor for indexed mode, a full-document parse for
// cached mode, and the alphabetical attribute-schema discovery shared
// by both.
package geojsonds

import (
	"bytes"
	"io"

	"github.com/mapnikgo/geoindex/internal/errs"
)

// Span is one top-level Feature's (or the lone Geometry's) byte range.
type Span struct {
	Offset int64
	Length int64
}

// ExtractFeatureSpans walks data once tracking brace/bracket depth and
// string/escape state (never building a full JSON tree) to find every
// top-level Feature inside a FeatureCollection's "features" array, or
// treats the whole document as a single span when it is a lone
// Feature or bare Geometry.
func ExtractFeatureSpans(data []byte) ([]Span, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errs.New(errs.MalformedFile, io.ErrUnexpectedEOF)
	}

	idx := bytes.Index(data, []byte(`"features"`))
	if idx >= 0 {
		bracketStart := -1
	scan:
		for i := idx + len(`"features"`); i < len(data); i++ {
			switch data[i] {
			case '[':
				bracketStart = i
				break scan
			case ']', '}':
				// A "features" key whose value isn't an array (malformed,
				// or matched inside a string we didn't expect) - bail to
				// the single-document fallback below.
				break scan
			}
		}
		if bracketStart >= 0 {
			return splitTopLevelObjects(data, bracketStart+1)
		}
	}

	start := bytes.IndexByte(data, '{')
	if start < 0 {
		return nil, errs.New(errs.MalformedFile, nil)
	}
	end, err := matchBalanced(data, start)
	if err != nil {
		return nil, err
	}
	return []Span{{Offset: int64(start), Length: int64(end - start + 1)}}, nil
}

// splitTopLevelObjects scans data starting just past an array's
// opening '[' (pos), returning the span of every object that sits
// directly inside the array (depth 0 relative to pos).
func splitTopLevelObjects(data []byte, pos int) ([]Span, error) {
	var spans []Span
	depth := 0
	inString := false
	escaped := false
	start := -1

	for i := pos; i < len(data); i++ {
		c := data[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			if depth == 0 && c == '{' {
				start = i
			}
			depth++
		case '}', ']':
			depth--
			if depth == 0 && start >= 0 {
				spans = append(spans, Span{Offset: int64(start), Length: int64(i - start + 1)})
				start = -1
			}
			if depth < 0 {
				return spans, nil
			}
		}
	}
	return nil, errs.New(errs.MalformedFile, io.ErrUnexpectedEOF)
}

// matchBalanced returns the index of the brace/bracket that closes
// the one at data[start].
func matchBalanced(data []byte, start int) (int, error) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(data); i++ {
		c := data[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, errs.New(errs.MalformedFile, io.ErrUnexpectedEOF)
}
