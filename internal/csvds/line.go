package csvds

import (
	"io"

	"github.com/mapnikgo/geoindex/internal/errs"
)

// LineSpan is one record's byte range within the source document,
// newline excluded.
type LineSpan struct {
	Offset int64
	Length int64
}

// SplitLines walks data honoring quote state: a quote toggles "inside
// quotes"; newlines inside quotes are literal (a quoted field may
// legitimately span several physical lines). If the file ends with an
// odd number of quotes, the final span is returned alongside a
// MalformedRecord error (wrapping io.ErrUnexpectedEOF) so the caller
// can apply strict/non-strict
// policy to just that record rather than the whole file.
func SplitLines(data []byte, quote byte) ([]LineSpan, error) {
	var spans []LineSpan
	n := len(data)
	start := 0
	insideQuote := false

	for i := 0; i < n; i++ {
		c := data[i]
		if c == quote {
			insideQuote = !insideQuote
			continue
		}
		if !insideQuote && (c == '\r' || c == '\n') {
			spans = append(spans, LineSpan{Offset: int64(start), Length: int64(i - start)})
			if c == '\r' && i+1 < n && data[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}

	if start < n {
		spans = append(spans, LineSpan{Offset: int64(start), Length: int64(n - start)})
		if insideQuote {
			return spans, errs.New(errs.MalformedRecord, io.ErrUnexpectedEOF)
		}
	}
	return spans, nil
}

// ParseLine splits one record's raw bytes into fields, honoring quotes:
// a separator or newline inside a quoted field is literal, and a
// doubled quote inside a quoted field is one literal quote.
func ParseLine(line []byte, sep, quote byte) ([]string, error) {
	var fields []string
	var cur []byte
	insideQuote := false
	n := len(line)

	for i := 0; i < n; i++ {
		c := line[i]
		if insideQuote {
			if c == quote {
				if i+1 < n && line[i+1] == quote {
					cur = append(cur, quote)
					i++
					continue
				}
				insideQuote = false
				continue
			}
			cur = append(cur, c)
			continue
		}
		switch c {
		case quote:
			insideQuote = true
		case sep:
			fields = append(fields, string(cur))
			cur = nil
		default:
			cur = append(cur, c)
		}
	}
	if insideQuote {
		return nil, errs.New(errs.MalformedRecord, io.ErrUnexpectedEOF)
	}
	fields = append(fields, string(cur))
	return fields, nil
}
