// Package csvds implements the CSV backend: dialect detection, a
// quote-aware line splitter, geometry-column location, per-attribute
// type inference, and the box-scan that builds the shared quadtree.
package csvds

// dialectSampleSize bounds how much of the file dialect detection
// reads, so a multi-gigabyte CSV doesn't need a full scan just to pick
// a separator.
const dialectSampleSize = 4000

// Dialect is the detected (or overridden) CSV flavor.
type Dialect struct {
	Separator byte
	Quote     byte
}

// DetectDialect samples the first dialectSampleSize bytes of data and
// picks a separator among ',', '\t', '|', ';' by frequency on the
// first line of the sample (everything before the first '\n' or '\r';
// later lines are not counted, and quoting is not resolved).
// Tab wins over comma if strictly more frequent; pipe or semicolon win
// over comma if strictly more frequent. Quote is always '"': mapnik's
// single-quote fallback depended on an ambiguous heuristic that this
// implementation does not carry forward.
func DetectDialect(data []byte) Dialect {
	sample := data
	if len(sample) > dialectSampleSize {
		sample = sample[:dialectSampleSize]
	}

	var commas, tabs, pipes, semicolons int
	sawNewline := false
	for _, c := range sample {
		switch c {
		case '\r', '\n':
			sawNewline = true
		case ',':
			if !sawNewline {
				commas++
			}
		case '\t':
			if !sawNewline {
				tabs++
			}
		case '|':
			if !sawNewline {
				pipes++
			}
		case ';':
			if !sawNewline {
				semicolons++
			}
		}
	}

	sep := byte(',')
	switch {
	case tabs > 0 && tabs > commas:
		sep = '\t'
	case pipes > commas:
		sep = '|'
	case semicolons > commas:
		sep = ';'
	}

	return Dialect{Separator: sep, Quote: '"'}
}
