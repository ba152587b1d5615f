// Package errs defines the error taxonomy shared by every backend and
// the spatial index: a small set of kinds plus an Error type that
// carries enough context (byte offset, excerpt) for a caller to explain
// a failed open() or a skipped record without re-deriving it.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure per the taxonomy.
type Kind int

const (
	Unknown Kind = iota
	NoSuchFile
	IoError
	UnknownBackend
	MissingParam
	InvalidParam
	MalformedRecord
	MalformedFile
	NoGeometryColumn
	MissingHeader
	CorruptIndex
	UnsupportedGeometry
)

func (k Kind) String() string {
	switch k {
	case NoSuchFile:
		return "NoSuchFile"
	case IoError:
		return "IoError"
	case UnknownBackend:
		return "UnknownBackend"
	case MissingParam:
		return "MissingParam"
	case InvalidParam:
		return "InvalidParam"
	case MalformedRecord:
		return "MalformedRecord"
	case MalformedFile:
		return "MalformedFile"
	case NoGeometryColumn:
		return "NoGeometryColumn"
	case MissingHeader:
		return "MissingHeader"
	case CorruptIndex:
		return "CorruptIndex"
	case UnsupportedGeometry:
		return "UnsupportedGeometry"
	default:
		return "Unknown"
	}
}

// maxExcerpt bounds the context excerpt attached to parse failures.
const maxExcerpt = 200

// Error is the concrete error type returned across package boundaries.
// Offset and Excerpt are only populated for parse failures that have a
// meaningful position in the source.
type Error struct {
	Kind    Kind
	Offset  *int64
	Excerpt string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Offset != nil {
		msg = fmt.Sprintf("%s (offset %d)", msg, *e.Offset)
	}
	if e.Excerpt != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Excerpt)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, errs.New(Kind, ...)) style comparisons
// against just the Kind, ignoring cause/offset/excerpt.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New builds an Error of the given kind wrapping cause, with no
// position information.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Newf builds an Error of the given kind with a formatted cause.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// WithOffset attaches a byte offset to an error, truncating excerpt to
// maxExcerpt bytes.
func WithOffset(kind Kind, cause error, offset int64, excerpt []byte) *Error {
	if len(excerpt) > maxExcerpt {
		excerpt = excerpt[:maxExcerpt]
	}
	off := offset
	return &Error{Kind: kind, Cause: cause, Offset: &off, Excerpt: string(excerpt)}
}

// Sentinel lets callers do errors.Is(err, errs.Sentinel(CorruptIndex)).
func Sentinel(kind Kind) error {
	return &Error{Kind: kind}
}

// Is reports whether err's Kind (found anywhere in its wrap chain)
// matches kind. Shorthand for errors.Is(err, Sentinel(kind)).
func Is(err error, kind Kind) bool {
	return errors.Is(err, Sentinel(kind))
}
