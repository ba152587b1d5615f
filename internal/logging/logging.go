// Package logging provides the logging sink passed explicitly into
// datasource constructors, in place of a global logger singleton. The
// default implementation wraps the standard library's log.Logger, the
// same direct log.Printf("Warning: ...") idiom the teacher uses
// throughout its geodata and tiles stores.
package logging

import (
	"log"
	"os"
)

// Sink receives non-fatal diagnostics from a backend: a per-record
// parse failure during a box-scan, a sidecar index falling back to a
// full rescan, and similar recoverable conditions.
type Sink interface {
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Discard is a Sink that drops everything. It is the zero value used
// when a caller passes a nil Sink.
type discard struct{}

func (discard) Warnf(string, ...any)  {}
func (discard) Errorf(string, ...any) {}

// Discard is the shared no-op sink.
var Discard Sink = discard{}

// Standard wraps a *log.Logger (or the default standard logger if nil).
type Standard struct {
	logger *log.Logger
}

// NewStandard returns a Sink that writes to the given logger, or to a
// logger on os.Stderr with the standard flags if logger is nil.
func NewStandard(logger *log.Logger) *Standard {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Standard{logger: logger}
}

func (s *Standard) Warnf(format string, args ...any) {
	s.logger.Printf("Warning: "+format, args...)
}

func (s *Standard) Errorf(format string, args ...any) {
	s.logger.Printf("Error: "+format, args...)
}

// OrDiscard returns sink if non-nil, else Discard: the same nil check
// datasource.Open and each backend constructor perform inline.
func OrDiscard(sink Sink) Sink {
	if sink == nil {
		return Discard
	}
	return sink
}
