// Package diag collects and renders compiler diagnostics.
//
// The teacher's passes (lang/ylex, lang/ysem) call an error()/errorAt()
// helper that formats a message and either appends it to a slice or exits
// immediately. This package generalizes that into a proper Sink: every
// phase appends Diagnostics instead of returning early, so later phases
// (and later errors in the same phase) still get a chance to run, per
// spec.md §7 ("Semantic analyzer never skips; it just records and
// continues").
package diag

import (
	"fmt"
	"io"
	"sort"

	"go.uber.org/multierr"
)

// Severity ranks a Diagnostic. Order matches spec.md §7's taxonomy text.
type Severity int

const (
	Note Severity = iota
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Note:
		return "note"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal error"
	default:
		return "unknown"
	}
}

// Loc is the (filename, line, column) triple attached to every token, AST
// node and diagnostic (spec.md §3 "Source location").
type Loc struct {
	File   string
	Line   int
	Column int
}

func (l Loc) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Diagnostic is one reported condition.
type Diagnostic struct {
	Loc      Loc
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Loc, d.Severity, d.Message)
}

// Sink accumulates diagnostics for one compile job and gates phase
// progression: callers check HasErrors/HasFatal at phase boundaries,
// exactly as spec.md §5 describes ("the next phase returns without work").
type Sink struct {
	diags       []Diagnostic
	errCount    int
	warnCount   int
	werror      bool
	fatalCount  int
}

// NewSink creates an empty diagnostic sink. Set werror to true to have
// Warning-level reports counted as errors for HasErrors/Err, matching the
// -Werror CLI flag in spec.md §6.
func NewSink(werror bool) *Sink {
	return &Sink{werror: werror}
}

func (s *Sink) report(loc Loc, sev Severity, format string, args ...any) {
	d := Diagnostic{Loc: loc, Severity: sev, Message: fmt.Sprintf(format, args...)}
	s.diags = append(s.diags, d)
	switch sev {
	case Warning:
		s.warnCount++
	case Error:
		s.errCount++
	case Fatal:
		s.errCount++
		s.fatalCount++
	}
}

func (s *Sink) Notef(loc Loc, format string, args ...any) { s.report(loc, Note, format, args...) }
func (s *Sink) Warnf(loc Loc, format string, args ...any) { s.report(loc, Warning, format, args...) }
func (s *Sink) Errorf(loc Loc, format string, args ...any) {
	s.report(loc, Error, format, args...)
}
func (s *Sink) Fatalf(loc Loc, format string, args ...any) {
	s.report(loc, Fatal, format, args...)
}

// HasErrors reports whether the sink has accumulated at least one Error or
// Fatal diagnostic, or (under -Werror) at least one Warning.
func (s *Sink) HasErrors() bool {
	if s.errCount > 0 {
		return true
	}
	return s.werror && s.warnCount > 0
}

// HasFatal reports whether a Fatal diagnostic was reported; the pipeline
// must not continue to the next phase in that case regardless of -Werror.
func (s *Sink) HasFatal() bool {
	return s.fatalCount > 0
}

func (s *Sink) ErrorCount() int   { return s.errCount }
func (s *Sink) WarningCount() int { return s.warnCount }

// Diagnostics returns all reported diagnostics in report order. Callers
// that need source order across merged sinks should use Sorted.
func (s *Sink) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(s.diags))
	copy(out, s.diags)
	return out
}

// Sorted returns diagnostics ordered by (file, line, column), the "all
// diagnostics print immediately in source order" rule of spec.md §7.
func (s *Sink) Sorted() []Diagnostic {
	out := s.Diagnostics()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Loc, out[j].Loc
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return out
}

// Print writes every diagnostic to w in the spec.md §6 wire format
// (file:line:col: severity: message), one per line, followed by the
// summary line. This is the out-of-scope "diagnostic printer" rendered at
// interface level: callers needing a different presentation should walk
// Sorted() themselves.
func (s *Sink) Print(w io.Writer) {
	for _, d := range s.Sorted() {
		fmt.Fprintln(w, d.String())
	}
	fmt.Fprintf(w, "%d error(s), %d warning(s)\n", s.errCount, s.warnCount)
}

// Err combines every Error/Fatal diagnostic (and, under werror, every
// Warning) into a single Go error using multierr, for callers (such as
// the CLI driver) that need one terminal error value to decide a process
// exit code rather than walking the sink.
func (s *Sink) Err() error {
	var combined error
	for _, d := range s.diags {
		if d.Severity == Error || d.Severity == Fatal || (s.werror && d.Severity == Warning) {
			combined = multierr.Append(combined, fmt.Errorf("%s", d.String()))
		}
	}
	return combined
}

// Merge appends other's diagnostics into s, preserving werror/err counters.
func (s *Sink) Merge(other *Sink) {
	if other == nil {
		return
	}
	for _, d := range other.diags {
		s.report(d.Loc, d.Severity, "%s", d.Message)
	}
}
