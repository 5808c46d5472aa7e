// Package diag collects and renders compiler diagnostics. A Sink guards
// its list with a mutex; the thread-per-translation-unit driver gives each
// file its own Sink, which that file's goroutine appends to and the driver
// reads back once every file has finished.
package diag

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/ijsf/xcc/internal/ast"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Severity classifies a Diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
	Note
)

// Diagnostic is a single reported problem, anchored at the token where it
// was detected.
type Diagnostic struct {
	Sev  Severity
	Tok  ast.Token
	File string
	Msg  string
}

// Sink buffers diagnostics reported while compiling one or more translation
// units, guarded by a mutex rather than a listener goroutine: unlike the
// channel-based perror this is grounded on, diagnostics are appended from
// many short-lived call sites rather than streamed continuously, so a plain
// lock has less overhead than standing up a goroutine per Sink.
type Sink struct {
	mu    sync.Mutex
	items []Diagnostic
	// ErrorLimit caps the number of Error-severity diagnostics collected
	// before Errorf starts discarding further errors, matching the
	// upstream compiler's 25-error cutoff to avoid cascades burying the
	// first real problem.
	ErrorLimit int
}

// ---------------------
// ----- constants -----
// ---------------------

// DefaultErrorLimit is the number of errors collected before Errorf starts
// silently discarding further reports, per spec 4.B's error-threshold
// policy.
const DefaultErrorLimit = 25

// ---------------------
// ----- functions -----
// ---------------------

// NewSink returns an empty Sink with the default error threshold.
func NewSink() *Sink {
	return &Sink{ErrorLimit: DefaultErrorLimit}
}

func (s *Sink) append(sev Severity, tok ast.Token, format string, args []interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sev == Error && s.errorCountLocked() >= s.ErrorLimit {
		return
	}
	s.items = append(s.items, Diagnostic{Sev: sev, Tok: tok, File: tok.File, Msg: fmt.Sprintf(format, args...)})
}

func (s *Sink) errorCountLocked() int {
	n := 0
	for _, d := range s.items {
		if d.Sev == Error {
			n++
		}
	}
	return n
}

// Errorf records an error-severity diagnostic at tok.
func (s *Sink) Errorf(tok ast.Token, format string, args ...interface{}) {
	s.append(Error, tok, format, args)
}

// Warnf records a warning-severity diagnostic at tok.
func (s *Sink) Warnf(tok ast.Token, format string, args ...interface{}) {
	s.append(Warning, tok, format, args)
}

// Notef records a note-severity diagnostic at tok.
func (s *Sink) Notef(tok ast.Token, format string, args ...interface{}) {
	s.append(Note, tok, format, args)
}

// ErrorCount returns the number of Error-severity diagnostics recorded.
func (s *Sink) ErrorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorCountLocked()
}

// Diagnostics returns a stable-sorted snapshot of every recorded
// diagnostic, ordered by file then line then column so output never
// depends on the thread-per-TU driver's goroutine interleaving.
func (s *Sink) Diagnostics() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Diagnostic, len(s.items))
	copy(out, s.items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		if out[i].Tok.Line != out[j].Tok.Line {
			return out[i].Tok.Line < out[j].Tok.Line
		}
		return out[i].Tok.Col < out[j].Tok.Col
	})
	return out
}

// WriteTo renders every diagnostic to w, colorizing severities when w is a
// terminal that golang.org/x/term and go-isatty both agree supports it.
func (s *Sink) WriteTo(w io.Writer) {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		if color {
			if _, _, err := term.GetSize(int(f.Fd())); err != nil {
				color = false
			}
		}
	}
	for _, d := range s.Diagnostics() {
		fmt.Fprintf(w, "%s: %s\n", d.Tok.String(), decorate(d.Sev, d.Msg, color))
	}
}

func decorate(sev Severity, msg string, color bool) string {
	if !color {
		return prefix(sev) + msg
	}
	code := "36"
	switch sev {
	case Error:
		code = "31"
	case Warning:
		code = "33"
	}
	return "\x1b[" + code + "m" + prefix(sev) + msg + "\x1b[0m"
}

func prefix(sev Severity) string {
	switch sev {
	case Error:
		return "error: "
	case Warning:
		return "warning: "
	default:
		return "note: "
	}
}
