// Package logging defines the structured logger interface shared by
// process, control, and runtime, and a standard-library-backed default
// implementation.
package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Logger receives level-tagged, structured log lines. level follows the
// nao1215-tornago convention ("debug", "info", "warn", "error"); kv is an
// alternating key/value list appended to msg.
type Logger interface {
	Log(level, msg string, kv ...any)
}

// Std is a Logger backed by the standard library's log package.
type Std struct {
	l *log.Logger
}

// NewStd builds a Std writing to os.Stderr with the standard library log
// package's date/time prefix (log.LstdFlags, "2006/01/02 15:04:05").
func NewStd() *Std {
	return &Std{l: log.New(os.Stderr, "", log.LstdFlags)}
}

func (s *Std) Log(level, msg string, kv ...any) {
	var b strings.Builder
	b.WriteString(strings.ToUpper(level))
	b.WriteByte(' ')
	b.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	s.l.Print(b.String())
}

// Nop discards every log line. Useful as a zero-value-safe default for
// structs that accept an optional Logger.
type Nop struct{}

func (Nop) Log(string, string, ...any) {}

// OrNop returns l, or a Nop if l is nil, so callers can always call
// .Log(...) without a nil check.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop{}
	}
	return l
}
