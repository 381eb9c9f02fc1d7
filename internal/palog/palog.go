// Package palog is a thin subsystem-prefixed wrapper over the standard
// library's log package: plain log.Printf/log.Fatalf output prefixed by
// subsystem name, with the server able to tee output to a runtime-dir log
// file when one is configured.
package palog

import (
	"io"
	"log"
	"os"
)

// Logger prefixes every line with a subsystem tag, e.g. "pane: server: ...".
type Logger struct {
	std *log.Logger
}

// New constructs a Logger writing to w (os.Stderr if w is nil) with lines
// prefixed "pane: <subsystem>: ".
func New(subsystem string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{std: log.New(w, "pane: "+subsystem+": ", log.LstdFlags)}
}

// WithFile builds a Logger that writes to both os.Stderr and the file at
// path (created if necessary, appended otherwise), or just os.Stderr if
// path is empty.
func WithFile(subsystem, path string) (*Logger, error) {
	if path == "" {
		return New(subsystem, os.Stderr), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	return New(subsystem, io.MultiWriter(os.Stderr, f)), nil
}

// Printf logs a formatted line.
func (l *Logger) Printf(format string, args ...any) { l.std.Printf(format, args...) }

// Fatalf logs a formatted line and exits the process with status 1.
func (l *Logger) Fatalf(format string, args ...any) { l.std.Fatalf(format, args...) }
