// Package logger provides stdlib log sinks for third-party components that
// cannot speak slog, tagging their output with a component prefix.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// New returns a stdlib-backed logger with component prefix. A nil writer
// falls back to stdout.
func New(component string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stdout
	}
	return log.New(w, fmt.Sprintf("[%s] ", component), log.LstdFlags)
}

// Writer returns a sink that tags every line a library writes to it with
// the component prefix. Used for the browser driver's process output.
func Writer(component string, w io.Writer) io.Writer {
	return &lineWriter{out: New(component, w)}
}

type lineWriter struct {
	out *log.Logger
}

func (l *lineWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		l.out.Print(line)
	}
	return len(p), nil
}
